// Package app initializes and runs the main application service.
// It configures logging, storage, accounts, sessions, and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patric-chuzhbe/shoplist/internal/accounts"
	"github.com/patric-chuzhbe/shoplist/internal/auth"
	"github.com/patric-chuzhbe/shoplist/internal/config"
	"github.com/patric-chuzhbe/shoplist/internal/db/jsondb"
	"github.com/patric-chuzhbe/shoplist/internal/db/memorystorage"
	"github.com/patric-chuzhbe/shoplist/internal/db/postgresdb"
	"github.com/patric-chuzhbe/shoplist/internal/db/storage"
	"github.com/patric-chuzhbe/shoplist/internal/ipchecker"
	"github.com/patric-chuzhbe/shoplist/internal/logger"
	"github.com/patric-chuzhbe/shoplist/internal/models"
	"github.com/patric-chuzhbe/shoplist/internal/router"
	"github.com/patric-chuzhbe/shoplist/internal/service"
)

// App encapsulates the configuration, HTTP handler, and storage backend
// needed to run the shopping-list service.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	httpHandler http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - preparing the session signing secret
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	authCookieSigningSecretKey, err := getSessionSigningSecret(app.cfg)
	if err != nil {
		return nil, err
	}

	theAuth := auth.New(
		app.db,
		app.cfg.AuthCookieName,
		authCookieSigningSecretKey,
	)

	theIPChecker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	app.httpHandler, err = router.New(
		service.New(app.db),
		accounts.New(app.db),
		theAuth,
		theAuth,
		theIPChecker,
	)
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

// getSessionSigningSecret decodes the configured base64 secret, or
// generates a process-lifetime one when none is configured. In the latter
// case every session is invalidated on restart.
func getSessionSigningSecret(cfg *config.Config) ([]byte, error) {
	if cfg.AuthCookieSigningSecretKey != "" {
		return base64.URLEncoding.DecodeString(cfg.AuthCookieSigningSecretKey)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	logger.Log.Infoln("No session secret configured, generated one for this process lifetime")

	return secret, nil
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.CoursesFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.CoursesFileName)
	}

	return memorystorage.New()
}
