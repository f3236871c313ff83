// Package config assembles the application configuration from defaults,
// an optional JSON config file, command-line flags, and environment
// variables - in that order of increasing priority.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service.
type Config struct {
	RunAddr                    string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	LogLevel                   string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	CoursesFileName            string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"filepath"`
	DatabaseDSN                string        `env:"DATABASE_DSN" json:"database_dsn"`
	DBConnectionTimeout        time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"db_connection_timeout"`
	MigrationsDir              string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`
	AuthCookieName             string        `env:"AUTH_COOKIE_NAME" json:"auth_cookie_name"`
	AuthCookieSigningSecretKey string        `env:"AUTH_COOKIE_SIGNING_SECRET_KEY" json:"auth_cookie_signing_secret_key"`
	TrustedSubnet              string        `env:"TRUSTED_SUBNET" json:"trusted_subnet"`
}

var defaultConfig = Config{
	RunAddr:             ":8080",
	LogLevel:            "info",
	CoursesFileName:     "",
	DatabaseDSN:         "",
	DBConnectionTimeout: 10 * time.Second,
	MigrationsDir:       "cmd/shoplist/migrations",
	AuthCookieName:      "shoplist_session",
	// AuthCookieSigningSecretKey is intentionally empty by default:
	// the application generates a process-lifetime secret at startup.
	AuthCookieSigningSecretKey: "",
	TrustedSubnet:              "",
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func (values *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(values)
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

func applyJSONFile(values *Config, fileName string) error {
	if fileName == "" {
		return nil
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, values)
}

func overlayNonEmpty(values *Config, overrides Config) {
	if overrides.RunAddr != "" {
		values.RunAddr = overrides.RunAddr
	}
	if overrides.LogLevel != "" {
		values.LogLevel = overrides.LogLevel
	}
	if overrides.CoursesFileName != "" {
		values.CoursesFileName = overrides.CoursesFileName
	}
	if overrides.DatabaseDSN != "" {
		values.DatabaseDSN = overrides.DatabaseDSN
	}
	if overrides.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = overrides.DBConnectionTimeout
	}
	if overrides.MigrationsDir != "" {
		values.MigrationsDir = overrides.MigrationsDir
	}
	if overrides.AuthCookieName != "" {
		values.AuthCookieName = overrides.AuthCookieName
	}
	if overrides.AuthCookieSigningSecretKey != "" {
		values.AuthCookieSigningSecretKey = overrides.AuthCookieSigningSecretKey
	}
	if overrides.TrustedSubnet != "" {
		values.TrustedSubnet = overrides.TrustedSubnet
	}
}

// InitOption customizes New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing disables command-line flag parsing; tests use it
// to keep the global flag set untouched.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds the configuration. Priority, lowest to highest: built-in
// defaults, JSON config file (CONFIG env or -c flag), command-line flags,
// environment variables.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	configFileName := os.Getenv("CONFIG")

	var valuesFromFlags Config
	if !options.disableFlagsParsing {
		flag.StringVar(&configFileName, "c", configFileName, "path to a JSON config file")
		flag.StringVar(&valuesFromFlags.RunAddr, "a", "", "address and port to run server")
		flag.StringVar(&valuesFromFlags.LogLevel, "l", "", "logger level")
		flag.StringVar(&valuesFromFlags.CoursesFileName, "f", "", "JSON file name with the shopping list")
		flag.StringVar(&valuesFromFlags.DatabaseDSN, "d", "", "a string with the database connection details")
		flag.StringVar(&valuesFromFlags.MigrationsDir, "m", "", "directory with goose migrations")
		flag.StringVar(&valuesFromFlags.TrustedSubnet, "t", "", "trusted subnet in CIDR notation for internal endpoints")
		flag.Parse()
	}

	if err := applyJSONFile(values, configFileName); err != nil {
		return nil, err
	}

	overlayNonEmpty(values, valuesFromFlags)

	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, err
	}
	overlayNonEmpty(values, valuesFromEnv)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}
