// Package accounts implements registration and login. Passwords are
// hashed with bcrypt; the plaintext never reaches storage or logs.
package accounts

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/shoplist/internal/models"
	"github.com/patric-chuzhbe/shoplist/internal/user"
)

type transactioner interface {
	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error
}

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error)

	FindUserByUsername(ctx context.Context, username string, transaction *sql.Tx) (*user.User, bool, error)

	FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error)
}

type storage interface {
	transactioner
	userKeeper
}

// ErrValidation is returned when a registration field is empty.
var ErrValidation = errors.New("username, email and password are required")

// ErrInvalidCredentials is returned on any failed login attempt. It never
// distinguishes an unknown username from a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type Accounts struct {
	db storage
}

func New(db storage) *Accounts {
	return &Accounts{db: db}
}

// Register creates a new account and returns its id. It fails with
// ErrValidation on empty fields and models.ErrUserConflict when the
// username or email is already taken. The exists-check and the insert run
// in one transaction; the storage unique constraints act as a backstop.
func (a *Accounts) Register(ctx context.Context, username, email, password string) (string, error) {
	if username == "" || email == "" || password == "" {
		return "", ErrValidation
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	tx, err := a.db.BeginTransaction()
	if err != nil {
		return "", err
	}
	defer func() {
		_ = a.db.RollbackTransaction(tx)
	}()

	_, found, err := a.db.FindUserByUsername(ctx, username, tx)
	if err != nil {
		return "", err
	}
	if found {
		return "", models.ErrUserConflict
	}

	_, found, err = a.db.FindUserByEmail(ctx, email, tx)
	if err != nil {
		return "", err
	}
	if found {
		return "", models.ErrUserConflict
	}

	userID, err := a.db.CreateUser(
		ctx,
		&user.User{
			Username:     username,
			Email:        email,
			PasswordHash: string(passwordHash),
		},
		tx,
	)
	if err != nil {
		return "", err
	}

	if err := a.db.CommitTransaction(tx); err != nil {
		return "", err
	}

	return userID, nil
}

// Authenticate verifies a username/password pair and returns the matching
// user. Every failure mode collapses into ErrInvalidCredentials.
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	usr, found, err := a.db.FindUserByUsername(ctx, username, nil)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return usr, nil
}
