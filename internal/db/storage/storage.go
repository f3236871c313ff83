// Package storage declares the contract implemented by every storage
// backend (flat file, PostgreSQL, in-memory).
package storage

import (
	"context"
	"database/sql"

	"github.com/patric-chuzhbe/shoplist/internal/models"
	"github.com/patric-chuzhbe/shoplist/internal/user"
)

// Storage is the full persistence contract. Item operations are scoped by
// the owning user's ID; the flat-file backend serves a single implicit
// tenant and ignores the scope argument.
type Storage interface {
	GetItems(ctx context.Context, userID string) ([]models.Item, error)

	InsertItem(ctx context.Context, userID string, item models.Item) error

	ToggleItemChecked(ctx context.Context, userID, itemID string) (bool, error)

	DeleteItem(ctx context.Context, userID, itemID string) (bool, error)

	ClearItems(ctx context.Context, userID string) error

	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error)

	GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error)

	FindUserByUsername(ctx context.Context, username string, transaction *sql.Tx) (*user.User, bool, error)

	FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error)

	GetNumberOfItems(ctx context.Context) (int64, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error

	Ping(ctx context.Context) error

	Close() error
}
