// Package mockstorage provides a testify-based mock implementation
// of the storage contract. It is used for unit testing HTTP handlers
// by simulating storage behavior, including failure modes.
package mockstorage

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/shoplist/internal/models"
	"github.com/patric-chuzhbe/shoplist/internal/user"
)

// StorageMock is a testify mock that implements the full storage
// contract. Use it in router tests to simulate database behavior.
type StorageMock struct {
	mock.Mock
}

// GetItems mocks fetching the items within a user's scope.
func (m *StorageMock) GetItems(ctx context.Context, userID string) ([]models.Item, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]models.Item)
	return items, args.Error(1)
}

// InsertItem mocks storing a new item.
func (m *StorageMock) InsertItem(ctx context.Context, userID string, item models.Item) error {
	args := m.Called(ctx, userID, item)
	return args.Error(0)
}

// ToggleItemChecked mocks flipping an item's checked flag.
func (m *StorageMock) ToggleItemChecked(ctx context.Context, userID, itemID string) (bool, error) {
	args := m.Called(ctx, userID, itemID)
	return args.Bool(0), args.Error(1)
}

// DeleteItem mocks removing an item.
func (m *StorageMock) DeleteItem(ctx context.Context, userID, itemID string) (bool, error) {
	args := m.Called(ctx, userID, itemID)
	return args.Bool(0), args.Error(1)
}

// ClearItems mocks removing every item within a user's scope.
func (m *StorageMock) ClearItems(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// CreateUser mocks inserting a user record.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User, tx *sql.Tx) (string, error) {
	args := m.Called(ctx, usr, tx)
	return args.String(0), args.Error(1)
}

// GetUserByID mocks fetching a user by id.
func (m *StorageMock) GetUserByID(ctx context.Context, userID string, tx *sql.Tx) (*user.User, error) {
	args := m.Called(ctx, userID, tx)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

// FindUserByUsername mocks the username lookup.
func (m *StorageMock) FindUserByUsername(ctx context.Context, username string, tx *sql.Tx) (*user.User, bool, error) {
	args := m.Called(ctx, username, tx)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// FindUserByEmail mocks the email lookup.
func (m *StorageMock) FindUserByEmail(ctx context.Context, email string, tx *sql.Tx) (*user.User, bool, error) {
	args := m.Called(ctx, email, tx)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// GetNumberOfItems mocks the item total used by the stats endpoint.
func (m *StorageMock) GetNumberOfItems(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// GetNumberOfUsers mocks the user total used by the stats endpoint.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// BeginTransaction mocks the beginning of a transaction.
func (m *StorageMock) BeginTransaction() (*sql.Tx, error) {
	args := m.Called()
	tx, _ := args.Get(0).(*sql.Tx)
	return tx, args.Error(1)
}

// CommitTransaction mocks committing a transaction.
func (m *StorageMock) CommitTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// RollbackTransaction mocks rolling back a transaction.
func (m *StorageMock) RollbackTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks releasing the storage resources.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
