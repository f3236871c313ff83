// Package memorystorage implements an in-memory, multi-tenant storage
// backend. It is the default when neither a database DSN nor a storage
// file is configured, and it backs most of the test suite.
package memorystorage

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"

	"github.com/patric-chuzhbe/shoplist/internal/models"
	"github.com/patric-chuzhbe/shoplist/internal/user"
)

type MemoryStorage struct {
	mu sync.Mutex

	// itemsByOwner keeps per-user item slices in insertion order.
	itemsByOwner map[string][]models.Item
	users        map[string]*user.User
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		itemsByOwner: map[string][]models.Item{},
		users:        map[string]*user.User{},
	}, nil
}

func (theStorage *MemoryStorage) GetItems(ctx context.Context, userID string) ([]models.Item, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	owned := theStorage.itemsByOwner[userID]
	items := make([]models.Item, len(owned))
	copy(items, owned)

	return items, nil
}

func (theStorage *MemoryStorage) InsertItem(ctx context.Context, userID string, item models.Item) error {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	theStorage.itemsByOwner[userID] = append(theStorage.itemsByOwner[userID], item)

	return nil
}

func (theStorage *MemoryStorage) ToggleItemChecked(ctx context.Context, userID, itemID string) (bool, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	owned := theStorage.itemsByOwner[userID]
	for i := range owned {
		if owned[i].ID == itemID {
			owned[i].Checked = !owned[i].Checked

			return true, nil
		}
	}

	return false, nil
}

func (theStorage *MemoryStorage) DeleteItem(ctx context.Context, userID, itemID string) (bool, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	owned := theStorage.itemsByOwner[userID]
	for i := range owned {
		if owned[i].ID == itemID {
			theStorage.itemsByOwner[userID] = append(owned[:i], owned[i+1:]...)

			return true, nil
		}
	}

	return false, nil
}

func (theStorage *MemoryStorage) ClearItems(ctx context.Context, userID string) error {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	theStorage.itemsByOwner[userID] = nil

	return nil
}

func (theStorage *MemoryStorage) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	for _, existing := range theStorage.users {
		if existing.Username == usr.Username || existing.Email == usr.Email {
			return "", models.ErrUserConflict
		}
	}

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	theStorage.users[usr.ID] = usr

	return usr.ID, nil
}

func (theStorage *MemoryStorage) GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	usr, found := theStorage.users[userID]
	if !found {
		return &user.User{ID: ""}, nil
	}

	return usr, nil
}

func (theStorage *MemoryStorage) FindUserByUsername(ctx context.Context, username string, transaction *sql.Tx) (*user.User, bool, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	for _, usr := range theStorage.users {
		if usr.Username == username {
			return usr, true, nil
		}
	}

	return nil, false, nil
}

func (theStorage *MemoryStorage) FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	for _, usr := range theStorage.users {
		if usr.Email == email {
			return usr, true, nil
		}
	}

	return nil, false, nil
}

func (theStorage *MemoryStorage) GetNumberOfItems(ctx context.Context) (int64, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	var total int64
	for _, owned := range theStorage.itemsByOwner {
		total += int64(len(owned))
	}

	return total, nil
}

func (theStorage *MemoryStorage) GetNumberOfUsers(ctx context.Context) (int64, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	return int64(len(theStorage.users)), nil
}

func (theStorage *MemoryStorage) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

func (theStorage *MemoryStorage) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

func (theStorage *MemoryStorage) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}
