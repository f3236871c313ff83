// Package jsondb implements the flat-file storage backend. Items are kept
// as a plain JSON array in a single well-known file which is rewritten
// wholesale on every mutation. The backend serves one implicit tenant:
// items carry no owner and the scope argument is ignored. Account records
// live in a sibling "<file>.users.json" file so that registration and
// login keep working when this backend is selected.
package jsondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/shoplist/internal/models"
	"github.com/patric-chuzhbe/shoplist/internal/user"
)

type JSONDB struct {
	fileName string

	// mu serializes cache access; the HTTP server calls into the
	// backend from concurrent goroutines.
	mu    sync.Mutex
	Cache CacheStruct
}

type CacheStruct struct {
	Items []models.Item
	Users map[string]*user.User
}

func writeToJSONFile(fileName string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %s", err)
	}

	file, err2 := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err2 != nil {
		return fmt.Errorf("error opening file: %s", err2)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %s", err)
	}

	return nil
}

// parseJSONFile fills target from fileName. A missing file leaves the
// target untouched without error; malformed content degrades to the empty
// collection instead of failing.
func parseJSONFile(fileName string, target interface{}) error {
	file, err := os.Open(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(target); err != nil {
		return nil
	}

	return nil
}

func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache: CacheStruct{
			Items: []models.Item{},
			Users: map[string]*user.User{},
		},
	}

	if err := parseJSONFile(fileName, &db.Cache.Items); err != nil {
		return nil, err
	}
	if db.Cache.Items == nil {
		db.Cache.Items = []models.Item{}
	}

	if err := parseJSONFile(db.usersFileName(), &db.Cache.Users); err != nil {
		return nil, err
	}
	if db.Cache.Users == nil {
		db.Cache.Users = map[string]*user.User{}
	}

	return db, nil
}

func (db *JSONDB) usersFileName() string {
	return db.fileName + ".users.json"
}

func (db *JSONDB) saveItems() error {
	return writeToJSONFile(db.fileName, db.Cache.Items)
}

func (db *JSONDB) saveUsers() error {
	return writeToJSONFile(db.usersFileName(), db.Cache.Users)
}

func (db *JSONDB) GetItems(ctx context.Context, userID string) ([]models.Item, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	items := make([]models.Item, len(db.Cache.Items))
	copy(items, db.Cache.Items)

	return items, nil
}

func (db *JSONDB) InsertItem(ctx context.Context, userID string, item models.Item) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.Cache.Items = append(db.Cache.Items, item)

	return db.saveItems()
}

func (db *JSONDB) ToggleItemChecked(ctx context.Context, userID, itemID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.Cache.Items {
		if db.Cache.Items[i].ID == itemID {
			db.Cache.Items[i].Checked = !db.Cache.Items[i].Checked

			return true, db.saveItems()
		}
	}

	return false, nil
}

func (db *JSONDB) DeleteItem(ctx context.Context, userID, itemID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	kept := funk.Filter(
		db.Cache.Items,
		func(item models.Item) bool { return item.ID != itemID },
	).([]models.Item)
	if len(kept) == len(db.Cache.Items) {
		return false, nil
	}

	db.Cache.Items = kept

	return true, db.saveItems()
}

func (db *JSONDB) ClearItems(ctx context.Context, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.Cache.Items = []models.Item{}

	return db.saveItems()
}

func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.Cache.Users {
		if existing.Username == usr.Username || existing.Email == usr.Email {
			return "", models.ErrUserConflict
		}
	}

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	db.Cache.Users[usr.ID] = usr

	return usr.ID, db.saveUsers()
}

func (db *JSONDB) GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return &user.User{ID: ""}, nil
	}

	return usr, nil
}

func (db *JSONDB) FindUserByUsername(ctx context.Context, username string, transaction *sql.Tx) (*user.User, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, usr := range db.Cache.Users {
		if usr.Username == username {
			return usr, true, nil
		}
	}

	return nil, false, nil
}

func (db *JSONDB) FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, usr := range db.Cache.Users {
		if usr.Email == email {
			return usr, true, nil
		}
	}

	return nil, false, nil
}

func (db *JSONDB) GetNumberOfItems(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return int64(len(db.Cache.Items)), nil
}

func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return int64(len(db.Cache.Users)), nil
}

func (db *JSONDB) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

func (db *JSONDB) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

func (db *JSONDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.saveItems(); err != nil {
		return err
	}

	return db.saveUsers()
}
