// Package postgresdb provides the PostgreSQL-based implementation of the
// storage interface. Every item statement filters by the owning user's id,
// so tenant isolation is enforced in SQL rather than after the fetch.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/patric-chuzhbe/shoplist/internal/models"
	"github.com/patric-chuzhbe/shoplist/internal/user"
)

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed implementation of the shopping-list
// storage. It handles all persistence operations via a database/sql
// connection using the pgx stdlib driver.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
) (*PostgresDB, error) {
	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

// GetItems returns the user's items in reverse creation order.
func (db *PostgresDB) GetItems(ctx context.Context, userID string) ([]models.Item, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, nom, quantite, categorie, checked, created_at
				FROM courses
				WHERE user_id = $1
				ORDER BY created_at DESC
		`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Item{}
	for rows.Next() {
		var item models.Item
		err = rows.Scan(
			&item.ID,
			&item.Name,
			&item.Quantity,
			&item.Category,
			&item.Checked,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		result = append(result, item)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// InsertItem stores a new item owned by the given user. A missing owner
// row surfaces as a foreign key violation from the database.
func (db *PostgresDB) InsertItem(ctx context.Context, userID string, item models.Item) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO courses (id, user_id, nom, quantite, categorie, checked)
				VALUES ($1, $2, $3, $4, $5, $6)
		`,
		item.ID,
		userID,
		item.Name,
		item.Quantity,
		item.Category,
		item.Checked,
	)

	return err
}

// ToggleItemChecked flips the checked flag of the item matching (id, owner).
// The second return value reports whether such an item existed.
func (db *PostgresDB) ToggleItemChecked(ctx context.Context, userID, itemID string) (bool, error) {
	result, err := db.database.ExecContext(
		ctx,
		`UPDATE courses SET checked = NOT checked WHERE id = $1 AND user_id = $2`,
		itemID,
		userID,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// DeleteItem removes the item matching (id, owner).
func (db *PostgresDB) DeleteItem(ctx context.Context, userID, itemID string) (bool, error) {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM courses WHERE id = $1 AND user_id = $2`,
		itemID,
		userID,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// ClearItems removes every item owned by the given user. Clearing an
// already-empty list succeeds vacuously.
func (db *PostgresDB) ClearItems(ctx context.Context, userID string) error {
	_, err := db.database.ExecContext(
		ctx,
		`DELETE FROM courses WHERE user_id = $1`,
		userID,
	)

	return err
}

// CreateUser inserts a new user record. A duplicate username or email is
// reported as models.ErrUserConflict via the unique constraints.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	row := database.QueryRowContext(
		ctx,
		`
			INSERT INTO users (username, email, password_hash)
				VALUES ($1, $2, $3)
				RETURNING id
		`,
		usr.Username,
		usr.Email,
		usr.PasswordHash,
	)
	var userIDFromDB string
	err := row.Scan(&userIDFromDB)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return "", models.ErrUserConflict
		}
		return "", err
	}

	return userIDFromDB, nil
}

// GetUserByID fetches a user by their UUID from the database.
// If the user does not exist, it returns a user with an empty ID field.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	if userID == "" {
		return &user.User{ID: ""}, nil
	}

	row := database.QueryRowContext(
		ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1`,
		userID,
	)
	usr, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &user.User{ID: ""}, nil
		}
		return &user.User{ID: ""}, err
	}

	return usr, nil
}

// FindUserByUsername looks a user up by their unique username.
func (db *PostgresDB) FindUserByUsername(ctx context.Context, username string, transaction *sql.Tx) (*user.User, bool, error) {
	return db.findUserBy(ctx, `username`, username, transaction)
}

// FindUserByEmail looks a user up by their unique email.
func (db *PostgresDB) FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error) {
	return db.findUserBy(ctx, `email`, email, transaction)
}

func (db *PostgresDB) findUserBy(ctx context.Context, column, value string, transaction *sql.Tx) (*user.User, bool, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	row := database.QueryRowContext(
		ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE `+column+` = $1`,
		value,
	)
	usr, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

func scanUser(row *sql.Row) (*user.User, error) {
	usr := &user.User{}
	err := row.Scan(
		&usr.ID,
		&usr.Username,
		&usr.Email,
		&usr.PasswordHash,
		&usr.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return usr, nil
}

// GetNumberOfItems returns the total number of stored items.
func (db *PostgresDB) GetNumberOfItems(ctx context.Context) (int64, error) {
	return db.countRows(ctx, `SELECT count(*) FROM courses`)
}

// GetNumberOfUsers returns the total number of registered users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.countRows(ctx, `SELECT count(*) FROM users`)
}

func (db *PostgresDB) countRows(ctx context.Context, query string) (int64, error) {
	row := db.database.QueryRowContext(ctx, query)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// CommitTransaction commits the given SQL transaction.
// Returns an error if the commit operation fails.
func (db *PostgresDB) CommitTransaction(transaction *sql.Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while committing transaction: %v", r)
		}
	}()

	return transaction.Commit()
}

// RollbackTransaction rolls back the given SQL transaction.
// If rollback fails, the returned error describes the issue.
func (db *PostgresDB) RollbackTransaction(transaction *sql.Tx) error {
	return transaction.Rollback()
}

// BeginTransaction starts a new SQL transaction and returns it.
// The caller is responsible for committing or rolling it back.
func (db *PostgresDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

// Ping verifies the database connection within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the underlying database connection.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}
