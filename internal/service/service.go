// Package service implements the shopping-list operations on top of a
// storage backend: list, add, toggle-checked, delete, clear-all.
package service

import (
	"context"
	"errors"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/patric-chuzhbe/shoplist/internal/models"
)

type itemsKeeper interface {
	GetItems(ctx context.Context, userID string) ([]models.Item, error)

	InsertItem(ctx context.Context, userID string, item models.Item) error

	ToggleItemChecked(ctx context.Context, userID, itemID string) (bool, error)

	DeleteItem(ctx context.Context, userID, itemID string) (bool, error)

	ClearItems(ctx context.Context, userID string) error
}

type statsKeeper interface {
	GetNumberOfItems(ctx context.Context) (int64, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	itemsKeeper
	statsKeeper
	pinger
}

// ErrValidation is returned when a required field is missing from an
// add-item request.
var ErrValidation = errors.New("invalid data")

// ErrInvalidID is returned for an id that is empty, equal to the literal
// placeholder "undefined", or absent within the caller's scope. The
// placeholder check guards against a known client bug where uninitialized
// identifiers reach the server as the string "undefined".
var ErrInvalidID = errors.New("invalid ID")

type Service struct {
	db       storage
	validate *validator.Validate
}

func New(db storage) *Service {
	return &Service{
		db:       db,
		validate: validator.New(),
	}
}

// ListItems returns every item within the user's scope.
func (s *Service) ListItems(ctx context.Context, userID string) ([]models.Item, error) {
	return s.db.GetItems(ctx, userID)
}

// AddItem validates that all three keys are present, assigns a fresh id,
// and persists the item unchecked. Empty strings and non-positive
// quantities pass: only missing keys are rejected.
func (s *Service) AddItem(ctx context.Context, userID string, request *models.AddItemRequest) (models.Item, error) {
	if err := s.validate.Struct(request); err != nil {
		return models.Item{}, ErrValidation
	}

	item := models.Item{
		ID:       uuid.New().String(),
		Name:     *request.Name,
		Quantity: *request.Quantity,
		Category: *request.Category,
		Checked:  false,
	}

	if err := s.db.InsertItem(ctx, userID, item); err != nil {
		return models.Item{}, err
	}

	return item, nil
}

// ToggleChecked flips the checked flag of the item matching id within the
// user's scope.
func (s *Service) ToggleChecked(ctx context.Context, userID, itemID string) error {
	if isInvalidItemID(itemID) {
		return ErrInvalidID
	}

	found, err := s.db.ToggleItemChecked(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if !found {
		return ErrInvalidID
	}

	return nil
}

// DeleteItem removes the item matching id within the user's scope.
func (s *Service) DeleteItem(ctx context.Context, userID, itemID string) error {
	if isInvalidItemID(itemID) {
		return ErrInvalidID
	}

	found, err := s.db.DeleteItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if !found {
		return ErrInvalidID
	}

	return nil
}

// ClearAll removes every item within the user's scope. It succeeds
// vacuously on an already-empty list.
func (s *Service) ClearAll(ctx context.Context, userID string) error {
	return s.db.ClearItems(ctx, userID)
}

// Ping checks the health of the database/storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetInternalStats returns totals such as item and user counts.
func (s *Service) GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	items, err := s.db.GetNumberOfItems(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{
		Users: users,
		Items: items,
	}, nil
}

// isInvalidItemID rejects known-bad ids before any storage lookup.
func isInvalidItemID(itemID string) bool {
	return itemID == "" || itemID == "undefined"
}
