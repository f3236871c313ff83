// Package models contains the wire and storage models shared between
// the HTTP boundary, the list service, and the storage backends.
package models

import (
	"errors"
	"time"
)

// Item is a single shopping-list entry. The JSON field names follow the
// wire format of the original frontend ("nom", "quantite", "categorie").
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"nom"`
	Quantity int    `json:"quantite"`
	Category string `json:"categorie"`
	Checked  bool   `json:"checked"`

	// CreatedAt is persisted by the relational backend and omitted
	// from the wire shape and the flat-file format.
	CreatedAt time.Time `json:"-"`
}

// AddItemRequest is the payload of POST /api/courses. Pointer fields
// distinguish a missing key from an explicit zero value: only absent
// keys are rejected.
type AddItemRequest struct {
	Name     *string `json:"nom" validate:"required"`
	Quantity *int    `json:"quantite" validate:"required"`
	Category *string `json:"categorie" validate:"required"`
}

// SuccessResponse is the body of every successful mutating API call.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// InternalStatsResponse reports totals for the trusted-subnet stats endpoint.
type InternalStatsResponse struct {
	Users int64 `json:"users"`
	Items int64 `json:"items"`
}

// Storage backend kinds selectable via configuration.
const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// ErrItemNotFound is returned by storage backends when no item matches
// the given id within the caller's scope.
var ErrItemNotFound = errors.New("item not found")

// ErrUserConflict is returned by storage backends when a username or
// email is already taken.
var ErrUserConflict = errors.New("username or email already taken")
