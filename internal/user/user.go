// Package user defines the user model used throughout the application,
// particularly for authentication and per-user item ownership.
package user

import "time"

// User represents a registered account. PasswordHash holds the bcrypt
// digest; the plaintext password is never stored.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string

	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
