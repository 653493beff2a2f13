package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Username is the display name. Unique.
	Username string

	// Email is used for login and password resets. Unique.
	Email string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	CreatedAt int64
	UpdatedAt int64
}

// NewUser returns a user with a fresh ID and timestamps.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// PasswordResetToken is a pending reset. Only the sha256 hex digest of the
// token is stored; a user has at most one token at a time.
type PasswordResetToken struct {
	UserID    string
	TokenHash string
	ExpiresAt int64
	CreatedAt int64
}

// Expired reports whether the token is no longer usable at now.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return now.Unix() >= t.ExpiresAt
}
