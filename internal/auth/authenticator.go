// Package auth implements account authentication: password registration and
// login, JWT session tokens, and the password reset flow.
package auth

import (
	"context"

	"github.com/mmynk/smartsplit/internal/models"
)

// Authenticator is what AuthService needs from a credential scheme.
// PasswordAuthenticator is the only implementation.
type Authenticator interface {
	// Register stores a new account; it fails with ErrEmailExists,
	// ErrUsernameExists or ErrWeakPassword.
	Register(ctx context.Context, username, email, credential string) (*models.User, error)

	// Authenticate returns the account for email, or ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	ValidateCredential(credential string) error
}
