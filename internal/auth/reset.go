package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/storage"
)

// ErrInvalidResetToken covers unknown, consumed and expired tokens alike.
var ErrInvalidResetToken = errors.New("invalid or expired reset token")

// ResetStorage is the persistence the reset flow needs.
type ResetStorage interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveResetToken(ctx context.Context, token *models.PasswordResetToken) error
	GetResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now int64) error
}

// Notifier delivers a reset token to its owner.
type Notifier interface {
	NotifyPasswordReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) error
}

// LogNotifier records reset requests in the log. It never logs the token.
type LogNotifier struct{}

func (LogNotifier) NotifyPasswordReset(_ context.Context, user *models.User, _ string, expiresAt time.Time) error {
	slog.Info("Password reset requested",
		"user_id", user.ID,
		"expires_at", expiresAt.Format(time.RFC3339),
	)
	return nil
}

// PasswordResetter runs the forgot/reset password flow.
type PasswordResetter struct {
	storage  ResetStorage
	hasher   *PasswordAuthenticator
	notifier Notifier
	ttl      time.Duration
	now      func() time.Time
}

// NewPasswordResetter creates a resetter whose tokens live for ttl.
func NewPasswordResetter(storage ResetStorage, hasher *PasswordAuthenticator, notifier Notifier, ttl time.Duration) *PasswordResetter {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &PasswordResetter{
		storage:  storage,
		hasher:   hasher,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
	}
}

// HashToken returns the hex sha256 digest under which a token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RequestReset issues a token for the account registered under email.
// Unknown emails are not an error: the returned token is empty.
func (r *PasswordResetter) RequestReset(ctx context.Context, email string) (string, error) {
	user, err := r.storage.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return "", nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	now := r.now()
	expiresAt := now.Add(r.ttl)
	if err := r.storage.SaveResetToken(ctx, &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: HashToken(token),
		ExpiresAt: expiresAt.Unix(),
		CreatedAt: now.Unix(),
	}); err != nil {
		return "", err
	}

	if err := r.notifier.NotifyPasswordReset(ctx, user, token, expiresAt); err != nil {
		return "", fmt.Errorf("failed to deliver reset token: %w", err)
	}
	return token, nil
}

// Reset sets a new password for the owner of token and consumes the token.
// The lookup only skips hashing for dead tokens; the store consumes the
// token atomically, so concurrent resets with one token succeed once.
func (r *PasswordResetter) Reset(ctx context.Context, token, newPassword string) error {
	if err := r.hasher.ValidateCredential(newPassword); err != nil {
		return err
	}

	tokenHash := HashToken(token)
	stored, err := r.storage.GetResetToken(ctx, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to look up reset token: %w", err)
	}
	now := r.now()
	if stored == nil || stored.Expired(now) {
		return ErrInvalidResetToken
	}

	hashed, err := r.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}
	err = r.storage.ResetPassword(ctx, tokenHash, hashed, now.Unix())
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidResetToken
	}
	return err
}
