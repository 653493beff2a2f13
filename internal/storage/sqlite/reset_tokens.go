package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/storage"
)

// SaveResetToken stores a reset token, replacing the user's previous one.
func (s *SQLiteStore) SaveResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			token_hash = excluded.token_hash,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}
	return nil
}

// GetResetToken looks up a reset token by hash.
func (s *SQLiteStore) GetResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	token := &models.PasswordResetToken{}
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, token_hash, expires_at, created_at FROM password_reset_tokens WHERE token_hash = ?",
		tokenHash,
	).Scan(&token.UserID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}
	return token, nil
}

// ResetPassword consumes a live reset token and sets its owner's password.
func (s *SQLiteStore) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx,
		"DELETE FROM password_reset_tokens WHERE token_hash = ? AND expires_at > ? RETURNING user_id",
		tokenHash, now,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reset token: %w", storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, now, userID,
	); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
