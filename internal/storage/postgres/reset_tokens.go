package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/storage"
)

// SaveResetToken stores a reset token, replacing the user's previous one.
func (s *PostgresStore) SaveResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO password_reset_tokens (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at`,
		token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}
	return nil
}

// GetResetToken looks up a reset token by hash.
func (s *PostgresStore) GetResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	token := &models.PasswordResetToken{}
	err := s.pool.QueryRow(ctx,
		"SELECT user_id, token_hash, expires_at, created_at FROM password_reset_tokens WHERE token_hash = $1",
		tokenHash,
	).Scan(&token.UserID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}
	return token, nil
}

// ResetPassword consumes a live reset token and sets its owner's password.
func (s *PostgresStore) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now int64) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var userID string
		err := tx.QueryRow(ctx,
			"DELETE FROM password_reset_tokens WHERE token_hash = $1 AND expires_at > $2 RETURNING user_id",
			tokenHash, now,
		).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("reset token: %w", storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to consume reset token: %w", err)
		}

		if _, err := tx.Exec(ctx,
			"UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3",
			passwordHash, now, userID,
		); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		return nil
	})
}
