// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/smartsplit/internal/models"
)

// ErrNotFound is wrapped by lookups that address a single record by ID.
var ErrNotFound = errors.New("not found")

// Store defines every persistence operation the service needs.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	ExpenseStore
	GroupStore
	UserStore
	ResetTokenStore

	// Close releases any resources held by the store.
	Close() error
}

// ExpenseStore holds the append-only expense ledger.
type ExpenseStore interface {
	// CreateExpense writes the expense row and all of its split rows in one
	// transaction. Inside that transaction it verifies that the group exists,
	// that actorID (when non-empty) is a member, and that the payer and every
	// split user are members. Any failure leaves no rows behind.
	CreateExpense(ctx context.Context, expense *models.Expense, actorID string) error

	// GetExpense returns one expense with its splits, or an error wrapping
	// ErrNotFound.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpenses returns a group's expenses newest first, each with its
	// splits and usernames filled in.
	ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error)

	// LoadGroupLedger reads a group's members and every expense with its
	// splits inside one read transaction, so the result is a consistent
	// snapshot. A group that does not exist yields an empty member list.
	LoadGroupLedger(ctx context.Context, groupID string) (*models.GroupLedger, error)
}

// GroupStore manages groups and their memberships.
type GroupStore interface {
	// CreateGroup inserts the group and adds the creator plus memberIDs as
	// members in one transaction. Duplicate member IDs are ignored.
	CreateGroup(ctx context.Context, group *models.Group, memberIDs []string) error

	// ListGroupsForUser returns the groups userID belongs to, newest first,
	// with MemberCount filled in.
	ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error)

	// ListMembers returns a group's members ordered by join time.
	ListMembers(ctx context.Context, groupID string) ([]models.Member, error)

	// IsMember reports whether userID belongs to groupID.
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// UserStore manages user accounts. Lookups return (nil, nil) when no user
// matches.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// SearchUsers matches query case-insensitively against username and
	// email, returning at most limit users ordered by username.
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
}

// ResetTokenStore persists password reset tokens.
type ResetTokenStore interface {
	// SaveResetToken inserts the token, replacing any existing token for
	// the same user.
	SaveResetToken(ctx context.Context, token *models.PasswordResetToken) error

	// GetResetToken looks a token up by its hash. It returns (nil, nil) when
	// no token matches.
	GetResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)

	// ResetPassword consumes the token with tokenHash if it is still valid at
	// now and sets its owner's password hash, in one transaction. Only one
	// caller can consume a token; the others get an error wrapping
	// ErrNotFound and change nothing.
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now int64) error
}
