// Package ledger implements the expense write path: request validation and
// the atomic store write.
//
// The package performs no authorization of its own. When an acting user is
// supplied the store checks membership inside the same transaction as the
// write, so a rejected expense never leaves partial rows behind.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/money"
)

// ExpenseWriter is the persistence the write path needs.
type ExpenseWriter interface {
	CreateExpense(ctx context.Context, expense *models.Expense, actorID string) error
}

// ExpenseInput describes an expense to record.
type ExpenseInput struct {
	GroupID     string
	PayerID     string
	Amount      money.Money
	Description string
	SplitType   models.SplitType
	Splits      []models.Split

	// ActorID is the authenticated user recording the expense. Empty means
	// the caller already verified membership.
	ActorID string
}

// Ledger records expenses.
type Ledger struct {
	store ExpenseWriter
	now   func() time.Time
}

// New creates a Ledger writing to store.
func New(store ExpenseWriter) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// RecordExpense validates in and writes the expense with its splits
// atomically. Validation runs before anything touches the store.
func (l *Ledger) RecordExpense(ctx context.Context, in ExpenseInput) (*models.Expense, error) {
	if !in.SplitType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSplitType, in.SplitType)
	}
	if err := ValidateSplits(in.Amount, in.Splits); err != nil {
		return nil, err
	}

	expense := &models.Expense{
		ID:          uuid.New().String(),
		GroupID:     in.GroupID,
		PayerID:     in.PayerID,
		Amount:      in.Amount,
		Description: in.Description,
		SplitType:   in.SplitType,
		CreatedBy:   in.ActorID,
		CreatedAt:   l.now().Unix(),
		Splits:      make([]models.Split, len(in.Splits)),
	}
	for i, s := range in.Splits {
		expense.Splits[i] = models.Split{ExpenseID: expense.ID, UserID: s.UserID, Amount: s.Amount}
	}

	if err := l.store.CreateExpense(ctx, expense, in.ActorID); err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, StorageFailure("failed to record expense", err)
	}
	return expense, nil
}

// ValidateSplits checks an expense amount against its splits:
// the amount is positive, there is at least one split, every split names a
// distinct user with a non-negative share, and the shares sum to the amount
// within money.Epsilon.
func ValidateSplits(amount money.Money, splits []models.Split) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: expense amount must be positive, got %s", ErrInvalidAmount, amount)
	}
	if len(splits) == 0 {
		return fmt.Errorf("%w: expense has no splits", ErrSplitMismatch)
	}

	seen := make(map[string]struct{}, len(splits))
	total := money.Zero
	for _, s := range splits {
		if s.UserID == "" {
			return fmt.Errorf("%w: split without user id", ErrUnknownParticipant)
		}
		if _, dup := seen[s.UserID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSplitTarget, s.UserID)
		}
		seen[s.UserID] = struct{}{}
		if s.Amount.IsNegative() {
			return fmt.Errorf("%w: split for %s is negative (%s)", ErrInvalidAmount, s.UserID, s.Amount)
		}
		total = total.Add(s.Amount)
	}

	if !total.Within(amount, money.Epsilon) {
		return fmt.Errorf("%w: splits total %s, expense amount %s", ErrSplitMismatch, total, amount)
	}
	return nil
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrStorageFailure) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrNotMember) ||
		errors.Is(err, ErrUnknownParticipant)
}
