package models

import "github.com/mmynk/smartsplit/internal/money"

// SplitType records how an expense was divided among its participants.
type SplitType string

const (
	SplitEqual      SplitType = "equal"
	SplitExact      SplitType = "exact"
	SplitPercentage SplitType = "percentage"
)

// Valid reports whether t is one of the known split types.
func (t SplitType) Valid() bool {
	switch t {
	case SplitEqual, SplitExact, SplitPercentage:
		return true
	}
	return false
}

// Expense is a payment made by one member on behalf of the group.
// It is created atomically with its splits and is immutable afterwards.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group the expense belongs to.
	GroupID string

	// PayerID is the user who paid the full amount.
	PayerID string

	// PayerUsername is filled in on reads.
	PayerUsername string

	// Amount is the expense total. Always positive.
	Amount money.Money

	Description string

	SplitType SplitType

	// CreatedBy is the user who recorded the expense. It may differ from
	// the payer.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64

	// Splits are the per-user shares, in the order they were submitted.
	Splits []Split
}

// SplitTotal sums the expense's split amounts.
func (e *Expense) SplitTotal() money.Money {
	total := money.Zero
	for _, s := range e.Splits {
		total = total.Add(s.Amount)
	}
	return total
}

// Split is one participant's share of an expense.
type Split struct {
	ExpenseID string
	UserID    string

	// Username is filled in on reads.
	Username string

	Amount money.Money
}
