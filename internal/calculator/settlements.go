package calculator

import (
	"fmt"

	"github.com/mmynk/smartsplit/internal/ledger"
	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/money"
)

type position struct {
	userID   string
	username string
	amount   money.Money // always positive while outstanding
}

// OptimizeSettlements produces a list of debtor -> creditor transfers that
// clears every balance, using greedy two-pointer matching.
//
// Algorithm:
//   - Creditors are members with Net > money.Epsilon and debtors are members
//     with Net < -money.Epsilon, both kept in input order. Members in between
//     need no settlement.
//   - Settle min(creditor, debtor), emit debtor -> creditor, and subtract the
//     amount from both.
//   - Advance whichever cursor dropped below epsilon (both may advance).
//
// Input order is the tie-break: amounts are never re-sorted. The result is
// deterministic and has at most |creditors| + |debtors| - 1 entries.
func OptimizeSettlements(balances []models.Balance) ([]models.Settlement, error) {
	if err := validateBalances(balances); err != nil {
		return nil, err
	}

	var creditors, debtors []position
	for _, b := range balances {
		switch {
		case b.Net.GreaterThan(money.Epsilon):
			creditors = append(creditors, position{b.UserID, b.Username, b.Net})
		case b.Net.LessThan(money.Epsilon.Neg()):
			debtors = append(debtors, position{b.UserID, b.Username, b.Net.Neg()})
		}
	}

	settlements := make([]models.Settlement, 0)
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		c, d := &creditors[i], &debtors[j]

		amount := c.amount.Min(d.amount)
		settlements = append(settlements, models.Settlement{
			FromUserID:   d.userID,
			FromUsername: d.username,
			ToUserID:     c.userID,
			ToUsername:   c.username,
			Amount:       amount,
		})

		c.amount = c.amount.Sub(amount)
		d.amount = d.amount.Sub(amount)

		if c.amount.LessThan(money.Epsilon) {
			i++
		}
		if d.amount.LessThan(money.Epsilon) {
			j++
		}
	}

	return settlements, nil
}

// validateBalances rejects input the optimizer cannot have been handed by
// ComputeBalances.
func validateBalances(balances []models.Balance) error {
	seen := make(map[string]struct{}, len(balances))
	for _, b := range balances {
		if b.UserID == "" {
			return fmt.Errorf("%w: balance without user id", ledger.ErrInvalidBalance)
		}
		if _, dup := seen[b.UserID]; dup {
			return fmt.Errorf("%w: duplicate user %s", ledger.ErrInvalidBalance, b.UserID)
		}
		seen[b.UserID] = struct{}{}

		if b.TotalPaid.IsNegative() || b.TotalOwed.IsNegative() {
			return fmt.Errorf("%w: negative totals for %s (paid %s, owed %s)",
				ledger.ErrInvalidBalance, b.UserID, b.TotalPaid, b.TotalOwed)
		}
		if !b.Net.Equal(b.TotalPaid.Sub(b.TotalOwed)) {
			return fmt.Errorf("%w: net %s for %s does not equal paid %s minus owed %s",
				ledger.ErrInvalidBalance, b.Net, b.UserID, b.TotalPaid, b.TotalOwed)
		}
	}
	return nil
}
