// Package calculator derives amounts from the ledger: split shares for a new
// expense, member balances for a group, and the settlement plan that clears
// them.
package calculator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/smartsplit/internal/ledger"
	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/money"
)

var (
	hundredPercent   = decimal.NewFromInt(100)
	percentTolerance = decimal.RequireFromString("0.01")
)

// Share is one participant's input to BuildSplits. Which field is read
// depends on the split type: none for equal, Percent for percentage, Amount
// for exact.
type Share struct {
	UserID  string
	Amount  money.Money
	Percent decimal.Decimal
}

// BuildSplits turns shares into split rows for an expense of the given
// amount.
//
//   - equal: amount divided evenly; leftover cents go to the earliest shares
//   - percentage: percents must total 100 (within 0.01); each share is
//     truncated to cents and the leftover cents go to the shares with the
//     largest truncated fractions, earliest first on ties
//   - exact: amounts are used as given
//
// The result always passes ledger.ValidateSplits.
func BuildSplits(splitType models.SplitType, amount money.Money, shares []Share) ([]models.Split, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: expense amount must be positive, got %s", ledger.ErrInvalidAmount, amount)
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: at least one participant is required", ledger.ErrSplitMismatch)
	}

	var splits []models.Split
	switch splitType {
	case models.SplitEqual:
		parts := amount.Allocate(len(shares))
		splits = make([]models.Split, len(shares))
		for i, sh := range shares {
			splits[i] = models.Split{UserID: sh.UserID, Amount: parts[i]}
		}

	case models.SplitPercentage:
		var err error
		if splits, err = percentageSplits(amount, shares); err != nil {
			return nil, err
		}

	case models.SplitExact:
		splits = make([]models.Split, len(shares))
		for i, sh := range shares {
			splits[i] = models.Split{UserID: sh.UserID, Amount: sh.Amount}
		}

	default:
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidSplitType, splitType)
	}

	if err := ledger.ValidateSplits(amount, splits); err != nil {
		return nil, err
	}
	return splits, nil
}

func percentageSplits(amount money.Money, shares []Share) ([]models.Split, error) {
	totalPct := decimal.Zero
	for _, sh := range shares {
		if sh.Percent.IsNegative() {
			return nil, fmt.Errorf("%w: percentage for %s is negative (%s)", ledger.ErrInvalidAmount, sh.UserID, sh.Percent)
		}
		totalPct = totalPct.Add(sh.Percent)
	}
	if !totalPct.IsPositive() || totalPct.Sub(hundredPercent).Abs().GreaterThan(percentTolerance) {
		return nil, fmt.Errorf("%w: percentages total %s, expected 100", ledger.ErrSplitMismatch, totalPct)
	}

	// Largest remainder over exact cent quotients. Shares are scaled by the
	// actual percent total, so the floors fall short of amount by fewer cents
	// than there are shares with a fractional part, and a 0% share is never
	// charged.
	cents := decimal.NewFromInt(amount.Cents())
	splits := make([]models.Split, len(shares))
	remainders := make([]decimal.Decimal, len(shares))
	var allocated int64
	for i, sh := range shares {
		q, r := cents.Mul(sh.Percent).QuoRem(totalPct, 0)
		splits[i] = models.Split{UserID: sh.UserID, Amount: money.FromCents(q.IntPart())}
		remainders[i] = r
		allocated += q.IntPart()
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})
	for k := int64(0); k < amount.Cents()-allocated; k++ {
		i := order[k]
		splits[i].Amount = splits[i].Amount.Add(money.FromCents(1))
	}
	return splits, nil
}
