package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/smartsplit/internal/ledger"
	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/money"
)

// ComputeBalances derives each member's position from a group's expense
// history.
//
// There is exactly one entry per member, including members who never paid
// or owed anything. For each member:
//   - TotalPaid is the sum of amounts of expenses they paid for
//   - TotalOwed is the sum of their splits across all expenses
//   - Net = TotalPaid - TotalOwed
//
// Entries are ordered by username (byte order, so case-sensitive), with
// user ID breaking ties. A member listed more than once gets one entry, from
// its first occurrence. Payers or split users who are not in members are
// ignored. An empty member set is reported as ledger.ErrGroupNotFound rather
// than as zero balances.
func ComputeBalances(groupID string, members []models.Member, expenses []models.Expense) ([]models.Balance, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: %s", ledger.ErrGroupNotFound, groupID)
	}

	type totals struct {
		paid money.Money
		owed money.Money
	}
	byUser := make(map[string]*totals, len(members))
	unique := make([]models.Member, 0, len(members))
	for _, m := range members {
		if _, seen := byUser[m.UserID]; seen {
			continue
		}
		byUser[m.UserID] = &totals{}
		unique = append(unique, m)
	}

	for _, e := range expenses {
		if t, ok := byUser[e.PayerID]; ok {
			t.paid = t.paid.Add(e.Amount)
		}
		for _, s := range e.Splits {
			if t, ok := byUser[s.UserID]; ok {
				t.owed = t.owed.Add(s.Amount)
			}
		}
	}

	balances := make([]models.Balance, 0, len(unique))
	for _, m := range unique {
		t := byUser[m.UserID]
		balances = append(balances, models.NewBalance(m.UserID, m.Username, t.paid, t.owed))
	}

	sort.SliceStable(balances, func(i, j int) bool {
		if balances[i].Username != balances[j].Username {
			return balances[i].Username < balances[j].Username
		}
		return balances[i].UserID < balances[j].UserID
	})

	return balances, nil
}

// ComputeLedgerBalances is ComputeBalances over a store snapshot.
func ComputeLedgerBalances(l *models.GroupLedger) ([]models.Balance, error) {
	return ComputeBalances(l.GroupID, l.Members, l.Expenses)
}
