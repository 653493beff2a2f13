package calculator

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/smartsplit/internal/ledger"
	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/money"
)

// bal builds a balance whose paid/owed totals produce the given net.
func bal(id, net string) models.Balance {
	n := money.MustParse(net)
	if n.IsNegative() {
		return models.NewBalance(id, id, money.Zero, n.Neg())
	}
	return models.NewBalance(id, id, n, money.Zero)
}

type transfer struct {
	from, to, amount string
}

func transfers(settlements []models.Settlement) []transfer {
	out := make([]transfer, len(settlements))
	for i, s := range settlements {
		out[i] = transfer{s.FromUserID, s.ToUserID, s.Amount.String()}
	}
	return out
}

func TestOptimizeSettlements(t *testing.T) {
	tests := []struct {
		name     string
		balances []models.Balance
		want     []transfer
	}{
		{
			name: "single debtor and creditor",
			balances: []models.Balance{
				models.NewBalance("A", "A", money.MustParse("100"), money.MustParse("50")),
				models.NewBalance("B", "B", money.Zero, money.MustParse("50")),
			},
			want: []transfer{{"B", "A", "50.00"}},
		},
		{
			name:     "one debtor pays creditors in input order",
			balances: []models.Balance{bal("A", "30"), bal("B", "20"), bal("C", "-50")},
			want:     []transfer{{"C", "A", "30.00"}, {"C", "B", "20.00"}},
		},
		{
			name:     "input order wins over amount",
			balances: []models.Balance{bal("A", "10"), bal("B", "40"), bal("C", "-25"), bal("D", "-25")},
			want:     []transfer{{"C", "A", "10.00"}, {"C", "B", "15.00"}, {"D", "B", "25.00"}},
		},
		{
			name:     "both cursors advance on an exact match",
			balances: []models.Balance{bal("A", "20"), bal("B", "-20"), bal("C", "5"), bal("D", "-5")},
			want:     []transfer{{"B", "A", "20.00"}, {"D", "C", "5.00"}},
		},
		{
			name:     "balances within epsilon are skipped",
			balances: []models.Balance{bal("A", "0.01"), bal("B", "-0.01"), bal("C", "0")},
			want:     []transfer{},
		},
		{
			name: "empty input",
			want: []transfer{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OptimizeSettlements(tt.balances)
			require.NoError(t, err)
			assert.Equal(t, tt.want, transfers(got))
		})
	}
}

func TestOptimizeSettlementsCarriesUsernames(t *testing.T) {
	got, err := OptimizeSettlements([]models.Balance{
		models.NewBalance("u1", "alice", money.MustParse("10"), money.Zero),
		models.NewBalance("u2", "bob", money.Zero, money.MustParse("10")),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].FromUsername)
	assert.Equal(t, "alice", got[0].ToUsername)
}

func TestOptimizeSettlementsInvalidBalance(t *testing.T) {
	tests := []struct {
		name     string
		balances []models.Balance
	}{
		{"missing user id", []models.Balance{bal("", "10")}},
		{"duplicate user", []models.Balance{bal("A", "10"), bal("A", "-10")}},
		{"negative paid", []models.Balance{models.NewBalance("A", "A", money.MustParse("-1"), money.Zero)}},
		{"inconsistent net", []models.Balance{{UserID: "A", TotalPaid: money.MustParse("5"), Net: money.MustParse("7")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OptimizeSettlements(tt.balances)
			require.ErrorIs(t, err, ledger.ErrInvalidBalance)
			assert.Nil(t, got)
		})
	}
}

// randomGroup records random equal-split expenses whose per-person share is
// a whole number of dollars, then derives balances from them.
func randomGroup(r *rand.Rand) []models.Balance {
	n := 2 + r.Intn(8)
	members := make([]models.Member, n)
	for i := range members {
		members[i] = member(fmt.Sprintf("u%02d", i), fmt.Sprintf("user%02d", i))
	}

	var expenses []models.Expense
	for e := 0; e < 1+r.Intn(12); e++ {
		participants := r.Perm(n)[:1+r.Intn(n)]
		share := money.FromCents(int64(100 * (1 + r.Intn(50))))
		ex := models.Expense{PayerID: members[r.Intn(n)].UserID}
		for _, p := range participants {
			ex.Splits = append(ex.Splits, models.Split{UserID: members[p].UserID, Amount: share})
			ex.Amount = ex.Amount.Add(share)
		}
		expenses = append(expenses, ex)
	}

	balances, err := ComputeBalances("g", members, expenses)
	if err != nil {
		panic(err)
	}
	return balances
}

func TestSettlementProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		balances := randomGroup(r)

		netSum := money.Zero
		creditors, debtors := 0, 0
		for _, b := range balances {
			netSum = netSum.Add(b.Net)
			switch {
			case b.Net.GreaterThan(money.Epsilon):
				creditors++
			case b.Net.LessThan(money.Epsilon.Neg()):
				debtors++
			}
		}
		require.True(t, netSum.IsZero(money.Epsilon), "balances must net to zero, got %s", netSum)

		plan, err := OptimizeSettlements(balances)
		require.NoError(t, err)

		bound := creditors + debtors - 1
		if bound < 0 {
			bound = 0
		}
		assert.LessOrEqual(t, len(plan), bound)

		adjusted := make(map[string]money.Money, len(balances))
		for _, b := range balances {
			adjusted[b.UserID] = b.Net
		}
		for _, s := range plan {
			assert.True(t, s.Amount.IsPositive())
			adjusted[s.FromUserID] = adjusted[s.FromUserID].Add(s.Amount)
			adjusted[s.ToUserID] = adjusted[s.ToUserID].Sub(s.Amount)
		}
		for id, net := range adjusted {
			assert.True(t, net.IsZero(money.Epsilon), "user %s left with %s", id, net)
		}

		again, err := OptimizeSettlements(balances)
		require.NoError(t, err)
		assert.Equal(t, plan, again, "same input must produce the same plan")
	}
}
