package service

import (
	"context"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/smartsplit/internal/idempotency"
	"github.com/mmynk/smartsplit/internal/money"
	"github.com/mmynk/smartsplit/pkg/api"
	"github.com/mmynk/smartsplit/pkg/api/apiconnect"
)

type ledgerFixture struct {
	env               *testEnv
	alice, bob, carol session
	outsider          session
	group             api.Group
}

func newLedgerFixture(t *testing.T, opts ...LedgerOption) *ledgerFixture {
	t.Helper()
	env := newTestEnv(t, opts...)
	f := &ledgerFixture{
		env:      env,
		alice:    env.register(t, "alice"),
		bob:      env.register(t, "bob"),
		carol:    env.register(t, "carol"),
		outsider: env.register(t, "dave"),
	}
	f.group = env.createGroup(t, f.alice, "Roommates", f.bob, f.carol)
	return f
}

func amounts(splits []api.Split) []string {
	out := make([]string, len(splits))
	for i, s := range splits {
		out[i] = s.Amount.String()
	}
	return out
}

func TestRecordExpenseEqualSplit(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	resp, err := f.env.ledger.RecordExpense(ctx, as(f.alice, &api.RecordExpenseRequest{
		GroupID:      f.group.ID,
		Amount:       money.MustParse("100.00"),
		Description:  "Groceries",
		SplitType:    "equal",
		Participants: []string{f.alice.user.ID, f.bob.user.ID, f.carol.user.ID},
	}))
	require.NoError(t, err)

	exp := resp.Msg.Expense
	assert.Equal(t, f.alice.user.ID, exp.PayerID, "payer defaults to the caller")
	assert.Equal(t, "alice", exp.PayerUsername)
	assert.Equal(t, f.alice.user.ID, exp.CreatedBy)
	assert.Equal(t, []string{"33.34", "33.33", "33.33"}, amounts(exp.Splits))
	assert.Equal(t, "bob", exp.Splits[1].Username)
}

func TestRecordExpenseSplitTypes(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	t.Run("exact", func(t *testing.T) {
		resp, err := f.env.ledger.RecordExpense(ctx, as(f.bob, &api.RecordExpenseRequest{
			GroupID:   f.group.ID,
			PayerID:   f.carol.user.ID,
			Amount:    money.MustParse("100.00"),
			SplitType: "exact",
			Splits: []api.SplitInput{
				{UserID: f.alice.user.ID, Amount: money.MustParse("33.33")},
				{UserID: f.bob.user.ID, Amount: money.MustParse("33.33")},
				{UserID: f.carol.user.ID, Amount: money.MustParse("33.34")},
			},
		}))
		require.NoError(t, err)
		assert.Equal(t, f.carol.user.ID, resp.Msg.Expense.PayerID)
		assert.Equal(t, f.bob.user.ID, resp.Msg.Expense.CreatedBy)
	})

	t.Run("percentage", func(t *testing.T) {
		resp, err := f.env.ledger.RecordExpense(ctx, as(f.alice, &api.RecordExpenseRequest{
			GroupID:   f.group.ID,
			Amount:    money.MustParse("200.00"),
			SplitType: "percentage",
			Splits: []api.SplitInput{
				{UserID: f.alice.user.ID, Percent: decimal.NewFromInt(50)},
				{UserID: f.bob.user.ID, Percent: decimal.NewFromInt(25)},
				{UserID: f.carol.user.ID, Percent: decimal.NewFromInt(25)},
			},
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{"100.00", "50.00", "50.00"}, amounts(resp.Msg.Expense.Splits))
	})
}

func TestRecordExpenseRejections(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	exact := func(total string, shares ...string) *api.RecordExpenseRequest {
		ids := []string{f.alice.user.ID, f.bob.user.ID, f.carol.user.ID}
		req := &api.RecordExpenseRequest{GroupID: f.group.ID, Amount: money.MustParse(total), SplitType: "exact"}
		for i, s := range shares {
			req.Splits = append(req.Splits, api.SplitInput{UserID: ids[i], Amount: money.MustParse(s)})
		}
		return req
	}

	tests := []struct {
		name   string
		caller session
		req    *api.RecordExpenseRequest
		code   connect.Code
	}{
		{"split mismatch", f.alice, exact("100.00", "33.30", "33.30", "33.30"), connect.CodeInvalidArgument},
		{"zero amount", f.alice, exact("0", "0"), connect.CodeInvalidArgument},
		{"negative share", f.alice, exact("10.00", "15.00", "-5.00"), connect.CodeInvalidArgument},
		{"unknown split type", f.alice, &api.RecordExpenseRequest{
			GroupID: f.group.ID, Amount: money.MustParse("10"), SplitType: "shares",
			Participants: []string{f.alice.user.ID},
		}, connect.CodeInvalidArgument},
		{"participants with exact", f.alice, &api.RecordExpenseRequest{
			GroupID: f.group.ID, Amount: money.MustParse("10"), SplitType: "exact",
			Participants: []string{f.alice.user.ID},
		}, connect.CodeInvalidArgument},
		{"duplicate target", f.alice, &api.RecordExpenseRequest{
			GroupID: f.group.ID, Amount: money.MustParse("10"), SplitType: "exact",
			Splits: []api.SplitInput{
				{UserID: f.bob.user.ID, Amount: money.MustParse("5")},
				{UserID: f.bob.user.ID, Amount: money.MustParse("5")},
			},
		}, connect.CodeInvalidArgument},
		{"non-member participant", f.alice, &api.RecordExpenseRequest{
			GroupID: f.group.ID, Amount: money.MustParse("10"), SplitType: "equal",
			Participants: []string{f.alice.user.ID, f.outsider.user.ID},
		}, connect.CodeInvalidArgument},
		{"caller not a member", f.outsider, &api.RecordExpenseRequest{
			GroupID: f.group.ID, Amount: money.MustParse("10"), SplitType: "equal",
			Participants: []string{f.alice.user.ID},
		}, connect.CodePermissionDenied},
		{"missing group", f.alice, &api.RecordExpenseRequest{
			GroupID: "no-such-group", Amount: money.MustParse("10"), SplitType: "equal",
			Participants: []string{f.alice.user.ID},
		}, connect.CodeNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.env.ledger.RecordExpense(ctx, as(tc.caller, tc.req))
			requireCode(t, tc.code, err)
		})
	}

	list, err := f.env.ledger.ListExpenses(ctx, as(f.alice, &api.ListExpensesRequest{GroupID: f.group.ID}))
	require.NoError(t, err)
	assert.Empty(t, list.Msg.Expenses, "rejected expenses leave nothing behind")
}

func TestBalancesAndSettlements(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.env.ledger.RecordExpense(ctx, as(f.alice, &api.RecordExpenseRequest{
		GroupID:      f.group.ID,
		Amount:       money.MustParse("90.00"),
		SplitType:    "equal",
		Participants: []string{f.alice.user.ID, f.bob.user.ID, f.carol.user.ID},
	}))
	require.NoError(t, err)

	balances, err := f.env.ledger.GetBalances(ctx, as(f.bob, &api.GetBalancesRequest{GroupID: f.group.ID}))
	require.NoError(t, err)
	require.Len(t, balances.Msg.Balances, 3)

	nets := map[string]string{}
	total := money.Zero
	for _, b := range balances.Msg.Balances {
		nets[b.Username] = b.Net.String()
		total = total.Add(b.Net)
	}
	assert.Equal(t, map[string]string{"alice": "60.00", "bob": "-30.00", "carol": "-30.00"}, nets)
	assert.True(t, total.IsZero(money.Epsilon), "balances are conserved")
	assert.Equal(t, "alice", balances.Msg.Balances[0].Username, "ordered by username")

	again, err := f.env.ledger.GetBalances(ctx, as(f.bob, &api.GetBalancesRequest{GroupID: f.group.ID}))
	require.NoError(t, err)
	assert.Equal(t, balances.Msg.Balances, again.Msg.Balances)

	plan, err := f.env.ledger.OptimizeSettlements(ctx, as(f.carol, &api.OptimizeSettlementsRequest{GroupID: f.group.ID}))
	require.NoError(t, err)
	assert.Equal(t, []api.Settlement{
		{FromUserID: f.bob.user.ID, FromUsername: "bob", ToUserID: f.alice.user.ID, ToUsername: "alice", Amount: money.MustParse("30.00")},
		{FromUserID: f.carol.user.ID, FromUsername: "carol", ToUserID: f.alice.user.ID, ToUsername: "alice", Amount: money.MustParse("30.00")},
	}, plan.Msg.Settlements)

	t.Run("outsider", func(t *testing.T) {
		_, err := f.env.ledger.GetBalances(ctx, as(f.outsider, &api.GetBalancesRequest{GroupID: f.group.ID}))
		requireCode(t, connect.CodePermissionDenied, err)
		_, err = f.env.ledger.OptimizeSettlements(ctx, as(f.outsider, &api.OptimizeSettlementsRequest{GroupID: f.group.ID}))
		requireCode(t, connect.CodePermissionDenied, err)
		_, err = f.env.ledger.ListExpenses(ctx, as(f.outsider, &api.ListExpensesRequest{GroupID: f.group.ID}))
		requireCode(t, connect.CodePermissionDenied, err)
	})

	t.Run("missing group", func(t *testing.T) {
		_, err := f.env.ledger.GetBalances(ctx, as(f.alice, &api.GetBalancesRequest{GroupID: "missing"}))
		requireCode(t, connect.CodeNotFound, err)
	})
}

func TestEmptyGroupHasZeroBalancesAndNoSettlements(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	balances, err := f.env.ledger.GetBalances(ctx, as(f.alice, &api.GetBalancesRequest{GroupID: f.group.ID}))
	require.NoError(t, err)
	require.Len(t, balances.Msg.Balances, 3)
	for _, b := range balances.Msg.Balances {
		assert.True(t, b.Net.Equal(money.Zero))
	}

	plan, err := f.env.ledger.OptimizeSettlements(ctx, as(f.alice, &api.OptimizeSettlementsRequest{GroupID: f.group.ID}))
	require.NoError(t, err)
	assert.Empty(t, plan.Msg.Settlements)
}

func TestListExpensesNewestFirst(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	for _, desc := range []string{"first", "second"} {
		_, err := f.env.ledger.RecordExpense(ctx, as(f.alice, &api.RecordExpenseRequest{
			GroupID: f.group.ID, Amount: money.MustParse("10"), Description: desc, SplitType: "equal",
			Participants: []string{f.alice.user.ID, f.bob.user.ID},
		}))
		require.NoError(t, err)
	}

	resp, err := f.env.ledger.ListExpenses(ctx, as(f.bob, &api.ListExpensesRequest{GroupID: f.group.ID}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Expenses, 2)
	assert.Equal(t, "second", resp.Msg.Expenses[0].Description)
	assert.Equal(t, []string{"5.00", "5.00"}, amounts(resp.Msg.Expenses[1].Splits))
}

func TestPreviewSplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.ledger.PreviewSplit(ctx, connect.NewRequest(&api.PreviewSplitRequest{
		Amount:       money.MustParse("10.00"),
		SplitType:    "equal",
		Participants: []string{"a", "b", "c"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"3.34", "3.33", "3.33"}, amounts(resp.Msg.Splits))

	resp, err = env.ledger.PreviewSplit(ctx, connect.NewRequest(&api.PreviewSplitRequest{
		Amount:    money.MustParse("100.00"),
		SplitType: "percentage",
		Splits: []api.SplitInput{
			{UserID: "a", Percent: decimal.RequireFromString("33.33")},
			{UserID: "b", Percent: decimal.RequireFromString("33.33")},
			{UserID: "c", Percent: decimal.RequireFromString("33.34")},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"33.33", "33.33", "33.34"}, amounts(resp.Msg.Splits))

	_, err = env.ledger.PreviewSplit(ctx, connect.NewRequest(&api.PreviewSplitRequest{
		Amount:    money.MustParse("100.00"),
		SplitType: "percentage",
		Splits:    []api.SplitInput{{UserID: "a", Percent: decimal.NewFromInt(90)}},
	}))
	requireCode(t, connect.CodeInvalidArgument, err)
}

func TestRecordExpenseIdempotency(t *testing.T) {
	guard := idempotency.NewGuard(idempotency.NewMemoryStore(), time.Hour)
	f := newLedgerFixture(t, WithIdempotency(guard))
	ctx := context.Background()

	send := func(caller session, key, amount string) (*connect.Response[api.RecordExpenseResponse], error) {
		req := as(caller, &api.RecordExpenseRequest{
			GroupID:      f.group.ID,
			Amount:       money.MustParse(amount),
			SplitType:    "equal",
			Participants: []string{f.alice.user.ID, f.bob.user.ID},
		})
		req.Header().Set(apiconnect.IdempotencyKeyHeader, key)
		return f.env.ledger.RecordExpense(ctx, req)
	}

	first, err := send(f.alice, "key-1", "40.00")
	require.NoError(t, err)
	retry, err := send(f.alice, "key-1", "40.00")
	require.NoError(t, err)
	assert.Equal(t, first.Msg.Expense.ID, retry.Msg.Expense.ID)

	_, err = send(f.alice, "key-1", "41.00")
	requireCode(t, connect.CodeAlreadyExists, err)

	other, err := send(f.bob, "key-1", "40.00")
	require.NoError(t, err)
	assert.NotEqual(t, first.Msg.Expense.ID, other.Msg.Expense.ID, "keys are scoped to the caller")

	expenses, err := f.env.store.ListExpenses(ctx, f.group.ID)
	require.NoError(t, err)
	assert.Len(t, expenses, 2)

	t.Run("failed request releases the key", func(t *testing.T) {
		req := as(f.alice, &api.RecordExpenseRequest{
			GroupID: "no-such-group", Amount: money.MustParse("5"), SplitType: "equal",
			Participants: []string{f.alice.user.ID},
		})
		req.Header().Set(apiconnect.IdempotencyKeyHeader, "key-2")
		_, err := f.env.ledger.RecordExpense(ctx, req)
		requireCode(t, connect.CodeNotFound, err)

		_, err = send(f.alice, "key-2", "5.00")
		require.NoError(t, err)
	})
}
