package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/money"
)

type fakeWriter struct {
	written []*models.Expense
	err     error
}

func (f *fakeWriter) CreateExpense(_ context.Context, e *models.Expense, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, e)
	return nil
}

func splits(pairs ...string) []models.Split {
	var out []models.Split
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, models.Split{UserID: pairs[i], Amount: money.MustParse(pairs[i+1])})
	}
	return out
}

func TestRecordExpense(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		amount  string
		splits  []models.Split
		wantErr error
	}{
		{"exact thirds with remainder", "100.00", splits("a", "33.33", "b", "33.33", "c", "33.34"), nil},
		{"one cent short is tolerated", "100.00", splits("a", "33.33", "b", "33.33", "c", "33.33"), nil},
		{"ten cents short", "100.00", splits("a", "33.30", "b", "33.30", "c", "33.30"), ErrSplitMismatch},
		{"zero amount", "0", splits("a", "0"), ErrInvalidAmount},
		{"negative amount", "-5", splits("a", "-5"), ErrInvalidAmount},
		{"no splits", "10", nil, ErrSplitMismatch},
		{"duplicate target", "10", splits("a", "5", "a", "5"), ErrDuplicateSplitTarget},
		{"negative share", "10", splits("a", "15", "b", "-5"), ErrInvalidAmount},
		{"missing user", "10", splits("", "10"), ErrUnknownParticipant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{}
			l := New(w)

			exp, err := l.RecordExpense(ctx, ExpenseInput{
				GroupID:   "g1",
				PayerID:   "a",
				Amount:    money.MustParse(tt.amount),
				SplitType: models.SplitExact,
				Splits:    tt.splits,
				ActorID:   "a",
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsValidation(err))
				assert.Empty(t, w.written, "validation failures must not reach the store")
				return
			}
			require.NoError(t, err)
			require.Len(t, w.written, 1)
			assert.NotEmpty(t, exp.ID)
			assert.Equal(t, "a", exp.CreatedBy)
			assert.NotZero(t, exp.CreatedAt)
			for _, s := range exp.Splits {
				assert.Equal(t, exp.ID, s.ExpenseID)
			}
		})
	}
}

func TestRecordExpenseInvalidSplitType(t *testing.T) {
	w := &fakeWriter{}
	_, err := New(w).RecordExpense(context.Background(), ExpenseInput{
		Amount:    money.MustParse("10"),
		SplitType: "shares",
		Splits:    splits("a", "10"),
	})
	require.ErrorIs(t, err, ErrInvalidSplitType)
	assert.Empty(t, w.written)
}

func TestRecordExpenseStoreErrors(t *testing.T) {
	in := ExpenseInput{
		GroupID:   "g1",
		PayerID:   "a",
		Amount:    money.MustParse("10"),
		SplitType: models.SplitEqual,
		Splits:    splits("a", "10"),
	}

	t.Run("membership errors pass through", func(t *testing.T) {
		_, err := New(&fakeWriter{err: ErrNotMember}).RecordExpense(context.Background(), in)
		require.ErrorIs(t, err, ErrNotMember)
		assert.NotErrorIs(t, err, ErrStorageFailure)
	})

	t.Run("driver errors become storage failures", func(t *testing.T) {
		driverErr := errors.New("disk I/O error")
		_, err := New(&fakeWriter{err: driverErr}).RecordExpense(context.Background(), in)
		require.ErrorIs(t, err, ErrStorageFailure)
		assert.ErrorIs(t, err, driverErr)
		assert.False(t, IsValidation(err))
	})
}
