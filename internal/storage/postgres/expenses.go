package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/smartsplit/internal/ledger"
	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/money"
	"github.com/mmynk/smartsplit/internal/storage"
)

// CreateExpense persists an expense and its splits in a single transaction.
// Split rows are sent as one batch.
func (s *PostgresStore) CreateExpense(ctx context.Context, expense *models.Expense, actorID string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	members, err := memberSet(ctx, tx, expense.GroupID)
	if err != nil {
		return err
	}
	if err := checkParticipants(expense, actorID, members); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO expenses (id, group_id, payer_id, amount_cents, description, split_type, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		expense.ID, expense.GroupID, expense.PayerID, expense.Amount.Cents(),
		expense.Description, string(expense.SplitType), expense.CreatedBy, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	batch := &pgx.Batch{}
	for i, split := range expense.Splits {
		batch.Queue(
			"INSERT INTO expense_splits (expense_id, user_id, amount_cents, position) VALUES ($1, $2, $3, $4)",
			expense.ID, split.UserID, split.Amount.Cents(), i,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert splits: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// memberSet returns the group's member IDs, or ledger.ErrGroupNotFound.
func memberSet(ctx context.Context, q querier, groupID string) (map[string]struct{}, error) {
	var exists int
	err := q.QueryRow(ctx, "SELECT 1 FROM groups WHERE id = $1", groupID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrGroupNotFound, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check group: %w", err)
	}

	rows, err := q.Query(ctx, "SELECT user_id FROM group_members WHERE group_id = $1", groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan members: %w", err)
	}

	members := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		members[id] = struct{}{}
	}
	return members, nil
}

func checkParticipants(expense *models.Expense, actorID string, members map[string]struct{}) error {
	if actorID != "" {
		if _, ok := members[actorID]; !ok {
			return fmt.Errorf("%w: %s in group %s", ledger.ErrNotMember, actorID, expense.GroupID)
		}
	}
	if _, ok := members[expense.PayerID]; !ok {
		return fmt.Errorf("%w: payer %s", ledger.ErrUnknownParticipant, expense.PayerID)
	}
	for _, split := range expense.Splits {
		if _, ok := members[split.UserID]; !ok {
			return fmt.Errorf("%w: %s", ledger.ErrUnknownParticipant, split.UserID)
		}
	}
	return nil
}

const expenseColumns = `
	SELECT e.id, e.group_id, e.payer_id, u.username, e.amount_cents, e.description,
	       e.split_type, e.created_by, e.created_at
	FROM expenses e
	JOIN users u ON u.id = e.payer_id`

func scanExpense(row pgx.Row) (models.Expense, error) {
	var (
		e         models.Expense
		cents     int64
		splitType string
	)
	err := row.Scan(&e.ID, &e.GroupID, &e.PayerID, &e.PayerUsername, &cents,
		&e.Description, &splitType, &e.CreatedBy, &e.CreatedAt)
	e.Amount = money.FromCents(cents)
	e.SplitType = models.SplitType(splitType)
	return e, err
}

// GetExpense retrieves an expense by ID, including its splits.
func (s *PostgresStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	e, err := scanExpense(s.pool.QueryRow(ctx, expenseColumns+" WHERE e.id = $1", expenseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	splits, err := listSplits(ctx, s.pool, "s.expense_id = $1", expenseID)
	if err != nil {
		return nil, err
	}
	e.Splits = splits[e.ID]
	return &e, nil
}

// ListExpenses returns the group's expenses newest first, with splits.
func (s *PostgresStore) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	return listExpenses(ctx, s.pool, groupID)
}

func listExpenses(ctx context.Context, q querier, groupID string) ([]models.Expense, error) {
	rows, err := q.Query(ctx,
		expenseColumns+" WHERE e.group_id = $1 ORDER BY e.created_at DESC, e.seq DESC", groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	expenses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Expense, error) {
		return scanExpense(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan expenses: %w", err)
	}

	splits, err := listSplits(ctx, q, "e.group_id = $1", groupID)
	if err != nil {
		return nil, err
	}
	for i := range expenses {
		expenses[i].Splits = splits[expenses[i].ID]
	}
	return expenses, nil
}

// listSplits returns splits keyed by expense ID, each slice in submission order.
func listSplits(ctx context.Context, q querier, where string, arg any) (map[string][]models.Split, error) {
	rows, err := q.Query(ctx, `
		SELECT s.expense_id, s.user_id, u.username, s.amount_cents
		FROM expense_splits s
		JOIN expenses e ON e.id = s.expense_id
		JOIN users u ON u.id = s.user_id
		WHERE `+where+`
		ORDER BY s.expense_id, s.position`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Split, error) {
		var (
			split models.Split
			cents int64
		)
		err := row.Scan(&split.ExpenseID, &split.UserID, &split.Username, &cents)
		split.Amount = money.FromCents(cents)
		return split, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan splits: %w", err)
	}

	splits := make(map[string][]models.Split)
	for _, split := range list {
		splits[split.ExpenseID] = append(splits[split.ExpenseID], split)
	}
	return splits, nil
}

// LoadGroupLedger reads members and expenses in one REPEATABLE READ,
// read-only transaction so both come from the same snapshot.
func (s *PostgresStore) LoadGroupLedger(ctx context.Context, groupID string) (*models.GroupLedger, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	members, err := listMembers(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	expenses, err := listExpenses(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &models.GroupLedger{GroupID: groupID, Members: members, Expenses: expenses}, nil
}
