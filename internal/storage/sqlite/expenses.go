package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/smartsplit/internal/ledger"
	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/money"
	"github.com/mmynk/smartsplit/internal/storage"
)

// CreateExpense persists an expense and its splits in a single transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense, actorID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	members, err := memberSet(ctx, tx, expense.GroupID)
	if err != nil {
		return err
	}
	if err := checkParticipants(expense, actorID, members); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, payer_id, amount_cents, description, split_type, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.PayerID, expense.Amount.Cents(),
		expense.Description, string(expense.SplitType), expense.CreatedBy, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO expense_splits (expense_id, user_id, amount_cents, position) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare split insert: %w", err)
	}
	defer stmt.Close()

	for i, split := range expense.Splits {
		if _, err := stmt.ExecContext(ctx, expense.ID, split.UserID, split.Amount.Cents(), i); err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// memberSet returns the group's member IDs, or ledger.ErrGroupNotFound.
func memberSet(ctx context.Context, q queryer, groupID string) (map[string]struct{}, error) {
	var exists int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrGroupNotFound, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check group: %w", err)
	}

	rows, err := q.QueryContext(ctx, "SELECT user_id FROM group_members WHERE group_id = ?", groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	members := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
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

func scanExpense(row interface{ Scan(...any) error }) (models.Expense, error) {
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
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx, expenseColumns+" WHERE e.id = ?", expenseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	splits, err := listSplits(ctx, s.db, "s.expense_id = ?", expenseID)
	if err != nil {
		return nil, err
	}
	e.Splits = splits[e.ID]
	return &e, nil
}

// ListExpenses returns the group's expenses newest first, with splits.
func (s *SQLiteStore) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	return listExpenses(ctx, s.db, groupID)
}

func listExpenses(ctx context.Context, q queryer, groupID string) ([]models.Expense, error) {
	rows, err := q.QueryContext(ctx,
		expenseColumns+" WHERE e.group_id = ? ORDER BY e.created_at DESC, e.rowid DESC", groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	splits, err := listSplits(ctx, q, "e.group_id = ?", groupID)
	if err != nil {
		return nil, err
	}
	for i := range expenses {
		expenses[i].Splits = splits[expenses[i].ID]
	}
	return expenses, nil
}

// listSplits returns splits keyed by expense ID, each slice in submission order.
func listSplits(ctx context.Context, q queryer, where string, arg any) (map[string][]models.Split, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT s.expense_id, s.user_id, u.username, s.amount_cents
		FROM expense_splits s
		JOIN expenses e ON e.id = s.expense_id
		JOIN users u ON u.id = s.user_id
		WHERE `+where+`
		ORDER BY s.expense_id, s.position`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	splits := make(map[string][]models.Split)
	for rows.Next() {
		var (
			split models.Split
			cents int64
		)
		if err := rows.Scan(&split.ExpenseID, &split.UserID, &split.Username, &cents); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		split.Amount = money.FromCents(cents)
		splits[split.ExpenseID] = append(splits[split.ExpenseID], split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

// LoadGroupLedger reads members and expenses in one deferred transaction on
// the read pool so both come from the same snapshot.
func (s *SQLiteStore) LoadGroupLedger(ctx context.Context, groupID string) (*models.GroupLedger, error) {
	tx, err := s.readDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	members, err := listMembers(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	expenses, err := listExpenses(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &models.GroupLedger{GroupID: groupID, Members: members, Expenses: expenses}, nil
}
