package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/smartsplit/internal/models"
)

// CreateGroup inserts a group and its initial members. The creator is always
// the first member; repeated member IDs are ignored.
func (s *PostgresStore) CreateGroup(ctx context.Context, group *models.Group, memberIDs []string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO groups (id, name, created_by, created_at) VALUES ($1, $2, $3, $4)",
		group.ID, group.Name, group.CreatedBy, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	for _, id := range append([]string{group.CreatedBy}, memberIDs...) {
		tag, err := tx.Exec(ctx,
			"INSERT INTO group_members (group_id, user_id, joined_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
			group.ID, id, group.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to add member %s: %w", id, err)
		}
		group.MemberCount += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListGroupsForUser returns every group the user is a member of, newest first.
func (s *PostgresStore) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.name, g.created_by, g.created_at,
		       (SELECT COUNT(*) FROM group_members c WHERE c.group_id = g.id)
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.created_at DESC, g.seq DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Group, error) {
		var g models.Group
		err := row.Scan(&g.ID, &g.Name, &g.CreatedBy, &g.CreatedAt, &g.MemberCount)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan groups: %w", err)
	}
	return groups, nil
}

// ListMembers returns the group's members in join order.
func (s *PostgresStore) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	return listMembers(ctx, s.pool, groupID)
}

func listMembers(ctx context.Context, q querier, groupID string) ([]models.Member, error) {
	rows, err := q.Query(ctx, `
		SELECT u.id, u.username, u.email, m.joined_at
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY m.joined_at, m.seq`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Member, error) {
		var m models.Member
		err := row.Scan(&m.UserID, &m.Username, &m.Email, &m.JoinedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan members: %w", err)
	}
	return members, nil
}

// IsMember reports whether the user belongs to the group.
func (s *PostgresStore) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)",
		groupID, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return ok, nil
}
