package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/syncboard/collab-server/internal/domain/todo"
	"go.uber.org/zap"
)

// UpsertMember inserts an access grant, or updates the role when the
// (list_id, user_id) pair already exists.
func (s *Store) UpsertMember(ctx context.Context, m todo.Member) error {
	createdAt, err := parseTimestamp(m.CreatedAt)
	if err != nil {
		return err
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO members (list_id, user_id, role, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (list_id, user_id) DO UPDATE SET role = excluded.role`,
		m.ListID, m.UserID, m.Role, createdAt)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	s.log.Debug("upserted member",
		zap.String("list_id", m.ListID),
		zap.String("user_id", m.UserID),
		zap.String("role", m.Role),
	)
	return nil
}

// RemoveMember revokes a user's access grant on a list.
func (s *Store) RemoveMember(ctx context.Context, listID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM members WHERE list_id = $1 AND user_id = $2`, listID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// GetMember returns the member row, or nil when the user has no role on the
// list.
func (s *Store) GetMember(ctx context.Context, listID, userID string) (*todo.Member, error) {
	var (
		m         todo.Member
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT list_id, user_id, role, created_at
		 FROM members WHERE list_id = $1 AND user_id = $2`, listID, userID).
		Scan(&m.ListID, &m.UserID, &m.Role, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select member: %w", err)
	}
	m.CreatedAt = formatTimestamp(createdAt)
	return &m, nil
}
