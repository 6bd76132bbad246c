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

// CreateList inserts a new list row.
func (s *Store) CreateList(ctx context.Context, l todo.List) error {
	createdAt, err := parseTimestamp(l.CreatedAt)
	if err != nil {
		return err
	}
	updatedAt, err := parseTimestamp(l.UpdatedAt)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO lists (id, name, owner_id, is_deleted, created_at, updated_at)
		 VALUES ($1, $2, $3, false, $4, $5)`,
		l.ID, l.Name, l.OwnerID, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("insert list: %w", err)
	}
	s.log.Debug("created list", zap.String("list_id", l.ID))
	return nil
}

// UpdateList applies the non-nil patch fields to a list row.
func (s *Store) UpdateList(ctx context.Context, listID string, p todo.ListPatch) error {
	if p.Name == nil {
		return nil
	}
	updatedAt, err := parseTimestamp(p.UpdatedAt)
	if err != nil {
		return err
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE lists SET name = $2, updated_at = $3 WHERE id = $1`,
		listID, *p.Name, updatedAt)
	if err != nil {
		return fmt.Errorf("update list: %w", err)
	}
	return nil
}

// GetList fetches a non-deleted list row. Returns todo.ErrListNotFound when
// the row is absent or soft-deleted.
func (s *Store) GetList(ctx context.Context, listID string) (todo.List, error) {
	var (
		l                    todo.List
		createdAt, updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at, updated_at
		 FROM lists WHERE id = $1 AND is_deleted = false`, listID).
		Scan(&l.ID, &l.Name, &l.OwnerID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return todo.List{}, todo.ErrListNotFound
		}
		return todo.List{}, fmt.Errorf("select list: %w", err)
	}
	l.CreatedAt = formatTimestamp(createdAt)
	l.UpdatedAt = formatTimestamp(updatedAt)
	return l, nil
}

// AccessibleLists returns the non-deleted lists the user has any role on,
// split into owned and shared.
func (s *Store) AccessibleLists(ctx context.Context, userID string) (owned, shared []todo.List, err error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.id, l.name, l.owner_id, l.created_at, l.updated_at, m.role
		 FROM members m
		 JOIN lists l ON l.id = m.list_id
		 WHERE m.user_id = $1 AND l.is_deleted = false`, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("select accessible lists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l                    todo.List
			createdAt, updatedAt time.Time
			role                 string
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.OwnerID, &createdAt, &updatedAt, &role); err != nil {
			return nil, nil, fmt.Errorf("scan list row: %w", err)
		}
		l.CreatedAt = formatTimestamp(createdAt)
		l.UpdatedAt = formatTimestamp(updatedAt)
		if role == todo.RoleOwner {
			owned = append(owned, l)
		} else {
			shared = append(shared, l)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate list rows: %w", err)
	}
	return owned, shared, nil
}
