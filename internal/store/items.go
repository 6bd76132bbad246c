package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syncboard/collab-server/internal/domain/todo"
	"go.uber.org/zap"
)

// CreateItem inserts a new item row.
func (s *Store) CreateItem(ctx context.Context, it todo.Item) error {
	createdAt, err := parseTimestamp(it.CreatedAt)
	if err != nil {
		return err
	}
	updatedAt, err := parseTimestamp(it.UpdatedAt)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO items (id, list_id, name, description, status, done, due_date, media_url, is_deleted, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, $10)`,
		it.ID, it.ListID, it.Name, it.Description, it.Status, it.Done, it.DueDate, it.MediaURL, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	s.log.Debug("created item", zap.String("item_id", it.ID), zap.String("list_id", it.ListID))
	return nil
}

// UpdateItem applies the non-nil patch fields to an item row.
func (s *Store) UpdateItem(ctx context.Context, itemID string, p todo.ItemPatch) error {
	var (
		sets []string
		args []any
	)
	args = append(args, itemID)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}

	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.Done != nil {
		add("done", *p.Done)
	}
	if p.DueDate != nil {
		add("due_date", *p.DueDate)
	}
	if p.MediaURL != nil {
		add("media_url", *p.MediaURL)
	}
	if p.UpdatedAt != "" {
		updatedAt, err := parseTimestamp(p.UpdatedAt)
		if err != nil {
			return err
		}
		add("updated_at", updatedAt)
	}
	if len(sets) == 0 {
		return nil
	}

	q := "UPDATE items SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if _, err := s.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// SoftDeleteItem marks the item row deleted.
func (s *Store) SoftDeleteItem(ctx context.Context, itemID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE items SET is_deleted = true, updated_at = now() WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("soft delete item: %w", err)
	}
	return nil
}

// ItemsByList returns all non-deleted items of a list. Cold starts use this
// to materialize the L2 hash.
func (s *Store) ItemsByList(ctx context.Context, listID string) ([]todo.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, list_id, name, description, status, done, due_date, media_url, created_at, updated_at
		 FROM items WHERE list_id = $1 AND is_deleted = false`, listID)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	var items []todo.Item
	for rows.Next() {
		var (
			it                   todo.Item
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&it.ID, &it.ListID, &it.Name, &it.Description, &it.Status, &it.Done,
			&it.DueDate, &it.MediaURL, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		it.CreatedAt = formatTimestamp(createdAt)
		it.UpdatedAt = formatTimestamp(updatedAt)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item rows: %w", err)
	}
	return items, nil
}
