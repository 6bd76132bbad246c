package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/syncboard/collab-server/internal/domain/todo"
	"github.com/syncboard/collab-server/internal/worker"
	"go.uber.org/zap"
)

// AddItemInput is a validated add_item request.
type AddItemInput struct {
	ListID      string
	Name        string
	Description string
	Status      string
	Done        bool
	DueDate     *string
	MediaURL    *string
}

// UpdateItemInput is a validated update_item request. ClientRev is the
// caller's last-known list revision.
type UpdateItemInput struct {
	ListID    string
	ItemID    string
	Patch     todo.ItemPatch
	ClientRev float64
}

// ItemService is the business logic for todo items. It does not fan out
// item_* events itself; the Pub/Sub listener broadcasts what the mutation
// scripts publish.
type ItemService struct {
	log     *zap.Logger
	coord   Coordinator
	writer  WriteQueue
	emitter Emitter
}

func NewItemService(log *zap.Logger, coord Coordinator, writer WriteQueue, emitter Emitter) *ItemService {
	return &ItemService{
		log:     log.Named("item_service"),
		coord:   coord,
		writer:  writer,
		emitter: emitter,
	}
}

// AddItem creates a server-stamped item, commits it through the atomic
// script and queues the durable write.
func (s *ItemService) AddItem(ctx context.Context, userID string, in AddItemInput) (todo.Item, error) {
	if _, err := s.coord.LoadList(ctx, in.ListID); err != nil {
		return todo.Item{}, err
	}

	now := nowISO()
	item := todo.Item{
		ID:          uuid.NewString(),
		ListID:      in.ListID,
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		Done:        in.Done,
		DueDate:     in.DueDate,
		MediaURL:    in.MediaURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.coord.AddItem(ctx, in.ListID, item.ID, item); err != nil {
		return todo.Item{}, err
	}

	s.writer.Enqueue(worker.OpAddItem, item)

	s.log.Info("added item",
		zap.String("item_id", item.ID),
		zap.String("list_id", in.ListID),
		zap.String("user_id", userID),
	)
	return item, nil
}

// UpdateItem merges the patch over the current item and commits it. When the
// caller's revision is stale the update is refused and the caller alone
// receives a fresh list_snapshot plus an action_error to resync.
func (s *ItemService) UpdateItem(ctx context.Context, sid, userID string, in UpdateItemInput) error {
	if _, err := s.coord.LoadList(ctx, in.ListID); err != nil {
		return err
	}

	current, serverRev, err := s.coord.GetItem(ctx, in.ListID, in.ItemID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("item %s: %w", in.ItemID, todo.ErrItemNotFound)
	}

	if in.ClientRev < serverRev {
		s.log.Debug("stale update refused, sending snapshot",
			zap.String("item_id", in.ItemID),
			zap.Float64("client_rev", in.ClientRev),
			zap.Float64("server_rev", serverRev),
		)
		snapshot, err := s.coord.LoadList(ctx, in.ListID)
		if err != nil {
			return err
		}
		s.emitter.ToSocket(sid, todo.EventListSnapshot, snapshot)
		s.emitter.ToSocket(sid, todo.EventActionError, errMsg{
			Message: fmt.Sprintf("item %s out of sync: client rev %v, server rev %v", in.ItemID, in.ClientRev, serverRev),
		})
		return nil
	}

	patch := in.Patch
	patch.UpdatedAt = nowISO()
	merged := current.Merge(patch)

	if _, err := s.coord.UpdateItem(ctx, in.ListID, in.ItemID, merged); err != nil {
		return err
	}

	s.writer.Enqueue(worker.OpUpdateItem, worker.ItemUpdate{ItemID: in.ItemID, Patch: patch})

	s.log.Info("updated item",
		zap.String("item_id", in.ItemID),
		zap.String("list_id", in.ListID),
		zap.String("user_id", userID),
	)
	return nil
}

// DeleteItem removes the item from the cache tiers and queues the soft
// delete against the store.
func (s *ItemService) DeleteItem(ctx context.Context, userID, listID, itemID string) error {
	if _, err := s.coord.LoadList(ctx, listID); err != nil {
		return err
	}

	if _, err := s.coord.DeleteItem(ctx, listID, itemID); err != nil {
		return err
	}

	s.writer.Enqueue(worker.OpDeleteItem, itemID)

	s.log.Info("deleted item",
		zap.String("item_id", itemID),
		zap.String("list_id", listID),
		zap.String("user_id", userID),
	)
	return nil
}
