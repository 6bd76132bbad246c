package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/syncboard/collab-server/internal/domain/todo"
	"github.com/syncboard/collab-server/internal/worker"
	"go.uber.org/zap"
)

// DefaultListName names a list created without one.
const DefaultListName = "Untitled List"

// firstListName names the list auto-created for a user with no lists yet.
const firstListName = "My TODOs"

// ListStore is the slice of the durable store the list flows read directly.
type ListStore interface {
	GetList(ctx context.Context, listID string) (todo.List, error)
	AccessibleLists(ctx context.Context, userID string) (owned, shared []todo.List, err error)
}

// ListService covers list lifecycle, sharing and room membership.
type ListService struct {
	log     *zap.Logger
	coord   Coordinator
	store   ListStore
	writer  WriteQueue
	emitter Emitter
}

func NewListService(log *zap.Logger, coord Coordinator, store ListStore, writer WriteQueue, emitter Emitter) *ListService {
	return &ListService{
		log:     log.Named("list_service"),
		coord:   coord,
		store:   store,
		writer:  writer,
		emitter: emitter,
	}
}

// CreateList mints a new list owned by the user: it seeds the Redis hash,
// queues the durable rows and tells the creating socket via list_created.
func (s *ListService) CreateList(ctx context.Context, sid, userID, name string) (todo.List, error) {
	if name == "" {
		name = DefaultListName
	}

	now := nowISO()
	l := todo.List{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.coord.InitList(ctx, l.ID, l.Name, l.OwnerID); err != nil {
		return todo.List{}, err
	}

	s.writer.Enqueue(worker.OpCreateList, l)
	s.writer.Enqueue(worker.OpUpsertMember, todo.Member{
		ListID: l.ID,
		UserID: userID,
		Role:   todo.RoleOwner,
	})

	s.emitter.Join(sid, l.ID)
	s.emitter.ToSocket(sid, todo.EventListCreated, l)

	s.log.Info("created list",
		zap.String("list_id", l.ID),
		zap.String("owner_id", userID),
	)
	return l, nil
}

// ShareList grants a role on the list to another user. Only the owner may
// share, and the outcome is reported to the sharing socket; the target user's
// personal room hears about the grant immediately.
func (s *ListService) ShareList(ctx context.Context, sid, userID, listID, sharedWith, role string) error {
	l, err := s.store.GetList(ctx, listID)
	if err != nil {
		if errors.Is(err, todo.ErrListNotFound) {
			s.emitter.ToSocket(sid, todo.EventActionError, errMsg{Message: "List not found"})
			return nil
		}
		return err
	}

	if l.OwnerID != userID {
		s.emitter.ToSocket(sid, todo.EventPermissionError, errMsg{Message: "Only the owner can share a list"})
		return nil
	}
	if sharedWith == userID {
		s.emitter.ToSocket(sid, todo.EventActionError, errMsg{Message: "Cannot share a list with yourself"})
		return nil
	}

	s.writer.Enqueue(worker.OpUpsertMember, todo.Member{
		ListID: listID,
		UserID: sharedWith,
		Role:   role,
	})

	s.emitter.ToRoom(todo.UserRoom(sharedWith), todo.EventListSharedWithYou, map[string]any{
		"list_id":   listID,
		"list_name": l.Name,
		"role":      role,
		"shared_by": userID,
	})
	s.emitter.ToSocket(sid, todo.EventListShareSuccess, map[string]any{
		"list_id":     listID,
		"shared_with": sharedWith,
		"role":        role,
	})

	s.log.Info("shared list",
		zap.String("list_id", listID),
		zap.String("owner_id", userID),
		zap.String("shared_with", sharedWith),
		zap.String("role", role),
	)
	return nil
}

// JoinListRoom subscribes the socket to a list's room and sends it the
// current snapshot. Load failures reach the socket as action_error.
func (s *ListService) JoinListRoom(ctx context.Context, sid, listID string) error {
	state, err := s.coord.LoadList(ctx, listID)
	if err != nil {
		s.emitter.ToSocket(sid, todo.EventActionError, errMsg{
			Message: fmt.Sprintf("could not load list %s", listID),
		})
		return err
	}

	s.emitter.Join(sid, listID)
	s.emitter.ToSocket(sid, todo.EventListSnapshot, state)
	return nil
}

// JoinAllListRooms puts a freshly connected socket in its personal room and
// in the room of every list the user can access, snapshotting each. Returns
// the lists joined, owned first.
func (s *ListService) JoinAllListRooms(ctx context.Context, sid, userID string) ([]todo.List, error) {
	s.emitter.Join(sid, todo.UserRoom(userID))

	lists, err := s.EnsureUserLists(ctx, sid, userID)
	if err != nil {
		return nil, err
	}

	joined := make([]string, 0, len(lists))
	for _, l := range lists {
		if err := s.JoinListRoom(ctx, sid, l.ID); err != nil {
			s.log.Warn("join list room failed",
				zap.String("list_id", l.ID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		joined = append(joined, l.ID)
	}

	s.emitter.ToSocket(sid, todo.EventListSynced, map[string]any{"list_ids": joined})
	return lists, nil
}

// EnsureUserLists returns the user's accessible lists, creating a starter
// list when the user has none.
func (s *ListService) EnsureUserLists(ctx context.Context, sid, userID string) ([]todo.List, error) {
	owned, shared, err := s.store.AccessibleLists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("accessible lists: %w", err)
	}

	lists := make([]todo.List, 0, len(owned)+len(shared))
	lists = append(lists, owned...)
	lists = append(lists, shared...)
	if len(lists) > 0 {
		return lists, nil
	}

	l, err := s.CreateList(ctx, sid, userID, firstListName)
	if err != nil {
		return nil, err
	}
	return []todo.List{l}, nil
}
