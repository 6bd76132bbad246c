// Package service holds the business logic between the WebSocket handlers
// and the cache/engine/worker machinery.
package service

import (
	"context"
	"time"

	"github.com/syncboard/collab-server/internal/domain/todo"
)

// Emitter is the socket-layer surface the services emit through. The hub
// implements it; tests substitute a recorder.
type Emitter interface {
	ToSocket(sid, event string, payload any)
	ToRoom(room, event string, payload any)
	Join(sid, room string)
}

// Coordinator is the engine surface the services mutate and read through.
type Coordinator interface {
	LoadList(ctx context.Context, listID string) (todo.ListState, error)
	GetItem(ctx context.Context, listID, itemID string) (*todo.Item, float64, error)
	AddItem(ctx context.Context, listID, itemID string, item todo.Item) (float64, error)
	UpdateItem(ctx context.Context, listID, itemID string, item todo.Item) (float64, error)
	DeleteItem(ctx context.Context, listID, itemID string) (float64, error)
	InitList(ctx context.Context, listID, name, ownerID string) (float64, error)
}

// WriteQueue is the write-behind enqueue surface.
type WriteQueue interface {
	Enqueue(op string, data any)
}

// errMsg shapes the error payloads the services emit.
type errMsg struct {
	Message string `json:"message"`
}

// nowISO stamps server-side timestamps in the wire format.
func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
