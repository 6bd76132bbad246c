package ws

import (
	"context"
	"errors"

	"github.com/syncboard/collab-server/internal/domain/todo"
	"go.uber.org/zap"
)

// HandlerFunc processes one inbound frame for an authenticated socket.
type HandlerFunc func(ctx context.Context, sid, userID string, data []byte) error

// Dispatcher routes inbound frames to event handlers. Every route runs behind
// the same gate: the socket must be in the connection table, and handler
// errors are translated into the error event family before reaching the
// client.
type Dispatcher struct {
	log    *zap.Logger
	conns  *ConnTable
	hub    *Hub
	routes map[string]HandlerFunc
}

func NewDispatcher(log *zap.Logger, conns *ConnTable, hub *Hub) *Dispatcher {
	return &Dispatcher{
		log:    log.Named("dispatch"),
		conns:  conns,
		hub:    hub,
		routes: make(map[string]HandlerFunc),
	}
}

// Handle registers a handler for an event name.
func (d *Dispatcher) Handle(event string, fn HandlerFunc) {
	d.routes[event] = fn
}

// Dispatch routes one frame. Unknown events and handler failures are reported
// back to the socket; the connection itself stays up.
func (d *Dispatcher) Dispatch(ctx context.Context, sid string, frame Frame) {
	userID := d.conns.Get(sid)
	if userID == "" {
		d.hub.ToSocket(sid, todo.EventAuthError, errorPayload{Message: "Authentication required"})
		return
	}

	fn, ok := d.routes[frame.Event]
	if !ok {
		d.log.Debug("unknown event", zap.String("event", frame.Event), zap.String("sid", sid))
		d.hub.ToSocket(sid, todo.EventError, errorPayload{Message: "Unknown event: " + frame.Event})
		return
	}

	if err := d.dispatchSafe(ctx, fn, sid, userID, frame.Data); err != nil {
		d.emitError(sid, frame.Event, err)
	}
}

func (d *Dispatcher) dispatchSafe(ctx context.Context, fn HandlerFunc, sid, userID string, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panic", zap.Any("panic", r), zap.String("sid", sid))
			err = errors.New("internal error")
		}
	}()
	return fn(ctx, sid, userID, data)
}

// emitError maps handler errors onto the error event family.
func (d *Dispatcher) emitError(sid, event string, err error) {
	switch {
	case errors.Is(err, todo.ErrPermissionDenied):
		d.hub.ToSocket(sid, todo.EventPermissionError, errorPayload{Message: "You do not have permission to do that"})
	case errors.Is(err, todo.ErrListNotFound):
		d.hub.ToSocket(sid, todo.EventActionError, errorPayload{Message: "List not found"})
	case errors.Is(err, todo.ErrItemNotFound):
		d.hub.ToSocket(sid, todo.EventActionError, errorPayload{Message: "Item not found"})
	default:
		d.log.Error("handler failed", zap.String("event", event), zap.String("sid", sid), zap.Error(err))
		d.hub.ToSocket(sid, todo.EventError, errorPayload{Message: "Something went wrong"})
	}
}
