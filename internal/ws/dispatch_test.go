package ws

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncboard/collab-server/internal/domain/todo"
	"go.uber.org/zap"
)

func newDispatchFixture(t *testing.T) (*Dispatcher, *Hub, *ConnTable, *Session) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	conns := NewConnTable(zap.NewNop())
	d := NewDispatcher(zap.NewNop(), conns, hub)

	sess := bareSession("s1", "u1")
	hub.Register(sess)
	conns.Add("s1", "u1")
	return d, hub, conns, sess
}

func TestDispatchUnauthenticatedSocket(t *testing.T) {
	d, hub, _, _ := newDispatchFixture(t)

	ghost := bareSession("ghost", "")
	hub.Register(ghost)
	// "ghost" never entered the connection table.
	d.Dispatch(context.Background(), "ghost", Frame{Event: todo.EventAddItem})

	assert.Equal(t, []string{todo.EventAuthError}, receivedEvents(t, ghost))
}

func TestDispatchUnknownEvent(t *testing.T) {
	d, _, _, sess := newDispatchFixture(t)

	d.Dispatch(context.Background(), "s1", Frame{Event: "no_such_event"})

	assert.Equal(t, []string{todo.EventError}, receivedEvents(t, sess))
}

func TestDispatchRoutesToHandler(t *testing.T) {
	d, _, _, sess := newDispatchFixture(t)

	var gotSid, gotUser string
	d.Handle("ping", func(_ context.Context, sid, userID string, _ []byte) error {
		gotSid, gotUser = sid, userID
		return nil
	})

	d.Dispatch(context.Background(), "s1", Frame{Event: "ping"})

	assert.Equal(t, "s1", gotSid)
	assert.Equal(t, "u1", gotUser)
	assert.Empty(t, receivedEvents(t, sess))
}

func TestDispatchErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{todo.ErrPermissionDenied, todo.EventPermissionError},
		{fmt.Errorf("wrapped: %w", todo.ErrPermissionDenied), todo.EventPermissionError},
		{todo.ErrListNotFound, todo.EventActionError},
		{todo.ErrItemNotFound, todo.EventActionError},
		{errors.New("db exploded"), todo.EventError},
	}
	for _, tc := range cases {
		d, _, _, sess := newDispatchFixture(t)
		d.Handle("boom", func(context.Context, string, string, []byte) error {
			return tc.err
		})

		d.Dispatch(context.Background(), "s1", Frame{Event: "boom"})

		assert.Equal(t, []string{tc.want}, receivedEvents(t, sess), "err=%v", tc.err)
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	d, _, _, sess := newDispatchFixture(t)
	d.Handle("boom", func(context.Context, string, string, []byte) error {
		panic("handler bug")
	})

	require.NotPanics(t, func() {
		d.Dispatch(context.Background(), "s1", Frame{Event: "boom"})
	})
	assert.Equal(t, []string{todo.EventError}, receivedEvents(t, sess))
}
