package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// bareSession builds a session without a network connection; only the
// enqueue path is exercised.
func bareSession(sid, userID string) *Session {
	return &Session{
		ID:     sid,
		UserID: userID,
		log:    zap.NewNop(),
		send:   make(chan []byte, sendBufferSize),
		quit:   make(chan struct{}),
	}
}

func receivedEvents(t *testing.T, s *Session) []string {
	t.Helper()
	var events []string
	for {
		select {
		case raw := <-s.send:
			var f Frame
			require.NoError(t, json.Unmarshal(raw, &f))
			events = append(events, f.Event)
		default:
			return events
		}
	}
}

func TestToRoomReachesOnlyMembers(t *testing.T) {
	h := NewHub(zap.NewNop())
	a, b, c := bareSession("sa", "u1"), bareSession("sb", "u2"), bareSession("sc", "u3")
	for _, s := range []*Session{a, b, c} {
		h.Register(s)
	}
	h.Join("sa", "list-1")
	h.Join("sb", "list-1")
	h.Join("sc", "list-2")

	h.ToRoom("list-1", "item_added", map[string]string{"id": "i1"})

	assert.Equal(t, []string{"item_added"}, receivedEvents(t, a))
	assert.Equal(t, []string{"item_added"}, receivedEvents(t, b))
	assert.Empty(t, receivedEvents(t, c), "sockets outside the room must hear nothing")
}

func TestToSocket(t *testing.T) {
	h := NewHub(zap.NewNop())
	a, b := bareSession("sa", "u1"), bareSession("sb", "u2")
	h.Register(a)
	h.Register(b)

	h.ToSocket("sa", "list_snapshot", map[string]string{})
	h.ToSocket("ghost", "list_snapshot", map[string]string{}) // no panic

	assert.Equal(t, []string{"list_snapshot"}, receivedEvents(t, a))
	assert.Empty(t, receivedEvents(t, b))
}

func TestUnregisterLeavesAllRooms(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := bareSession("sa", "u1")
	h.Register(a)
	h.Join("sa", "list-1")
	h.Join("sa", "user_u1")
	require.Equal(t, 1, h.RoomSize("list-1"))

	h.Unregister("sa")

	assert.Equal(t, 0, h.RoomSize("list-1"))
	assert.Equal(t, 0, h.RoomSize("user_u1"))
	h.ToRoom("list-1", "item_added", nil)
	assert.Empty(t, receivedEvents(t, a))
}

func TestLeave(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := bareSession("sa", "u1")
	h.Register(a)
	h.Join("sa", "list-1")

	h.Leave("sa", "list-1")
	h.Leave("sa", "never-joined")

	assert.Equal(t, 0, h.RoomSize("list-1"))
}

func TestJoinUnknownSocketIgnored(t *testing.T) {
	h := NewHub(zap.NewNop())
	h.Join("ghost", "list-1")
	assert.Equal(t, 0, h.RoomSize("list-1"))
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := bareSession("sa", "u1")
	h.Register(a)

	// Overfill the send buffer; extra frames must drop without blocking.
	for i := 0; i < sendBufferSize+10; i++ {
		h.ToSocket("sa", "item_added", nil)
	}
	assert.Len(t, receivedEvents(t, a), sendBufferSize)
}
