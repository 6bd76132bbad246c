package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncboard/collab-server/internal/cache"
	"github.com/syncboard/collab-server/internal/domain/todo"
	"go.uber.org/zap"
)

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

type broadcastCall struct {
	room  string
	event string
}

func (b *recordingBroadcaster) ToRoom(room, event string, _ any) {
	b.mu.Lock()
	b.calls = append(b.calls, broadcastCall{room: room, event: event})
	b.mu.Unlock()
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *recordingBroadcaster) last() (broadcastCall, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.calls) == 0 {
		return broadcastCall{}, false
	}
	return b.calls[len(b.calls)-1], true
}

func seedList(l1 *cache.Cache, listID string, rev float64, items map[string]todo.Item) {
	l1.Set(listID, todo.ListState{
		ListName: "seeded",
		OwnerID:  "u1",
		Rev:      rev,
		Items:    items,
	})
}

func encodeEvent(t *testing.T, ev todo.Event) []byte {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return raw
}

func TestHandlePayloadAppliesAdd(t *testing.T) {
	l1 := cache.New(zap.NewNop())
	bcast := &recordingBroadcaster{}
	l := NewListener(zap.NewNop(), nil, l1, bcast)

	seedList(l1, "l1", 10, map[string]todo.Item{})

	it := testItem("i1", "l1", "milk")
	l.handlePayload(encodeEvent(t, todo.Event{
		Type: todo.EventItemAdded, ListID: "l1", Rev: 11, Item: &it,
	}))

	st, _ := l1.Get("l1")
	assert.Equal(t, float64(11), st.Rev)
	assert.Contains(t, st.Items, "i1")

	call, ok := bcast.last()
	require.True(t, ok)
	assert.Equal(t, "l1", call.room)
	assert.Equal(t, todo.EventItemAdded, call.event)
}

func TestHandlePayloadIsIdempotent(t *testing.T) {
	l1 := cache.New(zap.NewNop())
	bcast := &recordingBroadcaster{}
	l := NewListener(zap.NewNop(), nil, l1, bcast)

	seedList(l1, "l1", 10, map[string]todo.Item{
		"i1": testItem("i1", "l1", "milk"),
	})

	payload := encodeEvent(t, todo.Event{
		Type: todo.EventItemDeleted, ListID: "l1", Rev: 11, ItemID: "i1",
	})

	// The same message twice: one state change, two broadcasts.
	l.handlePayload(payload)
	l.handlePayload(payload)

	st, _ := l1.Get("l1")
	assert.Equal(t, float64(11), st.Rev)
	assert.NotContains(t, st.Items, "i1")
	assert.Equal(t, 2, bcast.count())
}

func TestHandlePayloadRejectsStaleRevision(t *testing.T) {
	l1 := cache.New(zap.NewNop())
	bcast := &recordingBroadcaster{}
	l := NewListener(zap.NewNop(), nil, l1, bcast)

	seedList(l1, "l1", 20, map[string]todo.Item{
		"i1": testItem("i1", "l1", "milk"),
	})

	// Rev behind the cached state: no L1 change, but still fan out.
	l.handlePayload(encodeEvent(t, todo.Event{
		Type: todo.EventItemDeleted, ListID: "l1", Rev: 5, ItemID: "i1",
	}))

	st, _ := l1.Get("l1")
	assert.Equal(t, float64(20), st.Rev)
	assert.Contains(t, st.Items, "i1")
	assert.Equal(t, 1, bcast.count())
}

func TestHandlePayloadIgnoresUnloadedList(t *testing.T) {
	l1 := cache.New(zap.NewNop())
	bcast := &recordingBroadcaster{}
	l := NewListener(zap.NewNop(), nil, l1, bcast)

	it := testItem("i1", "other", "milk")
	l.handlePayload(encodeEvent(t, todo.Event{
		Type: todo.EventItemAdded, ListID: "other", Rev: 3, Item: &it,
	}))

	assert.False(t, l1.Has("other"), "listener must not create cache entries")
	assert.Equal(t, 1, bcast.count(), "fan-out happens regardless of local cache")
}

func TestHandlePayloadSkipsMalformed(t *testing.T) {
	l1 := cache.New(zap.NewNop())
	bcast := &recordingBroadcaster{}
	l := NewListener(zap.NewNop(), nil, l1, bcast)

	l.handlePayload([]byte("{not json"))

	assert.Equal(t, 0, bcast.count())
}

func TestListenerEndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	l1 := cache.New(zap.NewNop())
	bcast := &recordingBroadcaster{}
	l := NewListener(zap.NewNop(), rdb, l1, bcast)

	l.Start(context.Background())
	t.Cleanup(l.Stop)
	require.True(t, l.Running())

	// A mutation script publish reaches the listener and fans out.
	fs := &fakeStore{lists: map[string]todo.List{}, items: map[string][]todo.Item{}}
	coord := NewCoordinator(zap.NewNop(), rdb, cache.New(zap.NewNop()), fs)
	require.NoError(t, coord.RegisterScripts(context.Background()))
	_, err := coord.InitList(context.Background(), "l1", "groceries", "u1")
	require.NoError(t, err)
	_, err = coord.AddItem(context.Background(), "l1", "i1", testItem("i1", "l1", "milk"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		call, ok := bcast.last()
		return ok && call.room == "l1" && call.event == todo.EventItemAdded
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListenerStopIsBounded(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	l := NewListener(zap.NewNop(), rdb, cache.New(zap.NewNop()), &recordingBroadcaster{})
	l.Start(context.Background())

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(6 * time.Second):
		t.Fatal("Stop did not return in time")
	}
	assert.False(t, l.Running())
}
