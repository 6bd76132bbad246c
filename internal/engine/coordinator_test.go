package engine

import (
	"context"
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

type fakeStore struct {
	lists map[string]todo.List
	items map[string][]todo.Item
}

func (f *fakeStore) GetList(_ context.Context, listID string) (todo.List, error) {
	l, ok := f.lists[listID]
	if !ok {
		return todo.List{}, todo.ErrListNotFound
	}
	return l, nil
}

func (f *fakeStore) ItemsByList(_ context.Context, listID string) ([]todo.Item, error) {
	return f.items[listID], nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *cache.Cache, *fakeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	l1 := cache.New(zap.NewNop())
	fs := &fakeStore{
		lists: make(map[string]todo.List),
		items: make(map[string][]todo.Item),
	}
	coord := NewCoordinator(zap.NewNop(), rdb, l1, fs)
	require.NoError(t, coord.RegisterScripts(context.Background()))
	return coord, l1, fs, mr
}

func testItem(id, listID, name string) todo.Item {
	return todo.Item{
		ID:        id,
		ListID:    listID,
		Name:      name,
		Status:    todo.StatusNotStarted,
		CreatedAt: "2026-08-24T10:00:00Z",
		UpdatedAt: "2026-08-24T10:00:00Z",
	}
}

func TestRevisionsStrictlyIncrease(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.InitList(ctx, "l1", "groceries", "u1")
	require.NoError(t, err)

	var prev float64
	for i := 0; i < 20; i++ {
		it := testItem(string(rune('a'+i)), "l1", "milk")
		rev, err := coord.AddItem(ctx, "l1", it.ID, it)
		require.NoError(t, err)
		assert.Greater(t, rev, prev, "revision must advance on every mutation")
		prev = rev
	}
}

func TestRevisionAdvancesInsideRoundingBucket(t *testing.T) {
	coord, _, _, mr := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.InitList(ctx, "l1", "groceries", "u1")
	require.NoError(t, err)

	// Freeze the clock at a stamp whose raw value (…0.123449) exceeds the
	// stored rev clock (…0.1234) but rounds onto it at four digits.
	mr.SetTime(time.Unix(1756000000, 123449000))
	require.NoError(t, mr.Set(RevClockKey, "1756000000.1234"))

	rev, err := coord.AddItem(ctx, "l1", "i1", testItem("i1", "l1", "milk"))
	require.NoError(t, err)
	assert.Greater(t, rev, 1756000000.1234)
	clock, err := mr.Get(RevClockKey)
	require.NoError(t, err)
	assert.Equal(t, "1756000000.1235", clock)

	// The clock has not moved; the next mutation still advances.
	rev2, err := coord.AddItem(ctx, "l1", "i2", testItem("i2", "l1", "eggs"))
	require.NoError(t, err)
	assert.Greater(t, rev2, rev)
}

func TestAddItemWritesStateAndCache(t *testing.T) {
	coord, l1, _, mr := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.InitList(ctx, "l1", "groceries", "u1")
	require.NoError(t, err)

	it := testItem("i1", "l1", "milk")
	rev, err := coord.AddItem(ctx, "l1", "i1", it)
	require.NoError(t, err)

	// L1 mirrors the mutation.
	st, ok := l1.Get("l1")
	require.True(t, ok)
	assert.Equal(t, rev, st.Rev)
	assert.Equal(t, it, st.Items["i1"])

	// L2 hash carries the canonical state.
	require.True(t, mr.Exists(StateKey("l1")))
	items, err := decodeItems(mr.HGet(StateKey("l1"), "items"))
	require.NoError(t, err)
	assert.Equal(t, "milk", items["i1"].Name)
}

func TestLoadListFallsBackToRedis(t *testing.T) {
	coord, l1, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.InitList(ctx, "l1", "groceries", "u1")
	require.NoError(t, err)
	it := testItem("i1", "l1", "milk")
	rev, err := coord.AddItem(ctx, "l1", "i1", it)
	require.NoError(t, err)

	// Simulate a replica restart: L1 is empty, L2 still holds the state.
	l1.FlushAll()

	st, err := coord.LoadList(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "groceries", st.ListName)
	assert.Equal(t, "u1", st.OwnerID)
	assert.Equal(t, rev, st.Rev)
	assert.Len(t, st.Items, 1)
	assert.True(t, l1.Has("l1"), "load must repopulate L1")
}

func TestColdStartLoadsFromStore(t *testing.T) {
	coord, l1, fs, mr := newTestCoordinator(t)
	ctx := context.Background()

	fs.lists["l9"] = todo.List{ID: "l9", Name: "archived", OwnerID: "u2"}
	fs.items["l9"] = []todo.Item{
		testItem("i1", "l9", "old milk"),
		testItem("i2", "l9", "old eggs"),
	}

	st, err := coord.LoadList(ctx, "l9")
	require.NoError(t, err)
	assert.Equal(t, "archived", st.ListName)
	assert.Len(t, st.Items, 2)
	assert.Greater(t, st.Rev, float64(0))

	// Both cache tiers are materialized by the cold start.
	assert.True(t, l1.Has("l9"))
	assert.True(t, mr.Exists(StateKey("l9")))
}

func TestLoadListUnknownEverywhere(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)

	_, err := coord.LoadList(context.Background(), "nope")
	assert.ErrorIs(t, err, todo.ErrListNotFound)
}

func TestUpdateItemMissing(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	it := testItem("i1", "l1", "milk")

	_, err := coord.UpdateItem(ctx, "l1", "i1", it)
	assert.ErrorIs(t, err, todo.ErrListNotFound)

	_, err = coord.InitList(ctx, "l1", "groceries", "u1")
	require.NoError(t, err)
	_, err = coord.UpdateItem(ctx, "l1", "i1", it)
	assert.ErrorIs(t, err, todo.ErrItemNotFound)
}

func TestDeleteItemMissing(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.DeleteItem(ctx, "l1", "i1")
	assert.ErrorIs(t, err, todo.ErrListNotFound)

	_, err = coord.InitList(ctx, "l1", "groceries", "u1")
	require.NoError(t, err)
	_, err = coord.DeleteItem(ctx, "l1", "i1")
	assert.ErrorIs(t, err, todo.ErrItemNotFound)
}

func TestDeleteItemSurvivesReload(t *testing.T) {
	coord, l1, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.InitList(ctx, "l1", "groceries", "u1")
	require.NoError(t, err)

	for _, id := range []string{"i1", "i2"} {
		_, err := coord.AddItem(ctx, "l1", id, testItem(id, "l1", "x"))
		require.NoError(t, err)
	}

	_, err = coord.DeleteItem(ctx, "l1", "i1")
	require.NoError(t, err)

	// The deleted item must not resurrect from L2.
	l1.FlushAll()
	st, err := coord.LoadList(ctx, "l1")
	require.NoError(t, err)
	assert.NotContains(t, st.Items, "i1")
	assert.Contains(t, st.Items, "i2")
}

func TestGetItem(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.InitList(ctx, "l1", "groceries", "u1")
	require.NoError(t, err)
	addRev, err := coord.AddItem(ctx, "l1", "i1", testItem("i1", "l1", "milk"))
	require.NoError(t, err)

	it, rev, err := coord.GetItem(ctx, "l1", "i1")
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, "milk", it.Name)
	assert.Equal(t, addRev, rev)

	missing, _, err := coord.GetItem(ctx, "l1", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateItemReplacesPayload(t *testing.T) {
	coord, l1, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.InitList(ctx, "l1", "groceries", "u1")
	require.NoError(t, err)
	_, err = coord.AddItem(ctx, "l1", "i1", testItem("i1", "l1", "milk"))
	require.NoError(t, err)

	updated := testItem("i1", "l1", "oat milk")
	updated.Done = true
	updated.Status = todo.StatusCompleted
	rev, err := coord.UpdateItem(ctx, "l1", "i1", updated)
	require.NoError(t, err)

	l1.FlushAll()
	st, err := coord.LoadList(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, rev, st.Rev)
	assert.Equal(t, "oat milk", st.Items["i1"].Name)
	assert.True(t, st.Items["i1"].Done)
}

func TestDecodeItemsTolerance(t *testing.T) {
	for _, raw := range []string{"", "{}", "[]", "null", " {} "} {
		items, err := decodeItems(raw)
		require.NoError(t, err, "raw=%q", raw)
		assert.Empty(t, items)
	}

	_, err := decodeItems("not json")
	assert.Error(t, err)
}
