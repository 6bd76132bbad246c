package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/syncboard/collab-server/internal/cache"
	"github.com/syncboard/collab-server/internal/domain/todo"
	"go.uber.org/zap"
)

// StoreLoader is the slice of the durable store the coordinator needs for
// cold starts.
type StoreLoader interface {
	GetList(ctx context.Context, listID string) (todo.List, error)
	ItemsByList(ctx context.Context, listID string) ([]todo.Item, error)
}

// Coordinator is the single ingress point for list/item reads and mutations.
// A mutation produces a new monotonic revision, an updated L2 hash, a
// broadcast on todo:updates and an optimistic L1 update. The first three
// happen in one atomic script execution on Redis.
type Coordinator struct {
	log   *zap.Logger
	rdb   *redis.Client
	cache *cache.Cache
	store StoreLoader
}

func NewCoordinator(log *zap.Logger, rdb *redis.Client, l1 *cache.Cache, store StoreLoader) *Coordinator {
	return &Coordinator{
		log:   log.Named("coordinator"),
		rdb:   rdb,
		cache: l1,
		store: store,
	}
}

// RegisterScripts loads the mutation scripts into the Redis script cache so
// later calls go out as EVALSHA. Called once at startup.
func (c *Coordinator) RegisterScripts(ctx context.Context) error {
	for _, s := range []*redis.Script{addItemScript, updateItemScript, deleteItemScript} {
		if err := s.Load(ctx, c.rdb).Err(); err != nil {
			return fmt.Errorf("script load: %w", err)
		}
	}
	c.log.Info("mutation scripts registered")
	return nil
}

// LoadList returns the current state for a list, loading L1 from L2 on a
// local miss and cold-starting L2 from the durable store when Redis has no
// entry either.
func (c *Coordinator) LoadList(ctx context.Context, listID string) (todo.ListState, error) {
	if st, ok := c.cache.Get(listID); ok {
		return st, nil
	}
	return c.loadFromRedis(ctx, listID)
}

// GetItem returns the item (nil when absent) and the list revision after
// ensuring the list is loaded.
func (c *Coordinator) GetItem(ctx context.Context, listID, itemID string) (*todo.Item, float64, error) {
	st, err := c.LoadList(ctx, listID)
	if err != nil {
		return nil, 0, err
	}
	if it, ok := st.Items[itemID]; ok {
		return &it, st.Rev, nil
	}
	return nil, st.Rev, nil
}

// AddItem runs the atomic add_item script and mirrors the result into L1.
func (c *Coordinator) AddItem(ctx context.Context, listID, itemID string, item todo.Item) (float64, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return 0, fmt.Errorf("encode item: %w", err)
	}

	rev, err := c.runScript(ctx, addItemScript, listID, itemID, string(payload))
	if err != nil {
		c.log.Error("add item failed", zap.String("list_id", listID), zap.String("item_id", itemID), zap.Error(err))
		return 0, err
	}

	c.cache.AddItem(listID, itemID, item)
	c.cache.SetRev(listID, rev)

	c.log.Info("added item", zap.String("list_id", listID), zap.String("item_id", itemID), zap.Float64("rev", rev))
	return rev, nil
}

// UpdateItem runs the atomic update_item script and mirrors the result into
// L1. Fails with ErrListNotFound/ErrItemNotFound when L2 misses.
func (c *Coordinator) UpdateItem(ctx context.Context, listID, itemID string, item todo.Item) (float64, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return 0, fmt.Errorf("encode item: %w", err)
	}

	rev, err := c.runScript(ctx, updateItemScript, listID, itemID, string(payload))
	if err != nil {
		c.log.Error("update item failed", zap.String("list_id", listID), zap.String("item_id", itemID), zap.Error(err))
		return 0, err
	}

	c.cache.UpdateItem(listID, itemID, item)
	c.cache.SetRev(listID, rev)

	c.log.Info("updated item", zap.String("list_id", listID), zap.String("item_id", itemID), zap.Float64("rev", rev))
	return rev, nil
}

// DeleteItem runs the atomic delete_item script, removing the item from the
// L2 map and from L1. The durable store soft-deletes asynchronously.
func (c *Coordinator) DeleteItem(ctx context.Context, listID, itemID string) (float64, error) {
	rev, err := c.runScript(ctx, deleteItemScript, listID, itemID)
	if err != nil {
		c.log.Error("delete item failed", zap.String("list_id", listID), zap.String("item_id", itemID), zap.Error(err))
		return 0, err
	}

	c.cache.DeleteItem(listID, itemID)
	c.cache.SetRev(listID, rev)

	c.log.Info("deleted item", zap.String("list_id", listID), zap.String("item_id", itemID), zap.Float64("rev", rev))
	return rev, nil
}

// InitList writes the initial L2 hash for a brand-new list (empty items,
// wall-clock revision) and mirrors it to L1.
func (c *Coordinator) InitList(ctx context.Context, listID, name, ownerID string) (float64, error) {
	rev := nowRev()
	revStr := formatRev(rev)

	err := c.rdb.HSet(ctx, StateKey(listID),
		"rev", revStr,
		"list_name", name,
		"owner_id", ownerID,
		"items", "{}",
		"created_at", strconv.FormatInt(time.Now().Unix(), 10),
	).Err()
	if err != nil {
		return 0, fmt.Errorf("init list hash: %w", err)
	}

	c.cache.Set(listID, todo.ListState{
		ListName: name,
		OwnerID:  ownerID,
		Rev:      rev,
		Items:    map[string]todo.Item{},
	})

	c.log.Info("initialized list", zap.String("list_id", listID), zap.Float64("rev", rev))
	return rev, nil
}

// runScript executes one of the mutation scripts and parses its string
// revision reply.
func (c *Coordinator) runScript(ctx context.Context, script *redis.Script, listID string, args ...interface{}) (float64, error) {
	res, err := script.Run(ctx, c.rdb, []string{StateKey(listID), RevClockKey}, args...).Result()
	if err != nil {
		return 0, mapScriptErr(err)
	}
	s, ok := res.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected script reply type %T", res)
	}
	rev, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse revision %q: %w", s, err)
	}
	return rev, nil
}

func (c *Coordinator) loadFromRedis(ctx context.Context, listID string) (todo.ListState, error) {
	data, err := c.rdb.HGetAll(ctx, StateKey(listID)).Result()
	if err != nil {
		return todo.ListState{}, fmt.Errorf("hgetall: %w", err)
	}
	if len(data) == 0 {
		c.log.Debug("L2 miss, falling back to store", zap.String("list_id", listID))
		return c.loadFromStore(ctx, listID)
	}

	rev, _ := strconv.ParseFloat(data["rev"], 64)
	items, err := decodeItems(data["items"])
	if err != nil {
		return todo.ListState{}, fmt.Errorf("decode items for %s: %w", listID, err)
	}

	st := todo.ListState{
		ListID:   listID,
		ListName: data["list_name"],
		OwnerID:  data["owner_id"],
		Rev:      rev,
		Items:    items,
	}
	c.cache.Set(listID, st)

	c.log.Info("loaded list from L2",
		zap.String("list_id", listID),
		zap.Float64("rev", rev),
		zap.Int("items", len(items)),
	)
	return st, nil
}

// loadFromStore is the cold-start path: materialize L2 and L1 from the
// durable store.
func (c *Coordinator) loadFromStore(ctx context.Context, listID string) (todo.ListState, error) {
	c.log.Info("cold start, loading list from store", zap.String("list_id", listID))

	list, err := c.store.GetList(ctx, listID)
	if err != nil {
		return todo.ListState{}, err
	}

	rows, err := c.store.ItemsByList(ctx, listID)
	if err != nil {
		return todo.ListState{}, fmt.Errorf("load items: %w", err)
	}

	items := make(map[string]todo.Item, len(rows))
	for _, it := range rows {
		items[it.ID] = it
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return todo.ListState{}, fmt.Errorf("encode items: %w", err)
	}

	rev := nowRev()
	err = c.rdb.HSet(ctx, StateKey(listID),
		"rev", formatRev(rev),
		"list_name", list.Name,
		"owner_id", list.OwnerID,
		"items", string(itemsJSON),
	).Err()
	if err != nil {
		return todo.ListState{}, fmt.Errorf("write L2 hash: %w", err)
	}

	st := todo.ListState{
		ListID:   listID,
		ListName: list.Name,
		OwnerID:  list.OwnerID,
		Rev:      rev,
		Items:    items,
	}
	c.cache.Set(listID, st)

	c.log.Info("loaded list from store into cache", zap.String("list_id", listID), zap.Int("items", len(items)))
	return st, nil
}

// decodeItems tolerates every encoding the scripts may leave behind: a JSON
// object, an empty value, or the empty-array form some cjson implementations
// produce for an emptied map.
func decodeItems(raw string) (map[string]todo.Item, error) {
	switch strings.TrimSpace(raw) {
	case "", "{}", "[]", "null":
		return map[string]todo.Item{}, nil
	}
	var items map[string]todo.Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func mapScriptErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "List not found"):
		return todo.ErrListNotFound
	case strings.Contains(msg, "Item not found"):
		return todo.ErrItemNotFound
	}
	return err
}

// nowRev stamps a revision from the local wall clock, quantized the same way
// the scripts quantize theirs.
func nowRev() float64 {
	rev := float64(time.Now().UnixMicro()) / 1e6
	s := formatRev(rev)
	out, _ := strconv.ParseFloat(s, 64)
	return out
}

func formatRev(rev float64) string { return strconv.FormatFloat(rev, 'f', 4, 64) }
