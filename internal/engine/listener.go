package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/syncboard/collab-server/internal/cache"
	"github.com/syncboard/collab-server/internal/domain/todo"
	"go.uber.org/zap"
)

// Broadcaster fans an event out to every socket joined to a room.
type Broadcaster interface {
	ToRoom(room, event string, payload any)
}

// Listener subscribes to todo:updates and, per message, applies the mutation
// to L1 (when the list is loaded here) and re-emits the event to the
// WebSocket room named by the list ID. Every replica runs one listener,
// including the replica that originated the mutation; applies are idempotent
// because they are gated on the revision advancing.
type Listener struct {
	log   *zap.Logger
	rdb   *redis.Client
	cache *cache.Cache
	bcast Broadcaster

	pubsub  *redis.PubSub
	done    chan struct{}
	running atomic.Bool
}

func NewListener(log *zap.Logger, rdb *redis.Client, l1 *cache.Cache, bcast Broadcaster) *Listener {
	return &Listener{
		log:   log.Named("pubsub"),
		rdb:   rdb,
		cache: l1,
		bcast: bcast,
	}
}

// Start subscribes and launches the background receive loop.
func (l *Listener) Start(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		l.log.Warn("listener already running")
		return
	}

	l.pubsub = l.rdb.Subscribe(ctx, Channel)
	l.done = make(chan struct{})

	go l.listen()
	l.log.Info("pub/sub listener started", zap.String("channel", Channel))
}

// Running reports whether the receive loop is alive. Health checks use this.
func (l *Listener) Running() bool { return l.running.Load() }

func (l *Listener) listen() {
	defer close(l.done)
	defer l.running.Store(false)

	for msg := range l.pubsub.Channel() {
		l.handlePayload([]byte(msg.Payload))
	}
	l.log.Info("pub/sub listener loop stopped")
}

// handlePayload applies one Pub/Sub message. Parse failures are logged and
// skipped; a dropped message is recovered lazily by the next full load from
// L2, which the mutation scripts keep canonical.
func (l *Listener) handlePayload(payload []byte) {
	ev, err := todo.DecodeEvent(payload)
	if err != nil {
		l.log.Error("malformed pub/sub message", zap.Error(err), zap.ByteString("payload", payload))
		return
	}

	l.log.Debug("pub/sub event", zap.String("type", ev.Type), zap.String("list_id", ev.ListID), zap.Float64("rev", ev.Rev))

	// Accept iff the revision advances; the originating coordinator may have
	// applied the same mutation to L1 already.
	if l.cache.Has(ev.ListID) && ev.Rev >= l.cache.Rev(ev.ListID) {
		switch ev.Type {
		case todo.EventItemAdded:
			if ev.Item != nil {
				l.cache.AddItem(ev.ListID, ev.Item.ID, *ev.Item)
				l.cache.SetRev(ev.ListID, ev.Rev)
			}
		case todo.EventItemUpdated:
			if ev.Item != nil {
				l.cache.UpdateItem(ev.ListID, ev.Item.ID, *ev.Item)
				l.cache.SetRev(ev.ListID, ev.Rev)
			}
		case todo.EventItemDeleted:
			l.cache.DeleteItem(ev.ListID, ev.ItemID)
			l.cache.SetRev(ev.ListID, ev.Rev)
		}
	}

	l.bcast.ToRoom(ev.ListID, ev.Type, ev)
}

// Stop unsubscribes, closes the Pub/Sub handle and waits up to 5s for the
// receive loop to drain.
func (l *Listener) Stop() {
	if !l.running.Load() {
		return
	}
	l.log.Info("stopping pub/sub listener")

	if l.pubsub != nil {
		if err := l.pubsub.Close(); err != nil {
			l.log.Error("closing pub/sub", zap.Error(err))
		}
	}

	select {
	case <-l.done:
	case <-time.After(5 * time.Second):
		l.log.Warn("pub/sub listener did not stop gracefully")
	}
}
