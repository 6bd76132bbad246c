// Package worker drains cached mutations into the durable store.
//
// The write-behind queue decouples hot-path latency from persistence: every
// task enqueued here corresponds to a mutation already committed to L2, and
// the store is eventually consistent. The queue is bounded and best-effort:
// overflow drops the task (counted, logged) rather than blocking a handler.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/syncboard/collab-server/internal/domain/todo"
	"go.uber.org/zap"
)

// Write operations the worker knows how to persist.
const (
	OpAddItem      = "add_item"
	OpUpdateItem   = "update_item"
	OpDeleteItem   = "delete_item"
	OpCreateList   = "create_list"
	OpUpdateList   = "update_list"
	OpUpsertMember = "upsert_member"
	OpRemoveMember = "remove_member"
)

// Persister is the durable-store surface the worker writes through.
type Persister interface {
	CreateItem(ctx context.Context, it todo.Item) error
	UpdateItem(ctx context.Context, itemID string, p todo.ItemPatch) error
	SoftDeleteItem(ctx context.Context, itemID string) error
	CreateList(ctx context.Context, l todo.List) error
	UpdateList(ctx context.Context, listID string, p todo.ListPatch) error
	UpsertMember(ctx context.Context, m todo.Member) error
	RemoveMember(ctx context.Context, listID, userID string) error
}

// ItemUpdate is the payload for OpUpdateItem.
type ItemUpdate struct {
	ItemID string
	Patch  todo.ItemPatch
}

// ListUpdate is the payload for OpUpdateList.
type ListUpdate struct {
	ListID string
	Patch  todo.ListPatch
}

// MemberKey is the payload for OpRemoveMember.
type MemberKey struct {
	ListID string
	UserID string
}

type task struct {
	op   string
	data any
}

// Stats is a point-in-time view of the worker.
type Stats struct {
	Running         bool   `json:"running"`
	QueueSize       int    `json:"queue_size"`
	WritesProcessed uint64 `json:"writes_processed"`
	WritesFailed    uint64 `json:"writes_failed"`
}

// Writer is the bounded FIFO queue plus its single consumer goroutine.
// Tasks are attempted exactly once; failures are logged and dropped.
type Writer struct {
	log   *zap.Logger
	store Persister

	tasks chan task
	stop  chan struct{}
	done  chan struct{}

	running   atomic.Bool
	processed atomic.Uint64
	failed    atomic.Uint64

	mProcessed prometheus.Counter
	mFailed    prometheus.Counter
}

// NewWriter builds a worker with the given queue capacity. reg may be nil to
// skip Prometheus registration (tests).
func NewWriter(log *zap.Logger, store Persister, queueSize int, reg prometheus.Registerer) *Writer {
	w := &Writer{
		log:   log.Named("writer"),
		store: store,
		tasks: make(chan task, queueSize),
	}
	if reg != nil {
		w.mProcessed = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "collab_writer_writes_processed_total",
			Help: "Write-behind tasks persisted to the durable store.",
		})
		w.mFailed = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "collab_writer_writes_failed_total",
			Help: "Write-behind tasks dropped or failed.",
		})
		promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Name: "collab_writer_queue_depth",
			Help: "Write-behind tasks currently queued.",
		}, func() float64 { return float64(len(w.tasks)) })
	}
	return w
}

// Start launches the consumer goroutine.
func (w *Writer) Start() {
	if !w.running.CompareAndSwap(false, true) {
		w.log.Warn("worker already running")
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop()
	w.log.Info("write-behind worker started", zap.Int("queue_cap", cap(w.tasks)))
}

// Running reports whether the consumer loop is alive.
func (w *Writer) Running() bool { return w.running.Load() }

// Enqueue queues one write without blocking. On overflow the task is dropped
// and writes_failed is incremented.
// TODO: route overflow to a dead-letter queue instead of dropping.
func (w *Writer) Enqueue(op string, data any) {
	select {
	case w.tasks <- task{op: op, data: data}:
		w.log.Debug("queued write", zap.String("op", op))
	default:
		w.log.Error("write queue full, dropping", zap.String("op", op))
		w.countFailure()
	}
}

func (w *Writer) loop() {
	defer close(w.done)
	defer w.running.Store(false)

	w.log.Info("worker loop started")
	for {
		select {
		case <-w.stop:
			w.log.Info("worker loop stopped")
			return
		case t := <-w.tasks:
			w.process(t)
		}
	}
}

func (w *Writer) process(t task) {
	if err := w.apply(t); err != nil {
		w.log.Error("write failed, dropping task", zap.String("op", t.op), zap.Error(err))
		w.countFailure()
		return
	}
	w.processed.Add(1)
	if w.mProcessed != nil {
		w.mProcessed.Inc()
	}
}

func (w *Writer) apply(t task) error {
	ctx := context.Background()
	switch t.op {
	case OpAddItem:
		it, ok := t.data.(todo.Item)
		if !ok {
			return fmt.Errorf("bad payload %T for %s", t.data, t.op)
		}
		return w.store.CreateItem(ctx, it)
	case OpUpdateItem:
		u, ok := t.data.(ItemUpdate)
		if !ok {
			return fmt.Errorf("bad payload %T for %s", t.data, t.op)
		}
		return w.store.UpdateItem(ctx, u.ItemID, u.Patch)
	case OpDeleteItem:
		id, ok := t.data.(string)
		if !ok {
			return fmt.Errorf("bad payload %T for %s", t.data, t.op)
		}
		return w.store.SoftDeleteItem(ctx, id)
	case OpCreateList:
		l, ok := t.data.(todo.List)
		if !ok {
			return fmt.Errorf("bad payload %T for %s", t.data, t.op)
		}
		return w.store.CreateList(ctx, l)
	case OpUpdateList:
		u, ok := t.data.(ListUpdate)
		if !ok {
			return fmt.Errorf("bad payload %T for %s", t.data, t.op)
		}
		return w.store.UpdateList(ctx, u.ListID, u.Patch)
	case OpUpsertMember:
		m, ok := t.data.(todo.Member)
		if !ok {
			return fmt.Errorf("bad payload %T for %s", t.data, t.op)
		}
		return w.store.UpsertMember(ctx, m)
	case OpRemoveMember:
		k, ok := t.data.(MemberKey)
		if !ok {
			return fmt.Errorf("bad payload %T for %s", t.data, t.op)
		}
		return w.store.RemoveMember(ctx, k.ListID, k.UserID)
	}
	return fmt.Errorf("unknown operation %q", t.op)
}

func (w *Writer) countFailure() {
	w.failed.Add(1)
	if w.mFailed != nil {
		w.mFailed.Inc()
	}
}

// Stop signals the loop and waits up to 5s. Tasks still queued are lost.
func (w *Writer) Stop() {
	if !w.running.Load() {
		return
	}
	close(w.stop)
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		w.log.Warn("worker did not stop gracefully")
	}
	w.log.Info("write-behind worker stopped",
		zap.Uint64("writes_processed", w.processed.Load()),
		zap.Uint64("writes_failed", w.failed.Load()),
		zap.Int("still_queued", len(w.tasks)),
	)
}

// GetStats snapshots the counters.
func (w *Writer) GetStats() Stats {
	return Stats{
		Running:         w.running.Load(),
		QueueSize:       len(w.tasks),
		WritesProcessed: w.processed.Load(),
		WritesFailed:    w.failed.Load(),
	}
}
