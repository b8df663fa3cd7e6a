// Package replica forwards dashboard mutations to the remote store in the
// background. Each mutation is numbered, applied in order and counted as
// acked or failed. Failures are logged and never retried or rolled back.
package replica

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

const (
	DefaultQueueSize = 256
	opTimeout        = 10 * time.Second
)

// Remote is the store mutations are replicated to.
type Remote interface {
	Put(ctx context.Context, d *models.Dashboard) error
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, dashboards []*models.Dashboard) error
}

type opKind string

const (
	opPut        opKind = "put"
	opDelete     opKind = "delete"
	opReplaceAll opKind = "replace_all"
)

type op struct {
	seq        uint64
	kind       opKind
	id         string
	dashboard  *models.Dashboard
	dashboards []*models.Dashboard
}

type Queue struct {
	remote Remote
	log    *slog.Logger
	ops    chan op

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	start  sync.Once

	seq      atomic.Uint64
	enqueued atomic.Uint64
	acked    atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

func NewQueue(remote Remote, log *slog.Logger, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		remote: remote,
		log:    log,
		ops:    make(chan op, size),
		done:   make(chan struct{}),
	}
}

// Start runs the worker until Close drains the queue. Calling it more than
// once has no effect.
func (q *Queue) Start(ctx context.Context) {
	q.start.Do(func() {
		ctx = logger.ToContext(context.WithoutCancel(ctx), q.log)
		go q.run(ctx)
	})
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for o := range q.ops {
		q.apply(ctx, o)
	}
}

func (q *Queue) apply(ctx context.Context, o op) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var err error
	switch o.kind {
	case opPut:
		err = q.remote.Put(ctx, o.dashboard)
	case opDelete:
		err = q.remote.Delete(ctx, o.id)
	case opReplaceAll:
		err = q.remote.ReplaceAll(ctx, o.dashboards)
	}
	if err != nil {
		q.failed.Add(1)
		q.log.Error("dashboard replication failed", "seq", o.seq, "op", o.kind, "dashboard_id", o.id, "error", err)
		return
	}
	q.acked.Add(1)
	q.log.Debug("dashboard replicated", "seq", o.seq, "op", o.kind, "dashboard_id", o.id)
}

func (q *Queue) enqueue(o op) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		return
	}
	o.seq = q.seq.Add(1)
	select {
	case q.ops <- o:
		q.enqueued.Add(1)
	default:
		q.dropped.Add(1)
		q.log.Warn("replication queue full, mutation dropped", "seq", o.seq, "op", o.kind, "dashboard_id", o.id)
	}
}

func (q *Queue) Put(d *models.Dashboard) {
	q.enqueue(op{kind: opPut, id: d.ID, dashboard: d})
}

func (q *Queue) Delete(id string) {
	q.enqueue(op{kind: opDelete, id: id})
}

func (q *Queue) ReplaceAll(dashboards []*models.Dashboard) {
	q.enqueue(op{kind: opReplaceAll, dashboards: dashboards})
}

// Close stops accepting mutations and waits for queued ones to be applied
// or for ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ops)
	}
	q.mu.Unlock()

	// a queue that was never started has nothing to drain
	q.start.Do(func() { close(q.done) })

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Stats() dto.ReplicationStats {
	enqueued := q.enqueued.Load()
	acked := q.acked.Load()
	failed := q.failed.Load()
	pending := int(enqueued) - int(acked) - int(failed)
	return dto.ReplicationStats{
		Enabled:  true,
		Enqueued: enqueued,
		Acked:    acked,
		Failed:   failed,
		Dropped:  q.dropped.Load(),
		Pending:  max(pending, 0),
	}
}

// Nop is used when no remote store is configured.
type Nop struct{}

func (Nop) Put(*models.Dashboard)          {}
func (Nop) Delete(string)                  {}
func (Nop) ReplaceAll([]*models.Dashboard) {}
func (Nop) Close(context.Context) error    { return nil }
func (Nop) Stats() dto.ReplicationStats    { return dto.ReplicationStats{} }
