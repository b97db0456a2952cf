// Package service contains the business logic of the attraction queue.
// Services validate inputs, enforce the queue rules, and orchestrate repo calls.
// No storage code lives here: services depend on repo.Store, not on a backend.
//
// Every mutation of one attraction (enqueue, dequeue, clear, update, delete)
// holds that attraction's in-process lock and runs in a single store
// transaction, so writers of one line are serialized while different
// attractions proceed independently.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dapr/kit/concurrency/cmap"

	"github.com/pkordes/attraction-queue/internal/domain"
	"github.com/pkordes/attraction-queue/internal/repo"
)

// Operation names reported to the Recorder.
const (
	OpCreateAttraction = "create_attraction"
	OpUpdateAttraction = "update_attraction"
	OpDeleteAttraction = "delete_attraction"
	OpEnqueue          = "enqueue"
	OpDequeueNext      = "dequeue_next"
	OpDequeueByID      = "dequeue_by_id"
	OpClear            = "clear"
)

// Recorder receives the outcome of every mutating operation.
// internal/metrics provides the Prometheus implementation.
//
// SetDepth, EntriesRemoved and ForgetAttraction are called while the
// attraction's lock is held, so for one attraction they arrive in commit order.
type Recorder interface {
	// ObserveOperation records one call of op; err is nil on success.
	ObserveOperation(op string, err error, elapsed time.Duration)
	// SetDepth records the current depth of an attraction's line.
	SetDepth(attractionID int64, depth int)
	// EntriesRemoved counts entries leaving the queue in a terminal state.
	EntriesRemoved(state domain.EntryState, n int)
	// ForgetAttraction drops per-attraction series of a deleted attraction.
	ForgetAttraction(attractionID int64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, error, time.Duration) {}
func (nopRecorder) SetDepth(int64, int)                           {}
func (nopRecorder) EntriesRemoved(domain.EntryState, int)         {}
func (nopRecorder) ForgetAttraction(int64)                        {}

// Option configures the services returned by New.
type Option func(*core)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *core) { c.logger = l }
}

// WithRecorder sets the metrics recorder. The default records nothing.
func WithRecorder(r Recorder) Option {
	return func(c *core) { c.rec = r }
}

// core is the state shared by AttractionRegistry and QueueManager.
type core struct {
	store  repo.Store
	locks  cmap.Mutex[int64]
	logger *slog.Logger
	rec    Recorder
}

// New wires an AttractionRegistry and a QueueManager over one store and one
// lock table. The two reference each other: the registry delegates depth
// annotation to the manager, and the manager reads attraction records through
// the registry.
func New(store repo.Store, opts ...Option) (*AttractionRegistry, *QueueManager) {
	c := &core{
		store:  store,
		locks:  cmap.NewMutex[int64](),
		logger: slog.New(slog.DiscardHandler),
		rec:    nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}

	registry := &AttractionRegistry{core: c}
	queues := &QueueManager{core: c, registry: registry}
	registry.queues = queues
	return registry, queues
}

// withLock runs fn holding the lock of one attraction.
// Locks are never removed from the table; an entry costs one mutex per id ever locked.
func (c *core) withLock(attractionID int64, fn func() error) error {
	c.locks.Lock(attractionID)
	defer c.locks.Unlock(attractionID)
	return fn()
}

// observe reports an operation outcome to the recorder.
func (c *core) observe(op string, start time.Time, err error) {
	c.rec.ObserveOperation(op, err, time.Since(start))
}

// classify leaves domain errors alone and marks everything else as a storage
// failure, keeping the cause in the chain.
func classify(err error) error {
	if err == nil || domain.IsDomainError(err) || errors.Is(err, domain.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorage, err)
}
