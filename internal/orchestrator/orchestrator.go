// Package orchestrator gives every user-facing operation an observable
// lifecycle (idle, running, success, error) under a named key and keeps a
// bounded, newest-first activity trail.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

// Key names one logical operation slot.
type Key string

const (
	KeyBoot       Key = "boot"
	KeyConnect    Key = "connect"
	KeyCreate     Key = "create"
	KeyCommitment Key = "commitment"
	KeyPosition   Key = "position"
	KeyResolve    Key = "resolve"
	KeyClaim      Key = "claim"
	KeyDeposit    Key = "deposit"
	KeyWithdraw   Key = "withdraw"
)

// Keys lists every known key in display order.
var Keys = []Key{KeyBoot, KeyConnect, KeyCreate, KeyCommitment, KeyPosition, KeyResolve, KeyClaim, KeyDeposit, KeyWithdraw}

// Status is the lifecycle state of a key.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// DefaultActivityCapacity is the activity ring size when none is configured.
const DefaultActivityCapacity = 12

// Snapshot is a consistent copy of the orchestrator state.
type Snapshot struct {
	Statuses  map[Key]Status        `json:"statuses"`
	Error     string                `json:"error,omitempty"`
	KeyErrors map[Key]string        `json:"keyErrors,omitempty"`
	Activity  []domain.ActivityItem `json:"activity"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCapacity sets the activity ring size. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithSinks adds activity sinks.
func WithSinks(sinks ...domain.ActivitySink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, sinks...) }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator tracks per-key status and the activity trail. Runs under
// different keys proceed in parallel; a second run under the same key
// overwrites the first's status when it settles.
//
// The shared error slot holds the most recent failure and is cleared when
// any run starts, whatever its key. KeyError keeps each key's last failure
// until that key runs again.
type Orchestrator struct {
	mu       sync.RWMutex
	status   map[Key]Status
	keyErr   map[Key]string
	lastErr  string
	activity []domain.ActivityItem
	capacity int

	sinks   []domain.ActivitySink
	metrics *Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// New creates an Orchestrator with every key idle.
func New(logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		status:   make(map[Key]Status),
		keyErr:   make(map[Key]string),
		capacity: DefaultActivityCapacity,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes fn under key and returns its result. The key moves to
// running, then to success or error; on error the message is recorded and
// the error is returned unchanged.
func Run[T any](ctx context.Context, o *Orchestrator, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	o.begin(key)
	start := o.now()

	v, err := fn(ctx)

	o.finish(ctx, key, err, o.now().Sub(start))
	return v, err
}

// Do is Run for operations without a result.
func (o *Orchestrator) Do(ctx context.Context, key Key, fn func(ctx context.Context) error) error {
	_, err := Run(ctx, o, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (o *Orchestrator) begin(key Key) {
	o.mu.Lock()
	o.status[key] = StatusRunning
	o.lastErr = ""
	delete(o.keyErr, key)
	o.mu.Unlock()
	o.metrics.started(key)
}

func (o *Orchestrator) finish(ctx context.Context, key Key, err error, elapsed time.Duration) {
	status := StatusSuccess
	o.mu.Lock()
	if err != nil {
		status = StatusError
		o.lastErr = err.Error()
		o.keyErr[key] = err.Error()
	}
	o.status[key] = status
	o.mu.Unlock()
	o.metrics.finished(key, status, elapsed)

	if err != nil {
		o.logger.WarnContext(ctx, "orchestrator: operation failed",
			slog.String("key", string(key)),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return
	}
	o.logger.DebugContext(ctx, "orchestrator: operation succeeded",
		slog.String("key", string(key)),
		slog.Duration("elapsed", elapsed),
	)
}

// Status returns the status of key; keys never run are idle.
func (o *Orchestrator) Status(key Key) Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if s, ok := o.status[key]; ok {
		return s
	}
	return StatusIdle
}

// Err returns the shared error slot.
func (o *Orchestrator) Err() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr
}

// KeyError returns the last failure message recorded for key.
func (o *Orchestrator) KeyError(key Key) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.keyErr[key]
}

// LogActivity prepends an item to the trail, dropping the oldest entries
// beyond capacity, and forwards it to every sink.
func (o *Orchestrator) LogActivity(ctx context.Context, title, detail string, sev domain.Severity) domain.ActivityItem {
	now := o.now()
	item := domain.ActivityItem{
		ID:        fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		Title:     title,
		Detail:    detail,
		Timestamp: now.UTC(),
		Severity:  sev,
	}

	o.mu.Lock()
	next := make([]domain.ActivityItem, 0, min(len(o.activity)+1, o.capacity))
	next = append(next, item)
	for _, it := range o.activity {
		if len(next) == o.capacity {
			break
		}
		next = append(next, it)
	}
	o.activity = next
	o.mu.Unlock()
	o.metrics.logged(string(sev))

	for _, s := range o.sinks {
		if err := s.Record(ctx, item); err != nil {
			o.logger.WarnContext(ctx, "orchestrator: activity sink failed",
				slog.String("sink", s.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
	return item
}

// Activity returns the trail, newest first.
func (o *Orchestrator) Activity() []domain.ActivityItem {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]domain.ActivityItem, len(o.activity))
	copy(out, o.activity)
	return out
}

// Snapshot returns statuses for every known key, the error slots and the
// trail.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	statuses := make(map[Key]Status, len(Keys))
	for _, k := range Keys {
		statuses[k] = StatusIdle
	}
	maps.Copy(statuses, o.status)

	activity := make([]domain.ActivityItem, len(o.activity))
	copy(activity, o.activity)

	return Snapshot{
		Statuses:  statuses,
		Error:     o.lastErr,
		KeyErrors: maps.Clone(o.keyErr),
		Activity:  activity,
	}
}
