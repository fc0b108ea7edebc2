// Package mutation executes writes against the resource store with optional
// optimistic cache patches and automatic rollback.
//
// Each invocation walks a fixed state machine:
//
//	Idle -> Pending -> Committed | RolledBack
//
// The optimistic patch is applied, and visible to consumers, strictly before
// the network call is issued. On failure the inverse patch runs strictly
// before the error is surfaced, so a caller never observes a pending
// optimistic value together with a failure.
package mutation

import (
	"context"
	"time"

	"github.com/google/uuid"

	coremetrics "github.com/dispatchkit/dispatchboard/core/metrics"
	"github.com/dispatchkit/dispatchboard/core/query"
	"github.com/dispatchkit/dispatchboard/infra/logger"
)

// Status is the lifecycle state of one mutation invocation.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusPending    Status = "pending"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// Effect describes one mutation: the network call, an optional optimistic
// patch, a commit hook and the tags to invalidate on success.
type Effect[T any] struct {
	// Name identifies the mutation in logs and metrics.
	Name string
	// Optimistic applies the local patch and returns its inverse. Nil when
	// the mutation has no optimistic representation (e.g. id-bearing
	// creates).
	Optimistic func() query.Undo
	// Call performs the network request.
	Call func(ctx context.Context) (T, error)
	// OnSuccess runs after the call resolves, before invalidation. Used to
	// merge server-assigned fields into caches.
	OnSuccess func(result T)
	// Invalidates lists tags to fan out after a successful commit.
	Invalidates []query.Tag
	// OnStatus observes state transitions. Optional.
	OnStatus func(Status)
}

// Pipeline runs mutations against a cache.
type Pipeline struct {
	cache   *query.Cache
	log     logger.Logger
	metrics coremetrics.Sink
}

// New creates a pipeline bound to the cache. A nil sink disables metrics.
func New(cache *query.Cache, log logger.Logger, sink coremetrics.Sink) *Pipeline {
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Pipeline{cache: cache, log: log, metrics: sink}
}

// Cache returns the cache the pipeline patches.
func (p *Pipeline) Cache() *query.Cache { return p.cache }

// Run executes the effect through the mutation state machine and returns the
// network result. On failure the optimistic patch has already been rolled
// back by the time the error is returned.
func Run[T any](ctx context.Context, p *Pipeline, eff Effect[T]) (T, error) {
	var zero T
	id := uuid.NewString()
	start := time.Now()
	notify := func(s Status) {
		if eff.OnStatus != nil {
			eff.OnStatus(s)
		}
	}
	notify(StatusPending)

	undo := query.Undo(func() {})
	if eff.Optimistic != nil {
		undo = eff.Optimistic()
	}

	result, err := eff.Call(ctx)
	if err != nil {
		undo()
		notify(StatusRolledBack)
		_ = p.metrics.RecordMutation(coremetrics.MutationEvent{Name: eff.Name, Status: string(StatusRolledBack), Latency: time.Since(start)})
		p.log.Warnf("mutation %s (%s) rolled back: %v", eff.Name, id, err)
		return zero, err
	}

	if eff.OnSuccess != nil {
		eff.OnSuccess(result)
	}
	if len(eff.Invalidates) > 0 {
		p.cache.Invalidate(ctx, eff.Invalidates...)
	}
	notify(StatusCommitted)
	_ = p.metrics.RecordMutation(coremetrics.MutationEvent{Name: eff.Name, Status: string(StatusCommitted), Latency: time.Since(start)})
	p.log.Debugw("mutation committed", map[string]any{"name": eff.Name, "id": id})
	return result, nil
}
