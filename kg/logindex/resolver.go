package logindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Log is the authoritative-log collaborator the resolver consults.
type Log interface {
	// CurrentTail returns the index of the newest committed entry.
	// May block on a network round trip.
	CurrentTail(ctx context.Context) (uint64, error)
	// RecentIndex returns a locally known recent index without any
	// round trip. ok is false before the log has committed anything.
	RecentIndex() (index uint64, ok bool)
}

// ErrNotReady is returned for Recent resolution before any index is known.
var ErrNotReady = errors.New("logindex: resolver has no recent index yet")

// ResolutionError wraps a resolution failure with retry guidance.
// AtLeast bounds beyond the current tail and transient log failures are
// retryable with backoff; validation failures are not.
type ResolutionError struct {
	Constraint Constraint
	Retryable  bool
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("logindex: resolving %s: %v", e.Constraint, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the same request after
// backoff.
func Retryable(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re) && re.Retryable
}

// Resolver turns Specs into concrete log indices. It keeps a recent-index
// cache fed by successful non-Exact resolutions so Recent never needs a
// log round trip.
type Resolver struct {
	log Log

	mu     sync.RWMutex
	recent uint64
	ready  bool
}

// NewResolver creates a resolver over the given log collaborator.
func NewResolver(log Log) *Resolver {
	return &Resolver{log: log}
}

// Resolve picks the index a request executes against.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) (uint64, error) {
	if err := spec.Validate(); err != nil {
		return 0, &ResolutionError{Constraint: spec.Constraint, Err: err}
	}

	switch spec.Constraint {
	case Exact:
		// Passed through verbatim; existence is checked where the
		// snapshot is opened.
		return *spec.Index, nil

	case AtLeast:
		tail, err := r.log.CurrentTail(ctx)
		if err != nil {
			return 0, &ResolutionError{Constraint: AtLeast, Retryable: true, Err: err}
		}
		if tail < *spec.Index {
			return 0, &ResolutionError{
				Constraint: AtLeast,
				Retryable:  true,
				Err:        fmt.Errorf("bound %d beyond current tail %d", *spec.Index, tail),
			}
		}
		r.observe(tail)
		return tail, nil

	case Recent:
		r.mu.RLock()
		recent, ready := r.recent, r.ready
		r.mu.RUnlock()
		if ready {
			return recent, nil
		}
		// Cold cache: fall back to the log's local knowledge, still
		// without a round trip.
		if idx, ok := r.log.RecentIndex(); ok {
			r.observe(idx)
			return idx, nil
		}
		return 0, &ResolutionError{Constraint: Recent, Err: ErrNotReady}

	case Latest:
		tail, err := r.log.CurrentTail(ctx)
		if err != nil {
			return 0, &ResolutionError{Constraint: Latest, Retryable: true, Err: err}
		}
		r.observe(tail)
		return tail, nil
	}

	return 0, &ResolutionError{Constraint: spec.Constraint,
		Err: fmt.Errorf("unknown constraint %d", byte(spec.Constraint))}
}

// observe feeds the recent-index cache. The cache only moves forward.
func (r *Resolver) observe(index uint64) {
	r.mu.Lock()
	if !r.ready || index > r.recent {
		r.recent = index
		r.ready = true
	}
	r.mu.Unlock()
}
