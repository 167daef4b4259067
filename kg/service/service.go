package service

import (
	"context"
	"fmt"

	"github.com/wbrown/janus-kgstore/kg"
	"github.com/wbrown/janus-kgstore/kg/logindex"
	"github.com/wbrown/janus-kgstore/kg/query"
	"github.com/wbrown/janus-kgstore/kg/storage"
)

const (
	// DefaultMaxAtomicFacts bounds one atomic insert. Bigger batches
	// must be split by the caller.
	DefaultMaxAtomicFacts = 10000
	// DefaultChunkSize is the default number of rows per streamed result chunk.
	DefaultChunkSize = 1024
)

// EvalFunc is the query-evaluation collaborator: it runs a query text
// against one snapshot and returns the full columnar answer.
type EvalFunc func(ctx context.Context, text string, snap *storage.Snapshot) (*query.Rows, error)

// SchemaCheck validates a parsed batch against graph invariants before
// commit.
type SchemaCheck func(facts []kg.Fact) error

// Service wires the coordinators over one store. Each method handles one
// request independently; the only cross-request ordering is the log's.
type Service struct {
	store       *storage.Store
	resolver    *logindex.Resolver
	evaluate    EvalFunc
	schemaCheck SchemaCheck

	maxAtomicFacts int
	chunkSize      int
}

// Option customizes a Service.
type Option func(*Service)

// WithMaxAtomicFacts overrides the atomic insert limit.
func WithMaxAtomicFacts(n int) Option {
	return func(s *Service) { s.maxAtomicFacts = n }
}

// WithChunkSize overrides the default rows-per-chunk setting.
func WithChunkSize(n int) Option {
	return func(s *Service) { s.chunkSize = n }
}

// WithEvaluator replaces the query-evaluation collaborator.
func WithEvaluator(eval EvalFunc) Option {
	return func(s *Service) { s.evaluate = eval }
}

// WithSchemaCheck replaces the batch schema validation.
func WithSchemaCheck(check SchemaCheck) Option {
	return func(s *Service) { s.schemaCheck = check }
}

// New creates a Service over the given store.
func New(store *storage.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		resolver:       logindex.NewResolver(store),
		evaluate:       query.ParseAndEvaluate,
		schemaCheck:    batchSchemaCheck,
		maxAtomicFacts: DefaultMaxAtomicFacts,
		chunkSize:      DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver exposes the shared index resolver, mainly for tests.
func (s *Service) Resolver() *logindex.Resolver {
	return s.resolver
}

// Stats reports store metadata for the status RPC.
func (s *Service) Stats() (storage.Stats, error) {
	return s.store.Stats()
}

// resolveSnapshot runs index resolution and opens the as-of snapshot.
// Both failure modes are resolution failures from the caller's view.
func (s *Service) resolveSnapshot(ctx context.Context, spec logindex.Spec) (*storage.Snapshot, error) {
	idx, err := s.resolver.Resolve(ctx, spec)
	if err != nil {
		return nil, &QueryError{Stage: StageResolve, Err: err}
	}
	snap, err := s.store.Snapshot(idx)
	if err != nil {
		return nil, &QueryError{Stage: StageResolve, Err: err}
	}
	return snap, nil
}

// batchSchemaCheck is the default graph invariant: within one batch a
// predicate must not mix object kinds. Cross-batch checks belong to the
// storage engine's schema layer.
func batchSchemaCheck(facts []kg.Fact) error {
	kinds := map[string]kg.ValueKind{}
	for _, f := range facts {
		kind := f.Object.Kind()
		prev, seen := kinds[f.Predicate.QName]
		if seen && prev != kind {
			return fmt.Errorf("predicate %s used with both %s and %s objects",
				f.Predicate, prev, kind)
		}
		kinds[f.Predicate.QName] = kind
	}
	return nil
}
