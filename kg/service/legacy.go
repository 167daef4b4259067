package service

import (
	"context"

	"github.com/wbrown/janus-kgstore/kg"
	"github.com/wbrown/janus-kgstore/kg/logindex"
	"github.com/wbrown/janus-kgstore/kg/storage"
)

// Legacy lookup surface, kept for callers of the pre-tabular API. These
// are thin adapters over the same resolver, snapshot and value model as
// Query; they return raw triples instead of named columns and carry no
// new semantics.

// QueryFacts returns every fact matching the pattern as of the resolved
// index.
func (s *Service) QueryFacts(ctx context.Context, spec logindex.Spec, pattern storage.Pattern) (*FactsResult, error) {
	return s.matchFacts(ctx, spec, pattern)
}

// LookupSP returns the facts for one (subject, predicate) pair.
func (s *Service) LookupSP(ctx context.Context, spec logindex.Spec, subject, predicate kg.KGID) (*FactsResult, error) {
	return s.matchFacts(ctx, spec, storage.Pattern{Subject: &subject, Predicate: &predicate})
}

// LookupPO returns the facts for one (predicate, object) pair.
func (s *Service) LookupPO(ctx context.Context, spec logindex.Spec, predicate kg.KGID, object kg.KGValue) (*FactsResult, error) {
	return s.matchFacts(ctx, spec, storage.Pattern{Predicate: &predicate, Object: &object})
}

func (s *Service) matchFacts(ctx context.Context, spec logindex.Spec, pattern storage.Pattern) (*FactsResult, error) {
	snap, err := s.resolveSnapshot(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	it := snap.Match(pattern)
	defer it.Close()

	result := &FactsResult{Index: snap.Index()}
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, &QueryError{Stage: StageCancelled, Err: err}
		}
		result.Facts = append(result.Facts, it.Fact())
	}
	if err := it.Err(); err != nil {
		return nil, &QueryError{Stage: StageEvaluate, Err: err}
	}
	return result, nil
}
