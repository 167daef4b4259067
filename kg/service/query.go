package service

import (
	"context"
	"errors"

	"github.com/wbrown/janus-kgstore/kg"
	"github.com/wbrown/janus-kgstore/kg/query"
)

// Query runs one query and streams the answer to emit as columnar chunks.
//
// The execution states are Resolving, Evaluating, Streaming, then Done or
// Failed. The resolved index is an immutable snapshot boundary for the
// whole query: every chunk of one answer reads the same snapshot and
// reports the same index. A nil return means Done; any error is the
// Failed state and carries its stage (see QueryError).
//
// Cancellation is a first-class terminal transition: the caller may
// abandon the stream at any chunk boundary, and the snapshot reference is
// released before Query returns in every case.
func (s *Service) Query(ctx context.Context, req QueryRequest, emit func(QueryResult) error) error {
	// Resolving.
	snap, err := s.resolveSnapshot(ctx, req.Index)
	if err != nil {
		return err
	}
	defer snap.Release()

	// Evaluating.
	rows, err := s.evaluate(ctx, req.Query, snap)
	if err != nil {
		return &QueryError{Stage: classifyEvalFailure(ctx, err), Err: err}
	}

	// Streaming.
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.chunkSize
	}
	for _, chunk := range chunkRows(snap.Index(), rows, chunkSize) {
		if err := ctx.Err(); err != nil {
			return &QueryError{Stage: StageCancelled, Err: err}
		}
		if err := emit(chunk); err != nil {
			stage := StageStream
			if errors.Is(err, context.Canceled) {
				stage = StageCancelled
			}
			return &QueryError{Stage: stage, Err: err}
		}
	}
	return nil
}

func classifyEvalFailure(ctx context.Context, err error) FailureStage {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StageCancelled
	}
	var pe *query.ParseError
	if errors.As(err, &pe) {
		return StageParse
	}
	return StageEvaluate
}

// chunkRows partitions a row-major answer into column-major chunks. Every
// chunk repeats the column names and the total so a consumer can validate
// any chunk in isolation; an empty answer still yields one chunk carrying
// the columns.
func chunkRows(index uint64, rows *query.Rows, chunkSize int) []QueryResult {
	var chunks []QueryResult
	for start := 0; ; start += chunkSize {
		end := start + chunkSize
		if end > len(rows.Rows) {
			end = len(rows.Rows)
		}

		values := make([][]kg.KGValue, len(rows.Columns))
		for c := range values {
			col := make([]kg.KGValue, 0, end-start)
			for r := start; r < end; r++ {
				col = append(col, rows.Rows[r][c])
			}
			values[c] = col
		}
		chunks = append(chunks, QueryResult{
			Index:           index,
			Columns:         rows.Columns,
			Values:          values,
			TotalResultSize: rows.Total,
		})

		if end >= len(rows.Rows) {
			return chunks
		}
	}
}
