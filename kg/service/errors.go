package service

import (
	"errors"
	"fmt"
)

// FailureStage is the typed cause a failed query carries: which state the
// executor failed in.
type FailureStage int

const (
	StageResolve FailureStage = iota
	StageParse
	StageEvaluate
	StageStream
	StageCancelled
)

func (s FailureStage) String() string {
	switch s {
	case StageResolve:
		return "resolve"
	case StageParse:
		return "parse"
	case StageEvaluate:
		return "evaluate"
	case StageStream:
		return "stream"
	case StageCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// QueryError is the terminal Failed state of a query: the stage that
// failed plus the underlying cause. Chunks already delivered remain valid
// for the rows they covered, but the overall answer is incomplete.
type QueryError struct {
	Stage FailureStage
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("service: query failed during %s: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// FailedStage extracts the failure stage from an error chain; ok is false
// for non-query errors.
func FailedStage(err error) (FailureStage, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Stage, true
	}
	return 0, false
}
