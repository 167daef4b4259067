package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wbrown/janus-kgstore/kg/facts"
)

// Insert parses and commits a facts payload atomically: either every fact
// of the request is visible at the returned index, or the dataset is
// unchanged and the result carries a non-OK status with a description.
//
// Insert is an ensure-existence operation, not a strict append:
// re-submitting an already-satisfied batch succeeds with StatusOK and a
// valid index, without duplicating facts.
//
// The error return is reserved for infrastructure failures; every
// caller-correctable outcome is a status.
func (s *Service) Insert(ctx context.Context, req InsertRequest) (InsertResult, error) {
	parsed, err := facts.Parse(req.Format, req.Facts)
	if err != nil {
		var pe *facts.ParseError
		if errors.As(err, &pe) {
			return InsertResult{Status: StatusParseError, Error: pe.Error()}, nil
		}
		return InsertResult{}, fmt.Errorf("service: parsing insert payload: %w", err)
	}

	if len(parsed) > s.maxAtomicFacts {
		return InsertResult{
			Status: StatusAtomicRequestTooBig,
			Error: fmt.Sprintf("batch of %d facts exceeds atomic limit of %d; split the request",
				len(parsed), s.maxAtomicFacts),
		}, nil
	}

	if err := s.schemaCheck(parsed); err != nil {
		return InsertResult{Status: StatusSchemaViolation, Error: err.Error()}, nil
	}

	index, err := s.store.AppendFacts(ctx, parsed)
	if err != nil {
		return InsertResult{}, fmt.Errorf("service: committing insert: %w", err)
	}
	return InsertResult{Status: StatusOK, Index: index}, nil
}
