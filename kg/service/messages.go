// Package service is the contract layer of the fact store: it owns how
// every operation selects and reports its position in the append-only log,
// the insert atomicity/error contract, and the chunked columnar query
// result shape. Storage, log and query evaluation are collaborators.
package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wbrown/janus-kgstore/kg"
	"github.com/wbrown/janus-kgstore/kg/logindex"
)

// InsertStatus is the business outcome of an insert. Anything other than
// StatusOK means the dataset is unchanged.
type InsertStatus int

const (
	StatusOK InsertStatus = iota
	// StatusParseError: the facts payload did not parse. Not retryable
	// unmodified.
	StatusParseError
	// StatusSchemaViolation: the batch would violate a graph invariant.
	// Not retryable unmodified.
	StatusSchemaViolation
	// StatusAtomicRequestTooBig: the batch exceeds the atomic commit
	// limit; the caller must split it.
	StatusAtomicRequestTooBig
)

func (s InsertStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusParseError:
		return "ParseError"
	case StatusSchemaViolation:
		return "SchemaViolation"
	case StatusAtomicRequestTooBig:
		return "AtomicRequestTooBig"
	default:
		return fmt.Sprintf("InsertStatus(%d)", int(s))
	}
}

// MarshalJSON renders the status by name so wire payloads stay readable.
func (s InsertStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *InsertStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, st := range []InsertStatus{StatusOK, StatusParseError, StatusSchemaViolation, StatusAtomicRequestTooBig} {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("service: unknown insert status %q", name)
}

// QueryRequest asks for a query evaluated as of a resolved log index.
type QueryRequest struct {
	Index     logindex.Spec `json:"index"`
	Query     string        `json:"query"`
	ChunkSize int           `json:"chunkSize,omitempty"`
}

// QueryResult is one chunk of a columnar answer. Every chunk of one
// answer carries the same column names in the same order and the same
// TotalResultSize; rows are partitioned across chunks.
type QueryResult struct {
	Index           uint64         `json:"index"`
	Columns         []string       `json:"columns"`
	Values          [][]kg.KGValue `json:"values"` // Values[col][row]
	TotalResultSize int            `json:"totalResultSize"`
}

// NumRows returns the row count of this chunk.
func (r *QueryResult) NumRows() int {
	if len(r.Values) == 0 {
		return 0
	}
	return len(r.Values[0])
}

// InsertRequest submits a facts payload under a named format.
type InsertRequest struct {
	Format string `json:"format"`
	Facts  string `json:"facts"`
}

// InsertResult reports the outcome. Index is only meaningful for
// StatusOK, where it is the post-commit index: all facts of the request
// are visible at it.
type InsertResult struct {
	Status InsertStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
	Index  uint64       `json:"index,omitempty"`
}

// WipeRequest asks for the dataset to be destroyed after a grace delay.
type WipeRequest struct {
	WaitFor time.Duration `json:"waitFor"`
}

// WipeResult reports the last index before the wipe and the index at
// which it took effect.
type WipeResult struct {
	Index   uint64 `json:"index"`
	AtIndex uint64 `json:"atIndex"`
}

// FactsResult is the pre-tabular result shape of the legacy lookups: raw
// triples as of a resolved index.
type FactsResult struct {
	Index uint64    `json:"index"`
	Facts []kg.Fact `json:"facts"`
}
