// Package logindex resolves caller-supplied log-index constraints to
// concrete positions in the store's append-only log. Every read runs "as
// of" one resolved index; every mutation reports the index it committed at.
package logindex

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Constraint selects how a request's log index is resolved.
type Constraint byte

const (
	// Exact uses the caller's index verbatim; the request fails
	// downstream if that index does not exist.
	Exact Constraint = iota
	// AtLeast picks any index >= the caller's lower bound.
	AtLeast
	// Recent returns the resolver's cached best-effort index with no
	// round trip to the authoritative log.
	Recent
	// Latest obtains the true current tail from the authoritative log.
	// Costly, and under log partition the result may not be linearizable.
	Latest
)

func (c Constraint) String() string {
	switch c {
	case Exact:
		return "exact"
	case AtLeast:
		return "atLeast"
	case Recent:
		return "recent"
	case Latest:
		return "latest"
	default:
		return fmt.Sprintf("constraint(%d)", byte(c))
	}
}

// MarshalJSON renders the constraint by name on the wire.
func (c Constraint) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Constraint) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, k := range []Constraint{Exact, AtLeast, Recent, Latest} {
		if k.String() == name {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("logindex: unknown constraint %q", name)
}

// Spec is a caller's index selection: a constraint plus, for Exact and
// AtLeast only, an explicit index.
type Spec struct {
	Constraint Constraint `json:"constraint"`
	Index      *uint64    `json:"index,omitempty"`
}

// ExactAt builds an Exact spec for the given index.
func ExactAt(index uint64) Spec {
	return Spec{Constraint: Exact, Index: &index}
}

// AtLeastAt builds an AtLeast spec with the given lower bound.
func AtLeastAt(index uint64) Spec {
	return Spec{Constraint: AtLeast, Index: &index}
}

// RecentIndex is a Recent spec.
func RecentIndex() Spec {
	return Spec{Constraint: Recent}
}

// LatestIndex is a Latest spec.
func LatestIndex() Spec {
	return Spec{Constraint: Latest}
}

var (
	// ErrIndexRequired: Exact and AtLeast must carry an explicit index.
	ErrIndexRequired = errors.New("logindex: constraint requires an explicit index")
	// ErrIndexForbidden: Recent and Latest must not carry one.
	ErrIndexForbidden = errors.New("logindex: constraint must not carry an explicit index")
)

// Validate enforces the explicit-index invariant.
func (s Spec) Validate() error {
	switch s.Constraint {
	case Exact, AtLeast:
		if s.Index == nil {
			return fmt.Errorf("%w: %s", ErrIndexRequired, s.Constraint)
		}
	case Recent, Latest:
		if s.Index != nil {
			return fmt.Errorf("%w: %s", ErrIndexForbidden, s.Constraint)
		}
	default:
		return fmt.Errorf("logindex: unknown constraint %d", byte(s.Constraint))
	}
	return nil
}

func (s Spec) String() string {
	if s.Index != nil {
		return fmt.Sprintf("%s(%d)", s.Constraint, *s.Index)
	}
	return s.Constraint.String()
}
