// Package kg defines the typed value model of the fact store: node
// identifiers, literal wrappers with lang/unit modifiers, precision-aware
// timestamps, and the KGValue tagged union used for fact objects and
// result-table cells.
package kg

import (
	"errors"
	"fmt"
	"time"
)

// ValueKind identifies which case of the KGValue union is populated.
type ValueKind byte

const (
	KindInvalid ValueKind = iota
	KindNode
	KindString
	KindFloat64
	KindInt64
	KindBool
	KindTimestamp
)

func (k ValueKind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindString:
		return "string"
	case KindFloat64:
		return "float64"
	case KindInt64:
		return "int64"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	default:
		return "invalid"
	}
}

// Decode/validation errors for the tagged union.
var (
	ErrNoValue        = errors.New("kg: no value case populated")
	ErrMultipleValues = errors.New("kg: multiple value cases populated")
)

// KGValue is a tagged union: exactly one field is non-nil in a valid value.
// It represents one cell of a result table, or a fact's object.
type KGValue struct {
	Node  *KGID        `json:"node,omitempty"`
	Str   *KGString    `json:"str,omitempty"`
	Float *KGFloat64   `json:"float,omitempty"`
	Int   *KGInt64     `json:"int,omitempty"`
	Bool  *KGBool      `json:"bool,omitempty"`
	Time  *KGTimestamp `json:"time,omitempty"`
}

// Constructors for each union case.

func NodeValue(id KGID) KGValue {
	return KGValue{Node: &id}
}

func StringValue(s string) KGValue {
	return KGValue{Str: &KGString{Value: s}}
}

func StringValueLang(s string, lang KGID) KGValue {
	return KGValue{Str: &KGString{Value: s, Lang: &lang}}
}

func FloatValue(f float64) KGValue {
	return KGValue{Float: &KGFloat64{Value: f}}
}

func FloatValueUnit(f float64, unit KGID) KGValue {
	return KGValue{Float: &KGFloat64{Value: f, Unit: &unit}}
}

func IntValue(i int64) KGValue {
	return KGValue{Int: &KGInt64{Value: i}}
}

func IntValueUnit(i int64, unit KGID) KGValue {
	return KGValue{Int: &KGInt64{Value: i, Unit: &unit}}
}

func BoolValue(b bool) KGValue {
	return KGValue{Bool: &KGBool{Value: b}}
}

func TimeValue(t time.Time, p Precision) KGValue {
	ts := NewTimestamp(t, p)
	return KGValue{Time: &ts}
}

// Kind returns the populated case, or KindInvalid when zero or more than
// one case is set.
func (v KGValue) Kind() ValueKind {
	kind := KindInvalid
	n := 0
	if v.Node != nil {
		kind, n = KindNode, n+1
	}
	if v.Str != nil {
		kind, n = KindString, n+1
	}
	if v.Float != nil {
		kind, n = KindFloat64, n+1
	}
	if v.Int != nil {
		kind, n = KindInt64, n+1
	}
	if v.Bool != nil {
		kind, n = KindBool, n+1
	}
	if v.Time != nil {
		kind, n = KindTimestamp, n+1
	}
	if n != 1 {
		return KindInvalid
	}
	return kind
}

// Validate enforces the exactly-one-case invariant and checks the
// populated case for well-formedness.
func (v KGValue) Validate() error {
	n := 0
	for _, set := range []bool{
		v.Node != nil, v.Str != nil, v.Float != nil,
		v.Int != nil, v.Bool != nil, v.Time != nil,
	} {
		if set {
			n++
		}
	}
	if n == 0 {
		return ErrNoValue
	}
	if n > 1 {
		return ErrMultipleValues
	}
	if v.Time != nil && !v.Time.Precision.Valid() {
		return fmt.Errorf("kg: timestamp precision %d out of range", byte(v.Time.Precision))
	}
	return nil
}

func (v KGValue) String() string {
	switch v.Kind() {
	case KindNode:
		return v.Node.String()
	case KindString:
		return v.Str.String()
	case KindFloat64:
		return v.Float.String()
	case KindInt64:
		return v.Int.String()
	case KindBool:
		return v.Bool.String()
	case KindTimestamp:
		return v.Time.String()
	default:
		return "invalid"
	}
}
