package kg

import (
	"errors"
	"strings"
)

// ErrIncomparable marks value pairs with no defined ordering: different
// kinds, or numeric/bool literals whose units differ. Incomparable is
// stronger than unequal; callers combining facts across units must convert
// explicitly.
var ErrIncomparable = errors.New("kg: values are incomparable")

// Compare orders two values:
//
//	-1 if a < b
//	 0 if a == b
//	 1 if a > b
//
// Ordering is type-specific:
//   - nodes order by canonical qName
//   - strings order by (lang, value)
//   - int64/float64/bool order by value within a single unit; a unit
//     mismatch returns ErrIncomparable
//   - timestamps order at the coarser of the two precisions
//
// A kind mismatch returns ErrIncomparable.
func Compare(a, b KGValue) (int, error) {
	ka, kb := a.Kind(), b.Kind()
	if ka == KindInvalid || kb == KindInvalid || ka != kb {
		return 0, ErrIncomparable
	}

	switch ka {
	case KindNode:
		return a.Node.Compare(*b.Node), nil
	case KindString:
		if c := modifierCompare(a.Str.Lang, b.Str.Lang); c != 0 {
			return c, nil
		}
		return strings.Compare(a.Str.Value, b.Str.Value), nil
	case KindFloat64:
		if !modifierEqual(a.Float.Unit, b.Float.Unit) {
			return 0, ErrIncomparable
		}
		return compareFloats(a.Float.Value, b.Float.Value), nil
	case KindInt64:
		if !modifierEqual(a.Int.Unit, b.Int.Unit) {
			return 0, ErrIncomparable
		}
		return compareInt64s(a.Int.Value, b.Int.Value), nil
	case KindBool:
		if !modifierEqual(a.Bool.Unit, b.Bool.Unit) {
			return 0, ErrIncomparable
		}
		return compareBools(a.Bool.Value, b.Bool.Value), nil
	case KindTimestamp:
		return a.Time.Compare(*b.Time), nil
	}
	return 0, ErrIncomparable
}

// Equal checks value equality. Differing langs or units partition equality
// classes: values in different classes are simply unequal.
func Equal(a, b KGValue) bool {
	ka, kb := a.Kind(), b.Kind()
	if ka == KindInvalid || kb == KindInvalid || ka != kb {
		return false
	}

	switch ka {
	case KindNode:
		return a.Node.Equal(*b.Node)
	case KindString:
		return modifierEqual(a.Str.Lang, b.Str.Lang) && a.Str.Value == b.Str.Value
	case KindFloat64:
		return modifierEqual(a.Float.Unit, b.Float.Unit) && a.Float.Value == b.Float.Value
	case KindInt64:
		return modifierEqual(a.Int.Unit, b.Int.Unit) && a.Int.Value == b.Int.Value
	case KindBool:
		return modifierEqual(a.Bool.Unit, b.Bool.Unit) && a.Bool.Value == b.Bool.Value
	case KindTimestamp:
		return a.Time.Equal(*b.Time)
	}
	return false
}

// SortCompare is a total order for result sorting. Incomparable pairs fall
// back to ordering by kind, then by rendered form, so sorts stay stable
// without being semantically meaningful across classes.
func SortCompare(a, b KGValue) int {
	if c, err := Compare(a, b); err == nil {
		return c
	}
	if ka, kb := a.Kind(), b.Kind(); ka != kb {
		return int(ka) - int(kb)
	}
	return strings.Compare(a.String(), b.String())
}

func compareInt64s(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareBools(a, b bool) int {
	if !a && b {
		return -1
	} else if a && !b {
		return 1
	}
	return 0
}
