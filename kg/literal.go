package kg

import (
	"fmt"
	"strconv"
)

// KGString is a string literal with an optional language tag. The tag is a
// node reference, not an embedded string, so language systems can evolve
// independently of literal storage.
type KGString struct {
	Value string `json:"value"`
	Lang  *KGID  `json:"lang,omitempty"`
}

// KGFloat64 is a float literal with an optional unit node.
type KGFloat64 struct {
	Value float64 `json:"value"`
	Unit  *KGID   `json:"unit,omitempty"`
}

// KGInt64 is an integer literal with an optional unit node.
type KGInt64 struct {
	Value int64 `json:"value"`
	Unit  *KGID `json:"unit,omitempty"`
}

// KGBool is a boolean literal with an optional unit node.
type KGBool struct {
	Value bool  `json:"value"`
	Unit  *KGID `json:"unit,omitempty"`
}

func (s KGString) String() string {
	out := strconv.Quote(s.Value)
	if s.Lang != nil {
		out += "@" + s.Lang.QName
	}
	return out
}

func (f KGFloat64) String() string {
	out := strconv.FormatFloat(f.Value, 'g', -1, 64)
	if f.Unit != nil {
		out += "^^" + f.Unit.String()
	}
	return out
}

func (i KGInt64) String() string {
	out := strconv.FormatInt(i.Value, 10)
	if i.Unit != nil {
		out += "^^" + i.Unit.String()
	}
	return out
}

func (b KGBool) String() string {
	out := fmt.Sprintf("%t", b.Value)
	if b.Unit != nil {
		out += "^^" + b.Unit.String()
	}
	return out
}

// modifierEqual compares two optional modifier nodes (lang or unit).
// A nil modifier only matches another nil modifier.
func modifierEqual(a, b *KGID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// modifierCompare orders optional modifiers; absent sorts first.
func modifierCompare(a, b *KGID) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}
