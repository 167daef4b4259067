package kg

import (
	"fmt"
	"time"
)

// Precision states how much of a timestamp is semantically meaningful.
// Fields finer than the stated precision are noise and must not influence
// comparisons.
type Precision byte

const (
	PrecisionUnknown Precision = iota
	PrecisionYear
	PrecisionMonth
	PrecisionDay
	PrecisionHour
	PrecisionMinute
	PrecisionSecond
	PrecisionNanosecond
)

// Valid reports whether p is inside the enumerated range.
func (p Precision) Valid() bool {
	return p <= PrecisionNanosecond
}

func (p Precision) String() string {
	switch p {
	case PrecisionUnknown:
		return "unknown"
	case PrecisionYear:
		return "year"
	case PrecisionMonth:
		return "month"
	case PrecisionDay:
		return "day"
	case PrecisionHour:
		return "hour"
	case PrecisionMinute:
		return "minute"
	case PrecisionSecond:
		return "second"
	case PrecisionNanosecond:
		return "nanosecond"
	default:
		return fmt.Sprintf("precision(%d)", byte(p))
	}
}

// KGTimestamp is a point in time plus the precision at which it is known.
type KGTimestamp struct {
	Value     time.Time `json:"value"`
	Precision Precision `json:"precision"`
}

// NewTimestamp creates a timestamp at the given precision.
func NewTimestamp(t time.Time, p Precision) KGTimestamp {
	return KGTimestamp{Value: t, Precision: p}
}

// truncate drops every field finer than p. Unknown precision keeps only
// the zero time's fields, making all unknown-precision values coincide.
func truncate(t time.Time, p Precision) time.Time {
	t = t.UTC()
	switch p {
	case PrecisionYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case PrecisionMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case PrecisionDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case PrecisionHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case PrecisionMinute:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	case PrecisionSecond:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	case PrecisionNanosecond:
		return t
	default:
		return time.Time{}
	}
}

// coarser returns the less precise of two precisions.
func coarser(a, b Precision) Precision {
	if a < b {
		return a
	}
	return b
}

// Equal reports equality at the coarser of the two precisions: both values
// are truncated to it before comparison.
func (t KGTimestamp) Equal(other KGTimestamp) bool {
	p := coarser(t.Precision, other.Precision)
	return truncate(t.Value, p).Equal(truncate(other.Value, p))
}

// Compare orders timestamps at the coarser of the two precisions.
func (t KGTimestamp) Compare(other KGTimestamp) int {
	p := coarser(t.Precision, other.Precision)
	a, b := truncate(t.Value, p), truncate(other.Value, p)
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// layouts per precision, used for rendering
var precisionLayouts = map[Precision]string{
	PrecisionYear:       "2006",
	PrecisionMonth:      "2006-01",
	PrecisionDay:        "2006-01-02",
	PrecisionHour:       "2006-01-02T15",
	PrecisionMinute:     "2006-01-02T15:04",
	PrecisionSecond:     "2006-01-02T15:04:05",
	PrecisionNanosecond: "2006-01-02T15:04:05.999999999",
}

func (t KGTimestamp) String() string {
	layout, ok := precisionLayouts[t.Precision]
	if !ok {
		return "unknown-time"
	}
	return t.Value.UTC().Format(layout)
}
