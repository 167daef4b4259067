package facts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wbrown/janus-kgstore/kg"
)

// ParseID parses a node identifier token: "<qname>" or a bare qname.
func ParseID(tok string) (kg.KGID, error) {
	if strings.HasPrefix(tok, "<") {
		if !strings.HasSuffix(tok, ">") || len(tok) < 3 {
			return kg.KGID{}, fmt.Errorf("unterminated node reference %q", tok)
		}
		tok = tok[1 : len(tok)-1]
	}
	if tok == "" {
		return kg.KGID{}, fmt.Errorf("empty node reference")
	}
	return kg.NewKGID(tok), nil
}

// timestampLayouts map literal shapes to precisions: the shape of the
// literal states how much of it is meaningful. A bare year is not
// sniffed; it reads as an int64. time.Parse treats a .999999999 element
// as optional, so the plain-seconds layout must be tried before the
// fractional one or second-shaped literals would sniff as nanosecond.
var timestampLayouts = []struct {
	layout    string
	precision kg.Precision
}{
	{"2006-01-02T15:04:05", kg.PrecisionSecond},
	{"2006-01-02T15:04:05.999999999", kg.PrecisionNanosecond},
	{"2006-01-02T15:04", kg.PrecisionMinute},
	{"2006-01-02T15", kg.PrecisionHour},
	{"2006-01-02", kg.PrecisionDay},
	{"2006-01", kg.PrecisionMonth},
}

// ParseObject parses an object token into a typed value:
//
//	<qname>                node reference
//	"text"                 string
//	"text"@lang            string with language node
//	42, -7                 int64
//	3.5, 1e6               float64
//	42^^<unit>, 3.5^^<u>   numeric with unit node
//	true, false            bool
//	2024-01-02T15:04:05    timestamp; precision follows the literal shape
func ParseObject(tok string) (kg.KGValue, error) {
	if tok == "" {
		return kg.KGValue{}, fmt.Errorf("empty object")
	}

	switch {
	case strings.HasPrefix(tok, "<"):
		id, err := ParseID(tok)
		if err != nil {
			return kg.KGValue{}, err
		}
		return kg.NodeValue(id), nil

	case strings.HasPrefix(tok, `"`):
		return parseStringObject(tok)
	}

	// Unit suffix applies to the numeric and boolean forms.
	body, unit, err := splitUnit(tok)
	if err != nil {
		return kg.KGValue{}, err
	}

	if body == "true" || body == "false" {
		v := kg.BoolValue(body == "true")
		v.Bool.Unit = unit
		return v, nil
	}

	if i, err := strconv.ParseInt(body, 10, 64); err == nil {
		v := kg.IntValue(i)
		v.Int.Unit = unit
		return v, nil
	}

	if f, err := strconv.ParseFloat(body, 64); err == nil && looksNumeric(body) {
		v := kg.FloatValue(f)
		v.Float.Unit = unit
		return v, nil
	}

	if unit == nil {
		for _, tl := range timestampLayouts {
			if t, err := time.Parse(tl.layout, tok); err == nil {
				return kg.TimeValue(t.UTC(), tl.precision), nil
			}
		}
	}

	return kg.KGValue{}, fmt.Errorf("unrecognized object literal %q", tok)
}

func parseStringObject(tok string) (kg.KGValue, error) {
	end := closingQuote(tok)
	if end < 0 {
		return kg.KGValue{}, fmt.Errorf("unterminated string literal %q", tok)
	}
	text, err := strconv.Unquote(tok[:end+1])
	if err != nil {
		return kg.KGValue{}, fmt.Errorf("bad string literal %q: %v", tok, err)
	}

	rest := tok[end+1:]
	if rest == "" {
		return kg.StringValue(text), nil
	}
	if !strings.HasPrefix(rest, "@") || len(rest) < 2 {
		return kg.KGValue{}, fmt.Errorf("trailing garbage after string literal: %q", rest)
	}
	lang, err := ParseID(rest[1:])
	if err != nil {
		return kg.KGValue{}, fmt.Errorf("language tag: %v", err)
	}
	return kg.StringValueLang(text, lang), nil
}

// closingQuote finds the index of the unescaped closing quote, or -1.
func closingQuote(tok string) int {
	for i := 1; i < len(tok); i++ {
		switch tok[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// splitUnit splits an optional ^^<unit> suffix off a literal body.
func splitUnit(tok string) (string, *kg.KGID, error) {
	body, suffix, found := strings.Cut(tok, "^^")
	if !found {
		return tok, nil, nil
	}
	unit, err := ParseID(suffix)
	if err != nil {
		return "", nil, fmt.Errorf("unit: %v", err)
	}
	return body, &unit, nil
}

// looksNumeric guards against ParseFloat accepting exotic spellings such
// as "Inf" or hex floats that the TSV grammar does not admit.
func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '-' || c == '+' || (c >= '0' && c <= '9') || c == '.'
}
