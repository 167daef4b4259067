// Package facts parses fact payloads submitted to the insert path. Each
// supported format turns a text payload into kg.Fact triples or fails the
// whole payload with a ParseError; there is no partial parse.
package facts

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-kgstore/kg"
)

// ParseError describes a malformed payload. It is a caller-correctable
// business outcome, not an infrastructure failure.
type ParseError struct {
	Format string
	Line   int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("facts: %s line %d: %s", e.Format, e.Line, e.Msg)
	}
	return fmt.Sprintf("facts: %s: %s", e.Format, e.Msg)
}

type parseFunc func(text string) ([]kg.Fact, error)

var formats = map[string]parseFunc{
	"tsv": parseTSV,
}

// Parse parses a payload under the named format. Unknown formats are
// reported as a ParseError so the insert contract can surface them the
// same way as malformed payloads.
func Parse(format, text string) ([]kg.Fact, error) {
	parse, ok := formats[format]
	if !ok {
		return nil, &ParseError{Format: format, Msg: "unknown fact format"}
	}
	return parse(text)
}

// parseTSV parses tab-separated subject/predicate/object lines. Blank
// lines and #-comments are skipped.
func parseTSV(text string) ([]kg.Fact, error) {
	var out []kg.Fact
	for n, line := range strings.Split(text, "\n") {
		lineNo := n + 1
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		cols := strings.Split(line, "\t")
		if len(cols) != 3 {
			return nil, &ParseError{Format: "tsv", Line: lineNo,
				Msg: fmt.Sprintf("expected 3 tab-separated fields, got %d", len(cols))}
		}

		subject, err := ParseID(strings.TrimSpace(cols[0]))
		if err != nil {
			return nil, &ParseError{Format: "tsv", Line: lineNo, Msg: fmt.Sprintf("subject: %v", err)}
		}
		predicate, err := ParseID(strings.TrimSpace(cols[1]))
		if err != nil {
			return nil, &ParseError{Format: "tsv", Line: lineNo, Msg: fmt.Sprintf("predicate: %v", err)}
		}
		object, err := ParseObject(strings.TrimSpace(cols[2]))
		if err != nil {
			return nil, &ParseError{Format: "tsv", Line: lineNo, Msg: fmt.Sprintf("object: %v", err)}
		}

		fact := kg.Fact{Subject: subject, Predicate: predicate, Object: object}
		if err := fact.Validate(); err != nil {
			return nil, &ParseError{Format: "tsv", Line: lineNo, Msg: err.Error()}
		}
		out = append(out, fact)
	}
	if len(out) == 0 {
		return nil, &ParseError{Format: "tsv", Msg: "payload contains no facts"}
	}
	return out, nil
}
