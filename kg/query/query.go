// Package query implements the small SELECT/WHERE pattern language the
// service evaluates against a storage snapshot. The language is
// deliberately minimal: variables, triple patterns joined by shared
// variables, and LIMIT/OFFSET.
package query

import (
	"fmt"

	"github.com/wbrown/janus-kgstore/kg"
)

// Term is one position of a triple pattern: a variable, a node reference,
// or a literal value.
type Term struct {
	Var   string
	ID    *kg.KGID
	Value *kg.KGValue
}

// IsVar reports whether the term is an unbound variable.
func (t Term) IsVar() bool {
	return t.Var != ""
}

func (t Term) String() string {
	switch {
	case t.Var != "":
		return "?" + t.Var
	case t.ID != nil:
		return t.ID.String()
	case t.Value != nil:
		return t.Value.String()
	default:
		return "_"
	}
}

// Pattern is one WHERE clause.
type Pattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

func (p Pattern) String() string {
	return fmt.Sprintf("%s %s %s", p.Subject, p.Predicate, p.Object)
}

// Query is a parsed SELECT query.
type Query struct {
	Select []string
	Where  []Pattern

	Limit     int
	Offset    int
	HasLimit  bool
	HasOffset bool
}

// Rows is a fully evaluated, columnar answer. Total reports the row count
// before LIMIT/OFFSET so chunked deliveries can report it unchanged.
type Rows struct {
	Columns []string
	Rows    [][]kg.KGValue
	Total   int
}
