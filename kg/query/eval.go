package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/wbrown/janus-kgstore/kg"
	"github.com/wbrown/janus-kgstore/kg/storage"
)

// Evaluate runs a parsed query against one snapshot. The snapshot is the
// immutable as-of boundary for the whole evaluation; Evaluate never
// touches the store directly. Rows come back in a deterministic sort
// order so chunked delivery is stable.
func Evaluate(ctx context.Context, q *Query, snap *storage.Snapshot) (*Rows, error) {
	binding := map[string]kg.KGValue{}
	var rows [][]kg.KGValue

	var walk func(depth int) error
	walk = func(depth int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if depth == len(q.Where) {
			row := make([]kg.KGValue, len(q.Select))
			for i, v := range q.Select {
				row[i] = binding[v]
			}
			rows = append(rows, row)
			return nil
		}

		pat := q.Where[depth]
		sp, ok := storagePattern(pat, binding)
		if !ok {
			// A bound variable holds a value this position cannot
			// take (e.g. a literal in subject position).
			return nil
		}

		it := snap.Match(sp)
		defer it.Close()
		for it.Next() {
			fact := it.Fact()
			undo := bindFact(pat, fact, binding)
			if undo == nil {
				continue
			}
			if err := walk(depth + 1); err != nil {
				return err
			}
			undo()
		}
		return it.Err()
	}

	if err := walk(0); err != nil {
		return nil, err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for c := range rows[i] {
			if cmp := kg.SortCompare(rows[i][c], rows[j][c]); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})

	total := len(rows)
	if q.HasOffset {
		if q.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[q.Offset:]
		}
	}
	if q.HasLimit && q.Limit < len(rows) {
		rows = rows[:q.Limit]
	}

	return &Rows{Columns: q.Select, Rows: rows, Total: total}, nil
}

// storagePattern lowers a pattern under the current binding to a storage
// scan. ok is false when a binding makes the pattern unsatisfiable.
func storagePattern(p Pattern, binding map[string]kg.KGValue) (storage.Pattern, bool) {
	var sp storage.Pattern

	id, ok := nodePosition(p.Subject, binding)
	if !ok {
		return sp, false
	}
	sp.Subject = id

	id, ok = nodePosition(p.Predicate, binding)
	if !ok {
		return sp, false
	}
	sp.Predicate = id

	switch {
	case p.Object.IsVar():
		if v, bound := binding[p.Object.Var]; bound {
			sp.Object = &v
		}
	case p.Object.Value != nil:
		sp.Object = p.Object.Value
	}
	return sp, true
}

// nodePosition resolves a subject/predicate term: constants pass through,
// bound variables must hold a node.
func nodePosition(t Term, binding map[string]kg.KGValue) (*kg.KGID, bool) {
	if !t.IsVar() {
		return t.ID, true
	}
	v, bound := binding[t.Var]
	if !bound {
		return nil, true
	}
	if v.Kind() != kg.KindNode {
		return nil, false
	}
	return v.Node, true
}

// bindFact extends the binding with the fact's values for the pattern's
// unbound variables. It returns an undo closure, or nil when an
// already-bound variable disagrees with the fact.
func bindFact(p Pattern, f kg.Fact, binding map[string]kg.KGValue) func() {
	type entry struct{ name string }
	var added []entry

	bind := func(name string, v kg.KGValue) bool {
		if old, ok := binding[name]; ok {
			return kg.Equal(old, v)
		}
		binding[name] = v
		added = append(added, entry{name})
		return true
	}

	ok := true
	if p.Subject.IsVar() {
		ok = bind(p.Subject.Var, kg.NodeValue(f.Subject))
	}
	if ok && p.Predicate.IsVar() {
		ok = bind(p.Predicate.Var, kg.NodeValue(f.Predicate))
	}
	if ok && p.Object.IsVar() {
		ok = bind(p.Object.Var, f.Object)
	}
	if !ok {
		for _, e := range added {
			delete(binding, e.name)
		}
		return nil
	}
	return func() {
		for _, e := range added {
			delete(binding, e.name)
		}
	}
}

// ParseAndEvaluate is the convenience entry point the service uses.
func ParseAndEvaluate(ctx context.Context, text string, snap *storage.Snapshot) (*Rows, error) {
	q, err := Parse(text)
	if err != nil {
		return nil, err
	}
	rows, err := Evaluate(ctx, q, snap)
	if err != nil {
		return nil, fmt.Errorf("query: evaluating: %w", err)
	}
	return rows, nil
}
