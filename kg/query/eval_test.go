package query

import (
	"context"
	"testing"

	"github.com/wbrown/janus-kgstore/kg"
	"github.com/wbrown/janus-kgstore/kg/storage"
)

func seedStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	node := func(q string) kg.KGValue { return kg.NodeValue(kg.NewKGID(q)) }
	factsToAdd := []kg.Fact{
		{Subject: kg.NewKGID("ex:alice"), Predicate: kg.NewKGID("rdf:type"), Object: node("ex:Person")},
		{Subject: kg.NewKGID("ex:bob"), Predicate: kg.NewKGID("rdf:type"), Object: node("ex:Person")},
		{Subject: kg.NewKGID("ex:acme"), Predicate: kg.NewKGID("rdf:type"), Object: node("ex:Company")},
		{Subject: kg.NewKGID("ex:alice"), Predicate: kg.NewKGID("ex:knows"), Object: node("ex:bob")},
		{Subject: kg.NewKGID("ex:alice"), Predicate: kg.NewKGID("ex:age"), Object: kg.IntValue(30)},
		{Subject: kg.NewKGID("ex:bob"), Predicate: kg.NewKGID("ex:age"), Object: kg.IntValue(25)},
	}
	if _, err := s.AppendFacts(context.Background(), factsToAdd); err != nil {
		t.Fatal(err)
	}
	return s
}

func mustSnapshot(t *testing.T, s *storage.Store) *storage.Snapshot {
	t.Helper()
	snap, err := s.Snapshot(1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(snap.Release)
	return snap
}

func TestEvaluateSinglePattern(t *testing.T) {
	s := seedStore(t)
	snap := mustSnapshot(t, s)

	rows, err := ParseAndEvaluate(context.Background(),
		"SELECT ?x WHERE ?x rdf:type <ex:Person>", snap)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(rows.Columns) != 1 || rows.Columns[0] != "x" {
		t.Errorf("unexpected columns: %v", rows.Columns)
	}
	if len(rows.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows.Rows))
	}
	// Deterministic order: alice before bob by qName.
	if rows.Rows[0][0].Node.QName != "ex:alice" {
		t.Errorf("expected ex:alice first, got %v", rows.Rows[0][0])
	}
	if rows.Total != 2 {
		t.Errorf("expected total 2, got %d", rows.Total)
	}
}

func TestEvaluateJoin(t *testing.T) {
	s := seedStore(t)
	snap := mustSnapshot(t, s)

	rows, err := ParseAndEvaluate(context.Background(),
		"SELECT ?who ?age WHERE ?who rdf:type <ex:Person> . ?who ex:age ?age", snap)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(rows.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows.Rows))
	}
	for _, row := range rows.Rows {
		if row[0].Kind() != kg.KindNode || row[1].Kind() != kg.KindInt64 {
			t.Errorf("unexpected row shape: %v", row)
		}
	}
}

func TestEvaluateBoundObjectJoin(t *testing.T) {
	s := seedStore(t)
	snap := mustSnapshot(t, s)

	rows, err := ParseAndEvaluate(context.Background(),
		"SELECT ?friend WHERE <ex:alice> ex:knows ?friend . ?friend rdf:type <ex:Person>", snap)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows.Rows))
	}
	if rows.Rows[0][0].Node.QName != "ex:bob" {
		t.Errorf("expected ex:bob, got %v", rows.Rows[0][0])
	}
}

func TestEvaluateLimitOffset(t *testing.T) {
	s := seedStore(t)
	snap := mustSnapshot(t, s)

	rows, err := ParseAndEvaluate(context.Background(),
		"SELECT ?s ?o WHERE ?s rdf:type ?o LIMIT 2 OFFSET 1", snap)
	if err != nil {
		t.Fatal(err)
	}
	if rows.Total != 3 {
		t.Errorf("total must report the pre-clause count, got %d", rows.Total)
	}
	if len(rows.Rows) != 2 {
		t.Errorf("expected 2 rows after limit/offset, got %d", len(rows.Rows))
	}
}

func TestEvaluateCancellation(t *testing.T) {
	s := seedStore(t)
	snap := mustSnapshot(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ParseAndEvaluate(ctx, "SELECT ?x WHERE ?x rdf:type <ex:Person>", snap); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"WHERE ?x rdf:type <ex:Person>",
		"SELECT WHERE ?x rdf:type <ex:Person>",
		"SELECT ?x WHERE",
		"SELECT ?x WHERE ?x rdf:type",
		"SELECT ?y WHERE ?x rdf:type <ex:Person>",
		"SELECT ?x WHERE ?x rdf:type <ex:Person> LIMIT nope",
	}
	for _, q := range bad {
		if _, err := Parse(q); err == nil {
			t.Errorf("expected parse error for %q", q)
		}
	}
}

func TestParseStringLiteralObject(t *testing.T) {
	q, err := Parse(`SELECT ?s WHERE ?s ex:name "Alice Smith"`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	obj := q.Where[0].Object
	if obj.Value == nil || obj.Value.Kind() != kg.KindString {
		t.Fatalf("expected string object, got %v", obj)
	}
	if obj.Value.Str.Value != "Alice Smith" {
		t.Errorf("unexpected string value %q", obj.Value.Str.Value)
	}
}
