package storage

import (
	"context"
	"testing"

	"github.com/wbrown/janus-kgstore/kg"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fact(s, p, o string) kg.Fact {
	return kg.Fact{
		Subject:   kg.NewKGID(s),
		Predicate: kg.NewKGID(p),
		Object:    kg.NodeValue(kg.NewKGID(o)),
	}
}

func collect(t *testing.T, it *Iterator) []kg.Fact {
	t.Helper()
	defer it.Close()
	var out []kg.Fact
	for it.Next() {
		out = append(out, it.Fact())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	return out
}

func TestAppendAndMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	idx, err := s.AppendFacts(ctx, []kg.Fact{
		fact("ex:alice", "rdf:type", "ex:Person"),
		fact("ex:bob", "rdf:type", "ex:Person"),
		fact("ex:alice", "ex:knows", "ex:bob"),
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if idx != 1 {
		t.Errorf("first commit should be index 1, got %d", idx)
	}

	snap, err := s.Snapshot(idx)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	defer snap.Release()

	pred := kg.NewKGID("rdf:type")
	obj := kg.NodeValue(kg.NewKGID("ex:Person"))
	people := collect(t, snap.Match(Pattern{Predicate: &pred, Object: &obj}))
	if len(people) != 2 {
		t.Errorf("expected 2 people, got %d", len(people))
	}

	subj := kg.NewKGID("ex:alice")
	alice := collect(t, snap.Match(Pattern{Subject: &subj}))
	if len(alice) != 2 {
		t.Errorf("expected 2 facts about alice, got %d", len(alice))
	}
}

func TestVisibilityIsAsOf(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	i1, err := s.AppendFacts(ctx, []kg.Fact{fact("ex:a", "ex:p", "ex:b")})
	if err != nil {
		t.Fatal(err)
	}
	i2, err := s.AppendFacts(ctx, []kg.Fact{fact("ex:c", "ex:p", "ex:d")})
	if err != nil {
		t.Fatal(err)
	}
	if i2 <= i1 {
		t.Fatalf("indices must be monotonic: %d then %d", i1, i2)
	}

	// At i1, the second fact is invisible.
	snap1, err := s.Snapshot(i1)
	if err != nil {
		t.Fatal(err)
	}
	defer snap1.Release()
	if got := collect(t, snap1.Match(Pattern{})); len(got) != 1 {
		t.Errorf("expected 1 fact at index %d, got %d", i1, len(got))
	}

	// At i2, everything visible at i1 remains visible.
	snap2, err := s.Snapshot(i2)
	if err != nil {
		t.Fatal(err)
	}
	defer snap2.Release()
	if got := collect(t, snap2.Match(Pattern{})); len(got) != 2 {
		t.Errorf("expected 2 facts at index %d, got %d", i2, len(got))
	}
}

func TestReinsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []kg.Fact{fact("ex:a", "rdf:type", "ex:Person")}
	if _, err := s.AppendFacts(ctx, batch); err != nil {
		t.Fatal(err)
	}
	idx, err := s.AppendFacts(ctx, batch)
	if err != nil {
		t.Fatalf("re-insert must succeed: %v", err)
	}
	if idx == 0 {
		t.Error("re-insert must return a valid index")
	}

	snap, err := s.Snapshot(idx)
	if err != nil {
		t.Fatal(err)
	}
	defer snap.Release()
	if got := collect(t, snap.Match(Pattern{})); len(got) != 1 {
		t.Errorf("re-insert duplicated facts: %d observable", len(got))
	}
}

func TestSnapshotAtNonexistentIndex(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Snapshot(0); err == nil {
		t.Error("snapshot at index 0 should fail")
	}
	if _, err := s.Snapshot(99); err == nil {
		t.Error("snapshot beyond tail should fail")
	}
	if _, err := s.AppendFacts(context.Background(), []kg.Fact{fact("ex:a", "ex:p", "ex:b")}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Snapshot(1); err != nil {
		t.Errorf("snapshot at committed index should succeed: %v", err)
	}
}

func TestWipeDeletesEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	last, err := s.AppendFacts(ctx, []kg.Fact{
		fact("ex:a", "ex:p", "ex:b"),
		fact("ex:c", "ex:p", "ex:d"),
	})
	if err != nil {
		t.Fatal(err)
	}

	before, at, err := s.Wipe(ctx)
	if err != nil {
		t.Fatalf("wipe failed: %v", err)
	}
	if before != last {
		t.Errorf("wipe reported before=%d, want %d", before, last)
	}
	if at != last+1 {
		t.Errorf("wipe reported at=%d, want %d", at, last+1)
	}

	snap, err := s.Snapshot(at)
	if err != nil {
		t.Fatal(err)
	}
	defer snap.Release()
	if got := collect(t, snap.Match(Pattern{})); len(got) != 0 {
		t.Errorf("dataset should be empty after wipe, got %d facts", len(got))
	}

	// New commits after the wipe are visible again.
	idx, err := s.AppendFacts(ctx, []kg.Fact{fact("ex:new", "ex:p", "ex:v")})
	if err != nil {
		t.Fatal(err)
	}
	snap2, err := s.Snapshot(idx)
	if err != nil {
		t.Fatal(err)
	}
	defer snap2.Release()
	if got := collect(t, snap2.Match(Pattern{})); len(got) != 1 {
		t.Errorf("expected 1 fact after post-wipe insert, got %d", len(got))
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.AppendFacts(ctx, []kg.Fact{
		fact("ex:a", "ex:p", "ex:b"),
		fact("ex:c", "ex:p", "ex:d"),
	}); err != nil {
		t.Fatal(err)
	}
	st, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Facts != 2 {
		t.Errorf("expected 2 facts, got %d", st.Facts)
	}
	if st.Tail != 1 {
		t.Errorf("expected tail 1, got %d", st.Tail)
	}
}

func TestObjectLiteralMatching(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	age := kg.Fact{
		Subject:   kg.NewKGID("ex:alice"),
		Predicate: kg.NewKGID("ex:age"),
		Object:    kg.IntValue(30),
	}
	if _, err := s.AppendFacts(ctx, []kg.Fact{age, fact("ex:alice", "rdf:type", "ex:Person")}); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Snapshot(1)
	if err != nil {
		t.Fatal(err)
	}
	defer snap.Release()

	obj := kg.IntValue(30)
	got := collect(t, snap.Match(Pattern{Object: &obj}))
	if len(got) != 1 {
		t.Fatalf("expected 1 fact with object 30, got %d", len(got))
	}
	if !got[0].Equal(age) {
		t.Errorf("matched wrong fact: %v", got[0])
	}
}
