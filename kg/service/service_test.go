package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-kgstore/kg"
	"github.com/wbrown/janus-kgstore/kg/logindex"
	"github.com/wbrown/janus-kgstore/kg/storage"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, opts...)
}

func insertTSV(t *testing.T, s *Service, payload string) InsertResult {
	t.Helper()
	res, err := s.Insert(context.Background(), InsertRequest{Format: "tsv", Facts: payload})
	require.NoError(t, err)
	return res
}

func runQuery(t *testing.T, s *Service, req QueryRequest) []QueryResult {
	t.Helper()
	var chunks []QueryResult
	err := s.Query(context.Background(), req, func(qr QueryResult) error {
		chunks = append(chunks, qr)
		return nil
	})
	require.NoError(t, err)
	return chunks
}

func TestInsertThenQueryAtLeast(t *testing.T) {
	s := newTestService(t)

	res := insertTSV(t, s, "<a>\trdf:type\t<Person>\n")
	require.Equal(t, StatusOK, res.Status, res.Error)
	require.NotZero(t, res.Index)

	chunks := runQuery(t, s, QueryRequest{
		Index: logindex.AtLeastAt(res.Index),
		Query: "SELECT ?x WHERE ?x rdf:type <Person>",
	})
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"x"}, chunks[0].Columns)
	require.Equal(t, 1, chunks[0].NumRows())
	assert.Equal(t, "a", chunks[0].Values[0][0].Node.QName)
	assert.Equal(t, 1, chunks[0].TotalResultSize)
}

func TestInsertParseError(t *testing.T) {
	s := newTestService(t)
	res := insertTSV(t, s, "this is not tsv at all")
	assert.Equal(t, StatusParseError, res.Status)
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, res.Index)

	// Dataset unchanged: still no committed index to read at.
	err := s.Query(context.Background(), QueryRequest{
		Index: logindex.LatestIndex(),
		Query: "SELECT ?x WHERE ?x rdf:type <Person>",
	}, func(QueryResult) error { return nil })
	stage, ok := FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, StageResolve, stage)
}

func TestInsertAtomicRequestTooBig(t *testing.T) {
	s := newTestService(t, WithMaxAtomicFacts(2))

	var b strings.Builder
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, "<s%d>\t<p>\t<o>\n", i)
	}
	res := insertTSV(t, s, b.String())
	assert.Equal(t, StatusAtomicRequestTooBig, res.Status)
	assert.Zero(t, res.Index)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.Facts, "dataset must be unchanged")
	assert.Zero(t, st.Tail)
}

func TestInsertSchemaViolation(t *testing.T) {
	s := newTestService(t)
	res := insertTSV(t, s, "<a>\t<age>\t30\n<b>\t<age>\t\"thirty\"\n")
	assert.Equal(t, StatusSchemaViolation, res.Status)
	assert.Contains(t, res.Error, "age")

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.Facts, "failed insert must not partially commit")
}

func TestInsertIdempotent(t *testing.T) {
	s := newTestService(t)
	payload := "<a>\trdf:type\t<Person>\n"

	first := insertTSV(t, s, payload)
	require.Equal(t, StatusOK, first.Status)
	second := insertTSV(t, s, payload)
	require.Equal(t, StatusOK, second.Status)
	require.NotZero(t, second.Index)

	chunks := runQuery(t, s, QueryRequest{
		Index: logindex.AtLeastAt(second.Index),
		Query: "SELECT ?x WHERE ?x rdf:type <Person>",
	})
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].NumRows(), "re-insert must not duplicate facts")
}

func TestInsertOrderingAcrossIndices(t *testing.T) {
	s := newTestService(t)
	r1 := insertTSV(t, s, "<a>\trdf:type\t<Person>\n")
	r2 := insertTSV(t, s, "<b>\trdf:type\t<Person>\n")
	require.Less(t, r1.Index, r2.Index)

	// Everything from the earlier insert is visible at the later index.
	chunks := runQuery(t, s, QueryRequest{
		Index: logindex.ExactAt(r2.Index),
		Query: "SELECT ?x WHERE ?x rdf:type <Person>",
	})
	assert.Equal(t, 2, chunks[0].NumRows())

	// At the earlier index, only the earlier insert is visible.
	chunks = runQuery(t, s, QueryRequest{
		Index: logindex.ExactAt(r1.Index),
		Query: "SELECT ?x WHERE ?x rdf:type <Person>",
	})
	assert.Equal(t, 1, chunks[0].NumRows())
}

func TestQueryExactNonexistentIndexFails(t *testing.T) {
	s := newTestService(t)
	insertTSV(t, s, "<a>\trdf:type\t<Person>\n")

	err := s.Query(context.Background(), QueryRequest{
		Index: logindex.ExactAt(99),
		Query: "SELECT ?x WHERE ?x rdf:type <Person>",
	}, func(QueryResult) error { return nil })
	stage, ok := FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, StageResolve, stage)
}

func TestQueryParseFailureStage(t *testing.T) {
	s := newTestService(t)
	insertTSV(t, s, "<a>\trdf:type\t<Person>\n")

	err := s.Query(context.Background(), QueryRequest{
		Index: logindex.LatestIndex(),
		Query: "SELEKT gibberish",
	}, func(QueryResult) error { return nil })
	stage, ok := FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, StageParse, stage)
}

func TestQueryChunkingInvariants(t *testing.T) {
	s := newTestService(t)

	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "<s%02d>\trdf:type\t<Person>\n", i)
	}
	res := insertTSV(t, s, b.String())
	require.Equal(t, StatusOK, res.Status)

	chunks := runQuery(t, s, QueryRequest{
		Index:     logindex.LatestIndex(),
		Query:     "SELECT ?x ?t WHERE ?x rdf:type ?t",
		ChunkSize: 3,
	})
	require.Len(t, chunks, 4)

	totalRows := 0
	for _, c := range chunks {
		// Column identity is stable across chunks.
		assert.Equal(t, chunks[0].Columns, c.Columns)
		// Every column in a chunk has the same cell count.
		for _, col := range c.Values {
			assert.Len(t, col, c.NumRows())
		}
		assert.Equal(t, chunks[0].TotalResultSize, c.TotalResultSize)
		assert.Equal(t, chunks[0].Index, c.Index)
		totalRows += c.NumRows()
	}
	assert.Equal(t, 10, totalRows)
	assert.Equal(t, 10, chunks[0].TotalResultSize)
}

func TestQueryLimitOffsetTotal(t *testing.T) {
	s := newTestService(t)
	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "<s%02d>\trdf:type\t<Person>\n", i)
	}
	insertTSV(t, s, b.String())

	chunks := runQuery(t, s, QueryRequest{
		Index: logindex.LatestIndex(),
		Query: "SELECT ?x WHERE ?x rdf:type <Person> LIMIT 4 OFFSET 2",
	})
	rows := 0
	for _, c := range chunks {
		assert.Equal(t, 10, c.TotalResultSize, "total reports the pre-clause count")
		rows += c.NumRows()
	}
	assert.Equal(t, 4, rows)
}

func TestQueryEmptyResultStillCarriesColumns(t *testing.T) {
	s := newTestService(t)
	insertTSV(t, s, "<a>\trdf:type\t<Person>\n")

	chunks := runQuery(t, s, QueryRequest{
		Index: logindex.LatestIndex(),
		Query: "SELECT ?x WHERE ?x rdf:type <Robot>",
	})
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"x"}, chunks[0].Columns)
	assert.Zero(t, chunks[0].NumRows())
	assert.Zero(t, chunks[0].TotalResultSize)
}

func TestQueryCancellationMidStream(t *testing.T) {
	s := newTestService(t)
	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "<s%02d>\trdf:type\t<Person>\n", i)
	}
	insertTSV(t, s, b.String())

	ctx, cancel := context.WithCancel(context.Background())
	seen := 0
	err := s.Query(ctx, QueryRequest{
		Index:     logindex.LatestIndex(),
		Query:     "SELECT ?x WHERE ?x rdf:type <Person>",
		ChunkSize: 2,
	}, func(QueryResult) error {
		seen++
		if seen == 2 {
			cancel()
		}
		return nil
	})
	stage, ok := FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, StageCancelled, stage)
	assert.Equal(t, 2, seen, "no chunk may be emitted after cancellation")
}

func TestWipe(t *testing.T) {
	s := newTestService(t)
	res := insertTSV(t, s, "<a>\trdf:type\t<Person>\n")
	require.Equal(t, StatusOK, res.Status)

	wr, err := s.Wipe(context.Background(), WipeRequest{})
	require.NoError(t, err)
	assert.Equal(t, res.Index, wr.Index)
	assert.Greater(t, wr.AtIndex, wr.Index)

	chunks := runQuery(t, s, QueryRequest{
		Index: logindex.AtLeastAt(wr.AtIndex),
		Query: "SELECT ?x WHERE ?x rdf:type <Person>",
	})
	assert.Zero(t, chunks[0].NumRows(), "dataset must be empty after wipe")
}

func TestWipeGraceCancellation(t *testing.T) {
	s := newTestService(t)
	insertTSV(t, s, "<a>\trdf:type\t<Person>\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Wipe(ctx, WipeRequest{WaitFor: 10 * time.Second})
	require.Error(t, err)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Facts, "cancelled wipe must leave the dataset intact")
}

func TestLegacyLookups(t *testing.T) {
	s := newTestService(t)
	res := insertTSV(t, s,
		"<a>\trdf:type\t<Person>\n<a>\t<name>\t\"Alice\"\n<b>\trdf:type\t<Person>\n")
	require.Equal(t, StatusOK, res.Status)
	spec := logindex.AtLeastAt(res.Index)

	sp, err := s.LookupSP(context.Background(), spec, kg.NewKGID("a"), kg.NewKGID("rdf:type"))
	require.NoError(t, err)
	require.Len(t, sp.Facts, 1)
	assert.Equal(t, "Person", sp.Facts[0].Object.Node.QName)
	assert.Equal(t, res.Index, sp.Index)

	po, err := s.LookupPO(context.Background(), spec,
		kg.NewKGID("rdf:type"), kg.NodeValue(kg.NewKGID("Person")))
	require.NoError(t, err)
	assert.Len(t, po.Facts, 2)

	pred := kg.NewKGID("rdf:type")
	qf, err := s.QueryFacts(context.Background(), spec, storage.Pattern{Predicate: &pred})
	require.NoError(t, err)
	assert.Len(t, qf.Facts, 2)
}

func TestRecentAndLatestRejectExplicitIndex(t *testing.T) {
	s := newTestService(t)
	insertTSV(t, s, "<a>\trdf:type\t<Person>\n")

	idx := uint64(1)
	for _, c := range []logindex.Constraint{logindex.Recent, logindex.Latest} {
		err := s.Query(context.Background(), QueryRequest{
			Index: logindex.Spec{Constraint: c, Index: &idx},
			Query: "SELECT ?x WHERE ?x rdf:type <Person>",
		}, func(QueryResult) error { return nil })
		stage, ok := FailedStage(err)
		require.True(t, ok, "constraint %v must reject explicit index", c)
		assert.Equal(t, StageResolve, stage)
	}
}
