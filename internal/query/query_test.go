package query

import (
	"testing"

	"github.com/namankumar80510/dikkidb/internal/docmodel"
)

type fakeSource struct {
	docs []Match
}

type fakeCursor struct {
	docs []Match
	idx  int
}

func (s *fakeSource) Iterate() (Cursor, error) {
	return &fakeCursor{docs: s.docs}, nil
}

func (c *fakeCursor) Next() (string, docmodel.Document, bool, error) {
	if c.idx >= len(c.docs) {
		return "", nil, false, nil
	}
	m := c.docs[c.idx]
	c.idx++
	return m.ID, m.Document, true, nil
}

func (c *fakeCursor) Close() error { return nil }

func newFakeEngine(t *testing.T, docs []Match) *Engine {
	t.Helper()
	e, err := New(&fakeSource{docs: docs}, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestEngine_FindByEquality(t *testing.T) {
	e := newFakeEngine(t, []Match{
		{ID: "a", Document: docmodel.Document{"status": "active"}},
		{ID: "b", Document: docmodel.Document{"status": "retired"}},
		{ID: "c", Document: docmodel.Document{"status": "active"}},
	})

	matches, err := e.FindBy("status", "active")
	if err != nil {
		t.Fatalf("FindBy: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
}

func TestEngine_RangePredicates(t *testing.T) {
	e := newFakeEngine(t, []Match{
		{ID: "a", Document: docmodel.Document{"age": float64(10)}},
		{ID: "b", Document: docmodel.Document{"age": float64(20)}},
		{ID: "c", Document: docmodel.Document{"age": float64(30)}},
	})

	lt, err := e.Find(Predicate{Field: "age", Op: OpLessThan, Value: float64(25)})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(lt) != 2 {
		t.Fatalf("OpLessThan matches = %d, want 2", len(lt))
	}

	gt, err := e.Find(Predicate{Field: "age", Op: OpGreaterThan, Value: float64(15)})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(gt) != 2 {
		t.Fatalf("OpGreaterThan matches = %d, want 2", len(gt))
	}
}

func TestEngine_ContainsPredicate(t *testing.T) {
	e := newFakeEngine(t, []Match{
		{ID: "a", Document: docmodel.Document{"name": "alpha-test"}},
		{ID: "b", Document: docmodel.Document{"name": "beta"}},
	})

	matches, err := e.Find(Predicate{Field: "name", Op: OpContains, Value: "test"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "a" {
		t.Fatalf("matches = %+v, want just \"a\"", matches)
	}
}

func TestEngine_ResultsAreCachedUntilInvalidate(t *testing.T) {
	source := &fakeSource{docs: []Match{
		{ID: "a", Document: docmodel.Document{"status": "active"}},
	}}
	e, err := New(source, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := e.FindBy("status", "active"); err != nil {
		t.Fatalf("FindBy: %v", err)
	}

	// Mutate the underlying source without going through the engine: a
	// cached query must not see it until Invalidate.
	source.docs = append(source.docs, Match{ID: "b", Document: docmodel.Document{"status": "active"}})

	cached, err := e.FindBy("status", "active")
	if err != nil {
		t.Fatalf("FindBy (cached): %v", err)
	}
	if len(cached) != 1 {
		t.Fatalf("cached matches = %d, want 1 (stale cache)", len(cached))
	}

	e.Invalidate()
	fresh, err := e.FindBy("status", "active")
	if err != nil {
		t.Fatalf("FindBy (after invalidate): %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("fresh matches = %d, want 2", len(fresh))
	}
}

func TestEngine_MissingFieldNeverMatches(t *testing.T) {
	e := newFakeEngine(t, []Match{
		{ID: "a", Document: docmodel.Document{"other": "value"}},
	})

	matches, err := e.FindBy("status", "active")
	if err != nil {
		t.Fatalf("FindBy: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("matches = %d, want 0", len(matches))
	}
}
