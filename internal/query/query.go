// Package query implements the secondary-index/query engine referenced by
// §6 as an external collaborator: an in-memory linear scan over a
// Database's live documents with range and substring predicates. It is not
// part of the core's durability story — the index it builds is rebuilt
// from scratch on every process start by walking Iterate(), and holds no
// lock of its own beyond what Database.Iterate already takes.
package query

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/namankumar80510/dikkidb/internal/docmodel"
)

// Source is the subset of the Database façade the query engine depends on.
// Satisfied by *dikkidb.Database; kept as an interface here so this
// package never imports the core (avoiding the cycle §9 warns against for
// WAL/StorageEngine, generalized to every external collaborator).
type Source interface {
	Iterate() (Cursor, error)
}

// Cursor matches dikkidb.Cursor's shape without importing it.
type Cursor interface {
	Next() (string, docmodel.Document, bool, error)
	Close() error
}

// Op is a comparison a predicate applies to a field's value.
type Op int

const (
	OpEqual Op = iota
	OpLessThan
	OpGreaterThan
	OpContains // substring match; operand and field value must both be strings
)

// Predicate selects documents whose field compares to value under op.
type Predicate struct {
	Field string
	Op    Op
	Value interface{}
}

// Engine runs predicate scans over a Source, caching each distinct
// predicate's result set in a bounded LRU so a repeated findBy (the
// wrapper's common access pattern — the same field/value pair queried
// across many requests) skips the scan entirely until the next
// Invalidate.
type Engine struct {
	source Source
	cache  *lru.Cache[string, []Match]
}

// Match is one (id, document) pair selected by a predicate.
type Match struct {
	ID       string
	Document docmodel.Document
}

// New builds a query engine over source with a result cache sized for
// cacheSize distinct predicates.
func New(source Source, cacheSize int) (*Engine, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, []Match](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{source: source, cache: cache}, nil
}

// FindBy runs a single equality predicate — the common case behind the
// wrapper's runtime-dispatched findBy(field, value) call.
func (e *Engine) FindBy(field string, value interface{}) ([]Match, error) {
	return e.Find(Predicate{Field: field, Op: OpEqual, Value: value})
}

// Find scans every live document, returning those matching p. Results are
// cached by the predicate's cache key until Invalidate is called.
func (e *Engine) Find(p Predicate) ([]Match, error) {
	key := cacheKey(p)
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	cursor, err := e.source.Iterate()
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var matches []Match
	for {
		id, doc, ok, err := cursor.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if matchesPredicate(doc, p) {
			matches = append(matches, Match{ID: id, Document: doc})
		}
	}

	e.cache.Add(key, matches)
	return matches, nil
}

// Invalidate drops every cached result set. Callers should invalidate
// after a write that could change membership in an outstanding query.
func (e *Engine) Invalidate() {
	e.cache.Purge()
}

func matchesPredicate(doc docmodel.Document, p Predicate) bool {
	actual, ok := doc[p.Field]
	if !ok {
		return false
	}

	switch p.Op {
	case OpEqual:
		return actual == p.Value
	case OpLessThan:
		a, b, ok := numericPair(actual, p.Value)
		return ok && a < b
	case OpGreaterThan:
		a, b, ok := numericPair(actual, p.Value)
		return ok && a > b
	case OpContains:
		as, aok := actual.(string)
		bs, bok := p.Value.(string)
		return aok && bok && strings.Contains(as, bs)
	default:
		return false
	}
}

// numericPair coerces two interface{} field values to float64 for ordered
// comparison. Documents are decoded from JSON, so numbers already arrive
// as float64; this also accepts a query-side operand given as an int.
func numericPair(a, b interface{}) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func cacheKey(p Predicate) string {
	var b strings.Builder
	b.WriteString(p.Field)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(int(p.Op)))
	b.WriteByte('|')
	b.WriteString(toString(p.Value))
	return b.String()
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return "s:" + t
	case float64:
		return "f:" + strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%T:%v", t, t)
	}
}
