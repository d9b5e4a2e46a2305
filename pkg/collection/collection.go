// Package collection is the thin external collaborator described in §6 and
// §9 of the design: it is not part of the durability core, but the one
// caller-facing layer most programs actually use. It adds collection-
// prefixed ids, auto-ID generation, and name-driven findBy dispatch on top
// of a single shared *dikkidb.Database.
package collection

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/namankumar80510/dikkidb/internal/dikkidb"
	"github.com/namankumar80510/dikkidb/internal/docmodel"
	"github.com/namankumar80510/dikkidb/internal/query"
)

// Registry opens collection handles against one shared Database. It
// mirrors the source system's runtime attribute-based collection
// switching as an explicit handle, per the design notes' resolution of
// that dynamic-dispatch question.
type Registry struct {
	db      *dikkidb.Database
	catalog *Catalog // optional; nil when no durable catalog was configured
}

// NewRegistry wraps db. catalog may be nil, in which case collections are
// not durably tracked across restarts — auto-ids still work, but the
// Catalog's Names() listing is unavailable.
func NewRegistry(db *dikkidb.Database, catalog *Catalog) *Registry {
	return &Registry{db: db, catalog: catalog}
}

// Collection returns a handle for name, registering it in the catalog if
// one is configured.
func (r *Registry) Collection(name string) (*Collection, error) {
	if r.catalog != nil {
		if err := r.catalog.Register(name); err != nil {
			return nil, err
		}
	}

	c := &Collection{
		name:    name,
		db:      r.db,
		catalog: r.catalog,
	}
	engine, err := query.New(collectionSource{c}, 256)
	if err != nil {
		return nil, err
	}
	c.query = engine
	return c, nil
}

// Collection is a handle scoped to one collection name: every id it
// touches is transparently prefixed "<name>:<id>" in the underlying
// Database, and All/FindBy only ever see this collection's documents.
type Collection struct {
	name    string
	db      *dikkidb.Database
	catalog *Catalog
	query   *query.Engine
}

func (c *Collection) prefixed(id string) string {
	return c.name + ":" + id
}

// Put writes doc under id, scoped to this collection.
func (c *Collection) Put(id string, doc docmodel.Document) error {
	if err := c.db.Put(c.prefixed(id), doc); err != nil {
		return err
	}
	c.query.Invalidate()
	return nil
}

// PutAuto mints a fresh id (a collection-scoped monotonic counter when a
// Catalog is configured, otherwise a random UUID) and writes doc under it,
// returning the id it chose.
func (c *Collection) PutAuto(doc docmodel.Document) (string, error) {
	id, err := c.nextAutoID()
	if err != nil {
		return "", err
	}
	if err := c.Put(id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Collection) nextAutoID() (string, error) {
	if c.catalog == nil {
		return uuid.NewString(), nil
	}
	n, err := c.catalog.NextAutoID(c.name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n), nil
}

// Get reads id back, scoped to this collection.
func (c *Collection) Get(id string) (docmodel.Document, bool, error) {
	return c.db.Get(c.prefixed(id))
}

// Delete removes id, scoped to this collection.
func (c *Collection) Delete(id string) error {
	if err := c.db.Delete(c.prefixed(id)); err != nil {
		return err
	}
	c.query.Invalidate()
	return nil
}

// FindBy is the explicit replacement for the source system's name-driven
// findByField dispatch: it resolves field/value against this collection's
// lazily built secondary index.
func (c *Collection) FindBy(field string, value interface{}) ([]query.Match, error) {
	return c.query.FindBy(field, value)
}

// All returns every live document in this collection, unfiltered. It reads
// straight through collectionSource rather than the query engine's cache,
// since a full scan isn't a predicate worth caching.
func (c *Collection) All() ([]query.Match, error) {
	cursor, err := (collectionSource{c}).Iterate()
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var matches []query.Match
	for {
		id, doc, ok, err := cursor.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return matches, nil
		}
		matches = append(matches, query.Match{ID: id, Document: doc})
	}
}

// collectionSource adapts Collection to query.Source, stripping the
// collection prefix and filtering out ids belonging to other collections
// so a shared Database's Iterate doesn't leak cross-collection documents
// into this collection's query results.
type collectionSource struct {
	c *Collection
}

func (s collectionSource) Iterate() (query.Cursor, error) {
	cursor, err := s.c.db.Iterate()
	if err != nil {
		return nil, err
	}
	return &scopedCursor{cursor: cursor, prefix: s.c.name + ":"}, nil
}

type scopedCursor struct {
	cursor interface {
		Next() (string, docmodel.Document, bool, error)
		Close() error
	}
	prefix string
}

func (s *scopedCursor) Next() (string, docmodel.Document, bool, error) {
	for {
		id, doc, ok, err := s.cursor.Next()
		if err != nil || !ok {
			return "", nil, false, err
		}
		if len(id) <= len(s.prefix) || id[:len(s.prefix)] != s.prefix {
			continue
		}
		return id[len(s.prefix):], doc, true, nil
	}
}

func (s *scopedCursor) Close() error {
	return s.cursor.Close()
}
