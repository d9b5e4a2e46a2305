package dikkidb

import (
	"github.com/namankumar80510/dikkidb/internal/docmodel"
	"github.com/namankumar80510/dikkidb/internal/storage"
)

// Cursor is the lazy, single-use sequence of (id, document) pairs returned
// by Database.Iterate. Unlike the underlying StorageEngine cursor, it
// suppresses superseded Records — only the live Record for each id is
// yielded — per the design notes' resolution of the iteration dedup
// question.
type Cursor struct {
	it *storage.Iterator
	se *storage.StorageEngine
}

// Next returns the next live (id, document) pair, or ("", nil, false, nil)
// once exhausted.
func (c *Cursor) Next() (string, docmodel.Document, bool, error) {
	for {
		id, doc, ok, err := c.it.Next()
		if err != nil || !ok {
			return "", nil, false, err
		}
		if !c.se.IsCurrent(id, c.it.Offset()) {
			continue
		}
		return id, doc, true, nil
	}
}

// Close releases the cursor's file handle and shared lock.
func (c *Cursor) Close() error {
	return c.it.Close()
}
