package storage

import (
	"container/list"
	"sync"

	"github.com/namankumar80510/dikkidb/internal/docmodel"
)

// fifoCache is a bounded, insertion-ordered DocumentId -> Document map.
// Eviction is FIFO by insertion order, not LRU: a hit does not move an
// entry to the back of the queue. §9 notes the reference's "LRU" naming is
// a misnomer and leaves the choice open; FIFO is what's implemented here.
type fifoCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	id  string
	doc docmodel.Document
}

func newFIFOCache(capacity int) *fifoCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &fifoCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// get returns the cached document for id, if present. A hit does not
// reorder the entry.
func (c *fifoCache) get(id string) (docmodel.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return el.Value.(*cacheEntry).doc, true
}

// put inserts or overwrites id's document at the tail of the queue,
// evicting from the head while over capacity. Overwriting an existing id
// does not change its position.
func (c *fifoCache) put(id string, doc docmodel.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[id]; ok {
		el.Value.(*cacheEntry).doc = doc
		return
	}

	el := c.order.PushBack(&cacheEntry{id: id, doc: doc})
	c.entries[id] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).id)
	}
}

// remove evicts id, if present, ahead of its natural FIFO turn.
func (c *fifoCache) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[id]
	if !ok {
		return
	}
	c.order.Remove(el)
	delete(c.entries, id)
}
