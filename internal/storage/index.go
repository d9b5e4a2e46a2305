package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	storeerrors "github.com/namankumar80510/dikkidb/internal/errors"
)

// index is the in-memory primary index: DocumentId -> byte offset of its
// latest Record in data.db. It is snapshotted to disk every flushInterval
// mutations via an atomic temp-file-then-rename replace, so a crash between
// snapshots loses at most flushInterval-1 mutations' worth of index state —
// harmless, since the WAL replays them back in on the next startup.
type index struct {
	mu   sync.RWMutex
	path string

	offsets map[string]int64
	dirty   int
	flushEvery int
}

func newIndex(path string, flushEvery int) *index {
	if flushEvery <= 0 {
		flushEvery = 1000
	}
	return &index{
		path:       path,
		offsets:    make(map[string]int64),
		flushEvery: flushEvery,
	}
}

// load reads an existing snapshot, if any. A missing file is not an error —
// it means a fresh store.
func (ix *index) load() error {
	raw, err := os.ReadFile(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %s: %v", storeerrors.ErrFileRead, ix.path, err)
	}
	if len(raw) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	return json.Unmarshal(raw, &ix.offsets)
}

// set records id's current offset and persists a snapshot once flushEvery
// mutations have accumulated.
func (ix *index) set(id string, offset int64) error {
	ix.mu.Lock()
	ix.offsets[id] = offset
	ix.dirty++
	shouldFlush := ix.dirty >= ix.flushEvery
	ix.mu.Unlock()

	if shouldFlush {
		return ix.persist()
	}
	return nil
}

// delete removes id from the index and persists the snapshot immediately,
// per §4.3: deletes are not batched behind flushEvery.
func (ix *index) delete(id string) error {
	ix.mu.Lock()
	delete(ix.offsets, id)
	ix.mu.Unlock()
	return ix.persist()
}

// get returns id's offset and whether it is present.
func (ix *index) get(id string) (int64, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	off, ok := ix.offsets[id]
	return off, ok
}

// ids returns a snapshot of every id currently indexed, used to seed the
// bloom filter on startup.
func (ix *index) ids() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.offsets))
	for id := range ix.offsets {
		out = append(out, id)
	}
	return out
}

// persist snapshots the index to disk by writing to a temp file in the same
// directory and renaming over the target, so a reader never observes a
// partially written snapshot.
func (ix *index) persist() error {
	ix.mu.Lock()
	raw, err := json.Marshal(ix.offsets)
	ix.dirty = 0
	ix.mu.Unlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(ix.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(ix.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", storeerrors.ErrFileOpen, ix.path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %v", storeerrors.ErrFileWrite, ix.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %v", storeerrors.ErrFileSync, ix.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %v", storeerrors.ErrFileSync, ix.path, err)
	}
	if err := os.Rename(tmpPath, ix.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %v", storeerrors.ErrFileRename, ix.path, err)
	}
	return nil
}
