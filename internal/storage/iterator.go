package storage

import (
	"os"

	"github.com/namankumar80510/dikkidb/internal/docmodel"
	"github.com/namankumar80510/dikkidb/internal/lockfile"
)

// Iterator is a lazy, single-use, forward-only cursor over data.db,
// produced by StorageEngine.Iterate. It holds a shared lock and a file
// handle for its lifetime; Close releases both.
type Iterator struct {
	se      *StorageEngine
	file    *os.File
	lock    *lockfile.Lock
	scanner scannerLike
	closed  bool

	offset     int64 // bytes consumed so far
	lastOffset int64 // start offset of the most recently returned record
}

// scannerLike is the subset of *bufio.Scanner the iterator uses.
type scannerLike interface {
	Scan() bool
	Bytes() []byte
	Err() error
}

// Next returns the next (id, document) pair, or ("", nil, false, nil) once
// the file is exhausted. Records whose id is tombstoned are skipped;
// superseded (non-live) Records are still emitted, per §4.3 — the core
// doesn't deduplicate by offset during iteration.
func (it *Iterator) Next() (string, docmodel.Document, bool, error) {
	for it.scanner.Scan() {
		line := it.scanner.Bytes()
		startOffset := it.offset
		it.offset += int64(len(line)) + 1 // +1 for the newline the scanner strips
		if len(line) == 0 {
			continue
		}
		rec, err := decodeRecord(line)
		if err != nil {
			it.se.log.Warn("storage: skipping corrupt record during iteration: %v", err)
			continue
		}
		if it.se.isTombstoned(rec.ID) {
			continue
		}
		it.lastOffset = startOffset
		return rec.ID, rec.Data, true, nil
	}
	if err := it.scanner.Err(); err != nil {
		return "", nil, false, err
	}
	return "", nil, false, nil
}

// Offset returns the data.db byte offset of the record most recently
// returned by Next. Callers that want to suppress superseded Records (see
// §9 of the design notes) can compare this against StorageEngine.IsCurrent.
func (it *Iterator) Offset() int64 {
	return it.lastOffset
}

// Close releases the iterator's file handle and shared lock. Idempotent.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	fileErr := it.file.Close()
	lockErr := it.lock.Close()
	if fileErr != nil {
		return fileErr
	}
	return lockErr
}
