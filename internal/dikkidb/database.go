// Package dikkidb implements the Database façade: it composes a WAL and a
// StorageEngine, exposes put/get/delete/commit/beginBatch/endBatch/iterate,
// and runs WAL replay on construction to recover from a prior crash.
package dikkidb

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/namankumar80510/dikkidb/internal/config"
	"github.com/namankumar80510/dikkidb/internal/docmodel"
	dberrors "github.com/namankumar80510/dikkidb/internal/errors"
	"github.com/namankumar80510/dikkidb/internal/lockfile"
	"github.com/namankumar80510/dikkidb/internal/logger"
	"github.com/namankumar80510/dikkidb/internal/storage"
	"github.com/namankumar80510/dikkidb/internal/wal"
)

// batchState tracks the lifecycle described in §4.4: AUTO is the default,
// OPEN is entered by beginBatch and left by endBatch, COMMITTING is a
// transient marker held only for the duration of commit's critical
// section so observers never see a partially-applied batch.
type batchState int

const (
	stateAuto batchState = iota
	stateOpen
	stateCommitting
)

type pendingOp struct {
	op   wal.Operation
	id   string
	data docmodel.Document
}

// Database is the top-level handle a caller (or the collection wrapper)
// opens against a data directory. It owns a WAL, a StorageEngine, and the
// in-memory pending batch; both sub-components own their own dedicated
// lock files (see §5), and Database owns a third for its own batch window.
type Database struct {
	mu sync.Mutex

	dataDir      string
	maxBatchSize int
	autoCommit   bool
	state        batchState
	pending      []pendingOp

	batchLock *lockfile.Lock // held only between beginBatch and endBatch

	wal     *wal.WAL
	storage *storage.StorageEngine
	lock    *lockfile.Locker // db.lock
	log     *logger.Logger
}

const (
	walFileName = "wal.log"
	dbLockName  = "db.lock"
	dataSubdir  = "data"
)

// Open constructs (or reopens) a Database at cfg.DataDir. It ensures the
// WAL and StorageEngine exist, then replays every surviving WAL entry into
// the StorageEngine under an exclusive lock before returning — this is the
// recovery procedure from §4.4.
func Open(cfg *config.Config, log *logger.Logger) (*Database, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.Default()
	}

	w, err := wal.Open(filepath.Join(cfg.DataDir, walFileName), wal.Config{
		MaxBatchSize:      cfg.WAL.MaxBatchSize,
		MaxLogSizeMB:      cfg.WAL.MaxLogSizeMB,
		OptimalFileSizeMB: cfg.WAL.OptimalFileSizeMB,
	}, log)
	if err != nil {
		return nil, err
	}

	se, err := storage.Open(filepath.Join(cfg.DataDir, dataSubdir), cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	maxBatchSize := cfg.DB.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = 1000
	}

	db := &Database{
		dataDir:      cfg.DataDir,
		maxBatchSize: maxBatchSize,
		autoCommit:   cfg.DB.AutoCommit,
		state:        stateAuto,
		wal:          w,
		storage:      se,
		lock:         lockfile.New(filepath.Join(cfg.DataDir, dbLockName)),
		log:          log,
	}

	if err := db.recover(); err != nil {
		return nil, fmt.Errorf("%w: %v", dberrors.ErrRecoveryFailed, err)
	}

	return db, nil
}

// recover replays every surviving WAL entry into the StorageEngine. It is
// idempotent: re-applying an already-applied PUT costs a new Record at a
// new offset (harmless), and re-applying a DELETE to an absent id is a
// no-op.
func (db *Database) recover() error {
	lk, err := db.lock.Lock()
	if err != nil {
		return err
	}
	defer lk.Close()

	cursor, err := db.wal.Replay()
	if err != nil {
		return err
	}
	defer cursor.Close()

	applied := 0
	for {
		e, err := cursor.Next()
		if err != nil {
			return err
		}
		if e == nil {
			break
		}

		doc, err := e.Document()
		if err != nil {
			db.log.Warn("dikkidb: recovery skipping undecodable entry for id=%s: %v", e.ID, err)
			continue
		}

		switch e.Operation {
		case wal.OpPut:
			if _, err := db.storage.Write(e.ID, doc); err != nil {
				return err
			}
		case wal.OpDelete:
			if err := db.storage.Delete(e.ID); err != nil {
				return err
			}
		}
		applied++
	}

	if applied > 0 {
		db.log.Info("dikkidb: recovery applied %d WAL entries", applied)
	}
	return nil
}

// Put stages a PUT of doc under id: it appends to the WAL's pending list
// and the Database's own pending batch, then commits automatically once
// autoCommit is true and the batch threshold is crossed.
func (db *Database) Put(id string, doc docmodel.Document) error {
	if id == "" {
		return dberrors.ErrEmptyID
	}

	db.mu.Lock()
	if _, err := db.wal.Log(wal.OpPut, id, doc); err != nil {
		db.mu.Unlock()
		return err
	}
	db.pending = append(db.pending, pendingOp{op: wal.OpPut, id: id, data: doc})
	shouldCommit := db.autoCommit && len(db.pending) >= db.maxBatchSize
	db.mu.Unlock()

	if shouldCommit {
		return db.Commit()
	}
	return nil
}

// Delete stages a DELETE of id, symmetric to Put.
func (db *Database) Delete(id string) error {
	if id == "" {
		return dberrors.ErrEmptyID
	}

	db.mu.Lock()
	if _, err := db.wal.Log(wal.OpDelete, id, nil); err != nil {
		db.mu.Unlock()
		return err
	}
	db.pending = append(db.pending, pendingOp{op: wal.OpDelete, id: id})
	shouldCommit := db.autoCommit && len(db.pending) >= db.maxBatchSize
	db.mu.Unlock()

	if shouldCommit {
		return db.Commit()
	}
	return nil
}

// Get first consults the uncommitted in-memory batch, so the latest
// pending PUT or DELETE of id is visible before Commit applies it. Absent
// a pending operation it reads through to the StorageEngine: cache, then
// bloom filter, then primary index, then a seek into data.db.
func (db *Database) Get(id string) (docmodel.Document, bool, error) {
	if id == "" {
		return nil, false, dberrors.ErrEmptyID
	}

	db.mu.Lock()
	for i := len(db.pending) - 1; i >= 0; i-- {
		if op := db.pending[i]; op.id == id {
			db.mu.Unlock()
			if op.op == wal.OpDelete {
				return nil, false, nil
			}
			return op.data, true, nil
		}
	}
	db.mu.Unlock()

	return db.storage.Get(id)
}

// Iterate yields live documents: the StorageEngine's file-order stream
// filtered to each id's current Record, resolving the open question in §9
// in favor of deduplicating against the live index.
func (db *Database) Iterate() (*Cursor, error) {
	it, err := db.storage.Iterate()
	if err != nil {
		return nil, err
	}
	return &Cursor{it: it, se: db.storage}, nil
}

// Commit applies every pending operation to the StorageEngine in
// submission order, clears the batch, and flushes the WAL. An empty batch
// is a no-op. A storage failure clears the batch before propagating, so
// the Database stays usable for the next operation.
//
// Commit acquires the Database's own exclusive lock for its critical
// section, unless it's running inside a BeginBatch/EndBatch window — that
// lock is already held (by a different file descriptor), and flock is
// per-open-file-description: acquiring it twice from the same process
// would block forever rather than succeed reentrantly.
func (db *Database) Commit() error {
	db.mu.Lock()
	held := db.state == stateOpen
	db.mu.Unlock()

	if held {
		return db.commitLocked()
	}

	lk, err := db.lock.Lock()
	if err != nil {
		return err
	}
	defer lk.Close()
	return db.commitLocked()
}

func (db *Database) commitLocked() error {
	db.mu.Lock()
	if len(db.pending) == 0 {
		db.mu.Unlock()
		return nil
	}
	ops := db.pending
	db.pending = nil
	prevState := db.state
	db.state = stateCommitting
	db.mu.Unlock()

	err := db.applyOps(ops)

	db.mu.Lock()
	db.state = prevState
	db.mu.Unlock()

	if err != nil {
		return err
	}
	return db.wal.Flush()
}

func (db *Database) applyOps(ops []pendingOp) error {
	for _, op := range ops {
		switch op.op {
		case wal.OpPut:
			if _, err := db.storage.Write(op.id, op.data); err != nil {
				return err
			}
		case wal.OpDelete:
			if err := db.storage.Delete(op.id); err != nil {
				return err
			}
		}
	}
	return nil
}

// BeginBatch acquires the Database's exclusive lock and turns autoCommit
// off, so a sequence of Put/Delete calls only becomes visible at EndBatch.
// The lock is held until EndBatch.
func (db *Database) BeginBatch() error {
	lk, err := db.lock.Lock()
	if err != nil {
		return err
	}

	db.mu.Lock()
	db.batchLock = lk
	db.autoCommit = false
	db.state = stateOpen
	db.mu.Unlock()
	return nil
}

// EndBatch commits the pending batch, restores autoCommit, and releases
// the exclusive lock acquired by BeginBatch regardless of whether the
// commit succeeded.
func (db *Database) EndBatch() error {
	commitErr := db.Commit()

	db.mu.Lock()
	db.autoCommit = true
	db.state = stateAuto
	lk := db.batchLock
	db.batchLock = nil
	db.mu.Unlock()

	if lk != nil {
		if closeErr := lk.Close(); closeErr != nil && commitErr == nil {
			return closeErr
		}
	}
	return commitErr
}

// Close releases the WAL and StorageEngine's held resources.
func (db *Database) Close() error {
	if err := db.storage.Close(); err != nil {
		return err
	}
	return db.wal.Close()
}

// IOErrorCounts reports how many WAL and storage I/O failures have been
// observed, each total summed across all error categories, for callers
// surfacing basic operational health
// (e.g. the REPL's stats command).
func (db *Database) IOErrorCounts() (wal, storage uint64) {
	tracker := db.wal.ErrorTracker()
	storeTracker := db.storage.ErrorTracker()
	for _, cat := range []dberrors.ErrorCategory{
		dberrors.ErrorTransient, dberrors.ErrorPermanent, dberrors.ErrorCritical,
		dberrors.ErrorValidation, dberrors.ErrorNetwork,
	} {
		wal += tracker.GetErrorCount(cat)
		storage += storeTracker.GetErrorCount(cat)
	}
	return wal, storage
}
