// Package wal implements the write-ahead log described in the design: a
// batched, segmented, checksummed operation log with rotation and replay.
//
// Every mutation is logged before it is applied to the data file. Entries
// accumulate in memory until Flush serializes them as one line-delimited
// batch and appends it to the active segment. Segments are named
// "<walPath>.<counter>"; Rotate archives every live segment with a
// "<epoch>.old" suffix and starts a fresh segment 1. Replay is lazy,
// single-use, and tolerates torn writes: a line that won't decode, or an
// entry whose checksum doesn't match, is skipped rather than aborting
// recovery.
package wal

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/namankumar80510/dikkidb/internal/docmodel"
	dberrors "github.com/namankumar80510/dikkidb/internal/errors"
	"github.com/namankumar80510/dikkidb/internal/logger"
	"github.com/namankumar80510/dikkidb/internal/lockfile"
)

// WAL is a durable, segmented operation log for a single dikkidb Database.
// All methods are safe for concurrent callers within one process; the
// embedded lock additionally serializes access with other processes
// sharing the same walPath.
type WAL struct {
	mu sync.Mutex

	walPath         string
	maxBatchSize    int
	maxLogSize      uint64 // bytes
	optimalFileSize uint64 // bytes

	counter    int
	active     *os.File
	activeSize uint64

	pending []Entry

	lock   *lockfile.Locker
	logger *logger.Logger

	retryCtrl    *dberrors.RetryController
	classifier   *dberrors.Classifier
	errorTracker *dberrors.ErrorTracker
}

// Config carries the tunables described in §4.2: maxBatchSize is the flush
// threshold in entries, maxLogSizeMB is the total-size rotation threshold,
// optimalFileSizeMB is the per-segment cap.
type Config struct {
	MaxBatchSize      int
	MaxLogSizeMB      uint64
	OptimalFileSizeMB uint64
}

// Open scans walPath's directory for existing segments, resumes the
// counter at the highest one found, and opens it for append (or creates
// segment 1 if none exist).
func Open(walPath string, cfg Config, log *logger.Logger) (*WAL, error) {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.MaxLogSizeMB == 0 {
		cfg.MaxLogSizeMB = DefaultMaxLogSizeMB
	}
	if cfg.OptimalFileSizeMB == 0 {
		cfg.OptimalFileSizeMB = DefaultOptimalFileSizeMB
	}
	if log == nil {
		log = logger.Default()
	}

	w := &WAL{
		walPath:         walPath,
		maxBatchSize:    cfg.MaxBatchSize,
		maxLogSize:      cfg.MaxLogSizeMB * 1024 * 1024,
		optimalFileSize: cfg.OptimalFileSizeMB * 1024 * 1024,
		lock:            lockfile.New(walPath + ".lock"),
		logger:          log,
		retryCtrl:       dberrors.NewRetryController(),
		classifier:      dberrors.NewClassifier(),
		errorTracker:    dberrors.NewErrorTracker(),
	}

	counters, err := listSegments(walPath)
	if err != nil {
		return nil, err
	}

	if len(counters) == 0 {
		if err := w.createSegment(1); err != nil {
			return nil, err
		}
		return w, nil
	}

	latest := counters[len(counters)-1]
	f, err := openSegmentAppend(segmentPath(walPath, latest))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrFileOpen, f.Name(), err)
	}

	w.counter = latest
	w.active = f
	w.activeSize = uint64(info.Size())
	return w, nil
}

// MaxBatchSize returns the configured flush threshold in entries. The WAL
// never flushes by itself; callers decide when to call Flush.
func (w *WAL) MaxBatchSize() int {
	return w.maxBatchSize
}

// Log appends an entry to the in-memory pending list. No disk I/O happens
// here; Flush is what makes entries durable.
func (w *WAL) Log(op Operation, id string, data docmodel.Document) (int, error) {
	if id == "" {
		return 0, ErrEmptyID
	}

	e, err := newEntry(float64(time.Now().UnixNano())/1e9, op, id, data)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, e)
	return len(w.pending), nil
}

// PendingCount returns the number of entries logged since the last Flush.
func (w *WAL) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush serializes the pending list as one batch, appends it to the active
// segment, forces the write to disk, and clears the pending list. It
// rotates to a new segment first if the batch would cross optimalFileSize,
// and rotates the whole log (archiving every segment) if, after the write,
// total WAL size exceeds maxLogSize.
func (w *WAL) Flush() error {
	lk, err := w.lock.Lock()
	if err != nil {
		return err
	}
	defer lk.Close()

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}

	line, err := encodeBatch(w.pending)
	if err != nil {
		return err
	}

	if w.optimalFileSize > 0 && w.activeSize+uint64(len(line)) > w.optimalFileSize {
		if err := w.createSegmentLocked(w.counter + 1); err != nil {
			return err
		}
	}

	// The closure returns the bare sentinel, not a %w-wrapped error: Retry
	// classifies whatever fn() returns by value equality (see
	// Classifier.Classify), so a wrapped error would always fall through to
	// its default ErrorPermanent case and never actually retry. The
	// underlying os error is stashed in cause and folded into the returned
	// error only after Retry gives up, for the caller's benefit.
	var n int
	var cause error
	retryErr := w.retryCtrl.Retry(func() error {
		written, werr := w.active.Write(line)
		n = written
		if werr != nil {
			cause = werr
			w.errorTracker.RecordError(ErrFileWrite, w.classifier.Classify(ErrFileWrite))
			return ErrFileWrite
		}
		if werr := w.active.Sync(); werr != nil {
			cause = werr
			w.errorTracker.RecordError(ErrFileSync, w.classifier.Classify(ErrFileSync))
			return ErrFileSync
		}
		return nil
	}, w.classifier)
	if retryErr != nil {
		return fmt.Errorf("%w: %v", retryErr, cause)
	}

	w.activeSize += uint64(n)
	w.pending = w.pending[:0]

	total, err := w.totalSizeLocked()
	if err != nil {
		return err
	}
	if w.maxLogSize > 0 && total > w.maxLogSize {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	return nil
}

// Rotate archives every existing segment with a "<epoch>.old" suffix and
// starts a fresh segment 1. Archived files are left on disk; the live WAL
// forgets them.
func (w *WAL) Rotate() error {
	lk, err := w.lock.Lock()
	if err != nil {
		return err
	}
	defer lk.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotateLocked()
}

func (w *WAL) rotateLocked() error {
	if err := w.active.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileSync, err)
	}
	w.active = nil

	counters, err := listSegments(w.walPath)
	if err != nil {
		return err
	}

	epoch := time.Now().UnixNano()
	for _, c := range counters {
		path := segmentPath(w.walPath, c)
		if err := os.Rename(path, archivedPath(path, epoch)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrFileRename, path, err)
		}
	}

	w.counter = 0
	return w.createSegmentLocked(1)
}

// Replay returns a lazy, single-use cursor over every entry in every live
// segment, oldest first. Callers must Close the cursor when done.
func (w *WAL) Replay() (*Cursor, error) {
	counters, err := listSegments(w.walPath)
	if err != nil {
		return nil, err
	}
	return newCursor(w.walPath, counters, w.logger), nil
}

// ErrorTracker exposes the WAL's I/O error counters for callers wiring up
// observability.
func (w *WAL) ErrorTracker() *dberrors.ErrorTracker {
	return w.errorTracker
}

// Close releases the active segment's file handle.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil {
		return nil
	}
	err := w.active.Close()
	w.active = nil
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileSync, err)
	}
	return nil
}

func (w *WAL) createSegment(counter int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.createSegmentLocked(counter)
}

func (w *WAL) createSegmentLocked(counter int) error {
	if w.active != nil {
		if err := w.active.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrFileSync, err)
		}
	}
	f, err := openSegmentAppend(segmentPath(w.walPath, counter))
	if err != nil {
		return err
	}
	w.counter = counter
	w.active = f
	w.activeSize = 0
	return nil
}

func (w *WAL) totalSizeLocked() (uint64, error) {
	counters, err := listSegments(w.walPath)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, c := range counters {
		if c == w.counter {
			total += w.activeSize
			continue
		}
		info, err := os.Stat(segmentPath(w.walPath, c))
		if err != nil {
			continue
		}
		total += uint64(info.Size())
	}
	return total, nil
}
