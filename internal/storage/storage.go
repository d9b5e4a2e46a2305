// Package storage implements the StorageEngine: the append-only data file,
// the in-memory primary index, the tombstone set, a bloom-filter admission
// test, and a bounded hot-document cache.
package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/namankumar80510/dikkidb/internal/bloom"
	"github.com/namankumar80510/dikkidb/internal/config"
	"github.com/namankumar80510/dikkidb/internal/docmodel"
	storeerrors "github.com/namankumar80510/dikkidb/internal/errors"
	"github.com/namankumar80510/dikkidb/internal/lockfile"
	"github.com/namankumar80510/dikkidb/internal/logger"
)

const (
	dataFileName   = "data.db"
	indexFileName  = "index.bin"
	accessFileName = "access.log"
	lockFileName   = "storage.lock"
)

// StorageEngine owns the data file, the primary index, the tombstone set,
// and the hot-document cache for one dikkidb Database.
type StorageEngine struct {
	dataDir   string
	dataPath  string
	readBlock int

	index      *index
	tombstones sync.Map // string -> struct{}
	bloom      *bloom.Filter
	cache      *fifoCache

	lock *lockfile.Locker
	log  *logger.Logger

	retryCtrl    *storeerrors.RetryController
	classifier   *storeerrors.Classifier
	errorTracker *storeerrors.ErrorTracker
}

// Open constructs a StorageEngine over dataDir: it ensures the directory
// and data file exist, loads the index snapshot if present, rebuilds the
// bloom filter from the index, and warms the cache from the access log's
// tail. Bloom rebuild and cache warmup run concurrently since they read
// disjoint files.
func Open(dataDir string, cfg config.StorageConfig, log *logger.Logger) (*StorageEngine, error) {
	if log == nil {
		log = logger.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", storeerrors.ErrFileOpen, dataDir, err)
	}

	dataPath := filepath.Join(dataDir, dataFileName)
	if err := ensureFile(dataPath); err != nil {
		return nil, err
	}

	readBlock := cfg.ReadBlockBytes
	if readBlock <= 0 {
		readBlock = 8 * 1024
	}
	cacheSize := cfg.MaxCacheSize
	if cacheSize <= 0 {
		cacheSize = 10_000
	}

	se := &StorageEngine{
		dataDir:   dataDir,
		dataPath:  dataPath,
		readBlock: readBlock,
		index:     newIndex(filepath.Join(dataDir, indexFileName), cfg.IndexFlushInterval),
		cache:     newFIFOCache(cacheSize),
		lock:      lockfile.New(filepath.Join(dataDir, lockFileName)),
		log:       log,

		retryCtrl:    storeerrors.NewRetryController(),
		classifier:   storeerrors.NewClassifier(),
		errorTracker: storeerrors.NewErrorTracker(),
	}

	if err := se.index.load(); err != nil {
		return nil, fmt.Errorf("%w: loading index: %v", storeerrors.ErrCorruptRecord, err)
	}

	expected := cfg.BloomExpectedItems
	if expected == 0 {
		expected = 1_000_000
	}
	fpRate := cfg.BloomFalsePositiveRate
	if fpRate <= 0 {
		fpRate = 0.01
	}
	se.bloom = bloom.New(expected, fpRate)

	var g errgroup.Group
	g.Go(func() error {
		se.rebuildBloom()
		return nil
	})
	g.Go(func() error {
		se.warmCache(cacheSize)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return se, nil
}

// rebuildBloom seeds the bloom filter from every id currently in the
// index, fanning the work out across a small ants pool. The filter's bit
// array is shared, so sets are serialized behind bloomMu rather than
// sharded — the parallelism pays for the hashing, not the (cheap) bit
// flip.
func (se *StorageEngine) rebuildBloom() {
	ids := se.index.ids()
	if len(ids) == 0 {
		return
	}

	var bloomMu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(ids))

	pool, err := ants.NewPoolWithFunc(workerCount(len(ids)), func(arg any) {
		defer wg.Done()
		id := arg.(string)
		bloomMu.Lock()
		se.bloom.Add([]byte(id))
		bloomMu.Unlock()
	}, ants.WithPanicHandler(func(v any) {
		se.log.Error("bloom rebuild worker panic: %v", v)
	}))
	if err != nil {
		se.log.Warn("storage: falling back to serial bloom rebuild: %v", err)
		for _, id := range ids {
			se.bloom.Add([]byte(id))
		}
		return
	}
	defer pool.Release()

	for _, id := range ids {
		if err := pool.Invoke(id); err != nil {
			se.bloom.Add([]byte(id))
			wg.Done()
		}
	}
	wg.Wait()
}

func workerCount(n int) int {
	if n < 4 {
		return n
	}
	if n > 64 {
		return 64
	}
	return n
}

// warmCache reads the tail of access.log (up to capacity lines) and
// resolves each id to its current document, seeding the cache so the
// first round of post-restart reads doesn't pay a cold seek.
func (se *StorageEngine) warmCache(capacity int) {
	accessPath := filepath.Join(se.dataDir, accessFileName)
	ids, err := tailLines(accessPath, capacity)
	if err != nil {
		se.log.Warn("storage: cache warmup skipped: %v", err)
		return
	}
	for _, id := range ids {
		off, ok := se.index.get(id)
		if !ok {
			continue
		}
		rec, err := se.readAt(off)
		if err != nil {
			continue
		}
		se.cache.put(id, rec.Data)
	}
}

// Write appends a fresh Record for id, updates the index, bloom filter,
// and cache, and returns the revision tag assigned to the write.
func (se *StorageEngine) Write(id string, doc docmodel.Document) (string, error) {
	if id == "" {
		return "", storeerrors.ErrEmptyID
	}

	lk, err := se.lock.Lock()
	if err != nil {
		return "", err
	}
	defer lk.Close()

	rec := Record{ID: id, Revision: newRevision(), Data: doc}
	line, err := encodeRecord(rec)
	if err != nil {
		return "", err
	}

	// The closure returns the bare sentinel, not a %w-wrapped error: Retry
	// classifies whatever fn() returns by value equality (see
	// Classifier.Classify), so a wrapped error would always fall through to
	// its default ErrorPermanent case and never actually retry. The
	// underlying os error is stashed in cause and folded into the returned
	// error only after Retry gives up, for the caller's benefit.
	var pos int64
	var cause error
	appendErr := se.retryCtrl.Retry(func() error {
		f, err := os.OpenFile(se.dataPath, os.O_RDWR|os.O_APPEND, 0o644)
		if err != nil {
			cause = err
			se.errorTracker.RecordError(storeerrors.ErrFileOpen, se.classifier.Classify(storeerrors.ErrFileOpen))
			return storeerrors.ErrFileOpen
		}
		defer f.Close()

		p, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			cause = err
			se.errorTracker.RecordError(storeerrors.ErrFileRead, se.classifier.Classify(storeerrors.ErrFileRead))
			return storeerrors.ErrFileRead
		}
		if _, err := f.Write(line); err != nil {
			cause = err
			se.errorTracker.RecordError(storeerrors.ErrFileWrite, se.classifier.Classify(storeerrors.ErrFileWrite))
			return storeerrors.ErrFileWrite
		}
		if err := f.Sync(); err != nil {
			cause = err
			se.errorTracker.RecordError(storeerrors.ErrFileSync, se.classifier.Classify(storeerrors.ErrFileSync))
			return storeerrors.ErrFileSync
		}
		pos = p
		return nil
	}, se.classifier)
	if appendErr != nil {
		return "", fmt.Errorf("%w: %s: %v", appendErr, se.dataPath, cause)
	}

	se.tombstones.Delete(id)
	if err := se.index.set(id, pos); err != nil {
		return "", err
	}
	se.bloom.Add([]byte(id))
	se.cache.put(id, doc)

	return rec.Revision, nil
}

// Get resolves id to its current document. The zero value (nil, false,
// nil) means "no such document" and is not an error.
func (se *StorageEngine) Get(id string) (docmodel.Document, bool, error) {
	if id == "" {
		return nil, false, storeerrors.ErrEmptyID
	}

	if doc, ok := se.cache.get(id); ok {
		return doc, true, nil
	}
	if !se.bloom.MightContain([]byte(id)) {
		return nil, false, nil
	}
	off, ok := se.index.get(id)
	if !ok {
		return nil, false, nil
	}

	lk, err := se.lock.RLock()
	if err != nil {
		return nil, false, err
	}
	defer lk.Close()

	rec, err := se.readAt(off)
	if err != nil {
		se.log.Warn("storage: decode failure reading id=%s at offset %d: %v", id, off, err)
		return nil, false, nil
	}

	se.recordAccess(id)
	se.cache.put(id, rec.Data)
	return rec.Data, true, nil
}

// Delete tombstones id, evicts it from the cache, and removes it from the
// index (persisting the index snapshot immediately). No bytes are
// reclaimed from data.db.
func (se *StorageEngine) Delete(id string) error {
	if id == "" {
		return storeerrors.ErrEmptyID
	}

	lk, err := se.lock.Lock()
	if err != nil {
		return err
	}
	defer lk.Close()

	se.tombstones.Store(id, struct{}{})
	se.cache.remove(id)
	return se.index.delete(id)
}

// Iterate returns a lazy, single-use cursor over every Record in data.db,
// file order, skipping ids in the tombstone set. Superseded Records are
// emitted as written; callers that need uniqueness must cross-check the
// live index (see §9 of the design notes).
func (se *StorageEngine) Iterate() (*Iterator, error) {
	lk, err := se.lock.RLock()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(se.dataPath)
	if err != nil {
		lk.Close()
		return nil, fmt.Errorf("%w: %s: %v", storeerrors.ErrFileOpen, se.dataPath, err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	return &Iterator{
		se:      se,
		file:    f,
		lock:    lk,
		scanner: scanner,
	}, nil
}

// Close releases resources held for the lifetime of the engine. Data and
// lock file handles are otherwise opened per-operation.
func (se *StorageEngine) Close() error {
	return nil
}

// ErrorTracker exposes the engine's I/O error counters for callers wiring
// up observability (e.g. the REPL's stats command).
func (se *StorageEngine) ErrorTracker() *storeerrors.ErrorTracker {
	return se.errorTracker
}

func (se *StorageEngine) readAt(offset int64) (Record, error) {
	f, err := os.Open(se.dataPath)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", storeerrors.ErrFileOpen, se.dataPath, err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", storeerrors.ErrFileRead, se.dataPath, err)
	}

	block := make([]byte, se.readBlock)
	var buf bytes.Buffer
	for {
		n, err := f.Read(block)
		buf.Write(block[:n])
		if idx := bytes.IndexByte(buf.Bytes(), '\n'); idx >= 0 {
			return decodeRecord(buf.Bytes()[:idx])
		}
		if err == io.EOF {
			// No newline found even at end of file: decode whatever we have.
			return decodeRecord(buf.Bytes())
		}
		if err != nil {
			return Record{}, fmt.Errorf("%w: %s: %v", storeerrors.ErrFileRead, se.dataPath, err)
		}
		if buf.Len() > 64*1024*1024 {
			return Record{}, storeerrors.ErrCorruptRecord
		}
	}
}

func (se *StorageEngine) recordAccess(id string) {
	f, err := os.OpenFile(filepath.Join(se.dataDir, accessFileName), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	f.WriteString(id + "\n")
}

// IsCurrent reports whether offset is id's current index offset — i.e.
// whether a Record read from that offset is the live one rather than a
// superseded write. Used by callers (the Database façade) that want
// iteration to deduplicate by id, per the open question in §9.
func (se *StorageEngine) IsCurrent(id string, offset int64) bool {
	off, ok := se.index.get(id)
	return ok && off == offset
}

func (se *StorageEngine) isTombstoned(id string) bool {
	_, ok := se.tombstones.Load(id)
	return ok
}

func ensureFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", storeerrors.ErrFileOpen, path, err)
	}
	return f.Close()
}

// tailLines returns up to n trailing non-empty lines of path, oldest
// first. A missing file yields an empty slice, not an error.
func tailLines(path string, n int) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	lines := bytes.Split(bytes.TrimRight(raw, "\n"), []byte("\n"))
	var out []string
	for _, l := range lines {
		if len(l) == 0 {
			continue
		}
		out = append(out, string(l))
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}
