// Package lockfile provides advisory whole-file locking (flock) for coordinating
// access to a dikkidb component (Database, WAL, StorageEngine) across
// processes sharing the same data directory.
//
// Each owning component gets a dedicated lock file. Mutating operations take
// an exclusive lock for the duration of their critical section; read
// operations take a shared lock, allowing concurrent readers but blocking
// writers. Locks are held by file descriptor and released on every exit
// path, including error paths.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned by operations on a Lock that has already been
// released.
var ErrClosed = errors.New("lockfile: lock already released")

// Lock is a held advisory lock on a single file. Close releases it.
type Lock struct {
	mu   sync.Mutex
	file *os.File
}

// Locker opens and locks a single, fixed path. It has no mutable state
// beyond the path itself and is safe for concurrent use: every call to Lock
// or RLock opens its own file descriptor.
type Locker struct {
	path string
}

// New returns a Locker bound to path. The file is created (but not locked)
// lazily, on the first Lock/RLock call.
func New(path string) *Locker {
	return &Locker{path: path}
}

// Lock acquires an exclusive lock, blocking until it is available.
func (l *Locker) Lock() (*Lock, error) {
	return l.acquire(unix.LOCK_EX)
}

// RLock acquires a shared lock, blocking until it is available. Multiple
// readers may hold a shared lock simultaneously; a shared lock blocks
// exclusive lockers and vice versa.
func (l *Locker) RLock() (*Lock, error) {
	return l.acquire(unix.LOCK_SH)
}

func (l *Locker) acquire(how int) (*Lock, error) {
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lockfile: open %s: %w", l.path, err)
	}

	if err := flockRetryEINTR(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("lockfile: flock %s: %w", l.path, err)
	}

	return &Lock{file: f}, nil
}

// Close releases the lock and closes its file descriptor. It is idempotent.
func (lk *Lock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	fd := int(lk.file.Fd())
	unlockErr := flockRetryEINTR(fd, unix.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil

	if unlockErr != nil {
		return fmt.Errorf("lockfile: unlock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("lockfile: close: %w", closeErr)
	}
	return nil
}

// flockRetryEINTR wraps unix.Flock, retrying on EINTR. A blocking flock can
// be interrupted by any signal delivered to the process; that's not a
// failure, just a syscall that needs to be reissued.
func flockRetryEINTR(fd, how int) error {
	const maxRetries = 10000

	var err error
	for i := 0; i < maxRetries; i++ {
		err = unix.Flock(fd, how)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}
	return err
}
