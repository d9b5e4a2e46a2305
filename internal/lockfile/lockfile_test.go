package lockfile

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLocker_ExclusiveBlocksExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	l := New(path)

	held, err := l.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		other, err := New(path).Lock()
		if err != nil {
			t.Errorf("second Lock: %v", err)
			return
		}
		close(acquired)
		other.Close()
	}()

	select {
	case <-acquired:
		t.Fatal("second exclusive lock acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	if err := held.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second exclusive lock never acquired after release")
	}
}

func TestLocker_SharedAllowsConcurrentReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	a, err := New(path).RLock()
	if err != nil {
		t.Fatalf("RLock a: %v", err)
	}
	defer a.Close()

	b, err := New(path).RLock()
	if err != nil {
		t.Fatalf("RLock b: %v", err)
	}
	defer b.Close()
}

func TestLock_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	lk, err := New(path).Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := lk.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := lk.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
