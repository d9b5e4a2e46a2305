package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/namankumar80510/dikkidb/internal/docmodel"
)

func openTestWAL(t *testing.T, cfg Config) *WAL {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := Open(path, cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return w
}

func TestWAL_LogFlushReplay(t *testing.T) {
	w := openTestWAL(t, Config{})
	defer w.Close()

	if _, err := w.Log(OpPut, "doc-1", docmodel.Document{"name": "alpha"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if _, err := w.Log(OpPut, "doc-2", docmodel.Document{"name": "beta"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if _, err := w.Log(OpDelete, "doc-1", nil); err != nil {
		t.Fatalf("Log: %v", err)
	}

	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n := w.PendingCount(); n != 0 {
		t.Fatalf("PendingCount after flush = %d, want 0", n)
	}

	cursor, err := w.Replay()
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	defer cursor.Close()

	var got []Entry
	for {
		e, err := cursor.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if e == nil {
			break
		}
		got = append(got, *e)
	}

	if len(got) != 3 {
		t.Fatalf("replayed %d entries, want 3", len(got))
	}
	if got[0].ID != "doc-1" || got[0].Operation != OpPut {
		t.Errorf("entry 0 = %+v, want PUT doc-1", got[0])
	}
	if got[2].Operation != OpDelete || got[2].ID != "doc-1" {
		t.Errorf("entry 2 = %+v, want DELETE doc-1", got[2])
	}
}

func TestWAL_FlushWithNoPendingIsNoop(t *testing.T) {
	w := openTestWAL(t, Config{})
	defer w.Close()

	if err := w.Flush(); err != nil {
		t.Fatalf("Flush on empty pending: %v", err)
	}

	cursor, err := w.Replay()
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	defer cursor.Close()

	e, err := cursor.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if e != nil {
		t.Fatalf("expected no entries, got %+v", e)
	}
}

func TestWAL_LogRejectsEmptyID(t *testing.T) {
	w := openTestWAL(t, Config{})
	defer w.Close()

	if _, err := w.Log(OpPut, "", docmodel.Document{"a": 1}); err != ErrEmptyID {
		t.Fatalf("Log with empty id: err = %v, want ErrEmptyID", err)
	}
}

func TestWAL_SegmentRollsAtOptimalFileSize(t *testing.T) {
	w := openTestWAL(t, Config{OptimalFileSizeMB: 0})
	w.optimalFileSize = 64 // force a roll well before the MB-scale default
	defer w.Close()

	for i := 0; i < 20; i++ {
		if _, err := w.Log(OpPut, "doc", docmodel.Document{"n": i}); err != nil {
			t.Fatalf("Log: %v", err)
		}
		if err := w.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
	}

	if w.counter <= 1 {
		t.Fatalf("expected multiple segments, counter = %d", w.counter)
	}

	cursor, err := w.Replay()
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	defer cursor.Close()

	count := 0
	for {
		e, err := cursor.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if e == nil {
			break
		}
		count++
	}
	if count != 20 {
		t.Fatalf("replayed %d entries across segments, want 20", count)
	}
}

func TestWAL_RotateArchivesSegments(t *testing.T) {
	w := openTestWAL(t, Config{})
	defer w.Close()

	if _, err := w.Log(OpPut, "doc-1", docmodel.Document{"a": 1}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if err := w.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if w.counter != 1 {
		t.Fatalf("counter after Rotate = %d, want 1 (fresh segment)", w.counter)
	}

	// The rotated-away segment no longer shows up as a live segment.
	counters, err := listSegments(w.walPath)
	if err != nil {
		t.Fatalf("listSegments: %v", err)
	}
	if len(counters) != 1 || counters[0] != 1 {
		t.Fatalf("live segments after rotate = %v, want [1]", counters)
	}

	cursor, err := w.Replay()
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	defer cursor.Close()
	e, err := cursor.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if e != nil {
		t.Fatalf("expected no entries in fresh segment, got %+v", e)
	}
}

func TestWAL_ReplaySkipsTamperedEntry(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "wal.log")
	w, err := Open(walPath, Config{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := w.Log(OpPut, "doc-1", docmodel.Document{"a": 1}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if _, err := w.Log(OpPut, "doc-2", docmodel.Document{"a": 2}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	segPath := segmentPath(walPath, w.counter)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(segPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	entries, err := decodeBatch(raw[:len(raw)-1]) // trim trailing newline
	if err != nil {
		t.Fatalf("decodeBatch: %v", err)
	}
	entries[0].Checksum = "deadbeef"
	line, err := encodeBatch(entries)
	if err != nil {
		t.Fatalf("encodeBatch: %v", err)
	}
	if err := os.WriteFile(segPath, line, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w2, err := Open(walPath, Config{}, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w2.Close()

	cursor, err := w2.Replay()
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	defer cursor.Close()

	var ids []string
	for {
		e, err := cursor.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if e == nil {
			break
		}
		ids = append(ids, e.ID)
	}

	if len(ids) != 1 || ids[0] != "doc-2" {
		t.Fatalf("ids after tampering = %v, want [doc-2] (doc-1 skipped as corrupt)", ids)
	}
}
