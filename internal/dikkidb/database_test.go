package dikkidb

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/namankumar80510/dikkidb/internal/config"
	"github.com/namankumar80510/dikkidb/internal/docmodel"
)

func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.DB.MaxBatchSize = 1000
	cfg.WAL.MaxBatchSize = 1000
	cfg.Storage.BloomExpectedItems = 10_000
	return cfg
}

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(testConfig(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db
}

func TestDatabase_BasicCRUD(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := db.Put("a", docmodel.Document{"x": float64(1)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	doc, ok, err := db.Get("a")
	if err != nil || !ok || doc["x"] != float64(1) {
		t.Fatalf("Get after put: doc=%v ok=%v err=%v", doc, ok, err)
	}

	if err := db.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := db.Get("a"); err != nil || ok {
		t.Fatalf("Get after delete: ok=%v err=%v, want false", ok, err)
	}

	cursor, err := db.Iterate()
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	defer cursor.Close()
	for {
		id, _, ok, err := cursor.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		if id == "a" {
			t.Errorf("iterate yielded deleted id %q", id)
		}
	}
}

func TestDatabase_BeginEndBatchVisibility(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := db.BeginBatch(); err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}
	if err := db.Put("a", docmodel.Document{"v": float64(1)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Put("b", docmodel.Document{"v": float64(2)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.EndBatch(); err != nil {
		t.Fatalf("EndBatch: %v", err)
	}

	for _, id := range []string{"a", "b"} {
		if _, ok, err := db.Get(id); err != nil || !ok {
			t.Fatalf("Get(%q) after EndBatch: ok=%v err=%v", id, ok, err)
		}
	}
}

func TestDatabase_CommitWithEmptyBatchIsNoop(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := db.Commit(); err != nil {
		t.Fatalf("Commit on empty batch: %v", err)
	}
}

func TestDatabase_OverwriteIsLastWriterWins(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := db.Put("k", docmodel.Document{"v": float64(1)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Put("k", docmodel.Document{"v": float64(2)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	doc, ok, err := db.Get("k")
	if err != nil || !ok || doc["v"] != float64(2) {
		t.Fatalf("Get: doc=%v ok=%v err=%v, want v=2", doc, ok, err)
	}
}

func TestDatabase_PutDeleteGetNone(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := db.Put("k", docmodel.Document{"v": float64(1)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := db.Get("k"); err != nil || ok {
		t.Fatalf("Get: ok=%v err=%v, want false", ok, err)
	}
}

func TestDatabase_EmptyIDRejected(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := db.Put("", docmodel.Document{}); err == nil {
		t.Error("Put with empty id: expected error")
	}
	if err := db.Delete(""); err == nil {
		t.Error("Delete with empty id: expected error")
	}
	if _, _, err := db.Get(""); err == nil {
		t.Error("Get with empty id: expected error")
	}
}

func TestDatabase_CrashAndRecover(t *testing.T) {
	dir := t.TempDir()

	db := mustOpen(t, dir)
	for i := 0; i < 100; i++ {
		id := idFor(i)
		if err := db.Put(id, docmodel.Document{"i": float64(i)}); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}
	if err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// A crash loses in-memory state only; WAL + data file survive.
	db.Close()
	db = mustOpen(t, dir)
	for i := 0; i < 100; i++ {
		id := idFor(i)
		doc, ok, err := db.Get(id)
		if err != nil || !ok || doc["i"] != float64(i) {
			t.Fatalf("Get(%s) after recovery: doc=%v ok=%v err=%v", id, doc, ok, err)
		}
	}

	// Write one more document but never commit: it must still be logged
	// and thus recovered on the next open, per §8 scenario 3.
	if err := db.Put("d101", docmodel.Document{"i": float64(101)}); err != nil {
		t.Fatalf("Put d101: %v", err)
	}
	if err := db.wal.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	db.Close()

	db = mustOpen(t, dir)
	defer db.Close()
	if doc, ok, err := db.Get("d101"); err != nil || !ok || doc["i"] != float64(101) {
		t.Fatalf("Get(d101) after recovery: doc=%v ok=%v err=%v", doc, ok, err)
	}
}

func TestDatabase_TornWALEntryIsSkippedOnRecovery(t *testing.T) {
	dir := t.TempDir()
	db := mustOpen(t, dir)

	if err := db.Put("good-1", docmodel.Document{"v": float64(1)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := db.Put("corrupt-me", docmodel.Document{"v": float64(2)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.wal.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	segPath := filepath.Join(dir, "wal.log.1")
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(segPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Flip a byte inside the last line to break its checksum without
	// breaking JSON structure entirely (corrupt the checksum hex digits).
	corrupted := append([]byte(nil), raw...)
	for i := len(corrupted) - 1; i >= 0; i-- {
		if corrupted[i] == 'd' || corrupted[i] == 'e' || corrupted[i] == 'f' {
			corrupted[i] = '0'
			break
		}
	}
	if err := os.WriteFile(segPath, corrupted, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	db2, err := Open(testConfig(dir), nil)
	if err != nil {
		t.Fatalf("reopen after corruption: %v", err)
	}
	defer db2.Close()

	if _, ok, err := db2.Get("good-1"); err != nil || !ok {
		t.Fatalf("Get(good-1) after partial corruption: ok=%v err=%v", ok, err)
	}
}

func mustOpen(t *testing.T, dir string) *Database {
	t.Helper()
	db, err := Open(testConfig(dir), nil)
	if err != nil {
		t.Fatalf("Open(%s): %v", dir, err)
	}
	return db
}

func idFor(i int) string {
	return "d" + strconv.Itoa(i)
}
