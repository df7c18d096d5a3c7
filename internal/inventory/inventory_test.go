package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateInsertFilenamesCount(t *testing.T) {
	dir := t.TempDir()
	db, err := Create(filepath.Join(dir, "temp.db"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer db.Close()

	rows := []Row{
		{Filename: "/a/one.mkv", Timestamp: 100, Size: 10},
		{Filename: "/a/two.mkv", Timestamp: 200, Size: 20},
		{Filename: "/a/one.mkv", Timestamp: 100, Size: 10},
	}
	if err := db.InsertBatch(context.Background(), rows); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	names, err := db.Filenames(context.Background())
	if err != nil {
		t.Fatalf("Filenames: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("Filenames returned %d entries, want 2 (duplicates collapsed): %v", len(names), names)
	}
	if _, ok := names["/a/one.mkv"]; !ok {
		t.Error("missing /a/one.mkv")
	}
	if _, ok := names["/a/two.mkv"]; !ok {
		t.Error("missing /a/two.mkv")
	}

	n, err := db.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestInsertBatchEmptyIsNoop(t *testing.T) {
	dir := t.TempDir()
	db, err := Create(filepath.Join(dir, "temp.db"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer db.Close()

	if err := db.InsertBatch(context.Background(), nil); err != nil {
		t.Fatalf("InsertBatch(nil): %v", err)
	}
	n, err := db.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestCreateRemovesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp.db")

	db1, err := Create(path)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := db1.InsertBatch(context.Background(), []Row{{Filename: "/stale.mkv"}}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	db1.Close()

	db2, err := Create(path)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	defer db2.Close()

	n, err := db2.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d after recreate, want 0 (stale rows must not survive)", n)
	}
}

func TestOpenReusesExistingData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.db")

	db1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := db1.InsertBatch(context.Background(), []Row{{Filename: "/kept.mkv"}}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	db1.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	names, err := db2.Filenames(context.Background())
	if err != nil {
		t.Fatalf("Filenames: %v", err)
	}
	if _, ok := names["/kept.mkv"]; !ok {
		t.Errorf("Open should reuse existing data, got %v", names)
	}
}

func TestRotateReplacesLocalWithTemp(t *testing.T) {
	dir := t.TempDir()
	localPath := filepath.Join(dir, "localfiles.db")
	tempPath := filepath.Join(dir, "tempfiles.db")

	oldDB, err := Create(localPath)
	if err != nil {
		t.Fatalf("Create old: %v", err)
	}
	if err := oldDB.InsertBatch(context.Background(), []Row{{Filename: "/old.mkv"}}); err != nil {
		t.Fatal(err)
	}
	oldDB.Close()

	newDB, err := Create(tempPath)
	if err != nil {
		t.Fatalf("Create new: %v", err)
	}
	if err := newDB.InsertBatch(context.Background(), []Row{{Filename: "/new.mkv"}}); err != nil {
		t.Fatal(err)
	}
	newDB.Close()

	if err := Rotate(dir, tempPath, localPath); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Error("temp path should no longer exist after rename")
	}

	reopened, err := Open(localPath)
	if err != nil {
		t.Fatalf("Open after rotate: %v", err)
	}
	defer reopened.Close()

	names, err := reopened.Filenames(context.Background())
	if err != nil {
		t.Fatalf("Filenames: %v", err)
	}
	if _, ok := names["/new.mkv"]; !ok {
		t.Errorf("expected rotated db to contain /new.mkv, got %v", names)
	}
	if _, ok := names["/old.mkv"]; ok {
		t.Errorf("rotated db should not contain stale /old.mkv, got %v", names)
	}
}

func TestDirSyncOnMissingDirReturnsError(t *testing.T) {
	if err := DirSync(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Error("expected error syncing a nonexistent directory")
	}
}
