package syncer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFlockExclusiveBlocksSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mediamirror.lock")
	f1, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f1.Close()

	f2, err := os.Open(path)
	if err != nil {
		t.Fatalf("open second handle: %v", err)
	}
	defer f2.Close()

	fl1 := Flock{f1}
	fl2 := Flock{f2}

	if err := fl1.Lock(); err != nil {
		t.Fatalf("first lock should succeed: %v", err)
	}
	if err := fl2.Lock(); err == nil {
		t.Fatal("second lock should fail while first is held")
	}

	if err := fl1.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := fl2.Lock(); err != nil {
		t.Fatalf("second lock should succeed once released: %v", err)
	}
	if err := fl2.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
}

func TestFlockLockOnClosedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mediamirror.lock")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.Close()

	fl := Flock{f}
	if err := fl.Lock(); err == nil {
		t.Error("lock on a closed file descriptor should fail")
	}
}
