package filelock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTryLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subject.lock")

	first := New(path)
	acquired, err := first.TryLock()
	if err != nil {
		t.Fatal(err)
	}
	if !acquired {
		t.Fatal("first TryLock should acquire")
	}

	second := New(path)
	acquired, err = second.TryLock()
	if err != nil {
		t.Fatal(err)
	}
	if acquired {
		t.Fatal("second TryLock should be refused while the first holds")
	}

	if err := first.Unlock(); err != nil {
		t.Fatal(err)
	}

	acquired, err = second.TryLock()
	if err != nil {
		t.Fatal(err)
	}
	if !acquired {
		t.Fatal("TryLock should succeed after release")
	}
	second.Unlock() //nolint:errcheck
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "sidecar.json")

	if err := AtomicWrite(path, []byte(`{"a": 1}`)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"a": 1}` {
		t.Errorf("content = %q", data)
	}

	// Overwrites replace the whole file.
	if err := AtomicWrite(path, []byte(`{"b": 2}`)); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != `{"b": 2}` {
		t.Errorf("content after overwrite = %q", data)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("leftover entries: %v", entries)
	}
}
