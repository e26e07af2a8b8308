package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

func TestWriteAndRead(t *testing.T) {
	s := tempStore(t)
	content := []byte{0x89, 'P', 'N', 'G'}
	if err := s.Write("decks/d1/0001.png", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("decks/d1/0001.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissingWrapsNotExist(t *testing.T) {
	s := tempStore(t)
	_, err := s.Read("decks/none/0001.png")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("del.png", []byte("bye"))
	if err := s.Delete("del.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.png"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestDeleteAll(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("decks/d1/0001.png", []byte("a"))
	_ = s.Write("decks/d1/0002.png", []byte("b"))
	_ = s.Write("decks/d2/0001.png", []byte("c"))

	if err := s.DeleteAll("decks/d1"); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if _, err := s.Read("decks/d1/0001.png"); err == nil {
		t.Error("d1 artifacts should be gone")
	}
	if _, err := s.Read("decks/d2/0001.png"); err != nil {
		t.Errorf("d2 artifact should survive: %v", err)
	}
	if err := s.DeleteAll("decks/never"); err != nil {
		t.Errorf("DeleteAll on missing dir: %v", err)
	}
	if err := s.DeleteAll(""); err == nil {
		t.Error("deleting root should fail")
	}
}

func TestCopyIsIndependent(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("decks/d1/0001.png", []byte("img"))
	if err := s.Copy("decks/d1/0001.png", "archive/a.png"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if err := s.DeleteAll("decks/d1"); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	got, err := s.Read("archive/a.png")
	if err != nil {
		t.Fatalf("Read copy: %v", err)
	}
	if string(got) != "img" {
		t.Errorf("copy content = %q", got)
	}
}

func TestList(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("decks/a/0001.png", []byte("a"))
	_ = s.Write("decks/b/0001.png", []byte("b"))
	_ = s.Write("decks/stray.txt", []byte("x"))

	items, err := s.List("decks")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	dirs := 0
	for _, it := range items {
		if it.IsDir {
			dirs++
		}
	}
	if dirs != 2 {
		t.Errorf("dirs = %d, want 2", dirs)
	}

	missing, err := s.List("nope")
	if err != nil || len(missing) != 0 {
		t.Errorf("List(missing) = %v, %v", missing, err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempStore(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.png",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if err := s.DeleteAll(p); err == nil {
			t.Errorf("expected error for delete of %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("atomic.png", []byte("original"))
	if err := s.Write("atomic.png", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.png")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, tmpPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "ppt-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
