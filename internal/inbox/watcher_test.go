package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/ingest"
	"github.com/churryboy/ppt/internal/testutil"
)

type fakeUploader struct {
	mu      sync.Mutex
	names   []string
	privacy []bool
}

func (f *fakeUploader) Upload(_ context.Context, name string, data []byte, privacy bool) (*ingest.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if string(data) == "bad" {
		return nil, fmt.Errorf("not a deck: %w", apperr.ErrValidation)
	}
	f.names = append(f.names, name)
	f.privacy = append(f.privacy, privacy)
	return &ingest.UploadResult{DeckID: "deck-" + name, Accepted: true}, nil
}

func (f *fakeUploader) uploaded(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.names {
		if n == name {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, dir string, up *fakeUploader) {
	t.Helper()
	w, err := New(Config{Dir: dir, Privacy: true, Settle: 50 * time.Millisecond}, up, testutil.Logger(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestInbox_IngestsNewDeck(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{}
	startWatcher(t, dir, up)

	deck := filepath.Join(dir, "Board Update.PPTX")
	_ = os.WriteFile(deck, testutil.BuildDeck(testutil.SlideSpec{Title: "x"}), 0o644)

	testutil.Eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return up.uploaded("Board Update.PPTX") && !exists(deck)
	}, "deck was not ingested and removed")

	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.privacy) != 1 || !up.privacy[0] {
		t.Errorf("privacy flags = %v", up.privacy)
	}
}

func TestInbox_IngestsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "early.pptx"), []byte("PK\x03\x04"), 0o644)
	up := &fakeUploader{}
	startWatcher(t, dir, up)

	testutil.Eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return up.uploaded("early.pptx")
	}, "pre-existing deck was not ingested")
}

func TestInbox_RejectedFilesMoved(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{}
	startWatcher(t, dir, up)

	_ = os.WriteFile(filepath.Join(dir, "broken.pptx"), []byte("bad"), 0o644)

	testutil.Eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return exists(filepath.Join(dir, RejectedDir, "broken.pptx")) && !exists(filepath.Join(dir, "broken.pptx"))
	}, "rejected deck was not moved aside")
}

func TestInbox_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{}
	startWatcher(t, dir, up)

	for _, name := range []string{"notes.txt", "~$locked.pptx", ".hidden.pptx"} {
		_ = os.WriteFile(filepath.Join(dir, name), []byte("PK\x03\x04"), 0o644)
	}
	_ = os.WriteFile(filepath.Join(dir, "real.pptx"), []byte("PK\x03\x04"), 0o644)

	testutil.Eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return up.uploaded("real.pptx")
	}, "real deck not ingested")

	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.names) != 1 {
		t.Errorf("uploaded = %v, want only real.pptx", up.names)
	}
	if !exists(filepath.Join(dir, "notes.txt")) {
		t.Error("unrelated file must be left alone")
	}
}

func TestAccept(t *testing.T) {
	tests := map[string]bool{
		"a.pptx":       true,
		"A.PPTX":       true,
		"a.ppt":        false,
		"a.pptx.part":  false,
		"~$a.pptx":     false,
		".a.pptx":      false,
		".ppt-tmp-123": false,
	}
	for name, want := range tests {
		if got := accept(name); got != want {
			t.Errorf("accept(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNew_MissingDir(t *testing.T) {
	if _, err := New(Config{Dir: filepath.Join(t.TempDir(), "nope")}, &fakeUploader{}, nil, nil); err == nil {
		t.Error("expected error")
	}
}
