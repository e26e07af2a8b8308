// Package inbox ingests decks dropped into a hot folder.
//
// Files ending in .pptx that appear in the folder are uploaded once they
// stop changing, then removed. Files the upload rejects are moved to the
// rejected/ subfolder so they are not retried.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/ingest"
	"github.com/churryboy/ppt/internal/pptx"
	"github.com/churryboy/ppt/internal/storage"
)

// RejectedDir holds files the upload refused.
const RejectedDir = "rejected"

const defaultSettle = 500 * time.Millisecond

// Uploader accepts a document for ingestion.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte, privacy bool) (*ingest.UploadResult, error)
}

// EventCallback is called after each file is handled. deckID is empty when
// err is non-nil.
type EventCallback func(name, deckID string, err error)

// Config controls a Watcher.
type Config struct {
	Dir     string
	Privacy bool
	// Settle is how long a file must be quiet before it is ingested.
	Settle time.Duration
}

// Watcher feeds files from a folder into an Uploader.
type Watcher struct {
	cfg    Config
	files  *storage.FS
	up     Uploader
	logger *slog.Logger
	cb     EventCallback
}

// New creates a watcher. The folder must exist.
func New(cfg Config, up Uploader, logger *slog.Logger, cb EventCallback) (*Watcher, error) {
	files, err := storage.NewFS(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{cfg: cfg, files: files, up: up, logger: logger.With("component", "inbox"), cb: cb}, nil
}

// Run watches the folder until ctx is cancelled. Files already present when
// Run starts are ingested first.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.files.Root()); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", w.files.Root(), err)
	}
	w.logger.Info("inbox: started", slog.String("dir", w.files.Root()), slog.Bool("privacy_mode", w.cfg.Privacy))

	pending := make(map[string]struct{})
	existing, err := w.files.List("")
	if err != nil {
		return err
	}
	for _, e := range existing {
		if !e.IsDir && accept(e.Name) {
			pending[e.Name] = struct{}{}
		}
	}

	// settleTimer debounces bursts of writes to the same files.
	settleTimer := time.NewTimer(w.cfg.Settle)
	defer settleTimer.Stop()
	schedule := func() {
		settleTimer.Reset(w.cfg.Settle)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox: stopped")
			return nil

		case <-settleTimer.C:
			for name := range pending {
				w.ingest(ctx, name)
				delete(pending, name)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if filepath.Dir(ev.Name) != w.files.Root() || !accept(name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[name] = struct{}{}
				schedule()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, name)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// ingest uploads one file and clears it from the inbox.
func (w *Watcher) ingest(ctx context.Context, name string) {
	data, err := w.files.Read(name)
	if err != nil {
		// Removed before it settled.
		w.logger.Debug("inbox: read failed", slog.String("file", name), slog.String("error", err.Error()))
		return
	}
	res, err := w.up.Upload(ctx, name, data, w.cfg.Privacy)
	if err != nil {
		w.logger.Warn("inbox: upload rejected", slog.String("file", name), slog.String("error", err.Error()))
		if errors.Is(err, apperr.ErrValidation) {
			w.reject(name)
		}
		w.notify(name, "", err)
		return
	}
	if err := w.files.Delete(name); err != nil {
		w.logger.Warn("inbox: remove ingested file", slog.String("file", name), slog.String("error", err.Error()))
	}
	w.logger.Info("inbox: ingested", slog.String("file", name), slog.String("deck_id", res.DeckID))
	w.notify(name, res.DeckID, nil)
}

func (w *Watcher) reject(name string) {
	if err := w.files.Copy(name, RejectedDir+"/"+name); err != nil {
		w.logger.Warn("inbox: move to rejected", slog.String("file", name), slog.String("error", err.Error()))
		return
	}
	_ = w.files.Delete(name)
}

func (w *Watcher) notify(name, deckID string, err error) {
	if w.cb != nil {
		w.cb(name, deckID, err)
	}
}

// accept reports whether name looks like a finished deck. Office lock files
// (~$name.pptx) and hidden files are skipped.
func accept(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), pptx.Extension)
}
