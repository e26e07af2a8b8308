// Package ingest accepts uploaded decks and owns their lifecycle outside of
// conversion: acceptance, deletion and crash recovery.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/checksum"
	"github.com/churryboy/ppt/internal/metrics"
	"github.com/churryboy/ppt/internal/models"
	"github.com/churryboy/ppt/internal/pptx"
	"github.com/churryboy/ppt/internal/sse"
	"github.com/churryboy/ppt/internal/storage"
)

const uploadsDir = "uploads"

// ErrTooLarge is returned for uploads above the configured size limit.
var ErrTooLarge = fmt.Errorf("document too large: %w", apperr.ErrValidation)

// Store is the part of the catalog the coordinator needs.
type Store interface {
	InsertDeck(d *models.Deck) error
	GetDeck(id string) (*models.Deck, error)
	ListDecks(limit, offset int) ([]models.Deck, int, error)
	DeleteDeck(id string) error
	DeckIDsInState(states ...models.DeckState) ([]string, error)
	AllDeckIDs() (map[string]struct{}, error)
	Reindex() (int, error)

	GetSlide(id int64) (*models.Slide, error)
	ListSlides(deckID string) ([]models.Slide, error)
	IncrementDownload(id int64) (int64, error)
}

// Artifacts is the part of the artifact store the coordinator needs.
type Artifacts interface {
	Get(ref string) ([]byte, error)
	DeleteDeck(deckID string) error
	DeckIDs() ([]string, error)
}

// Enqueuer schedules background conversion.
type Enqueuer interface {
	Enqueue(deckID string) error
}

// Notifier receives deck lifecycle events.
type Notifier interface {
	PublishDeckEvent(kind string, event sse.DeckEvent)
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Store     Store
	Documents storage.Provider
	Artifacts Artifacts
	Queue     Enqueuer
	Notifier  Notifier
	Metrics   *metrics.DeliveryMetrics
	Logger    *slog.Logger
}

// Coordinator is the entry point for every deck mutation outside conversion.
type Coordinator struct {
	store    Store
	docs     storage.Provider
	arts     Artifacts
	queue    Enqueuer
	notifier Notifier
	metrics  *metrics.DeliveryMetrics
	logger   *slog.Logger
	maxBytes int64
}

// New creates a coordinator. maxBytes <= 0 disables the size limit.
func New(maxBytes int64, deps Deps) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var notifier Notifier = nopNotifier{}
	if deps.Notifier != nil {
		notifier = deps.Notifier
	}
	return &Coordinator{
		store:    deps.Store,
		docs:     deps.Documents,
		arts:     deps.Artifacts,
		queue:    deps.Queue,
		notifier: notifier,
		metrics:  deps.Metrics,
		logger:   logger.With("component", "ingest"),
		maxBytes: maxBytes,
	}
}

// UploadResult acknowledges an accepted upload.
type UploadResult struct {
	DeckID   string `json:"deck_id"`
	Accepted bool   `json:"accepted"`
}

// Upload validates a document, persists it with an uploaded deck record and
// schedules conversion. It never waits for conversion.
func (c *Coordinator) Upload(_ context.Context, name string, data []byte, privacy bool) (*UploadResult, error) {
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		c.metrics.IncUpload("rejected")
		return nil, fmt.Errorf("ingest: %d bytes: %w", len(data), ErrTooLarge)
	}
	if err := pptx.Validate(name, data); err != nil {
		c.metrics.IncUpload("rejected")
		return nil, err
	}

	deck := &models.Deck{
		ID:           uuid.NewString(),
		OriginalName: name,
		StoredName:   uuid.NewString() + pptx.Extension,
		Checksum:     checksum.Sum(data),
		UploadedAt:   time.Now().UTC(),
		State:        models.DeckUploaded,
		PrivacyMode:  privacy,
	}
	if err := c.docs.Write(deck.DocumentPath(), data); err != nil {
		c.metrics.IncUpload("error")
		return nil, fmt.Errorf("ingest: store document: %w", err)
	}
	if err := c.store.InsertDeck(deck); err != nil {
		_ = c.docs.DeleteAll(uploadsDir + "/" + deck.ID)
		c.metrics.IncUpload("error")
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if err := c.queue.Enqueue(deck.ID); err != nil {
		// The deck stays uploaded and is picked up by recovery on the next start.
		c.logger.Warn("enqueue deck", "deck_id", deck.ID, "error", err)
	}

	c.metrics.IncUpload("accepted")
	c.notifier.PublishDeckEvent(sse.EventDeckUploaded, sse.DeckEvent{DeckID: deck.ID, State: string(deck.State)})
	c.logger.Info("deck accepted", "deck_id", deck.ID, "name", name, "bytes", len(data), "privacy_mode", privacy)
	return &UploadResult{DeckID: deck.ID, Accepted: true}, nil
}

// Delete removes a deck, its slides, its artifacts and its raw document.
// Archived copies of its slides are not touched. A conversion still running
// for the deck discards its output when it next tries to write.
func (c *Coordinator) Delete(_ context.Context, id string) error {
	if err := c.store.DeleteDeck(id); err != nil {
		return err
	}
	if err := c.arts.DeleteDeck(id); err != nil {
		c.logger.Warn("delete artifacts", "deck_id", id, "error", err)
	}
	if err := c.docs.DeleteAll(uploadsDir + "/" + id); err != nil {
		c.logger.Warn("delete document", "deck_id", id, "error", err)
	}
	c.notifier.PublishDeckEvent(sse.EventDeckDeleted, sse.DeckEvent{DeckID: id})
	c.logger.Info("deck deleted", "deck_id", id)
	return nil
}

// RecoveryReport summarizes a Recover pass.
type RecoveryReport struct {
	Requeued        int
	OrphanArtifacts int
	OrphanUploads   int
	Reindexed       int
}

// Recover re-enqueues decks whose conversion never reached a terminal state,
// removes blobs that belong to no deck and rebuilds the search projection.
func (c *Coordinator) Recover(ctx context.Context) (RecoveryReport, error) {
	var rep RecoveryReport

	ids, err := c.store.DeckIDsInState(models.DeckUploaded, models.DeckConverting)
	if err != nil {
		return rep, fmt.Errorf("ingest: recover: %w", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := c.queue.Enqueue(id); err != nil {
			return rep, fmt.Errorf("ingest: recover %s: %w", id, err)
		}
		rep.Requeued++
	}

	known, err := c.store.AllDeckIDs()
	if err != nil {
		return rep, fmt.Errorf("ingest: recover: %w", err)
	}
	artifactDecks, err := c.arts.DeckIDs()
	if err != nil {
		return rep, fmt.Errorf("ingest: recover: %w", err)
	}
	for _, id := range artifactDecks {
		if _, ok := known[id]; ok {
			continue
		}
		if err := c.arts.DeleteDeck(id); err != nil {
			c.logger.Warn("remove orphan artifacts", "deck_id", id, "error", err)
			continue
		}
		rep.OrphanArtifacts++
	}
	uploads, err := c.docs.List(uploadsDir)
	if err != nil {
		return rep, fmt.Errorf("ingest: recover: %w", err)
	}
	for _, e := range uploads {
		if !e.IsDir {
			continue
		}
		if _, ok := known[e.Name]; ok {
			continue
		}
		if err := c.docs.DeleteAll(uploadsDir + "/" + e.Name); err != nil {
			c.logger.Warn("remove orphan upload", "deck_id", e.Name, "error", err)
			continue
		}
		rep.OrphanUploads++
	}

	if rep.Reindexed, err = c.store.Reindex(); err != nil {
		return rep, fmt.Errorf("ingest: recover: %w", err)
	}
	c.logger.Info("recovery complete",
		"requeued", rep.Requeued,
		"orphan_artifacts", rep.OrphanArtifacts,
		"orphan_uploads", rep.OrphanUploads,
		"reindexed", rep.Reindexed)
	return rep, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}

type nopNotifier struct{}

func (nopNotifier) PublishDeckEvent(string, sse.DeckEvent) {}
