// Package archive pins individual slides as snapshots that outlive their deck.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/models"
	"github.com/churryboy/ppt/internal/search"
)

// Store is the part of the catalog the archive needs.
type Store interface {
	GetSlide(id int64) (*models.Slide, error)
	GetDeck(id string) (*models.Deck, error)
	InsertArchive(a *models.ArchivedSlide) error
	GetArchive(id int64) (*models.ArchivedSlide, error)
	GetArchiveBySource(slideID int64) (*models.ArchivedSlide, error)
	ListArchives(limit, offset int) ([]models.ArchivedSlide, int, error)
	DeleteArchive(id int64) error
}

// Artifacts copies and removes archived images.
type Artifacts interface {
	CopyForArchive(ref string) (string, error)
	Delete(ref string) error
}

// Searcher runs ranked archive queries.
type Searcher interface {
	QueryArchive(ctx context.Context, text string, limit int) ([]search.ArchiveResult, error)
}

// Service manages archived slides.
type Service struct {
	store    Store
	arts     Artifacts
	searcher Searcher
	logger   *slog.Logger
}

// NewService creates an archive service.
func NewService(store Store, arts Artifacts, searcher Searcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, arts: arts, searcher: searcher, logger: logger.With("component", "archive")}
}

// Archive snapshots a slide's text layers and copies its image. Archiving a
// slide that is already archived returns the existing snapshot with
// created == false.
func (s *Service) Archive(_ context.Context, slideID int64) (a *models.ArchivedSlide, created bool, err error) {
	if existing, err := s.store.GetArchiveBySource(slideID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}

	slide, err := s.store.GetSlide(slideID)
	if err != nil {
		return nil, false, err
	}
	deck, err := s.store.GetDeck(slide.DeckID)
	if err != nil {
		return nil, false, err
	}

	a = &models.ArchivedSlide{
		SourceSlideID:  slide.ID,
		SourceDeckName: deck.OriginalName,
		SlideNumber:    slide.SlideNumber,
		Title:          slide.Title,
		BodyText:       slide.BodyText,
		NotesText:      slide.NotesText,
	}
	if slide.HasImage() {
		ref, err := s.arts.CopyForArchive(*slide.ImageRef)
		if err != nil {
			return nil, false, fmt.Errorf("archive: copy image: %w", err)
		}
		a.ImageRef = models.StringRef(ref)
	}

	if err := s.store.InsertArchive(a); err != nil {
		s.dropCopy(a)
		if errors.Is(err, apperr.ErrAlreadyExists) {
			existing, gerr := s.store.GetArchiveBySource(slideID)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	s.logger.Info("slide archived", "slide_id", slideID, "archive_id", a.ID)
	return a, true, nil
}

// Get returns one archived slide.
func (s *Service) Get(_ context.Context, id int64) (*models.ArchivedSlide, error) {
	return s.store.GetArchive(id)
}

// List returns archived slides, newest first.
func (s *Service) List(_ context.Context, limit, offset int) ([]models.ArchivedSlide, int, error) {
	items, total, err := s.store.ListArchives(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []models.ArchivedSlide{}
	}
	return items, total, nil
}

// Delete removes an archived slide and its image copy only.
func (s *Service) Delete(_ context.Context, id int64) error {
	a, err := s.store.GetArchive(id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteArchive(id); err != nil {
		return err
	}
	s.dropCopy(a)
	s.logger.Info("archive deleted", "archive_id", id)
	return nil
}

// Search ranks archived slides against text.
func (s *Service) Search(ctx context.Context, text string, limit int) ([]search.ArchiveResult, error) {
	return s.searcher.QueryArchive(ctx, text, limit)
}

func (s *Service) dropCopy(a *models.ArchivedSlide) {
	if a.ImageRef == nil {
		return
	}
	if err := s.arts.Delete(*a.ImageRef); err != nil {
		s.logger.Warn("remove archive image", "ref", *a.ImageRef, "error", err)
	}
}
