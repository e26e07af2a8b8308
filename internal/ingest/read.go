package ingest

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/models"
)

// DeckDetail is a deck with its slides in slide order. While the deck is
// converting the slide list may be partial.
type DeckDetail struct {
	models.Deck
	Slides []models.Slide `json:"slides"`
}

// SlideDetail is a slide with a summary of its deck.
type SlideDetail struct {
	models.Slide
	DeckName  string           `json:"deck_name"`
	DeckState models.DeckState `json:"deck_state"`
}

// Download is the payload of an explicit slide download.
type Download struct {
	Filename      string
	Image         []byte
	DownloadCount int64
}

// List returns decks, newest first, with the total count.
func (c *Coordinator) List(_ context.Context, limit, offset int) ([]models.Deck, int, error) {
	decks, total, err := c.store.ListDecks(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if decks == nil {
		decks = []models.Deck{}
	}
	return decks, total, nil
}

// Get returns one deck and its slides.
func (c *Coordinator) Get(_ context.Context, id string) (*DeckDetail, error) {
	deck, err := c.store.GetDeck(id)
	if err != nil {
		return nil, err
	}
	slides, err := c.store.ListSlides(id)
	if err != nil {
		return nil, err
	}
	if slides == nil {
		slides = []models.Slide{}
	}
	return &DeckDetail{Deck: *deck, Slides: slides}, nil
}

// Slide returns one slide with its deck summary.
func (c *Coordinator) Slide(_ context.Context, id int64) (*SlideDetail, error) {
	s, err := c.store.GetSlide(id)
	if err != nil {
		return nil, err
	}
	d, err := c.store.GetDeck(s.DeckID)
	if err != nil {
		return nil, err
	}
	return &SlideDetail{Slide: *s, DeckName: d.OriginalName, DeckState: d.State}, nil
}

// Download returns a slide's image and counts the download. Slides without
// an image yield apperr.ErrNotFound and are not counted.
func (c *Coordinator) Download(ctx context.Context, id int64) (*Download, error) {
	d, err := c.Slide(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.HasImage() {
		return nil, fmt.Errorf("ingest: slide %d has no image: %w", id, apperr.ErrNotFound)
	}
	img, err := c.arts.Get(*d.ImageRef)
	if err != nil {
		return nil, err
	}
	n, err := c.store.IncrementDownload(id)
	if err != nil {
		if isNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("ingest: count download: %w", err)
	}
	c.metrics.IncDownload()
	return &Download{
		Filename:      fmt.Sprintf("%s-slide-%02d.png", trimExt(d.DeckName), d.SlideNumber),
		Image:         img,
		DownloadCount: n,
	}, nil
}

func trimExt(name string) string {
	return strings.TrimSuffix(path.Base(name), path.Ext(name))
}
