package api

import (
	"fmt"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/ingest"
	"github.com/churryboy/ppt/internal/models"
	"github.com/churryboy/ppt/internal/search"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// pageQuery is the limit/offset pair accepted by listing endpoints.
type pageQuery struct {
	Limit  int
	Offset int
}

func (p *pageQuery) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Limit, validation.Required, validation.Min(1), validation.Max(maxPageSize)),
		validation.Field(&p.Offset, validation.Min(0)),
	)
}

func parsePage(r *http.Request) (pageQuery, error) {
	p := pageQuery{Limit: defaultPageSize}
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("%s must be an integer: %w", name, apperr.ErrValidation)
		}
		*dst = n
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%v: %w", err, apperr.ErrValidation)
	}
	return p, nil
}

// parseLimit reads an optional result limit; zero means unlimited.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer: %w", apperr.ErrValidation)
	}
	return n, nil
}

// uploadRequest is the validated form of a multipart deck upload.
type uploadRequest struct {
	Filename string
	Size     int64
	Privacy  bool
}

func (u *uploadRequest) Validate() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Filename, validation.Required, validation.Length(1, 255)),
		validation.Field(&u.Size, validation.Required),
	)
}

// UploadResponse acknowledges an accepted deck.
type UploadResponse = ingest.UploadResult

// DeckListResponse wraps paginated deck listings.
type DeckListResponse struct {
	Decks []models.Deck `json:"decks"`
	Total int           `json:"total"`
}

// DeckDetail is a deck with its ordered slides.
type DeckDetail = ingest.DeckDetail

// SlideDetail is a slide with its deck summary.
type SlideDetail = ingest.SlideDetail

// SearchResponse wraps ranked slide matches.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// ArchiveSearchResponse wraps ranked archive matches.
type ArchiveSearchResponse struct {
	Query   string                 `json:"query"`
	Results []search.ArchiveResult `json:"results"`
}

// ArchiveResponse is returned when archiving a slide.
type ArchiveResponse struct {
	Archive         *models.ArchivedSlide `json:"archive"`
	AlreadyArchived bool                  `json:"already_archived"`
}

// ArchiveListResponse wraps paginated archive listings.
type ArchiveListResponse struct {
	Archives []models.ArchivedSlide `json:"archives"`
	Total    int                    `json:"total"`
}
