package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/churryboy/ppt/internal/archive"
	"github.com/churryboy/ppt/internal/ingest"
	"github.com/churryboy/ppt/internal/metrics"
	"github.com/churryboy/ppt/internal/search"
)

// defaultMaxUpload applies when RouterConfig.MaxUploadBytes is unset.
const defaultMaxUpload = 100 << 20

// RouterConfig carries the services and settings behind the API.
type RouterConfig struct {
	Decks     *ingest.Coordinator
	Search    *search.Engine
	Archive   *archive.Service
	Artifacts ArtifactReader
	Metrics   *metrics.DeliveryMetrics

	AuthEnabled    bool
	Token          string
	MaxUploadBytes int64

	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(cfg RouterConfig) chi.Router {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	h := &Handler{
		decks:     cfg.Decks,
		search:    cfg.Search,
		archive:   cfg.Archive,
		artifacts: cfg.Artifacts,
		metrics:   cfg.Metrics,
		maxUpload: maxUpload,
	}

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Decks.
	r.Get("/decks", h.ListDecks)
	r.Post("/decks", h.UploadDeck)
	r.Get("/decks/{id}", h.GetDeck)
	r.Delete("/decks/{id}", h.DeleteDeck)

	// Slides.
	r.Get("/search", h.Search)
	r.Get("/slides/{id}", h.GetSlide)
	r.Get("/slides/{id}/download", h.DownloadSlide)
	r.Post("/slides/{id}/archive", h.ArchiveSlide)

	// Archive.
	r.Get("/archives", h.ListArchives)
	r.Get("/archives/search", h.SearchArchives)
	r.Get("/archives/{id}", h.GetArchive)
	r.Delete("/archives/{id}", h.DeleteArchive)

	// Images.
	r.Get("/artifacts/*", h.ServeArtifact)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
