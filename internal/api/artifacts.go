package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/checksum"
)

// ServeArtifact handles GET /api/artifacts/*. It resolves an image_ref for
// passive display and never touches download counters.
func (h *Handler) ServeArtifact(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	img, err := h.artifacts.Get(ref)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.metrics.IncArtifact("miss")
		}
		writeError(w, "serve artifact", err)
		return
	}
	h.metrics.IncArtifact("hit")

	etag := checksum.ETag(img)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
