package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/churryboy/ppt/internal/archive"
	"github.com/churryboy/ppt/internal/ingest"
	"github.com/churryboy/ppt/internal/metrics"
	"github.com/churryboy/ppt/internal/search"
)

// multipartOverhead is the slack allowed on top of the document limit for
// multipart framing and form fields.
const multipartOverhead = 1 << 20

// ArtifactReader resolves image references to bytes.
type ArtifactReader interface {
	Get(ref string) ([]byte, error)
}

// Handler holds API route handlers.
type Handler struct {
	decks     *ingest.Coordinator
	search    *search.Engine
	archive   *archive.Service
	artifacts ArtifactReader
	metrics   *metrics.DeliveryMetrics
	maxUpload int64
}

// UploadDeck handles POST /api/decks (multipart/form-data, field "file",
// optional field "privacy_mode").
func (h *Handler) UploadDeck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("document too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	req := uploadRequest{Filename: header.Filename, Size: header.Size}
	if raw := r.FormValue("privacy_mode"); raw != "" {
		req.Privacy, err = strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("privacy_mode must be a boolean"))
			return
		}
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	res, err := h.decks.Upload(r.Context(), req.Filename, data, req.Privacy)
	if err != nil {
		writeError(w, "upload deck", err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// ListDecks handles GET /api/decks.
func (h *Handler) ListDecks(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, "list decks", err)
		return
	}
	decks, total, err := h.decks.List(r.Context(), page.Limit, page.Offset)
	if err != nil {
		writeError(w, "list decks", err)
		return
	}
	writeJSON(w, http.StatusOK, DeckListResponse{Decks: decks, Total: total})
}

// GetDeck handles GET /api/decks/{id}.
func (h *Handler) GetDeck(w http.ResponseWriter, r *http.Request) {
	d, err := h.decks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get deck", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteDeck handles DELETE /api/decks/{id}.
func (h *Handler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	if err := h.decks.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete deck", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	q := r.URL.Query().Get("q")
	results, err := h.search.Query(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: results})
}

// GetSlide handles GET /api/slides/{id}.
func (h *Handler) GetSlide(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s, err := h.decks.Slide(r.Context(), id)
	if err != nil {
		writeError(w, "get slide", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DownloadSlide handles GET /api/slides/{id}/download. Unlike artifact
// display fetches it counts toward the slide's download_count.
func (h *Handler) DownloadSlide(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	dl, err := h.decks.Download(r.Context(), id)
	if err != nil {
		writeError(w, "download slide", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.Header().Set("X-Download-Count", strconv.FormatInt(dl.DownloadCount, 10))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Image)
}

// idParam parses the numeric {id} URL parameter, writing 400 when invalid.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("id must be a positive integer"))
		return 0, false
	}
	return id, true
}
