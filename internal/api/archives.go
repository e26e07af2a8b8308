package api

import (
	"net/http"
)

// ArchiveSlide handles POST /api/slides/{id}/archive. A new snapshot answers
// 201; a slide that was already archived answers 200 with the existing one.
func (h *Handler) ArchiveSlide(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	a, created, err := h.archive.Archive(r.Context(), id)
	if err != nil {
		writeError(w, "archive slide", err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, ArchiveResponse{Archive: a, AlreadyArchived: !created})
}

// ListArchives handles GET /api/archives.
func (h *Handler) ListArchives(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, "list archives", err)
		return
	}
	items, total, err := h.archive.List(r.Context(), page.Limit, page.Offset)
	if err != nil {
		writeError(w, "list archives", err)
		return
	}
	writeJSON(w, http.StatusOK, ArchiveListResponse{Archives: items, Total: total})
}

// GetArchive handles GET /api/archives/{id}.
func (h *Handler) GetArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	a, err := h.archive.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get archive", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// SearchArchives handles GET /api/archives/search?q=.
func (h *Handler) SearchArchives(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, "search archives", err)
		return
	}
	q := r.URL.Query().Get("q")
	results, err := h.archive.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search archives", err)
		return
	}
	writeJSON(w, http.StatusOK, ArchiveSearchResponse{Query: q, Results: results})
}

// DeleteArchive handles DELETE /api/archives/{id}.
func (h *Handler) DeleteArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.archive.Delete(r.Context(), id); err != nil {
		writeError(w, "delete archive", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
