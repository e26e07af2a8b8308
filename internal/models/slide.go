package models

import "time"

// Layer is one of the three searchable text categories of a slide.
type Layer string

const (
	LayerTitle Layer = "title"
	LayerBody  Layer = "body"
	LayerNotes Layer = "notes"
)

// Slide is one page of a deck with its three text layers and optional image.
//
// ImageRef is nil until an image artifact exists. The deck state, not the
// presence of ImageRef, says whether conversion is still pending.
type Slide struct {
	ID               int64     `json:"id"`
	DeckID           string    `json:"deck_id"`
	SlideNumber      int       `json:"slide_number"`
	Title            string    `json:"title"`
	BodyText         string    `json:"body_text"`
	NotesText        string    `json:"notes_text"`
	ImageRef         *string   `json:"image_ref"`
	TextOnly         bool      `json:"text_only"`
	ExtractionFailed bool      `json:"extraction_failed"`
	Hidden           bool      `json:"hidden"`
	DownloadCount    int64     `json:"download_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// HasImage reports whether an image artifact is attached.
func (s *Slide) HasImage() bool {
	return s.ImageRef != nil && *s.ImageRef != ""
}

// ArchivedSlide is a pinned, deck-independent snapshot of a slide.
type ArchivedSlide struct {
	ID             int64     `json:"id"`
	SourceSlideID  int64     `json:"source_slide_id"`
	SourceDeckName string    `json:"source_deck_name"`
	SlideNumber    int       `json:"slide_number"`
	Title          string    `json:"title"`
	BodyText       string    `json:"body_text"`
	NotesText      string    `json:"notes_text"`
	ImageRef       *string   `json:"image_ref"`
	ArchivedAt     time.Time `json:"archived_at"`
}

// StringRef returns a pointer to ref, or nil when ref is empty.
func StringRef(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}
