// Package models defines the domain types for the slide search service.
package models

import (
	"fmt"
	"time"
)

// DeckState is the lifecycle state of an uploaded deck.
type DeckState string

const (
	DeckUploaded   DeckState = "uploaded"
	DeckConverting DeckState = "converting"
	DeckReady      DeckState = "ready"
	DeckFailed     DeckState = "failed"
)

// Terminal reports whether no further transition is allowed (other than deletion).
func (s DeckState) Terminal() bool {
	return s == DeckReady || s == DeckFailed
}

// Valid reports whether s is a known state.
func (s DeckState) Valid() bool {
	switch s {
	case DeckUploaded, DeckConverting, DeckReady, DeckFailed:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving from s to next.
//
//	uploaded   -> converting | failed
//	converting -> ready | failed
func (s DeckState) CanTransition(next DeckState) bool {
	switch s {
	case DeckUploaded:
		return next == DeckConverting || next == DeckFailed
	case DeckConverting:
		return next == DeckReady || next == DeckFailed
	}
	return false
}

// ReasonCode explains why a deck ended up Failed.
type ReasonCode string

const (
	ReasonNone              ReasonCode = ""
	ReasonEngineUnavailable ReasonCode = "engine_unavailable"
	ReasonConversionTimeout ReasonCode = "conversion_timeout"
	ReasonCorruptInput      ReasonCode = "corrupt_input"
	ReasonStorageError      ReasonCode = "storage_error"
)

// Deck is a single uploaded slide document.
type Deck struct {
	ID                 string     `json:"id"`
	OriginalName       string     `json:"original_name"`
	StoredName         string     `json:"stored_name"`
	Checksum           string     `json:"checksum"`
	UploadedAt         time.Time  `json:"uploaded_at"`
	State              DeckState  `json:"state"`
	Reason             ReasonCode `json:"reason,omitempty"`
	ExpectedSlideCount int        `json:"expected_slide_count"`
	SlideCount         int        `json:"slide_count"`
	PrivacyMode        bool       `json:"privacy_mode"`
}

// DocumentPath is the storage path of the deck's raw uploaded document.
func (d *Deck) DocumentPath() string {
	return fmt.Sprintf("uploads/%s/%s", d.ID, d.StoredName)
}
