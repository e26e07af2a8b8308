// Package artifact maps slides to image blobs in storage.
//
// Layout:
//
//	decks/<deck_id>/<NNNN>.png   rendered slide images, slide number zero-padded to four digits
//	archive/<uuid>.png            independent copies for archived slides
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/google/uuid"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/storage"
)

const (
	deckPrefix    = "decks/"
	archivePrefix = "archive/"
	ext           = ".png"
)

// Store is the artifact store on top of a storage.Provider.
type Store struct {
	fs storage.Provider
}

// New creates an artifact store.
func New(fs storage.Provider) *Store {
	return &Store{fs: fs}
}

// SlideRef returns the image_ref for a slide of a deck.
func SlideRef(deckID string, slideNumber int) string {
	return fmt.Sprintf("%s%s/%04d%s", deckPrefix, deckID, slideNumber, ext)
}

// DeckDir returns the directory holding all artifacts of a deck.
func DeckDir(deckID string) string {
	return deckPrefix + deckID
}

// Valid reports whether ref has the shape of an artifact reference.
func Valid(ref string) bool {
	if !strings.HasSuffix(ref, ext) || strings.Contains(ref, "..") {
		return false
	}
	return strings.HasPrefix(ref, deckPrefix) || strings.HasPrefix(ref, archivePrefix)
}

// Put stores the image for a slide and returns its reference.
func (s *Store) Put(deckID string, slideNumber int, image []byte) (string, error) {
	if deckID == "" || slideNumber < 1 {
		return "", fmt.Errorf("artifact: put: invalid key %q/%d: %w", deckID, slideNumber, apperr.ErrValidation)
	}
	if len(image) == 0 {
		return "", fmt.Errorf("artifact: put: empty image: %w", apperr.ErrValidation)
	}
	ref := SlideRef(deckID, slideNumber)
	if err := s.fs.Write(ref, image); err != nil {
		return "", fmt.Errorf("artifact: put: %w", err)
	}
	return ref, nil
}

// Get returns the image bytes for ref, or apperr.ErrNotFound.
func (s *Store) Get(ref string) ([]byte, error) {
	if !Valid(ref) {
		return nil, fmt.Errorf("artifact: get %q: %w", ref, apperr.ErrNotFound)
	}
	data, err := s.fs.Read(ref)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("artifact: get %q: %w", ref, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("artifact: get: %w", err)
	}
	return data, nil
}

// DeleteDeck removes every artifact belonging to a deck.
func (s *Store) DeleteDeck(deckID string) error {
	if deckID == "" {
		return fmt.Errorf("artifact: delete deck: empty id: %w", apperr.ErrValidation)
	}
	if err := s.fs.DeleteAll(DeckDir(deckID)); err != nil {
		return fmt.Errorf("artifact: delete deck: %w", err)
	}
	return nil
}

// CopyForArchive duplicates ref into the archive area and returns the new
// reference. The copy survives deletion of the source deck.
func (s *Store) CopyForArchive(ref string) (string, error) {
	if !Valid(ref) {
		return "", fmt.Errorf("artifact: copy %q: %w", ref, apperr.ErrNotFound)
	}
	dst := archivePrefix + uuid.NewString() + ext
	if err := s.fs.Copy(ref, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("artifact: copy %q: %w", ref, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("artifact: copy: %w", err)
	}
	return dst, nil
}

// Delete removes a single artifact. Missing artifacts are ignored.
func (s *Store) Delete(ref string) error {
	if !Valid(ref) {
		return fmt.Errorf("artifact: delete %q: %w", ref, apperr.ErrValidation)
	}
	if err := s.fs.Delete(ref); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("artifact: delete: %w", err)
	}
	return nil
}

// DeckIDs lists the deck ids that currently own an artifact directory.
func (s *Store) DeckIDs() ([]string, error) {
	entries, err := s.fs.List(strings.TrimSuffix(deckPrefix, "/"))
	if err != nil {
		return nil, fmt.Errorf("artifact: list decks: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir {
			ids = append(ids, e.Name)
		}
	}
	return ids, nil
}
