package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/models"
)

const slideColumns = `s.id, s.deck_id, s.slide_number, s.title, s.body_text, s.notes_text, s.image_ref,
	s.text_only, s.extraction_failed, s.hidden, s.download_count, s.created_at`

// SlideMatch is a slide with the layers that contain the query.
type SlideMatch struct {
	Slide     models.Slide
	DeckName  string
	DeckState models.DeckState
	Title     bool
	Body      bool
	Notes     bool
}

func scanSlide(r rowScanner, extra ...any) (*models.Slide, error) {
	var s models.Slide
	var ref sql.NullString
	dest := []any{&s.ID, &s.DeckID, &s.SlideNumber, &s.Title, &s.BodyText, &s.NotesText, &ref,
		&s.TextOnly, &s.ExtractionFailed, &s.Hidden, &s.DownloadCount, &s.CreatedAt}
	if err := r.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if ref.Valid {
		s.ImageRef = models.StringRef(ref.String)
	}
	return &s, nil
}

// InsertSlide writes a slide and its search projection in one transaction.
// The deck must exist and be converting: a missing deck yields
// apperr.ErrNotFound, any other state apperr.ErrConflict. A slide number that
// is already present yields apperr.ErrAlreadyExists.
func (db *DB) InsertSlide(s *models.Slide) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var state string
	err = tx.QueryRow(`SELECT state FROM decks WHERE id = ?`, s.DeckID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("index: deck %s: %w", s.DeckID, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("index: read deck: %w", err)
	}
	if models.DeckState(state) != models.DeckConverting {
		return fmt.Errorf("index: deck %s is %s: %w", s.DeckID, state, apperr.ErrConflict)
	}

	now := time.Now().UTC()
	res, err := tx.Exec(`
		INSERT INTO slides (deck_id, slide_number, title, body_text, notes_text, image_ref,
			text_only, extraction_failed, hidden, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.DeckID, s.SlideNumber, s.Title, s.BodyText, s.NotesText, s.ImageRef,
		s.TextOnly, s.ExtractionFailed, s.Hidden, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("index: slide %s/%d: %w", s.DeckID, s.SlideNumber, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("index: insert slide: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("index: slide id: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO slide_index (slide_id, title_fold, body_fold, notes_fold) VALUES (?, ?, ?, ?)`,
		id, Fold(s.Title), Fold(s.BodyText), Fold(s.NotesText)); err != nil {
		return fmt.Errorf("index: project slide: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit slide: %w", err)
	}
	s.ID, s.CreatedAt = id, now
	return nil
}

// GetSlide returns one slide by id.
func (db *DB) GetSlide(id int64) (*models.Slide, error) {
	s, err := scanSlide(db.conn.QueryRow(`SELECT `+slideColumns+` FROM slides s WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: slide %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get slide: %w", err)
	}
	return s, nil
}

// ListSlides returns a deck's slides ordered by slide number.
func (db *DB) ListSlides(deckID string) ([]models.Slide, error) {
	rows, err := db.conn.Query(`SELECT `+slideColumns+` FROM slides s
		WHERE s.deck_id = ? ORDER BY s.slide_number`, deckID)
	if err != nil {
		return nil, fmt.Errorf("index: list slides: %w", err)
	}
	defer rows.Close()

	out := []models.Slide{}
	for rows.Next() {
		s, err := scanSlide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// SlideNumbers returns the slide numbers already written for a deck.
func (db *DB) SlideNumbers(deckID string) (map[int]struct{}, error) {
	rows, err := db.conn.Query(`SELECT slide_number FROM slides WHERE deck_id = ?`, deckID)
	if err != nil {
		return nil, fmt.Errorf("index: slide numbers: %w", err)
	}
	defer rows.Close()
	out := make(map[int]struct{})
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out[n] = struct{}{}
	}
	return out, rows.Err()
}

// IncrementDownload atomically bumps a slide's download counter and returns
// the new value.
func (db *DB) IncrementDownload(id int64) (int64, error) {
	var n int64
	err := db.conn.QueryRow(`UPDATE slides SET download_count = download_count + 1
		WHERE id = ? RETURNING download_count`, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("index: slide %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("index: increment download: %w", err)
	}
	return n, nil
}

// MatchSlides returns every slide with at least one layer containing
// foldedQuery, in insertion order. An empty query matches nothing.
func (db *DB) MatchSlides(foldedQuery string) ([]SlideMatch, error) {
	if foldedQuery == "" {
		return nil, nil
	}
	q := foldedQuery
	rows, err := db.conn.Query(`
		SELECT `+slideColumns+`, d.original_name, d.state,
			instr(i.title_fold, ?) > 0, instr(i.body_fold, ?) > 0, instr(i.notes_fold, ?) > 0
		FROM slide_index i
		JOIN slides s ON s.id = i.slide_id
		JOIN decks d ON d.id = s.deck_id
		WHERE instr(i.title_fold, ?) > 0 OR instr(i.body_fold, ?) > 0 OR instr(i.notes_fold, ?) > 0
		ORDER BY s.id
	`, q, q, q, q, q, q)
	if err != nil {
		return nil, fmt.Errorf("index: match slides: %w", err)
	}
	defer rows.Close()

	var out []SlideMatch
	for rows.Next() {
		var m SlideMatch
		var state string
		s, err := scanSlide(rows, &m.DeckName, &state, &m.Title, &m.Body, &m.Notes)
		if err != nil {
			return nil, err
		}
		m.Slide, m.DeckState = *s, models.DeckState(state)
		out = append(out, m)
	}
	return out, rows.Err()
}
