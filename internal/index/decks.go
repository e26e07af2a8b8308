package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/models"
)

const deckColumns = `d.id, d.original_name, d.stored_name, d.checksum, d.uploaded_at, d.state, d.reason,
	d.expected_slide_count, d.privacy_mode,
	(SELECT count(*) FROM slides s WHERE s.deck_id = d.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeck(r rowScanner) (*models.Deck, error) {
	var d models.Deck
	var state, reason string
	if err := r.Scan(&d.ID, &d.OriginalName, &d.StoredName, &d.Checksum, &d.UploadedAt,
		&state, &reason, &d.ExpectedSlideCount, &d.PrivacyMode, &d.SlideCount); err != nil {
		return nil, err
	}
	d.State = models.DeckState(state)
	d.Reason = models.ReasonCode(reason)
	return &d, nil
}

// InsertDeck creates a deck record.
func (db *DB) InsertDeck(d *models.Deck) error {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO decks (id, original_name, stored_name, checksum, uploaded_at, state, reason,
			expected_slide_count, privacy_mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.OriginalName, d.StoredName, d.Checksum, d.UploadedAt, string(d.State), string(d.Reason),
		d.ExpectedSlideCount, d.PrivacyMode)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("index: insert deck %s: %w", d.ID, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("index: insert deck: %w", err)
	}
	return nil
}

// GetDeck returns a deck with its current slide count.
func (db *DB) GetDeck(id string) (*models.Deck, error) {
	d, err := scanDeck(db.conn.QueryRow(`SELECT `+deckColumns+` FROM decks d WHERE d.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: deck %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get deck: %w", err)
	}
	return d, nil
}

// ListDecks returns decks newest first together with the total count.
func (db *DB) ListDecks(limit, offset int) ([]models.Deck, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM decks`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count decks: %w", err)
	}
	rows, err := db.conn.Query(`SELECT `+deckColumns+` FROM decks d
		ORDER BY d.uploaded_at DESC, d.rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list decks: %w", err)
	}
	defer rows.Close()

	out := []models.Deck{}
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

// TransitionDeck moves a deck to state to, recording reason. Transitions the
// lifecycle does not allow fail with apperr.ErrInvalidTransition.
func (db *DB) TransitionDeck(id string, to models.DeckState, reason models.ReasonCode) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var cur string
	err = tx.QueryRow(`SELECT state FROM decks WHERE id = ?`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("index: deck %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("index: read state: %w", err)
	}
	if !models.DeckState(cur).CanTransition(to) {
		return fmt.Errorf("index: deck %s: %s -> %s: %w", id, cur, to, apperr.ErrInvalidTransition)
	}
	if _, err := tx.Exec(`UPDATE decks SET state = ?, reason = ?, updated_at = ? WHERE id = ?`,
		string(to), string(reason), time.Now().UTC(), id); err != nil {
		return fmt.Errorf("index: update state: %w", err)
	}
	return tx.Commit()
}

// SetExpectedSlideCount records how many slides the document declares.
func (db *DB) SetExpectedSlideCount(id string, n int) error {
	res, err := db.conn.Exec(`UPDATE decks SET expected_slide_count = ?, updated_at = ? WHERE id = ?`,
		n, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("index: set slide count: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("index: deck %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// DeleteDeck removes a deck; slides and their projection rows cascade.
func (db *DB) DeleteDeck(id string) error {
	res, err := db.conn.Exec(`DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete deck: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("index: deck %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// DeckIDsInState returns ids of decks in any of the given states, oldest first.
func (db *DB) DeckIDsInState(states ...models.DeckState) ([]string, error) {
	if len(states) == 0 {
		return nil, nil
	}
	args := make([]any, len(states))
	for i, s := range states {
		args[i] = string(s)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(states)), ",")
	rows, err := db.conn.Query(`SELECT id FROM decks WHERE state IN (`+placeholders+`)
		ORDER BY uploaded_at, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: decks in state: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AllDeckIDs returns every known deck id.
func (db *DB) AllDeckIDs() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT id FROM decks`)
	if err != nil {
		return nil, fmt.Errorf("index: all deck ids: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
