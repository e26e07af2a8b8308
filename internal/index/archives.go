package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/models"
)

const archiveColumns = `a.id, a.source_slide_id, a.source_deck_name, a.slide_number,
	a.title, a.body_text, a.notes_text, a.image_ref, a.archived_at`

// ArchiveMatch is an archived slide with the layers that contain the query.
type ArchiveMatch struct {
	Archive models.ArchivedSlide
	Title   bool
	Body    bool
	Notes   bool
}

func scanArchive(r rowScanner, extra ...any) (*models.ArchivedSlide, error) {
	var a models.ArchivedSlide
	var ref sql.NullString
	dest := []any{&a.ID, &a.SourceSlideID, &a.SourceDeckName, &a.SlideNumber,
		&a.Title, &a.BodyText, &a.NotesText, &ref, &a.ArchivedAt}
	if err := r.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if ref.Valid {
		a.ImageRef = models.StringRef(ref.String)
	}
	return &a, nil
}

// InsertArchive writes an archived slide and its projection. Archiving the
// same source slide twice yields apperr.ErrAlreadyExists.
func (db *DB) InsertArchive(a *models.ArchivedSlide) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if a.ArchivedAt.IsZero() {
		a.ArchivedAt = time.Now().UTC()
	}
	res, err := tx.Exec(`
		INSERT INTO archived_slides (source_slide_id, source_deck_name, slide_number,
			title, body_text, notes_text, image_ref, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.SourceSlideID, a.SourceDeckName, a.SlideNumber, a.Title, a.BodyText, a.NotesText,
		a.ImageRef, a.ArchivedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("index: archive of slide %d: %w", a.SourceSlideID, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("index: insert archive: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("index: archive id: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO archive_index (archive_id, title_fold, body_fold, notes_fold) VALUES (?, ?, ?, ?)`,
		id, Fold(a.Title), Fold(a.BodyText), Fold(a.NotesText)); err != nil {
		return fmt.Errorf("index: project archive: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit archive: %w", err)
	}
	a.ID = id
	return nil
}

func (db *DB) getArchive(where string, arg any) (*models.ArchivedSlide, error) {
	a, err := scanArchive(db.conn.QueryRow(`SELECT `+archiveColumns+` FROM archived_slides a WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: archive: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get archive: %w", err)
	}
	return a, nil
}

// GetArchive returns one archived slide by id.
func (db *DB) GetArchive(id int64) (*models.ArchivedSlide, error) {
	return db.getArchive(`a.id = ?`, id)
}

// GetArchiveBySource returns the archived copy of a slide, if any.
func (db *DB) GetArchiveBySource(slideID int64) (*models.ArchivedSlide, error) {
	return db.getArchive(`a.source_slide_id = ?`, slideID)
}

// ListArchives returns archived slides newest first with the total count.
func (db *DB) ListArchives(limit, offset int) ([]models.ArchivedSlide, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM archived_slides`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count archives: %w", err)
	}
	rows, err := db.conn.Query(`SELECT `+archiveColumns+` FROM archived_slides a
		ORDER BY a.archived_at DESC, a.id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list archives: %w", err)
	}
	defer rows.Close()

	out := []models.ArchivedSlide{}
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

// DeleteArchive removes an archived slide and its projection.
func (db *DB) DeleteArchive(id int64) error {
	res, err := db.conn.Exec(`DELETE FROM archived_slides WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete archive: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("index: archive %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// MatchArchives is the archive counterpart of MatchSlides.
func (db *DB) MatchArchives(foldedQuery string) ([]ArchiveMatch, error) {
	if foldedQuery == "" {
		return nil, nil
	}
	q := foldedQuery
	rows, err := db.conn.Query(`
		SELECT `+archiveColumns+`,
			instr(i.title_fold, ?) > 0, instr(i.body_fold, ?) > 0, instr(i.notes_fold, ?) > 0
		FROM archive_index i
		JOIN archived_slides a ON a.id = i.archive_id
		WHERE instr(i.title_fold, ?) > 0 OR instr(i.body_fold, ?) > 0 OR instr(i.notes_fold, ?) > 0
		ORDER BY a.id
	`, q, q, q, q, q, q)
	if err != nil {
		return nil, fmt.Errorf("index: match archives: %w", err)
	}
	defer rows.Close()

	var out []ArchiveMatch
	for rows.Next() {
		var m ArchiveMatch
		a, err := scanArchive(rows, &m.Title, &m.Body, &m.Notes)
		if err != nil {
			return nil, err
		}
		m.Archive = *a
		out = append(out, m)
	}
	return out, rows.Err()
}
