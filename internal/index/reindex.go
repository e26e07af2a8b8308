package index

import (
	"database/sql"
	"fmt"
)

type layerRow struct {
	id                 int64
	title, body, notes string
}

// Reindex rebuilds the slide and archive projections from their source
// tables and returns the number of rows projected. It runs in one
// transaction, so queries see either the old or the new projection.
func (db *DB) Reindex() (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n := 0
	for _, p := range []struct {
		source, target, key string
	}{
		{"slides", "slide_index", "slide_id"},
		{"archived_slides", "archive_index", "archive_id"},
	} {
		rows, err := readLayers(tx, p.source)
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(`DELETE FROM ` + p.target); err != nil {
			return 0, fmt.Errorf("index: clear %s: %w", p.target, err)
		}
		stmt, err := tx.Prepare(`INSERT INTO ` + p.target + ` (` + p.key + `, title_fold, body_fold, notes_fold) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("index: prepare %s: %w", p.target, err)
		}
		for _, r := range rows {
			if _, err := stmt.Exec(r.id, Fold(r.title), Fold(r.body), Fold(r.notes)); err != nil {
				stmt.Close()
				return 0, fmt.Errorf("index: project %s %d: %w", p.source, r.id, err)
			}
		}
		stmt.Close()
		n += len(rows)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit reindex: %w", err)
	}
	return n, nil
}

func readLayers(tx *sql.Tx, table string) ([]layerRow, error) {
	rows, err := tx.Query(`SELECT id, title, body_text, notes_text FROM ` + table + ` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("index: read %s: %w", table, err)
	}
	defer rows.Close()
	var out []layerRow
	for rows.Next() {
		var r layerRow
		if err := rows.Scan(&r.id, &r.title, &r.body, &r.notes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
