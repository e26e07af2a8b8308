// Package index is the SQLite system of record for decks, slides and archived
// slides, together with the folded-text projection that search runs against.
package index

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS decks (
	id                   TEXT PRIMARY KEY,
	original_name        TEXT NOT NULL,
	stored_name          TEXT NOT NULL,
	checksum             TEXT NOT NULL DEFAULT '',
	uploaded_at          DATETIME NOT NULL,
	state                TEXT NOT NULL,
	reason               TEXT NOT NULL DEFAULT '',
	expected_slide_count INTEGER NOT NULL DEFAULT 0,
	privacy_mode         INTEGER NOT NULL DEFAULT 0,
	updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_decks_state ON decks(state);
CREATE INDEX IF NOT EXISTS idx_decks_uploaded ON decks(uploaded_at);

CREATE TABLE IF NOT EXISTS slides (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	deck_id           TEXT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
	slide_number      INTEGER NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	body_text         TEXT NOT NULL DEFAULT '',
	notes_text        TEXT NOT NULL DEFAULT '',
	image_ref         TEXT,
	text_only         INTEGER NOT NULL DEFAULT 0,
	extraction_failed INTEGER NOT NULL DEFAULT 0,
	hidden            INTEGER NOT NULL DEFAULT 0,
	download_count    INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(deck_id, slide_number)
);

CREATE TABLE IF NOT EXISTS slide_index (
	slide_id   INTEGER PRIMARY KEY REFERENCES slides(id) ON DELETE CASCADE,
	title_fold TEXT NOT NULL,
	body_fold  TEXT NOT NULL,
	notes_fold TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS archived_slides (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	source_slide_id  INTEGER NOT NULL UNIQUE,
	source_deck_name TEXT NOT NULL,
	slide_number     INTEGER NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	body_text        TEXT NOT NULL DEFAULT '',
	notes_text       TEXT NOT NULL DEFAULT '',
	image_ref        TEXT,
	archived_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS archive_index (
	archive_id INTEGER PRIMARY KEY REFERENCES archived_slides(id) ON DELETE CASCADE,
	title_fold TEXT NOT NULL,
	body_fold  TEXT NOT NULL,
	notes_fold TEXT NOT NULL
);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// Transactions begin IMMEDIATE so read-then-write sequences never hit a stale
// snapshot under WAL.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Fold is the case folding applied to stored layers and queries alike.
func Fold(s string) string {
	return strings.ToLower(s)
}
