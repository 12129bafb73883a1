// Package store persists indexing results in SQLite so a restart does not
// rescan unchanged dependency archives or reparse unchanged sources.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite cache for archive symbols, source symbol tables and
// session metadata.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Open is NewStore followed by Migrate.
func Open(dbPath string) (*Store, error) {
	s, err := NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// schemaVersion is recorded in metadata. A cache written with another
// version is dropped and rebuilt on Migrate.
const schemaVersion = "1"

// Migrate creates all tables and indexes, first dropping them if the
// database holds a different schema version. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(metadataDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	version, ok, err := s.GetMetadata("schema_version")
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if ok && version != schemaVersion {
		if _, err := s.db.Exec(dropDDL); err != nil {
			return fmt.Errorf("migrate: drop v%s: %w", version, err)
		}
	}
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if !ok || version != schemaVersion {
		return s.SetMetadata("schema_version", schemaVersion)
	}
	return nil
}

const metadataDDL = `
CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);
`

const dropDDL = `
DROP TABLE IF EXISTS archive_symbols;
DROP TABLE IF EXISTS archives;
DROP TABLE IF EXISTS files;
DELETE FROM metadata;
`

const schemaDDL = `
CREATE TABLE IF NOT EXISTS archives (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT NOT NULL,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS archive_symbols (
  id              INTEGER PRIMARY KEY,
  archive_id      INTEGER NOT NULL REFERENCES archives(id) ON DELETE CASCADE,
  fq_name         TEXT NOT NULL,
  kind            TEXT NOT NULL,
  entry           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT NOT NULL,
  package         TEXT,
  symbol_table    TEXT NOT NULL,
  last_indexed    TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_archive_symbols_archive ON archive_symbols(archive_id);
CREATE INDEX IF NOT EXISTS idx_archive_symbols_fq ON archive_symbols(fq_name);
CREATE INDEX IF NOT EXISTS idx_files_package ON files(package);
`

// GetMetadata returns the value stored under key, or "" and false.
func (s *Store) GetMetadata(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get metadata %q: %w", key, err)
	}
	return v, true, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}
