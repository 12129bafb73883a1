package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jward/symdex/internal/index"
)

// FileByPath returns the cached parse of path, or nil if none.
func (s *Store) FileByPath(path string) (*SourceFile, error) {
	f := &SourceFile{}
	var pkg sql.NullString
	var table string
	err := s.db.QueryRow(
		"SELECT id, path, hash, package, symbol_table, last_indexed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Hash, &pkg, &table, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	f.Package = pkg.String
	if err := json.Unmarshal([]byte(table), &f.Table); err != nil {
		return nil, fmt.Errorf("file by path: decode %s: %w", path, err)
	}
	return f, nil
}

// UpsertFile caches table as the parse of path at hash.
func (s *Store) UpsertFile(hash string, table index.SymbolTable) error {
	b, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("upsert file: encode %s: %w", table.FilePath, err)
	}
	_, err = s.db.Exec(`INSERT INTO files (path, hash, package, symbol_table, last_indexed) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, package = excluded.package,
			symbol_table = excluded.symbol_table, last_indexed = excluded.last_indexed`,
		table.FilePath, hash, table.PackageName, string(b), time.Now().UTC().Truncate(time.Second))
	if err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}
	return nil
}

// DeleteFile removes the cached parse of path.
func (s *Store) DeleteFile(path string) error {
	if _, err := s.db.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// FilePaths returns every cached source path, sorted.
func (s *Store) FilePaths() ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("file paths: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan file path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
