package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jward/symdex/internal/index"
)

const archiveColumns = `a.id, a.path, a.hash, a.last_indexed,
	(SELECT COUNT(*) FROM archive_symbols s WHERE s.archive_id = a.id)`

func scanArchive(scanner interface{ Scan(...any) error }) (*Archive, error) {
	a := &Archive{}
	if err := scanner.Scan(&a.ID, &a.Path, &a.Hash, &a.LastIndexed, &a.SymbolCount); err != nil {
		return nil, err
	}
	return a, nil
}

// ArchiveByPath returns the cached archive for path, or nil if none.
func (s *Store) ArchiveByPath(path string) (*Archive, error) {
	a, err := scanArchive(s.db.QueryRow("SELECT "+archiveColumns+" FROM archives a WHERE a.path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive by path: %w", err)
	}
	return a, nil
}

// Archives returns every cached archive ordered by path.
func (s *Store) Archives() ([]*Archive, error) {
	rows, err := s.db.Query("SELECT " + archiveColumns + " FROM archives a ORDER BY a.path")
	if err != nil {
		return nil, fmt.Errorf("archives: %w", err)
	}
	defer rows.Close()
	var out []*Archive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SymbolsForArchive loads the cached symbols of path in insertion order.
// An unknown path yields no symbols. Rows whose entry no longer decodes are
// skipped.
func (s *Store) SymbolsForArchive(path string) ([]*index.Symbol, error) {
	rows, err := s.db.Query(`SELECT s.entry FROM archive_symbols s
		JOIN archives a ON a.id = s.archive_id
		WHERE a.path = ? ORDER BY s.id`, path)
	if err != nil {
		return nil, fmt.Errorf("symbols for archive: %w", err)
	}
	defer rows.Close()
	var syms []*index.Symbol
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("scan archive symbol: %w", err)
		}
		sym, err := unmarshalEntry(entry)
		if err != nil {
			continue
		}
		syms = append(syms, sym)
	}
	return syms, rows.Err()
}

// ReplaceArchive stores syms as the full content of path at hash.
func (s *Store) ReplaceArchive(path, hash string, syms []*index.Symbol) error {
	return s.CommitArchives([]ArchiveRecord{{Path: path, Hash: hash, Symbols: syms}})
}

// CommitArchives writes every record within a single transaction. Each
// record replaces whatever was cached for its path.
func (s *Store) CommitArchives(records []ArchiveRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit archives: begin: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.Prepare("INSERT INTO archive_symbols (archive_id, fq_name, kind, entry) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("commit archives: prepare: %w", err)
	}
	defer insert.Close()

	now := time.Now().UTC().Truncate(time.Second)
	for _, rec := range records {
		id, err := upsertArchiveTx(tx, rec.Path, rec.Hash, now)
		if err != nil {
			return fmt.Errorf("commit archives: %s: %w", rec.Path, err)
		}
		if _, err := tx.Exec("DELETE FROM archive_symbols WHERE archive_id = ?", id); err != nil {
			return fmt.Errorf("commit archives: clear %s: %w", rec.Path, err)
		}
		for _, sym := range rec.Symbols {
			entry, err := marshalEntry(sym)
			if err != nil {
				return fmt.Errorf("commit archives: encode %s: %w", sym.FqName, err)
			}
			if _, err := insert.Exec(id, sym.FqName, string(sym.Kind), entry); err != nil {
				return fmt.Errorf("commit archives: symbol %s: %w", sym.FqName, err)
			}
		}
	}
	return tx.Commit()
}

func upsertArchiveTx(tx *sql.Tx, path, hash string, now time.Time) (int64, error) {
	_, err := tx.Exec(`INSERT INTO archives (path, hash, last_indexed) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, last_indexed = excluded.last_indexed`,
		path, hash, now)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRow("SELECT id FROM archives WHERE path = ?", path).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteArchive removes path and its symbols. Deleting an unknown path is
// not an error.
func (s *Store) DeleteArchive(path string) error {
	if _, err := s.db.Exec("DELETE FROM archives WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	return nil
}

// PruneArchives deletes every cached archive whose path is not in keep and
// returns how many were removed.
func (s *Store) PruneArchives(keep []string) (int, error) {
	query := "DELETE FROM archives"
	if len(keep) > 0 {
		query += " WHERE path NOT IN (" + placeholderList(len(keep)) + ")"
	}
	res, err := s.db.Exec(query, stringsToArgs(keep)...)
	if err != nil {
		return 0, fmt.Errorf("prune archives: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune archives: %w", err)
	}
	return int(n), nil
}
