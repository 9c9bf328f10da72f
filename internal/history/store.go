// Package history keeps a local record of which candidates the user
// actually picked. The engine does its own ranking server-side; this
// store exists for diagnostics and for exporting selection counts to
// future ranking work.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Schema for the selection history store.
const schema = `
CREATE TABLE IF NOT EXISTS selections (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    text            TEXT NOT NULL,
    auxiliary       TEXT NOT NULL,
    candidate_index INTEGER NOT NULL,
    committed_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_selections_time ON selections(committed_at);
CREATE INDEX IF NOT EXISTS idx_selections_text ON selections(text);
`

// Selection is one recorded candidate commit.
type Selection struct {
	ID          int64
	Text        string
	Auxiliary   string
	Index       int
	CommittedAt int64 // unix nanoseconds
}

// Store is the SQLite selection store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Insert records one selection and returns its ID.
func (s *Store) Insert(sel *Selection) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO selections (text, auxiliary, candidate_index, committed_at)
		VALUES (?, ?, ?, ?)`,
		sel.Text, sel.Auxiliary, sel.Index, sel.CommittedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert selection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// InsertBatch records selections in one transaction.
func (s *Store) InsertBatch(sels []Selection) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO selections (text, auxiliary, candidate_index, committed_at)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sel := range sels {
		if _, err := stmt.Exec(sel.Text, sel.Auxiliary, sel.Index, sel.CommittedAt); err != nil {
			return fmt.Errorf("insert selection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Get retrieves a selection by ID, or nil when no row exists.
func (s *Store) Get(id int64) (*Selection, error) {
	var sel Selection
	err := s.db.QueryRow(`
		SELECT id, text, auxiliary, candidate_index, committed_at
		FROM selections WHERE id = ?`, id,
	).Scan(&sel.ID, &sel.Text, &sel.Auxiliary, &sel.Index, &sel.CommittedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get selection: %w", err)
	}
	return &sel, nil
}

// Recent returns up to limit selections, newest first.
func (s *Store) Recent(limit int) ([]Selection, error) {
	rows, err := s.db.Query(`
		SELECT id, text, auxiliary, candidate_index, committed_at
		FROM selections
		ORDER BY committed_at DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent selections: %w", err)
	}
	defer rows.Close()

	return scanSelections(rows)
}

// CountByText returns how many times each committed text was selected,
// most frequent first.
func (s *Store) CountByText(limit int) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT text, COUNT(*) AS n
		FROM selections
		GROUP BY text
		ORDER BY n DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query selection counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var text string
		var n int
		if err := rows.Scan(&text, &n); err != nil {
			return nil, fmt.Errorf("scan selection count: %w", err)
		}
		counts[text] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selection counts: %w", err)
	}

	return counts, nil
}

// Prune deletes selections older than retain, returning how many rows
// were removed. A zero retain keeps everything.
func (s *Store) Prune(retain time.Duration) (int64, error) {
	if retain <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-retain).UnixNano()
	result, err := s.db.Exec(`DELETE FROM selections WHERE committed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune selections: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}

func scanSelections(rows *sql.Rows) ([]Selection, error) {
	var sels []Selection
	for rows.Next() {
		var sel Selection
		if err := rows.Scan(&sel.ID, &sel.Text, &sel.Auxiliary, &sel.Index, &sel.CommittedAt); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		sels = append(sels, sel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selections: %w", err)
	}

	return sels, nil
}
