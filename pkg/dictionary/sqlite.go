package dictionary

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
    key      TEXT NOT NULL,
    surface  TEXT NOT NULL,
    cost     INTEGER NOT NULL,
    class    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_entries_key ON entries(key);
`

// loadSQLite reads the entries table. Rows are fetched in key order, so the
// ordering check cannot fail here; the character and count checks still apply.
func loadSQLite(path string, maxEntries int) ([]Entry, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		return nil, fmt.Errorf("%w: count entries: %v", ErrMalformed, err)
	}
	if count > maxEntries {
		return nil, fmt.Errorf("%w: %d entries (limit %d)", ErrTooLarge, count, maxEntries)
	}

	rows, err := db.Query(`
		SELECT key, surface, cost, COALESCE(class, 0)
		FROM entries
		ORDER BY key, cost, surface`)
	if err != nil {
		return nil, fmt.Errorf("%w: query entries: %v", ErrMalformed, err)
	}
	defer rows.Close()

	chk := newRecordChecker(path, maxEntries)
	entries := make([]Entry, 0, count)
	row := 0
	for rows.Next() {
		row++
		var (
			e     Entry
			cost  int64
			class int64
		)
		if err := rows.Scan(&e.Key, &e.Surface, &cost, &class); err != nil {
			return nil, loadErr(path, row, fmt.Errorf("%w: %v", ErrMalformed, err))
		}
		if cost < -1<<31 || cost > 1<<31-1 || class < 0 || class > 1<<16-1 {
			return nil, loadErr(path, row, fmt.Errorf("%w: cost %d or class %d out of range", ErrMalformed, cost, class))
		}
		e.Cost, e.Class = int32(cost), uint16(class)
		if err := chk.check(&e, row); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read entries: %v", ErrMalformed, err)
	}
	return entries, nil
}

// WriteSQLite creates a SQLite dictionary at path, replacing any existing file.
func WriteSQLite(path string, entries []Entry) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old database: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO entries (key, surface, cost, class) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Key, e.Surface, e.Cost, e.Class); err != nil {
			return fmt.Errorf("insert entry %q: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
