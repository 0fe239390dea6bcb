//go:build !sqlite_fts5

package vaultcache

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; search uses LIKE over the entries table.
	return nil
}

func ftsUpsert(_ *sql.DB, _, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.DB, _ string) {}

// search performs a LIKE-based substring match over path, title, tags,
// and body (fallback when FTS5 is not compiled in).
func (ix *searchIndex) search(query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := ix.conn.Query(`
		SELECT path FROM entries
		WHERE path LIKE ? OR title LIKE ? OR tags LIKE ? OR body LIKE ?
		LIMIT ?
	`, like, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("vaultcache: search: %w", err)
	}
	return scanPaths(rows)
}
