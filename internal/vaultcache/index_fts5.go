//go:build sqlite_fts5

package vaultcache

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(conn *sql.DB, path, title, body, tags string) error {
	_, _ = conn.Exec(`DELETE FROM entries_fts WHERE path = ?`, path)
	_, err := conn.Exec(`INSERT INTO entries_fts (path, title, body, tags) VALUES (?, ?, ?, ?)`,
		path, title, body, tags)
	if err != nil {
		return fmt.Errorf("vaultcache: fts upsert: %w", err)
	}
	return nil
}

func ftsDelete(conn *sql.DB, path string) {
	_, _ = conn.Exec(`DELETE FROM entries_fts WHERE path = ?`, path)
}

// ftsQuery turns a plain substring query into a phrase query, quoting each
// term so FTS5 operator characters and stray quotes in user input never
// reach the query parser.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// search combines FTS5 ranking with a path substring pass so that
// listed-only entries (no indexed body) still match on their path.
func (ix *searchIndex) search(query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	var paths []string
	if match := ftsQuery(query); match != "" {
		rows, err := ix.conn.Query(`
			SELECT path FROM entries_fts WHERE entries_fts MATCH ? ORDER BY rank LIMIT ?
		`, match, limit)
		if err != nil {
			return nil, fmt.Errorf("vaultcache: fts search: %w", err)
		}
		if paths, err = scanPaths(rows); err != nil {
			return nil, err
		}
	}

	rows, err := ix.conn.Query(`
		SELECT path FROM entries WHERE path LIKE ? LIMIT ?
	`, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("vaultcache: path search: %w", err)
	}
	byPath, err := scanPaths(rows)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		seen[p] = struct{}{}
	}
	for _, p := range byPath {
		if _, dup := seen[p]; !dup {
			paths = append(paths, p)
		}
	}
	if len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}
