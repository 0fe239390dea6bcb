package vaultcache

import (
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

// The search index mirrors the searchable fields of every cache entry into
// an in-memory SQLite database. It exists purely to answer fallback search
// queries; the entryStore remains the authoritative copy. Nothing is ever
// written to disk and the database dies with the process.

const indexSchemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	path  TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	tags  TEXT NOT NULL DEFAULT '',
	body  TEXT NOT NULL DEFAULT ''
);
`

// indexSeq disambiguates shared-cache memory databases between managers in
// the same process (each test constructs its own Manager).
var indexSeq atomic.Int64

type searchIndex struct {
	conn *sql.DB
}

// openSearchIndex creates a fresh in-memory index. The shared-cache DSN
// keeps the database alive across pooled connections; writes are serialized
// through a single connection.
func openSearchIndex() (*searchIndex, error) {
	dsn := fmt.Sprintf("file:vaultcache_%d?mode=memory&cache=shared", indexSeq.Add(1))
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("vaultcache: open index: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("vaultcache: ping index: %w", err)
	}
	if _, err := conn.Exec(indexSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("vaultcache: apply index schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("vaultcache: apply fts schema: %w", err)
	}
	return &searchIndex{conn: conn}, nil
}

func (ix *searchIndex) close() error {
	return ix.conn.Close()
}

// upsert mirrors one entry's searchable fields.
func (ix *searchIndex) upsert(e CacheEntry) error {
	tags := strings.Join(e.Tags, " ")
	_, err := ix.conn.Exec(`
		INSERT INTO entries (path, title, tags, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			tags  = excluded.tags,
			body  = excluded.body
	`, e.Path, e.Title, tags, e.Content)
	if err != nil {
		return fmt.Errorf("vaultcache: index upsert: %w", err)
	}
	return ftsUpsert(ix.conn, e.Path, e.Title, e.Content, tags)
}

func (ix *searchIndex) delete(path string) error {
	ftsDelete(ix.conn, path)
	if _, err := ix.conn.Exec(`DELETE FROM entries WHERE path = ?`, path); err != nil {
		return fmt.Errorf("vaultcache: index delete: %w", err)
	}
	return nil
}

func scanPaths(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
