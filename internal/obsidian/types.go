package obsidian

import (
	"context"
	"time"
)

// FileStat is the lightweight metadata the vault reports for one file.
type FileStat struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// Note is the full representation of one vault file, as returned by the
// REST API's note-JSON content type.
type Note struct {
	Path        string
	Content     string
	Frontmatter map[string]interface{}
	Tags        []string
	Stat        FileStat
}

// SearchResult is one hit from the vault's simple search endpoint.
type SearchResult struct {
	Path    string  `json:"filename"`
	Score   float64 `json:"score"`
	Context string  `json:"context,omitempty"`
}

// API is the interface for vault operations against the Obsidian REST API.
// Consumers should depend on this interface rather than the concrete
// *Client type to facilitate testing with fakes.
type API interface {
	// ListAll walks the vault directory hierarchy and returns metadata
	// for every Markdown file.
	ListAll(ctx context.Context) ([]FileStat, error)
	// Fetch returns the full note (content, frontmatter, tags, stat) at path.
	Fetch(ctx context.Context, path string) (*Note, error)
	// ReadFile returns the raw Markdown content of the file at path.
	ReadFile(ctx context.Context, path string) (string, error)
	// WriteFile creates or overwrites the file at path.
	WriteFile(ctx context.Context, path, content string) error
	// AppendFile appends content to the file at path, creating it if absent.
	AppendFile(ctx context.Context, path, content string) error
	// DeleteFile removes the file at path.
	DeleteFile(ctx context.Context, path string) error
	// Search runs the vault's simple text search.
	Search(ctx context.Context, query string, contextLength int) ([]SearchResult, error)
}

// Verify *Client satisfies API at compile time.
var _ API = (*Client)(nil)
