package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/DasScrumTeam/obsidian-mcp-server/internal/apperr"
	"github.com/DasScrumTeam/obsidian-mcp-server/internal/obsidian"
	"github.com/DasScrumTeam/obsidian-mcp-server/internal/vaultcache"
)

// fakeVault is an in-memory obsidian.API with a switchable outage mode.
type fakeVault struct {
	mu    sync.Mutex
	files map[string]string
	down  bool
}

func newFakeVault() *fakeVault {
	return &fakeVault{files: make(map[string]string)}
}

func (f *fakeVault) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeVault) err() error {
	if f.down {
		return apperr.ErrRemoteUnavailable
	}
	return nil
}

func (f *fakeVault) ListAll(context.Context) ([]obsidian.FileStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return nil, err
	}
	var out []obsidian.FileStat
	for p, c := range f.files {
		out = append(out, obsidian.FileStat{Path: p, Size: int64(len(c)), LastModified: time.Now()})
	}
	return out, nil
}

func (f *fakeVault) Fetch(_ context.Context, path string) (*obsidian.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return nil, err
	}
	c, ok := f.files[path]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &obsidian.Note{
		Path:    path,
		Content: c,
		Stat:    obsidian.FileStat{Path: path, Size: int64(len(c)), LastModified: time.Now()},
	}, nil
}

func (f *fakeVault) ReadFile(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return "", err
	}
	c, ok := f.files[path]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return c, nil
}

func (f *fakeVault) WriteFile(_ context.Context, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	f.files[path] = content
	return nil
}

func (f *fakeVault) AppendFile(_ context.Context, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	f.files[path] += content
	return nil
}

func (f *fakeVault) DeleteFile(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	if _, ok := f.files[path]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.files, path)
	return nil
}

func (f *fakeVault) Search(_ context.Context, query string, _ int) ([]obsidian.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return nil, err
	}
	var out []obsidian.SearchResult
	for p, c := range f.files {
		if strings.Contains(c, query) {
			out = append(out, obsidian.SearchResult{Path: p, Score: 1})
		}
	}
	return out, nil
}

func testServer(t *testing.T) (*Server, *fakeVault, *vaultcache.Manager) {
	t.Helper()
	vault := newFakeVault()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cache, err := vaultcache.NewManager(vault, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cache.Close() })

	return New(vault, cache, logger), vault, cache
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "update_note":
		result, err = srv.updateNote(ctx, req)
	case "append_note":
		result, err = srv.appendNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "vault_status":
		result, err = srv.vaultStatus(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "test.md",
		"content": "# Test\nHello",
	})
	if text := resultText(r); text != "created: test.md" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{"path": "test.md"})
	var note noteResult
	if err := json.Unmarshal([]byte(resultText(r)), &note); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if note.Content != "# Test\nHello" || note.Source != "vault" {
		t.Errorf("read result = %+v", note)
	}
}

func TestCreateExistingNoteFails(t *testing.T) {
	srv, vault, _ := testServer(t)
	vault.files["a.md"] = "existing"

	r := callTool(t, srv, "create_note", map[string]interface{}{"path": "a.md", "content": "x"})
	if !r.IsError {
		t.Error("expected error creating existing note")
	}
}

func TestWriteUpdatesCacheImmediately(t *testing.T) {
	srv, _, cache := testServer(t)

	callTool(t, srv, "create_note", map[string]interface{}{"path": "a.md", "content": "fresh content"})

	e, ok := cache.Get("a.md")
	if !ok {
		t.Fatal("cache entry missing after create")
	}
	if e.Content != "fresh content" {
		t.Errorf("cache content = %q, want write absorbed without waiting for refresh", e.Content)
	}
}

func TestDeleteInvalidatesCache(t *testing.T) {
	srv, _, cache := testServer(t)

	callTool(t, srv, "create_note", map[string]interface{}{"path": "a.md", "content": "zebra content"})
	if hits, _ := cache.Search("zebra", 10); len(hits) != 1 {
		t.Fatalf("precondition: search hits = %v", hits)
	}

	r := callTool(t, srv, "delete_note", map[string]interface{}{"path": "a.md"})
	if r.IsError {
		t.Fatalf("delete failed: %s", resultText(r))
	}

	if hits, _ := cache.Search("zebra", 10); len(hits) != 0 {
		t.Errorf("deleted note still in search results: %v", hits)
	}
}

func TestReadNoteFallsBackToCache(t *testing.T) {
	srv, vault, _ := testServer(t)

	callTool(t, srv, "create_note", map[string]interface{}{"path": "a.md", "content": "cached body"})

	vault.setDown(true)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "a.md"})
	if r.IsError {
		t.Fatalf("expected cache fallback, got error: %s", resultText(r))
	}
	var note noteResult
	if err := json.Unmarshal([]byte(resultText(r)), &note); err != nil {
		t.Fatal(err)
	}
	if note.Source != "cache" || !note.Stale || note.Content != "cached body" {
		t.Errorf("fallback result = %+v", note)
	}
}

func TestSearchFallsBackToCache(t *testing.T) {
	srv, vault, _ := testServer(t)

	callTool(t, srv, "create_note", map[string]interface{}{"path": "a.md", "content": "the quokka note"})

	vault.setDown(true)
	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "quokka"})
	if r.IsError {
		t.Fatalf("expected cache fallback, got error: %s", resultText(r))
	}
	var payload searchPayload
	if err := json.Unmarshal([]byte(resultText(r)), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Source != "cache" {
		t.Errorf("source = %q, want cache", payload.Source)
	}
	if len(payload.Results) != 1 || payload.Results[0].Path != "a.md" {
		t.Errorf("results = %+v", payload.Results)
	}
	if !payload.Partial {
		t.Error("cache never built, result should be flagged partial")
	}
}

func TestSearchWithoutCacheErrorsWhenDown(t *testing.T) {
	vault := newFakeVault()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(vault, nil, logger)

	vault.setDown(true)
	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "x"})
	if !r.IsError {
		t.Error("expected error with cache disabled and vault down")
	}
}

func TestListNotesFolderFilter(t *testing.T) {
	srv, vault, _ := testServer(t)
	vault.files["top.md"] = "x"
	vault.files["sub/inner.md"] = "y"

	r := callTool(t, srv, "list_notes", map[string]interface{}{"folder": "sub"})
	text := resultText(r)
	if text != "sub/inner.md" {
		t.Errorf("list = %q, want sub/inner.md", text)
	}
}

func TestVaultStatus(t *testing.T) {
	srv, _, cache := testServer(t)
	_ = cache.Build(context.Background())

	r := callTool(t, srv, "vault_status", map[string]interface{}{})
	var st vaultcache.Status
	if err := json.Unmarshal([]byte(resultText(r)), &st); err != nil {
		t.Fatal(err)
	}
	if st.State != "ready" {
		t.Errorf("state = %q, want ready", st.State)
	}
}

func TestPathValidation(t *testing.T) {
	srv, _, _ := testServer(t)

	for _, bad := range []string{"../escape.md", "/abs.md", "noext"} {
		r := callTool(t, srv, "read_note", map[string]interface{}{"path": bad})
		if !r.IsError {
			t.Errorf("path %q should be rejected", bad)
		}
	}
}
