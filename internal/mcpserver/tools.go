package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/DasScrumTeam/obsidian-mcp-server/internal/apperr"
)

// noteResult is the JSON payload returned by read_note.
type noteResult struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Source  string `json:"source"`          // "vault" or "cache"
	Stale   bool   `json:"stale,omitempty"` // true when served from cache
}

// searchPayload is the JSON payload returned by search_notes.
type searchPayload struct {
	Source  string      `json:"source"` // "vault" or "cache"
	Partial bool        `json:"partial,omitempty"`
	Results []searchHit `json:"results"`
}

type searchHit struct {
	Path    string `json:"path"`
	Title   string `json:"title,omitempty"`
	Context string `json:"context,omitempty"`
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := validateNotePath(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	content, err := s.remote.ReadFile(ctx, path)
	if err == nil {
		return jsonResult(noteResult{Path: path, Content: content, Source: "vault"})
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}

	// Remote unreachable: serve the last known good copy if we have one.
	if apperr.IsTransient(err) && s.cache != nil {
		if e, ok := s.cache.Get(path); ok && e.Content != "" {
			s.logger.Warn("read_note: serving from cache",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return jsonResult(noteResult{Path: path, Content: e.Content, Source: "cache", Stale: true})
		}
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, content, errResult := requirePathContent(req)
	if errResult != nil {
		return errResult, nil
	}

	if _, err := s.remote.ReadFile(ctx, path); err == nil {
		return mcp.NewToolResultError(fmt.Sprintf("%v: %s", apperr.ErrAlreadyExists, path)), nil
	}
	if err := s.remote.WriteFile(ctx, path, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.absorbWrite(ctx, path)
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", path)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, content, errResult := requirePathContent(req)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.remote.WriteFile(ctx, path, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.absorbWrite(ctx, path)
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", path)), nil
}

func (s *Server) appendNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, content, errResult := requirePathContent(req)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.remote.AppendFile(ctx, path, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.absorbWrite(ctx, path)
	return mcp.NewToolResultText(fmt.Sprintf("appended: %s", path)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := validateNotePath(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.remote.DeleteFile(ctx, path); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.cache != nil {
		s.cache.Invalidate(path)
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", path)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := req.GetString("folder", "")
	if folder != "" {
		if err := validateFolder(folder); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		folder = strings.TrimSuffix(folder, "/") + "/"
	}

	stats, err := s.remote.ListAll(ctx)
	if err == nil {
		var paths []string
		for _, st := range stats {
			if folder == "" || strings.HasPrefix(st.Path, folder) {
				paths = append(paths, st.Path)
			}
		}
		sort.Strings(paths)
		return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
	}

	if apperr.IsTransient(err) && s.cache != nil {
		s.logger.Warn("list_notes: serving from cache", slog.String("error", err.Error()))
		var paths []string
		for _, p := range s.cache.Paths() {
			if folder == "" || strings.HasPrefix(p, folder) {
				paths = append(paths, p)
			}
		}
		sort.Strings(paths)
		return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results, err := s.remote.Search(ctx, query, 100)
	if err == nil {
		payload := searchPayload{Source: "vault", Results: make([]searchHit, 0, len(results))}
		for _, r := range results {
			payload.Results = append(payload.Results, searchHit{Path: r.Path, Context: r.Context})
		}
		return jsonResult(payload)
	}

	if apperr.IsTransient(err) && s.cache != nil {
		s.logger.Warn("search_notes: serving from cache",
			slog.String("query", query),
			slog.String("error", err.Error()))
		entries, partial := s.cache.Search(query, 50)
		payload := searchPayload{Source: "cache", Partial: partial, Results: make([]searchHit, 0, len(entries))}
		for _, e := range entries {
			payload.Results = append(payload.Results, searchHit{Path: e.Path, Title: e.Title})
		}
		return jsonResult(payload)
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) vaultStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cache == nil {
		return mcp.NewToolResultText(`{"state":"disabled"}`), nil
	}
	return jsonResult(s.cache.Status())
}

// absorbWrite refreshes the cache entry for a path we just wrote through
// the remote API. Failures are non-fatal; the entry self-heals on the next
// periodic refresh.
func (s *Server) absorbWrite(ctx context.Context, path string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.UpdateCacheForFile(ctx, path)
}

func requirePathContent(req mcp.CallToolRequest) (path, content string, errResult *mcp.CallToolResult) {
	path, err := req.RequireString("path")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	content, err = req.RequireString("content")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	if err := validateNotePath(path); err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	return path, content, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
