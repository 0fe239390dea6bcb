// Package mcpserver exposes the Obsidian vault as MCP (Model Context
// Protocol) tools, served over stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/DasScrumTeam/obsidian-mcp-server/internal/obsidian"
	"github.com/DasScrumTeam/obsidian-mcp-server/internal/vaultcache"
)

// Server wraps the MCP server with the vault tools. cache may be nil when
// caching is disabled; every cache interaction then degrades to a miss.
type Server struct {
	mcp    *server.MCPServer
	remote obsidian.API
	cache  *vaultcache.Manager
	logger *slog.Logger
}

// New creates an MCP server with all vault tools registered.
func New(remote obsidian.API, cache *vaultcache.Manager, logger *slog.Logger) *Server {
	s := &Server{remote: remote, cache: cache, logger: logger}

	s.mcp = server.NewMCPServer(
		"obsidian-mcp-server",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the content of a note from the vault. "+
			"Falls back to the local cache when the Obsidian API is unreachable."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Markdown note at the specified path. Fails if the note already exists."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path for the new note (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content of the note")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Overwrite the content of an existing note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path to the note")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown content")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("append_note",
		mcp.WithDescription("Append content to a note, creating it if it does not exist."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path to the note")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content to append")),
	), s.appendNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note from the vault."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path to the note")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, optionally restricted to a folder. "+
			"Falls back to the local cache when the Obsidian API is unreachable."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for the whole vault)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search note content across the vault. "+
			"Falls back to the local cache when the Obsidian API is unreachable."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("vault_status",
		mcp.WithDescription("Report the vault cache state: lifecycle, entry count, last build and refresh times."),
	), s.vaultStatus)

	return s
}

// ServeStdio serves MCP over stdin/stdout until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// HTTPHandler returns the streamable HTTP transport for mounting on a router.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}
