// Package mcp exposes the indexing and query pipelines as MCP tools over
// stdio, so coding agents can search the indexed codebase directly.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/grepvec/grepvec/internal/config"
	"github.com/grepvec/grepvec/internal/indexer"
	"github.com/grepvec/grepvec/internal/loader"
	"github.com/grepvec/grepvec/internal/searcher"
	"github.com/grepvec/grepvec/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "grepvec"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	log      *slog.Logger
	loader   *loader.Loader
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	store    store.Store
}

// NewServer creates a new MCP server instance over already-constructed
// pipeline components.
func NewServer(cfg *config.Config, log *slog.Logger, ld *loader.Loader, idx *indexer.Indexer, srch *searcher.Searcher, st store.Store) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		cfg:      cfg,
		log:      log,
		loader:   ld,
		indexer:  idx,
		searcher: srch,
		store:    st,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
