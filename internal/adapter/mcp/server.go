// Package mcp exposes read-only CodeAtlas data over the Model Context
// Protocol so coding agents can query analysis results and wiki pages.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/CodeAtlas/internal/domain/analysis"
	"github.com/Strob0t/CodeAtlas/internal/domain/repository"
	"github.com/Strob0t/CodeAtlas/internal/domain/wiki"
)

// RepositoryReader is the repository data surface the MCP tools read.
type RepositoryReader interface {
	List(ctx context.Context) ([]repository.Repository, error)
	Get(ctx context.Context, id string) (*repository.Repository, error)
	ListSubsystems(ctx context.Context, repositoryID string) ([]analysis.Subsystem, error)
}

// JobReader reads analysis job state.
type JobReader interface {
	GetJobStatus(ctx context.Context, id string) (*analysis.Job, error)
}

// WikiReader reads generated wiki pages.
type WikiReader interface {
	GetWiki(ctx context.Context, repositoryID string) ([]wiki.Page, error)
	GetWikiPage(ctx context.Context, repositoryID, subsystemID string) (*wiki.Page, error)
}

// ServerConfig holds the MCP server configuration.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// ServerDeps holds the data readers the tools and resources serve from.
// Nil readers degrade to per-tool error results, not panics.
type ServerDeps struct {
	Repositories RepositoryReader
	Jobs         JobReader
	Wiki         WikiReader
}

// Server wraps an MCP server with CodeAtlas tools and resources,
// served over streamable HTTP.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *mcpserver.StreamableHTTPServer
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:       cfg,
		deps:      deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server for tests and embedding.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves MCP over streamable HTTP on the configured address.
// It returns immediately; transport errors are logged.
func (s *Server) Start() error {
	s.httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the MCP transport.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
