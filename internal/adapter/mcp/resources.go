package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"codeatlas://repositories",
			"Repository List",
			mcplib.WithResourceDescription("All repositories known to CodeAtlas with their analysis state"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRepositoriesResource,
	)
}

func (s *Server) handleRepositoriesResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Repositories == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"repository reader not configured"}`,
			},
		}, nil
	}
	repos, err := s.deps.Repositories.List(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(repos)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
