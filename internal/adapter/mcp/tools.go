package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/CodeAtlas/internal/domain/wiki"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listRepositoriesTool(),
		s.getJobStatusTool(),
		s.readWikiStructureTool(),
		s.readWikiPageTool(),
	)
}

func (s *Server) listRepositoriesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_repositories",
		mcplib.WithDescription("List all repositories known to CodeAtlas with their analysis state"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListRepositories,
	}
}

func (s *Server) getJobStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_job_status",
		mcplib.WithDescription("Get the status and progress of an analysis job by ID"),
		mcplib.WithString("job_id",
			mcplib.Required(),
			mcplib.Description("The analysis job ID to check"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetJobStatus,
	}
}

func (s *Server) readWikiStructureTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("read_wiki_structure",
		mcplib.WithDescription("List the wiki pages of a repository: subsystem IDs, page titles and tables of contents, without page bodies"),
		mcplib.WithString("repository_id",
			mcplib.Required(),
			mcplib.Description("The repository whose wiki to inspect"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleReadWikiStructure,
	}
}

func (s *Server) readWikiPageTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("read_wiki_page",
		mcplib.WithDescription("Read the full wiki page of one subsystem, including markdown content and source citations"),
		mcplib.WithString("repository_id",
			mcplib.Required(),
			mcplib.Description("The repository the page belongs to"),
		),
		mcplib.WithString("subsystem_id",
			mcplib.Required(),
			mcplib.Description("The subsystem whose page to read"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleReadWikiPage,
	}
}

func (s *Server) handleListRepositories(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Repositories == nil {
		return mcplib.NewToolResultError("repository reader not configured"), nil
	}
	repos, err := s.deps.Repositories.List(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list repositories", err), nil
	}
	data, err := json.Marshal(repos)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal repositories", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetJobStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Jobs == nil {
		return mcplib.NewToolResultError("job reader not configured"), nil
	}
	args := req.GetArguments()
	jobID, ok := args["job_id"].(string)
	if !ok || jobID == "" {
		return mcplib.NewToolResultError("job_id is required"), nil
	}
	job, err := s.deps.Jobs.GetJobStatus(ctx, jobID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get job %s", jobID), err,
		), nil
	}
	data, err := json.Marshal(job)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal job", err), nil
	}
	return toolResultJSON(string(data)), nil
}

// wikiStructureEntry is one page in a read_wiki_structure listing.
type wikiStructureEntry struct {
	SubsystemID string          `json:"subsystem_id"`
	Title       string          `json:"title"`
	TOC         []wiki.TOCEntry `json:"table_of_contents,omitempty"`
}

func (s *Server) handleReadWikiStructure(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Wiki == nil {
		return mcplib.NewToolResultError("wiki reader not configured"), nil
	}
	args := req.GetArguments()
	repositoryID, ok := args["repository_id"].(string)
	if !ok || repositoryID == "" {
		return mcplib.NewToolResultError("repository_id is required"), nil
	}
	pages, err := s.deps.Wiki.GetWiki(ctx, repositoryID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to read wiki for repository %s", repositoryID), err,
		), nil
	}
	structure := make([]wikiStructureEntry, 0, len(pages))
	for _, p := range pages {
		structure = append(structure, wikiStructureEntry{
			SubsystemID: p.SubsystemID,
			Title:       p.Title,
			TOC:         p.TOC,
		})
	}
	data, err := json.Marshal(structure)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal wiki structure", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleReadWikiPage(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Wiki == nil {
		return mcplib.NewToolResultError("wiki reader not configured"), nil
	}
	args := req.GetArguments()
	repositoryID, ok := args["repository_id"].(string)
	if !ok || repositoryID == "" {
		return mcplib.NewToolResultError("repository_id is required"), nil
	}
	subsystemID, ok := args["subsystem_id"].(string)
	if !ok || subsystemID == "" {
		return mcplib.NewToolResultError("subsystem_id is required"), nil
	}
	page, err := s.deps.Wiki.GetWikiPage(ctx, repositoryID, subsystemID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to read wiki page for subsystem %s", subsystemID), err,
		), nil
	}
	data, err := json.Marshal(page)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal wiki page", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func toolResultJSON(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}
