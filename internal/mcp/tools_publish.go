package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

var errNoPublisher = errors.New("publishing is not configured (add publish.targets to the config)")

func (s *Server) registerPublishTools() {
	// ── list_publish_targets ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_publish_targets",
		mcp.WithDescription("List the configured publish targets"),
	), s.handleListPublishTargets)

	// ── publish_document ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("publish_document",
		mcp.WithDescription("Publish a document snapshot to the configured targets"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithString("targets", mcp.Description("Comma-separated target names (optional, all targets when omitted)")),
	), s.handlePublishDocument)

	// ── list_publish_runs ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_publish_runs",
		mcp.WithDescription("List the latest publish runs of a document"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.handleListPublishRuns)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListPublishTargets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.publisher == nil {
		return jsonResult([]string{})
	}
	return jsonResult(s.publisher.Targets())
}

func (s *Server) handlePublishDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.publisher == nil {
		return nil, errNoPublisher
	}
	id, err := s.resolveDocumentID(req)
	if err != nil {
		return nil, err
	}
	runs, err := s.publisher.Publish(ctx, id, splitList(req.GetString("targets", ""))...)
	if err != nil && len(runs) == 0 {
		return nil, fmt.Errorf("publish: %w", err)
	}
	// Partial failures are reported per run.
	return jsonResult(runs)
}

func (s *Server) handleListPublishRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.publisher == nil {
		return nil, errNoPublisher
	}
	id, err := s.resolveDocumentID(req)
	if err != nil {
		return nil, err
	}
	runs, err := s.publisher.ListRuns(id, req.GetInt("limit", 20))
	if err != nil {
		return nil, err
	}
	return jsonResult(runs)
}
