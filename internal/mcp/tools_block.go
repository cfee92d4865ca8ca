package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"hmdoc/internal/domain"
	"hmdoc/internal/service"
)

func (s *Server) registerBlockTools() {
	// ── append_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("append_block",
		mcp.WithDescription("Append a block to a document, after the last child of its parent. Pass either plain text or styled runs."),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithString("parentId", mcp.Description("Parent block ID (optional, top level when omitted)")),
		mcp.WithString("type", mcp.Description("Block type: paragraph, heading, code, embed, image (default paragraph)")),
		mcp.WithString("ref", mcp.Description("Reference URL for embed and image blocks (optional)")),
		mcp.WithString("text", mcp.Description("Plain text content (optional)")),
		mcp.WithString("content", mcp.Description(`Styled runs JSON (optional): [{"text": "...", "styles": {"bold": true}}]`)),
	), s.handleAppendBlock)

	// ── get_block_content ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_block_content",
		mcp.WithDescription("Get the content of a block as styled runs"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
	), s.handleGetBlockContent)

	// ── save_block_content ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_block_content",
		mcp.WithDescription("Replace the content of a block with styled runs. The previous content is kept as a revision."),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("content",
			mcp.Description(`Styled runs JSON: [{"text": "...", "styles": {"italic": true}}]`),
			mcp.Required(),
		),
	), s.handleSaveBlockContent)

	// ── list_revisions ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_revisions",
		mcp.WithDescription("List the saved revisions of a block, newest first"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
	), s.handleListRevisions)

	// ── restore_revision ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("restore_revision",
		mcp.WithDescription("Restore a block to a saved revision. The current content becomes a new revision."),
		mcp.WithString("revisionId", mcp.Description("Revision ID"), mcp.Required()),
	), s.handleRestoreRevision)

	// ── delete_block (destructive) ─────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_block",
		mcp.WithDescription("DESTRUCTIVE: Delete a block, its children and their history"),
		mcp.WithString("blockId", mcp.Description("Block ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteBlock)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) parseRuns(req mcp.CallToolRequest) ([]domain.StyledRun, bool, error) {
	raw := req.GetString("content", "")
	if raw == "" {
		return nil, false, nil
	}
	var runs []domain.StyledRun
	if err := parseJSON("content", raw, &runs); err != nil {
		return nil, false, err
	}
	if runs == nil {
		runs = []domain.StyledRun{}
	}
	return runs, true, nil
}

func (s *Server) handleAppendBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := s.resolveDocumentID(req)
	if err != nil {
		return nil, err
	}
	runs, _, err := s.parseRuns(req)
	if err != nil {
		return nil, err
	}
	b, err := s.blocks.AppendBlock(ctx, service.AppendBlockInput{
		DocumentID: docID,
		ParentID:   req.GetString("parentId", ""),
		Type:       req.GetString("type", ""),
		Ref:        req.GetString("ref", ""),
		Text:       req.GetString("text", ""),
		Content:    runs,
	})
	if err != nil {
		return nil, fmt.Errorf("append block: %w", err)
	}
	return jsonResult(b)
}

func (s *Server) handleGetBlockContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireArg(req, "blockId")
	if err != nil {
		return nil, err
	}
	runs, err := s.blocks.GetBlockContent(id)
	if err != nil {
		return nil, err
	}
	return jsonResult(runs)
}

func (s *Server) handleSaveBlockContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireArg(req, "blockId")
	if err != nil {
		return nil, err
	}
	runs, ok, err := s.parseRuns(req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("content is required")
	}
	b, err := s.blocks.SaveBlockContent(ctx, id, runs)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("block_content_saved", zap.String("block", id), zap.Int("annotations", len(b.Annotations)))
	return jsonResult(b)
}

func (s *Server) handleListRevisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireArg(req, "blockId")
	if err != nil {
		return nil, err
	}
	revs, err := s.blocks.ListRevisions(id)
	if err != nil {
		return nil, err
	}
	return jsonResult(revs)
}

func (s *Server) handleRestoreRevision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireArg(req, "revisionId")
	if err != nil {
		return nil, err
	}
	b, err := s.blocks.RestoreRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonResult(b)
}

func (s *Server) handleDeleteBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireArg(req, "blockId")
	if err != nil {
		return nil, err
	}
	if err := s.blocks.DeleteBlock(ctx, id); err != nil {
		return nil, fmt.Errorf("delete block: %w", err)
	}
	return textResult(fmt.Sprintf("Block %s deleted", id)), nil
}
