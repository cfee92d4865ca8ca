package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerDocumentTools() {
	// ── list_documents ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all documents, newest first"),
	), s.handleListDocuments)

	// ── create_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create an empty document and make it the active document"),
		mcp.WithString("title", mcp.Description("Document title (optional)")),
	), s.handleCreateDocument)

	// ── set_active_document ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_document",
		mcp.WithDescription("Set the active document for subsequent tool calls. Tools that accept documentId will default to this."),
		mcp.WithString("documentId",
			mcp.Description("ID of the document to make active"),
			mcp.Required(),
		),
	), s.handleSetActiveDocument)

	// ── get_document ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Get a document as editor blocks with decoded styled runs"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithBoolean("raw", mcp.Description("Return the wire block tree instead of editor blocks")),
	), s.handleGetDocument)

	// ── rename_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("rename_document",
		mcp.WithDescription("Rename a document"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithString("title", mcp.Description("New title"), mcp.Required()),
	), s.handleRenameDocument)

	// ── delete_document (destructive) ──────────────────
	s.mcp.AddTool(mcp.NewTool("delete_document",
		mcp.WithDescription("DESTRUCTIVE: Delete a document with all its blocks and history"),
		mcp.WithString("documentId", mcp.Description("Document ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteDocument)

	// ── list_links ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_links",
		mcp.WithDescription("List the distinct link targets referenced by a document"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleListLinks)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.documents.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return jsonResult(docs)
}

func (s *Server) handleCreateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.documents.CreateDocument(ctx, req.GetString("title", ""))
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.setActiveDocument(doc.ID)
	return jsonResult(doc)
}

func (s *Server) handleSetActiveDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireArg(req, "documentId")
	if err != nil {
		return nil, err
	}
	if _, err := s.documents.GetDocument(id); err != nil {
		return nil, err
	}
	s.setActiveDocument(id)
	return textResult(fmt.Sprintf("Active document set to %s", id)), nil
}

func (s *Server) handleGetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDocumentID(req)
	if err != nil {
		return nil, err
	}
	if req.GetBool("raw", false) {
		tree, err := s.documents.GetTree(id)
		if err != nil {
			return nil, err
		}
		return jsonResult(tree)
	}
	blocks, err := s.documents.GetEditorBlocks(id)
	if err != nil {
		return nil, err
	}
	return jsonResult(blocks)
}

func (s *Server) handleRenameDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDocumentID(req)
	if err != nil {
		return nil, err
	}
	title, err := requireArg(req, "title")
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.RenameDocument(ctx, id, title)
	if err != nil {
		return nil, err
	}
	return jsonResult(doc)
}

func (s *Server) handleDeleteDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireArg(req, "documentId")
	if err != nil {
		return nil, err
	}
	if err := s.documents.DeleteDocument(ctx, id); err != nil {
		return nil, fmt.Errorf("delete document: %w", err)
	}
	s.mu.Lock()
	if s.activeDocumentID == id {
		s.activeDocumentID = ""
	}
	s.mu.Unlock()
	return textResult(fmt.Sprintf("Document %s deleted", id)), nil
}

func (s *Server) handleListLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDocumentID(req)
	if err != nil {
		return nil, err
	}
	links, err := s.documents.Links(id)
	if err != nil {
		return nil, err
	}
	return jsonResult(links)
}
