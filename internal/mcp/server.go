package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"hmdoc/internal/inline"
	"hmdoc/internal/service"
)

// Server is the MCP server for hmdoc.
// It exposes the codec, the document store and publishing as tools so agents
// can read and write formatted blocks.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
	codec  *inline.Codec

	documents *service.DocumentService
	blocks    *service.BlockService
	publisher *service.PublishService // nil when no targets are configured

	mu               sync.Mutex
	activeDocumentID string
}

// Deps holds the dependencies passed from the App layer to the MCP server.
type Deps struct {
	Logger    *zap.Logger
	Codec     *inline.Codec
	Documents *service.DocumentService
	Blocks    *service.BlockService
	Publisher *service.PublishService
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	codec := deps.Codec
	if codec == nil {
		codec = inline.New()
	}
	s := &Server{
		logger:    logger.Named("mcp"),
		codec:     codec,
		documents: deps.Documents,
		blocks:    deps.Blocks,
		publisher: deps.Publisher,
	}

	s.mcp = server.NewMCPServer(
		"hmdoc-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerCodecTools()
	s.registerDocumentTools()
	s.registerBlockTools()
	s.registerPublishTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// Listen serves MCP over in/out until ctx is done or in is closed.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp_stdio_started")
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.logger.Info("mcp_stdio_stopped")
	return err
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func (s *Server) setActiveDocument(id string) {
	s.mu.Lock()
	s.activeDocumentID = id
	s.mu.Unlock()
}

// resolveDocumentID returns the documentId from tool args or falls back to
// the active document.
func (s *Server) resolveDocumentID(req mcp.CallToolRequest) (string, error) {
	if id := req.GetString("documentId", ""); id != "" {
		return id, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeDocumentID != "" {
		return s.activeDocumentID, nil
	}
	return "", fmt.Errorf("no documentId provided and no active document set (use set_active_document first)")
}

func requireArg(req mcp.CallToolRequest, name string) (string, error) {
	v := req.GetString(name, "")
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}
