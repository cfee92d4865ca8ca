package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"hmdoc/internal/domain"
)

func (s *Server) registerCodecTools() {
	// ── decode_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("decode_block",
		mcp.WithDescription("Decode a wire block (text plus annotations) into styled runs"),
		mcp.WithString("block",
			mcp.Description(`Block JSON: {"text": "...", "annotations": [{"type", "starts", "ends", "attributes"}]}`),
			mcp.Required(),
		),
	), s.handleDecodeBlock)

	// ── encode_runs ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("encode_runs",
		mcp.WithDescription("Encode styled runs back into block text and annotations"),
		mcp.WithString("runs",
			mcp.Description(`JSON array of runs: [{"text": "...", "styles": {"bold": true, "link": "https://..."}}]`),
			mcp.Required(),
		),
	), s.handleEncodeRuns)

	// ── merge_attributes ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("merge_attributes",
		mcp.WithDescription("Merge annotation attribute maps, in order, into one style set"),
		mcp.WithString("attributes",
			mcp.Description(`JSON array of attribute maps: [{"color": "red"}, {"conversations": "c1"}]`),
			mcp.Required(),
		),
	), s.handleMergeAttributes)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleDecodeBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := requireArg(req, "block")
	if err != nil {
		return nil, err
	}
	var b domain.Block
	if err := parseJSON("block", raw, &b); err != nil {
		return nil, err
	}
	return jsonResult(s.codec.Decode(b))
}

type encodedBlock struct {
	Text        string              `json:"text"`
	Annotations []domain.Annotation `json:"annotations"`
}

func (s *Server) handleEncodeRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := requireArg(req, "runs")
	if err != nil {
		return nil, err
	}
	var runs []domain.StyledRun
	if err := parseJSON("runs", raw, &runs); err != nil {
		return nil, err
	}
	text, annotations := s.codec.Encode(runs)
	if annotations == nil {
		annotations = []domain.Annotation{}
	}
	return jsonResult(encodedBlock{Text: text, Annotations: annotations})
}

func (s *Server) handleMergeAttributes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := requireArg(req, "attributes")
	if err != nil {
		return nil, err
	}
	var sets []map[string]string
	if err := parseJSON("attributes", raw, &sets); err != nil {
		return nil, err
	}
	return jsonResult(s.codec.MergeAttributes(sets...))
}
