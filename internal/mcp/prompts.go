package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("format_block",
		mcp.WithPromptDescription("Guide through restyling the text of one block"),
		mcp.WithArgument("blockId",
			mcp.ArgumentDescription("Block to restyle"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("instructions",
			mcp.ArgumentDescription("What to change, e.g. 'bold every product name'"),
			mcp.RequiredArgument(),
		),
	), s.handleFormatBlockPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("write_document",
		mcp.WithPromptDescription("Draft a new document with headings and formatted paragraphs"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("Topic of the document"),
			mcp.RequiredArgument(),
		),
	), s.handleWriteDocumentPrompt)
}

const stylesHelp = `Styles: bold, italic, underline, strike, code, superscript and subscript are flags (true).
link and color take a string. conversations takes a list of conversation ids.
A run's text is sent as-is; runs next to each other with the same styles are merged.`

func (s *Server) handleFormatBlockPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	blockID := req.Params.Arguments["blockId"]
	instructions := req.Params.Arguments["instructions"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Restyle block %s", blockID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Restyle block %s: %s

1. Call get_block_content with blockId %q to read the current styled runs.
2. Split or merge runs so the requested text carries the new styles. Do not change the text itself.
3. Call save_block_content with the full list of runs.
4. If the result is wrong, call list_revisions and restore_revision to undo.

%s`, blockID, instructions, blockID, stylesHelp),
				},
			},
		},
	}, nil
}

func (s *Server) handleWriteDocumentPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Write a document about: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Write a document about %q.

1. Call create_document with a short title. It becomes the active document.
2. Add a heading block with append_block (type "heading").
3. Add paragraph blocks as children of the heading, passing styled runs in content.
4. Finish with get_document to review the result, and list_links to check references.

%s`, topic, stylesHelp),
				},
			},
		},
	}, nil
}
