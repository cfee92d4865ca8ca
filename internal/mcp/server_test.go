package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hmdoc/internal/domain"
	"hmdoc/internal/inline"
	"hmdoc/internal/publish"
	"hmdoc/internal/service"
	"hmdoc/internal/storage"
)

func newTestServer(t *testing.T, targets ...publish.Target) *Server {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "hmdoc.db"), dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	docs := storage.NewDocumentStore(db)
	blocks := storage.NewBlockStore(db)
	revisions := storage.NewRevisionStore(db)
	codec := inline.New()
	emitter := &service.MockEmitter{}
	logger := zap.NewNop()

	documents := service.NewDocumentService(docs, blocks, revisions, codec, dir, emitter, logger)
	deps := Deps{
		Logger:    logger,
		Codec:     codec,
		Documents: documents,
		Blocks:    service.NewBlockService(docs, blocks, revisions, codec, emitter, logger),
	}
	if len(targets) > 0 {
		deps.Publisher = service.NewPublishService(documents, storage.NewPublishRunStore(db), targets, emitter, logger)
	}
	return New(deps)
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &v))
	return v
}

// ─────────────────────────────────────────────────────────────
// codec tools
// ─────────────────────────────────────────────────────────────

func TestDecodeBlockTool(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleDecodeBlock(context.Background(), callTool("decode_block", map[string]any{
		"block": `{"text":"ABCDE","annotations":[{"type":"strong","starts":[1],"ends":[3]}]}`,
	}))
	require.NoError(t, err)

	runs := decodeResult[[]domain.StyledRun](t, res)
	require.Len(t, runs, 3)
	assert.Equal(t, "A", runs[0].Text)
	assert.Equal(t, "BC", runs[1].Text)
	assert.Equal(t, domain.Styles{"bold": domain.Scalar("true")}, runs[1].Styles)
	assert.Equal(t, "DE", runs[2].Text)
}

func TestDecodeBlockTool_BadInput(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleDecodeBlock(context.Background(), callTool("decode_block", nil))
	assert.ErrorContains(t, err, "block is required")

	_, err = s.handleDecodeBlock(context.Background(), callTool("decode_block", map[string]any{"block": "{"}))
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestEncodeRunsTool(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleEncodeRuns(context.Background(), callTool("encode_runs", map[string]any{
		"runs": `[{"text":"A"},{"text":"BC","styles":{"bold":true,"link":"https://x"}},{"text":"DE","styles":{"bold":false}}]`,
	}))
	require.NoError(t, err)

	out := decodeResult[encodedBlock](t, res)
	assert.Equal(t, "ABCDE", out.Text)
	assert.Equal(t, []domain.Annotation{
		{Type: "strong", Starts: []int{1}, Ends: []int{3}},
		{Type: "link", Starts: []int{1}, Ends: []int{3}, Attributes: map[string]string{"url": "https://x"}},
	}, out.Annotations)
}

func TestEncodeRunsTool_PlainTextHasEmptyAnnotations(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleEncodeRuns(context.Background(), callTool("encode_runs", map[string]any{
		"runs": `[{"text":"plain"}]`,
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"annotations": []`)
}

func TestMergeAttributesTool(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleMergeAttributes(context.Background(), callTool("merge_attributes", map[string]any{
		"attributes": `[{"color":"red","conversations":"c1"},{"color":"blue","conversations":"c2"}]`,
	}))
	require.NoError(t, err)

	styles := decodeResult[domain.Styles](t, res)
	assert.Equal(t, domain.Scalar("red"), styles["color"])
	assert.Equal(t, domain.List("c1", "c2"), styles["conversations"])
}

// ─────────────────────────────────────────────────────────────
// document and block tools
// ─────────────────────────────────────────────────────────────

func TestDocumentWorkflow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleGetDocument(ctx, callTool("get_document", nil))
	assert.ErrorContains(t, err, "no active document")

	res, err := s.handleCreateDocument(ctx, callTool("create_document", map[string]any{"title": "Notes"}))
	require.NoError(t, err)
	doc := decodeResult[domain.Document](t, res)
	assert.Equal(t, "Notes", doc.Title)

	// create_document makes the new document active
	res, err = s.handleAppendBlock(ctx, callTool("append_block", map[string]any{
		"content": `[{"text":"see "},{"text":"docs","styles":{"link":"https://docs"}}]`,
	}))
	require.NoError(t, err)
	block := decodeResult[domain.StoredBlock](t, res)
	assert.Equal(t, doc.ID, block.DocumentID)
	assert.Equal(t, "see docs", block.Text)

	res, err = s.handleGetBlockContent(ctx, callTool("get_block_content", map[string]any{"blockId": block.ID}))
	require.NoError(t, err)
	runs := decodeResult[[]domain.StyledRun](t, res)
	require.Len(t, runs, 2)
	assert.Equal(t, domain.Scalar("https://docs"), runs[1].Styles["link"])

	res, err = s.handleSaveBlockContent(ctx, callTool("save_block_content", map[string]any{
		"blockId": block.ID,
		"content": `[{"text":"see docs","styles":{"italic":true}}]`,
	}))
	require.NoError(t, err)
	saved := decodeResult[domain.StoredBlock](t, res)
	assert.Equal(t, []domain.Annotation{{Type: "emphasis", Starts: []int{0}, Ends: []int{8}}}, saved.Annotations)

	res, err = s.handleListRevisions(ctx, callTool("list_revisions", map[string]any{"blockId": block.ID}))
	require.NoError(t, err)
	revs := decodeResult[[]domain.Revision](t, res)
	require.Len(t, revs, 1)

	res, err = s.handleRestoreRevision(ctx, callTool("restore_revision", map[string]any{"revisionId": revs[0].ID}))
	require.NoError(t, err)
	restored := decodeResult[domain.StoredBlock](t, res)
	assert.Equal(t, "link", restored.Annotations[0].Type)

	res, err = s.handleListLinks(ctx, callTool("list_links", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://docs"}, decodeResult[[]string](t, res))

	res, err = s.handleGetDocument(ctx, callTool("get_document", nil))
	require.NoError(t, err)
	editor := decodeResult[[]domain.EditorBlock](t, res)
	require.Len(t, editor, 1)
	assert.Equal(t, "paragraph", editor[0].Type)

	res, err = s.handleGetDocument(ctx, callTool("get_document", map[string]any{"raw": true}))
	require.NoError(t, err)
	tree := decodeResult[domain.DocumentTree](t, res)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "see docs", tree.Children[0].Block.Text)

	res, err = s.handleRenameDocument(ctx, callTool("rename_document", map[string]any{"title": "Renamed"}))
	require.NoError(t, err)
	assert.Equal(t, "Renamed", decodeResult[domain.Document](t, res).Title)

	res, err = s.handleDeleteBlock(ctx, callTool("delete_block", map[string]any{"blockId": block.ID}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "deleted")

	_, err = s.handleDeleteDocument(ctx, callTool("delete_document", map[string]any{"documentId": doc.ID}))
	require.NoError(t, err)
	_, err = s.handleGetDocument(ctx, callTool("get_document", nil))
	assert.ErrorContains(t, err, "no active document")
}

func TestSaveBlockContentRequiresContent(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleSaveBlockContent(context.Background(), callTool("save_block_content", map[string]any{"blockId": "x"}))
	assert.ErrorContains(t, err, "content is required")
}

func TestSetActiveDocumentUnknown(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleSetActiveDocument(context.Background(), callTool("set_active_document", map[string]any{"documentId": "missing"}))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// ─────────────────────────────────────────────────────────────
// publish tools
// ─────────────────────────────────────────────────────────────

func TestPublishTools_NotConfigured(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleListPublishTargets(ctx, callTool("list_publish_targets", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{}, decodeResult[[]string](t, res))

	_, err = s.handlePublishDocument(ctx, callTool("publish_document", map[string]any{"documentId": "x"}))
	assert.ErrorIs(t, err, errNoPublisher)
}

func TestPublishTools_SQLiteTarget(t *testing.T) {
	target, err := publish.Open(publish.TargetConfig{
		Name:   "archive",
		Driver: publish.DriverSQLite,
		Host:   filepath.Join(t.TempDir(), "archive.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { target.Close() })

	s := newTestServer(t, target)
	ctx := context.Background()

	res, err := s.handleCreateDocument(ctx, callTool("create_document", map[string]any{"title": "Pub"}))
	require.NoError(t, err)
	doc := decodeResult[domain.Document](t, res)
	_, err = s.handleAppendBlock(ctx, callTool("append_block", map[string]any{"text": "hello"}))
	require.NoError(t, err)

	res, err = s.handlePublishDocument(ctx, callTool("publish_document", map[string]any{"targets": "archive"}))
	require.NoError(t, err)
	runs := decodeResult[[]domain.PublishRun](t, res)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.PublishStatusSuccess, runs[0].Status)
	assert.Equal(t, 1, runs[0].Blocks)

	res, err = s.handleListPublishRuns(ctx, callTool("list_publish_runs", map[string]any{"documentId": doc.ID, "limit": 5}))
	require.NoError(t, err)
	assert.Len(t, decodeResult[[]domain.PublishRun](t, res), 1)
}

// ─────────────────────────────────────────────────────────────
// resources
// ─────────────────────────────────────────────────────────────

func TestDocumentIDFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"hmdoc://document/abc-123/blocks", "abc-123"},
		{"hmdoc://document//blocks", ""},
		{"hmdoc://document/a/b/blocks", ""},
		{"hmdoc://documents", ""},
		{"notes://page/x/blocks", ""},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, documentIDFromURI(tt.uri))
		})
	}
}

func TestDocumentBlocksResource(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleCreateDocument(ctx, callTool("create_document", map[string]any{"title": "R"}))
	require.NoError(t, err)
	doc := decodeResult[domain.Document](t, res)
	_, err = s.handleAppendBlock(ctx, callTool("append_block", map[string]any{"text": "body"}))
	require.NoError(t, err)

	var req mcp.ReadResourceRequest
	req.Params.URI = documentURIPrefix + doc.ID + documentURISuffix
	contents, err := s.handleDocumentBlocksResource(ctx, req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcp.TextResourceContents).Text
	assert.Contains(t, text, `"text": "body"`)

	contents, err = s.handleDocumentsResource(ctx, mcp.ReadResourceRequest{})
	require.NoError(t, err)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, doc.ID)
}

// ─────────────────────────────────────────────────────────────
// stdio transport
// ─────────────────────────────────────────────────────────────

func TestListen_ReturnsOnCancel(t *testing.T) {
	s := newTestServer(t)
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	defer inW.Close()
	defer outR.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Listen(ctx, inR, outW) }()

	go func() { _, _ = io.WriteString(inW, `{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n") }()
	line, err := bufio.NewReader(outR).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"id":1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}

func TestListen_ReturnsOnEOF(t *testing.T) {
	s := newTestServer(t)
	done := make(chan error, 1)
	go func() { done <- s.Listen(context.Background(), strings.NewReader(""), io.Discard) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Listen did not return at end of input")
	}
}
