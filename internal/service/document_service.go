package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hmdoc/internal/domain"
	"hmdoc/internal/inline"
	"hmdoc/internal/publish"
	"hmdoc/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Document Service: documents, trees and import/export
// ─────────────────────────────────────────────────────────────

// DocumentService manages documents and the block trees they contain.
type DocumentService struct {
	docs      *storage.DocumentStore
	blocks    *storage.BlockStore
	revisions *storage.RevisionStore
	codec     *inline.Codec
	dataDir   string
	emitter   EventEmitter
	logger    *zap.Logger
}

// NewDocumentService creates a DocumentService. Exports are written under dataDir.
func NewDocumentService(
	docs *storage.DocumentStore,
	blocks *storage.BlockStore,
	revisions *storage.RevisionStore,
	codec *inline.Codec,
	dataDir string,
	emitter EventEmitter,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		docs:      docs,
		blocks:    blocks,
		revisions: revisions,
		codec:     codec,
		dataDir:   dataDir,
		emitter:   emitter,
		logger:    logger.Named("documents"),
	}
}

// ── Document CRUD ──────────────────────────────────────────

func (s *DocumentService) CreateDocument(ctx context.Context, title string) (*domain.Document, error) {
	d := &domain.Document{ID: uuid.New().String(), Title: strings.TrimSpace(title)}
	if d.Title == "" {
		d.Title = "Untitled"
	}
	if err := s.docs.CreateDocument(d); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.emitter.Emit(ctx, EventDocumentCreated, d)
	return d, nil
}

func (s *DocumentService) GetDocument(id string) (*domain.Document, error) {
	return s.docs.GetDocument(id)
}

func (s *DocumentService) ListDocuments() ([]domain.Document, error) {
	return s.docs.ListDocuments()
}

func (s *DocumentService) RenameDocument(ctx context.Context, id, title string) (*domain.Document, error) {
	d, err := s.docs.GetDocument(id)
	if err != nil {
		return nil, err
	}
	d.Title = strings.TrimSpace(title)
	if err := s.docs.UpdateDocument(d); err != nil {
		return nil, fmt.Errorf("rename document: %w", err)
	}
	s.emitter.Emit(ctx, EventDocumentRenamed, d)
	return d, nil
}

// DeleteDocument removes a document with its blocks and their history.
func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	if err := s.revisions.DeleteRevisionsByDocument(id); err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	if err := s.blocks.DeleteBlocksByDocument(id); err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}
	if err := s.docs.DeleteDocument(id); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventDocumentDeleted, id)
	return nil
}

// ── Trees ──────────────────────────────────────────────────

// GetTree returns the document with its blocks arranged as a tree.
func (s *DocumentService) GetTree(id string) (*domain.DocumentTree, error) {
	d, err := s.docs.GetDocument(id)
	if err != nil {
		return nil, err
	}
	blocks, err := s.blocks.ListBlocks(id)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return &domain.DocumentTree{Document: *d, Children: buildTree(blocks)}, nil
}

// GetEditorBlocks returns the document tree decoded to styled runs.
func (s *DocumentService) GetEditorBlocks(id string) ([]domain.EditorBlock, error) {
	tree, err := s.GetTree(id)
	if err != nil {
		return nil, err
	}
	return s.codec.DecodeTree(tree.Children), nil
}

// Links lists every link and embed target in the document.
func (s *DocumentService) Links(id string) ([]string, error) {
	tree, err := s.GetTree(id)
	if err != nil {
		return nil, err
	}
	links := inline.TreeLinks(tree.Children)
	if links == nil {
		links = []string{}
	}
	return links, nil
}

// Snapshot returns the document and its blocks in tree order for publishing.
func (s *DocumentService) Snapshot(id string) (publish.Snapshot, error) {
	tree, err := s.GetTree(id)
	if err != nil {
		return publish.Snapshot{}, err
	}
	return publish.Snapshot{
		Document:    tree.Document,
		Blocks:      flattenTree(id, tree.Children),
		PublishedAt: time.Now(),
	}, nil
}

// buildTree arranges stored blocks by parent. Blocks whose parent is missing
// become roots; siblings are ordered by their sort position.
func buildTree(blocks []domain.StoredBlock) []domain.BlockNode {
	ids := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		ids[b.ID] = true
	}
	children := make(map[string][]domain.StoredBlock)
	for _, b := range blocks {
		parent := b.ParentID
		if !ids[parent] {
			parent = ""
		}
		children[parent] = append(children[parent], b)
	}

	var build func(parent string) []domain.BlockNode
	build = func(parent string) []domain.BlockNode {
		kids := children[parent]
		if len(kids) == 0 {
			return nil
		}
		sort.SliceStable(kids, func(i, j int) bool { return kids[i].Order < kids[j].Order })
		nodes := make([]domain.BlockNode, 0, len(kids))
		for _, k := range kids {
			nodes = append(nodes, domain.BlockNode{Block: k.Block, Children: build(k.ID)})
		}
		return nodes
	}

	roots := build("")
	if roots == nil {
		roots = []domain.BlockNode{}
	}
	return roots
}

// flattenTree lists the blocks of a tree depth first with their positions.
func flattenTree(documentID string, nodes []domain.BlockNode) []domain.StoredBlock {
	var out []domain.StoredBlock
	var walk func(parent string, ns []domain.BlockNode)
	walk = func(parent string, ns []domain.BlockNode) {
		for i, n := range ns {
			out = append(out, domain.StoredBlock{
				Block:      n.Block,
				DocumentID: documentID,
				ParentID:   parent,
				Order:      i,
			})
			walk(n.Block.ID, n.Children)
		}
	}
	walk("", nodes)
	return out
}

// ── Import / export ────────────────────────────────────────

// ExportDocument returns the document tree as indented JSON.
func (s *DocumentService) ExportDocument(id string) ([]byte, error) {
	tree, err := s.GetTree(id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(tree, "", "  ")
}

// ExportToFile writes the document to <dataDir>/exports/<id>.json.
func (s *DocumentService) ExportToFile(id string) (string, error) {
	data, err := s.ExportDocument(id)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.dataDir, "exports")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, id+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// ImportDocument creates or replaces a document from its JSON tree.
// fallbackID is used when the file carries no id; blocks without an id get
// a fresh one.
func (s *DocumentService) ImportDocument(ctx context.Context, data []byte, fallbackID string) (*domain.DocumentTree, error) {
	var tree domain.DocumentTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if tree.ID == "" {
		tree.ID = fallbackID
	}
	if tree.ID == "" {
		tree.ID = uuid.New().String()
	}
	if err := assignBlockIDs(tree.Children, make(map[string]bool)); err != nil {
		return nil, err
	}

	existing, err := s.docs.GetDocument(tree.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		d := &domain.Document{ID: tree.ID, Title: tree.Title}
		if err := s.docs.CreateDocument(d); err != nil {
			return nil, fmt.Errorf("create document: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		existing.Title = tree.Title
		if err := s.docs.UpdateDocument(existing); err != nil {
			return nil, fmt.Errorf("update document: %w", err)
		}
	}

	blocks := flattenTree(tree.ID, tree.Children)
	for i := range blocks {
		if blocks[i].Type == "" {
			blocks[i].Type = inline.BlockTypeParagraph
		}
	}
	if err := s.blocks.ReplaceDocumentBlocks(tree.ID, blocks); err != nil {
		return nil, fmt.Errorf("replace blocks: %w", err)
	}

	stored, err := s.GetTree(tree.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document_imported", zap.String("document", tree.ID), zap.Int("blocks", len(blocks)))
	s.emitter.Emit(ctx, EventDocumentImported, stored.Document)
	return stored, nil
}

// ImportFile imports a JSON document file. The file name (without .json)
// is the fallback document id.
func (s *DocumentService) ImportFile(ctx context.Context, path string) (*domain.DocumentTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s.ImportDocument(ctx, data, id)
}

func assignBlockIDs(nodes []domain.BlockNode, seen map[string]bool) error {
	for i := range nodes {
		b := &nodes[i].Block
		if b.ID == "" {
			b.ID = uuid.New().String()
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate block id %q", b.ID)
		}
		seen[b.ID] = true
		if err := assignBlockIDs(nodes[i].Children, seen); err != nil {
			return err
		}
	}
	return nil
}
