package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hmdoc/internal/domain"
	"hmdoc/internal/inline"
	"hmdoc/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Block Service: block content and revision history
// ─────────────────────────────────────────────────────────────

// BlockService reads and writes block content. Content goes in and out of
// the service as styled runs; storage keeps the wire form.
type BlockService struct {
	docs      *storage.DocumentStore
	blocks    *storage.BlockStore
	revisions *storage.RevisionStore
	codec     *inline.Codec
	emitter   EventEmitter
	logger    *zap.Logger
}

// NewBlockService creates a BlockService.
func NewBlockService(
	docs *storage.DocumentStore,
	blocks *storage.BlockStore,
	revisions *storage.RevisionStore,
	codec *inline.Codec,
	emitter EventEmitter,
	logger *zap.Logger,
) *BlockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockService{
		docs:      docs,
		blocks:    blocks,
		revisions: revisions,
		codec:     codec,
		emitter:   emitter,
		logger:    logger.Named("blocks"),
	}
}

// AppendBlockInput describes a new block. When Content is set it is encoded
// and replaces Text and Annotations.
type AppendBlockInput struct {
	DocumentID  string              `json:"documentId"`
	ParentID    string              `json:"parentId,omitempty"`
	Type        string              `json:"type,omitempty"`
	Ref         string              `json:"ref,omitempty"`
	Attributes  map[string]string   `json:"attributes,omitempty"`
	Text        string              `json:"text,omitempty"`
	Annotations []domain.Annotation `json:"annotations,omitempty"`
	Content     []domain.StyledRun  `json:"content,omitempty"`
}

// AppendBlock adds a block after the last child of its parent.
func (s *BlockService) AppendBlock(ctx context.Context, in AppendBlockInput) (*domain.StoredBlock, error) {
	if _, err := s.docs.GetDocument(in.DocumentID); err != nil {
		return nil, err
	}
	if in.ParentID != "" {
		parent, err := s.blocks.GetBlock(in.ParentID)
		if err != nil {
			return nil, fmt.Errorf("parent: %w", err)
		}
		if parent.DocumentID != in.DocumentID {
			return nil, fmt.Errorf("parent block %s belongs to another document", in.ParentID)
		}
	}

	text, annotations := in.Text, in.Annotations
	if in.Content != nil {
		text, annotations = s.codec.Encode(in.Content)
	}
	order, err := s.blocks.NextOrder(in.DocumentID, in.ParentID)
	if err != nil {
		return nil, err
	}

	b := &domain.StoredBlock{
		Block: domain.Block{
			ID:          uuid.New().String(),
			Type:        in.Type,
			Text:        text,
			Ref:         in.Ref,
			Attributes:  in.Attributes,
			Annotations: annotations,
			Revision:    uuid.New().String(),
		},
		DocumentID: in.DocumentID,
		ParentID:   in.ParentID,
		Order:      order,
	}
	if b.Type == "" {
		b.Type = inline.BlockTypeParagraph
	}
	if err := s.blocks.CreateBlock(b); err != nil {
		return nil, fmt.Errorf("create block: %w", err)
	}
	s.emitter.Emit(ctx, EventBlockCreated, b)
	return b, nil
}

func (s *BlockService) GetBlock(id string) (*domain.StoredBlock, error) {
	return s.blocks.GetBlock(id)
}

// GetBlockContent decodes a block into styled runs.
func (s *BlockService) GetBlockContent(id string) ([]domain.StyledRun, error) {
	b, err := s.blocks.GetBlock(id)
	if err != nil {
		return nil, err
	}
	return s.codec.Decode(b.Block), nil
}

// SaveBlockContent encodes runs into the block, keeping the previous content
// as a revision.
func (s *BlockService) SaveBlockContent(ctx context.Context, id string, runs []domain.StyledRun) (*domain.StoredBlock, error) {
	b, err := s.blocks.GetBlock(id)
	if err != nil {
		return nil, err
	}
	if err := s.snapshot(b, "save"); err != nil {
		return nil, err
	}

	b.Text, b.Annotations = s.codec.Encode(runs)
	b.Revision = uuid.New().String()
	if err := s.blocks.UpdateBlock(b); err != nil {
		return nil, fmt.Errorf("save block content: %w", err)
	}
	s.logger.Debug("block_content_saved", zap.String("block", id), zap.Int("runs", len(runs)))
	s.emitter.Emit(ctx, EventBlockContentSaved, b)
	return b, nil
}

// ListRevisions returns the saved history of a block, newest first.
func (s *BlockService) ListRevisions(blockID string) ([]domain.Revision, error) {
	if _, err := s.blocks.GetBlock(blockID); err != nil {
		return nil, err
	}
	revs, err := s.revisions.ListRevisions(blockID)
	if err != nil {
		return nil, err
	}
	if revs == nil {
		revs = []domain.Revision{}
	}
	return revs, nil
}

// RestoreRevision puts a block back to a saved revision. The content being
// replaced is itself kept as a revision, so a restore can be undone.
func (s *BlockService) RestoreRevision(ctx context.Context, revisionID string) (*domain.StoredBlock, error) {
	rev, err := s.revisions.GetRevision(revisionID)
	if err != nil {
		return nil, err
	}
	b, err := s.blocks.GetBlock(rev.BlockID)
	if err != nil {
		return nil, err
	}
	if err := s.snapshot(b, "restore"); err != nil {
		return nil, err
	}

	b.Type = rev.Block.Type
	b.Text = rev.Block.Text
	b.Ref = rev.Block.Ref
	b.Attributes = rev.Block.Attributes
	b.Annotations = rev.Block.Annotations
	b.Revision = uuid.New().String()
	if err := s.blocks.UpdateBlock(b); err != nil {
		return nil, fmt.Errorf("restore block: %w", err)
	}
	s.emitter.Emit(ctx, EventBlockRestored, b)
	return b, nil
}

// DeleteBlock removes a block, its descendants and their history.
func (s *BlockService) DeleteBlock(ctx context.Context, id string) error {
	b, err := s.blocks.GetBlock(id)
	if err != nil {
		return err
	}
	all, err := s.blocks.ListBlocks(b.DocumentID)
	if err != nil {
		return fmt.Errorf("list blocks: %w", err)
	}

	doomed := descendants(all, id)
	for i := len(doomed) - 1; i >= 0; i-- {
		if err := s.blocks.DeleteBlock(doomed[i]); err != nil {
			return err
		}
		if err := s.revisions.DeleteRevisionsByBlock(doomed[i]); err != nil {
			return fmt.Errorf("delete revisions: %w", err)
		}
	}
	s.emitter.Emit(ctx, EventBlockDeleted, doomed)
	return nil
}

func (s *BlockService) snapshot(b *domain.StoredBlock, label string) error {
	err := s.revisions.PushRevision(&domain.Revision{
		ID:         uuid.New().String(),
		BlockID:    b.ID,
		DocumentID: b.DocumentID,
		Label:      label,
		Block:      b.Block,
	})
	if err != nil {
		return fmt.Errorf("snapshot block: %w", err)
	}
	return nil
}

// descendants returns root followed by every block below it, parents first.
func descendants(blocks []domain.StoredBlock, root string) []string {
	children := make(map[string][]string)
	for _, b := range blocks {
		children[b.ParentID] = append(children[b.ParentID], b.ID)
	}
	out := []string{root}
	seen := map[string]bool{root: true}
	for i := 0; i < len(out); i++ {
		for _, c := range children[out[i]] {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
