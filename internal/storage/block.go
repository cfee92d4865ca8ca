package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hmdoc/internal/domain"
)

const blockColumns = `id, document_id, parent_id, sort_order, type, text, ref, attributes_json, annotations_json, revision, created_at, updated_at`

// BlockStore implements domain.BlockStore using SQLite.
// Attributes and annotations are stored as JSON columns.
type BlockStore struct {
	db *DB
}

func NewBlockStore(db *DB) *BlockStore {
	return &BlockStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*domain.StoredBlock, error) {
	var (
		b           domain.StoredBlock
		attrs, anns string
	)
	err := row.Scan(&b.ID, &b.DocumentID, &b.ParentID, &b.Order, &b.Type, &b.Text, &b.Ref,
		&attrs, &anns, &b.Revision, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attrs), &b.Attributes); err != nil {
		return nil, fmt.Errorf("block %s attributes: %w", b.ID, err)
	}
	if err := json.Unmarshal([]byte(anns), &b.Annotations); err != nil {
		return nil, fmt.Errorf("block %s annotations: %w", b.ID, err)
	}
	if len(b.Attributes) == 0 {
		b.Attributes = nil
	}
	if len(b.Annotations) == 0 {
		b.Annotations = nil
	}
	return &b, nil
}

func encodeBlockJSON(b *domain.StoredBlock) (attrs, anns string, err error) {
	a, err := json.Marshal(b.Attributes)
	if err != nil {
		return "", "", fmt.Errorf("marshal attributes: %w", err)
	}
	n, err := json.Marshal(b.Annotations)
	if err != nil {
		return "", "", fmt.Errorf("marshal annotations: %w", err)
	}
	return string(a), string(n), nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertBlock(ex execer, b *domain.StoredBlock) error {
	attrs, anns, err := encodeBlockJSON(b)
	if err != nil {
		return err
	}
	_, err = ex.Exec(
		`INSERT INTO blocks (`+blockColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.DocumentID, b.ParentID, b.Order, b.Type, b.Text, b.Ref,
		attrs, anns, b.Revision, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert block %s: %w", b.ID, err)
	}
	return nil
}

func (s *BlockStore) CreateBlock(b *domain.StoredBlock) error {
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	return insertBlock(s.db.conn, b)
}

func (s *BlockStore) GetBlock(id string) (*domain.StoredBlock, error) {
	b, err := scanBlock(s.db.conn.QueryRow(`SELECT `+blockColumns+` FROM blocks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	return b, nil
}

// ListBlocks returns every block of a document ordered by parent then position.
func (s *BlockStore) ListBlocks(documentID string) ([]domain.StoredBlock, error) {
	rows, err := s.db.conn.Query(
		`SELECT `+blockColumns+` FROM blocks WHERE document_id = ? ORDER BY parent_id ASC, sort_order ASC, created_at ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []domain.StoredBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

// NextOrder returns the sort position after the last child of parentID.
func (s *BlockStore) NextOrder(documentID, parentID string) (int, error) {
	var next int
	err := s.db.conn.QueryRow(
		`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM blocks WHERE document_id = ? AND parent_id = ?`,
		documentID, parentID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next block order: %w", err)
	}
	return next, nil
}

func (s *BlockStore) UpdateBlock(b *domain.StoredBlock) error {
	b.UpdatedAt = time.Now()
	attrs, anns, err := encodeBlockJSON(b)
	if err != nil {
		return err
	}
	res, err := s.db.conn.Exec(
		`UPDATE blocks SET parent_id = ?, sort_order = ?, type = ?, text = ?, ref = ?, attributes_json = ?, annotations_json = ?, revision = ?, updated_at = ? WHERE id = ?`,
		b.ParentID, b.Order, b.Type, b.Text, b.Ref, attrs, anns, b.Revision, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update block: %w", err)
	}
	return requireRow(res, "block", b.ID)
}

func (s *BlockStore) DeleteBlock(id string) error {
	res, err := s.db.conn.Exec(`DELETE FROM blocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return requireRow(res, "block", id)
}

func (s *BlockStore) DeleteBlocksByDocument(documentID string) error {
	_, err := s.db.conn.Exec(`DELETE FROM blocks WHERE document_id = ?`, documentID)
	return err
}

// ReplaceDocumentBlocks atomically replaces all blocks of a document.
// Used by imports to sync the database with a document file.
func (s *BlockStore) ReplaceDocumentBlocks(documentID string, blocks []domain.StoredBlock) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM blocks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}

	now := time.Now()
	for i := range blocks {
		b := &blocks[i]
		b.DocumentID = documentID
		b.CreatedAt = now
		b.UpdatedAt = now
		if err := insertBlock(tx, b); err != nil {
			return err
		}
	}

	return tx.Commit()
}
