package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hmdoc/internal/domain"
)

// MaxRevisions is how many snapshots are kept per block.
const MaxRevisions = 40

// RevisionStore manages per-block snapshot history in SQLite.
type RevisionStore struct {
	db *DB
}

func NewRevisionStore(db *DB) *RevisionStore {
	return &RevisionStore{db: db}
}

// PushRevision records a snapshot and prunes the oldest ones past MaxRevisions.
func (s *RevisionStore) PushRevision(r *domain.Revision) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	snapshot, err := json.Marshal(r.Block)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.conn.Exec(
		`INSERT INTO block_revisions (id, block_id, document_id, label, snapshot_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.BlockID, r.DocumentID, r.Label, string(snapshot), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}

	return s.pruneIfNeeded(r.BlockID, MaxRevisions)
}

func (s *RevisionStore) GetRevision(id string) (*domain.Revision, error) {
	var (
		r        domain.Revision
		snapshot string
	)
	err := s.db.conn.QueryRow(
		`SELECT id, block_id, document_id, label, snapshot_json, created_at FROM block_revisions WHERE id = ?`, id,
	).Scan(&r.ID, &r.BlockID, &r.DocumentID, &r.Label, &snapshot, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("revision %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get revision: %w", err)
	}
	if err := json.Unmarshal([]byte(snapshot), &r.Block); err != nil {
		return nil, fmt.Errorf("revision %s snapshot: %w", id, err)
	}
	return &r, nil
}

// ListRevisions returns the history of a block, newest first.
func (s *RevisionStore) ListRevisions(blockID string) ([]domain.Revision, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, block_id, document_id, label, snapshot_json, created_at
		 FROM block_revisions WHERE block_id = ? ORDER BY created_at DESC, rowid DESC`, blockID,
	)
	if err != nil {
		return nil, fmt.Errorf("load revisions: %w", err)
	}
	defer rows.Close()

	var revs []domain.Revision
	for rows.Next() {
		var (
			r        domain.Revision
			snapshot string
		)
		if err := rows.Scan(&r.ID, &r.BlockID, &r.DocumentID, &r.Label, &snapshot, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		if err := json.Unmarshal([]byte(snapshot), &r.Block); err != nil {
			return nil, fmt.Errorf("revision %s snapshot: %w", r.ID, err)
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

func (s *RevisionStore) DeleteRevisionsByBlock(blockID string) error {
	_, err := s.db.conn.Exec(`DELETE FROM block_revisions WHERE block_id = ?`, blockID)
	return err
}

func (s *RevisionStore) DeleteRevisionsByDocument(documentID string) error {
	_, err := s.db.conn.Exec(`DELETE FROM block_revisions WHERE document_id = ?`, documentID)
	return err
}

// pruneIfNeeded removes the oldest revisions when count exceeds max.
func (s *RevisionStore) pruneIfNeeded(blockID string, max int) error {
	var count int
	if err := s.db.conn.QueryRow(`SELECT COUNT(*) FROM block_revisions WHERE block_id = ?`, blockID).Scan(&count); err != nil {
		return fmt.Errorf("count revisions: %w", err)
	}
	if count <= max {
		return nil
	}

	_, err := s.db.conn.Exec(
		`DELETE FROM block_revisions WHERE id IN (
			SELECT id FROM block_revisions WHERE block_id = ?
			ORDER BY created_at ASC, rowid ASC LIMIT ?
		)`, blockID, count-max,
	)
	if err != nil {
		return fmt.Errorf("prune revisions: %w", err)
	}
	return nil
}
