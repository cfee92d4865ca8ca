package storage

import (
	"fmt"

	"github.com/google/uuid"

	"hmdoc/internal/domain"
)

// PublishRunStore keeps the log of publish runs.
type PublishRunStore struct {
	db *DB
}

func NewPublishRunStore(db *DB) *PublishRunStore {
	return &PublishRunStore{db: db}
}

func (s *PublishRunStore) CreateRun(run *domain.PublishRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO publish_runs (id, document_id, target, status, blocks, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.DocumentID, run.Target, run.Status, run.Blocks, run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert publish run: %w", err)
	}
	return nil
}

// ListRuns returns the latest runs of a document, newest first.
func (s *PublishRunStore) ListRuns(documentID string, limit int) ([]domain.PublishRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.conn.Query(
		`SELECT id, document_id, target, status, blocks, error, started_at, finished_at
		 FROM publish_runs WHERE document_id = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		documentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.PublishRun
	for rows.Next() {
		var r domain.PublishRun
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Target, &r.Status, &r.Blocks, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
