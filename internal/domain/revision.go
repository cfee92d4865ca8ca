package domain

import "time"

// Revision is a snapshot of a block taken before its content was replaced.
type Revision struct {
	ID         string    `json:"id"`
	BlockID    string    `json:"blockId"`
	DocumentID string    `json:"documentId"`
	Label      string    `json:"label"`
	Block      Block     `json:"block"`
	CreatedAt  time.Time `json:"createdAt"`
}

type RevisionStore interface {
	PushRevision(r *Revision) error
	GetRevision(id string) (*Revision, error)
	ListRevisions(blockID string) ([]Revision, error)
	DeleteRevisionsByBlock(blockID string) error
}

// PublishRun records one publish of a document to one target.
type PublishRun struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Target     string    `json:"target"`
	Status     string    `json:"status"` // "success" or "error"
	Blocks     int       `json:"blocks"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

const (
	PublishStatusSuccess = "success"
	PublishStatusError   = "error"
)
