package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Annotation marks one or more disjoint ranges of a block's text.
// starts[i]/ends[i] are half-open offsets; starts == ends == 0 covers the whole block.
type Annotation struct {
	Type       string            `json:"type"`
	Ref        string            `json:"ref,omitempty"`
	Starts     []int             `json:"starts"`
	Ends       []int             `json:"ends"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// UnmarshalJSON accepts fractional offsets, flooring them to integers.
// Offsets that are not numbers are dropped.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	type plain Annotation
	var raw struct {
		plain
		Starts json.RawMessage `json:"starts"`
		Ends   json.RawMessage `json:"ends"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Annotation(raw.plain)
	a.Starts = parseOffsets(raw.Starts)
	a.Ends = parseOffsets(raw.Ends)
	return nil
}

func parseOffsets(data json.RawMessage) []int {
	var items []json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &items) != nil || items == nil {
		return nil
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		var f float64
		if err := json.Unmarshal(item, &f); err != nil {
			continue
		}
		f = math.Floor(f)
		switch {
		case f >= math.MaxInt32:
			out = append(out, math.MaxInt32)
		case f <= math.MinInt32:
			out = append(out, math.MinInt32)
		default:
			out = append(out, int(f))
		}
	}
	return out
}

// Block is the wire form of one paragraph-level unit of text.
type Block struct {
	ID          string            `json:"id"`
	Type        string            `json:"type,omitempty"`
	Text        string            `json:"text"`
	Ref         string            `json:"ref,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Annotations []Annotation      `json:"annotations,omitempty"`
	Revision    string            `json:"revision,omitempty"`
}

// BlockNode is a block positioned in the document tree.
type BlockNode struct {
	Block    Block       `json:"block"`
	Children []BlockNode `json:"children,omitempty"`
}

// StoredBlock is a block row together with its tree position.
type StoredBlock struct {
	Block
	DocumentID string    `json:"documentId"`
	ParentID   string    `json:"parentId,omitempty"`
	Order      int       `json:"order"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type BlockStore interface {
	CreateBlock(b *StoredBlock) error
	GetBlock(id string) (*StoredBlock, error)
	ListBlocks(documentID string) ([]StoredBlock, error)
	UpdateBlock(b *StoredBlock) error
	DeleteBlock(id string) error
	DeleteBlocksByDocument(documentID string) error
}
