package domain

import (
	"fmt"
	"time"
)

// KnowledgeItem is a source document whose text is split into chunks.
type KnowledgeItem struct {
	ID         string
	OrgID      string
	UserID     string
	FolderID   string
	Title      string
	Confidence float64
	CreatedAt  time.Time
}

// NewKnowledgeItem creates a new KnowledgeItem instance
func NewKnowledgeItem(id, orgID, title string, confidence float64, createdAt time.Time) *KnowledgeItem {
	return &KnowledgeItem{
		ID:         id,
		OrgID:      orgID,
		Title:      title,
		Confidence: confidence,
		CreatedAt:  createdAt,
	}
}

// ValidateKnowledgeItem validates a KnowledgeItem instance
func ValidateKnowledgeItem(k *KnowledgeItem) error {
	if k == nil {
		return fmt.Errorf("knowledge item cannot be nil")
	}
	if k.ID == "" {
		return fmt.Errorf("knowledge item ID is required")
	}
	if k.OrgID == "" {
		return fmt.Errorf("knowledge item OrgID is required")
	}
	if k.Title == "" {
		return fmt.Errorf("knowledge item Title is required")
	}
	if k.Confidence < 0 || k.Confidence > 1 {
		return fmt.Errorf("knowledge item Confidence must be within [0,1]: %v", k.Confidence)
	}
	return nil
}

// ValidateChunk checks a chunk before it is stored.
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.KnowledgeItemID == "" {
		return fmt.Errorf("chunk KnowledgeItemID is required")
	}
	if c.OrgID == "" {
		return fmt.Errorf("chunk OrgID is required")
	}
	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("chunk Confidence must be within [0,1]: %v", c.Confidence)
	}
	return nil
}
