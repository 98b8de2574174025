package domain

import "fmt"

// Fact is a structured business fact about an organization.
type Fact struct {
	ID              string
	OrgID           string
	UserID          string
	Text            string
	Confidence      float64
	KnowledgeItemID string
	TokenCount      int
}

// NewFact creates a new Fact instance
func NewFact(id, orgID, text string, confidence float64) *Fact {
	return &Fact{
		ID:         id,
		OrgID:      orgID,
		Text:       text,
		Confidence: confidence,
	}
}

// ValidateFact validates a Fact instance
func ValidateFact(f *Fact) error {
	if f == nil {
		return fmt.Errorf("fact cannot be nil")
	}
	if f.ID == "" {
		return fmt.Errorf("fact ID is required")
	}
	if f.Text == "" {
		return fmt.Errorf("fact Text is required")
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("fact Confidence must be within [0,1]: %v", f.Confidence)
	}
	return nil
}
