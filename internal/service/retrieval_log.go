package service

import (
	"context"
	"time"
)

// RetrievalLogResult captures one selected chunk for logging.
type RetrievalLogResult struct {
	ChunkID        string  `json:"chunk_id"`
	DocumentID     string  `json:"document_id"`
	Distance       float64 `json:"distance"`
	Score          float64 `json:"score"`
	Protected      bool    `json:"protected,omitempty"`
	RecallInjected bool    `json:"recall_injected,omitempty"`
}

// RetrievalLogEntry captures one prepared generation context for offline
// evaluation.
type RetrievalLogEntry struct {
	ID          string
	OrgID       string
	UserID      string
	Query       string
	Intent      string
	Domain      string
	FunnelStage string
	Mode        string
	Structure   string
	TokensUsed  int
	Budget      int
	Viable      bool
	TraceKey    string
	DurationMs  int
	Results     []RetrievalLogResult
	CreatedAt   time.Time
}

// RetrievalLogRepository persists retrieval logs.
type RetrievalLogRepository interface {
	CreateRetrievalLog(ctx context.Context, entry RetrievalLogEntry) (string, error)
}

// TraceArchive stores the full decision trace of a request.
type TraceArchive interface {
	PutTrace(ctx context.Context, key string, payload []byte) error
}
