package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/metrics"
)

const (
	// MaxAttempts bounds how often a chunk is retried before it is left
	// keyword-only.
	MaxAttempts = 3

	defaultBatchSize = 32
)

// BackfillRepository persists the backfill state of chunks without a vector.
type BackfillRepository interface {
	ListPending(ctx context.Context, limit, maxAttempts int) ([]domain.PendingEmbedding, error)
	SetEmbedding(ctx context.Context, chunkID string, vector []float32) error
	RecordFailure(ctx context.Context, chunkID, errMsg string) error
}

// Embedder produces one embedding per input text, flagging fallback vectors
// as degraded.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) []domain.Embedding
}

// EmbeddingBackfill embeds chunks that were ingested while the embedding
// provider was unavailable.
type EmbeddingBackfill struct {
	repo      BackfillRepository
	embedder  Embedder
	batchSize int
	log       *zap.Logger
}

// NewEmbeddingBackfill creates the processor. A non-positive batchSize uses the default.
func NewEmbeddingBackfill(repo BackfillRepository, embedder Embedder, batchSize int, log *zap.Logger) *EmbeddingBackfill {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EmbeddingBackfill{repo: repo, embedder: embedder, batchSize: batchSize, log: log}
}

// ProcessJobs implements JobProcessor.
func (b *EmbeddingBackfill) ProcessJobs(ctx context.Context) error {
	pending, err := b.repo.ListPending(ctx, b.batchSize, MaxAttempts)
	if err != nil {
		return fmt.Errorf("failed to fetch pending chunks: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	texts := make([]string, len(pending))
	for i, p := range pending {
		texts[i] = p.Text
	}
	vectors := b.embedder.EmbedMany(ctx, texts)

	embedded := 0
	for i, p := range pending {
		var err error
		if i >= len(vectors) || vectors[i].Degraded || len(vectors[i].Vector) == 0 {
			err = b.fail(ctx, p, "embedding provider unavailable")
		} else if err = b.repo.SetEmbedding(ctx, p.ChunkID, vectors[i].Vector); err != nil {
			err = b.fail(ctx, p, err.Error())
		} else {
			embedded++
			metrics.EmbeddingBackfillTotal.WithLabelValues("embedded").Inc()
		}
		if err != nil {
			b.log.Error("backfill bookkeeping failed", zap.String("chunk_id", p.ChunkID), zap.Error(err))
		}
	}

	b.log.Info("embedding backfill pass",
		zap.Int("pending", len(pending)),
		zap.Int("embedded", embedded))
	return nil
}

func (b *EmbeddingBackfill) fail(ctx context.Context, p domain.PendingEmbedding, reason string) error {
	metrics.EmbeddingBackfillTotal.WithLabelValues("failed").Inc()
	if p.Attempts+1 >= MaxAttempts {
		b.log.Warn("chunk exceeded embedding attempts, leaving it keyword-only",
			zap.String("chunk_id", p.ChunkID),
			zap.String("reason", reason))
	}
	msg := fmt.Sprintf("attempt %d: %s", p.Attempts+1, reason)
	if err := b.repo.RecordFailure(ctx, p.ChunkID, msg); err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}
