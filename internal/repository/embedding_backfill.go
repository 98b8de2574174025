package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

var ErrChunkNotFound = errors.New("chunk not found")

// EmbeddingBackfillRepository tracks chunks that were stored without a vector.
type EmbeddingBackfillRepository struct {
	db dbtx
}

func NewEmbeddingBackfillRepository(pool *pgxpool.Pool) *EmbeddingBackfillRepository {
	return &EmbeddingBackfillRepository{db: pool}
}

func NewEmbeddingBackfillRepositoryWithTx(tx pgx.Tx) *EmbeddingBackfillRepository {
	return &EmbeddingBackfillRepository{db: tx}
}

// ListPending returns the oldest active chunks without a vector that have been
// attempted fewer than maxAttempts times.
func (r *EmbeddingBackfillRepository) ListPending(ctx context.Context, limit, maxAttempts int) ([]domain.PendingEmbedding, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, content, embedding_attempts
		 FROM knowledge_chunks
		 WHERE embedding IS NULL AND is_active AND embedding_attempts < $1
		 ORDER BY created_at ASC, id
		 LIMIT $2`,
		maxAttempts, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pending := []domain.PendingEmbedding{}
	for rows.Next() {
		var p domain.PendingEmbedding
		if err := rows.Scan(&p.ChunkID, &p.Text, &p.Attempts); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// SetEmbedding stores the vector and clears the last error.
func (r *EmbeddingBackfillRepository) SetEmbedding(ctx context.Context, chunkID string, vector []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE knowledge_chunks
		 SET embedding = $2, embedding_error = NULL
		 WHERE id = $1`,
		chunkID, pgvector.NewVector(vector),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrChunkNotFound
	}
	return nil
}

// RecordFailure counts a failed attempt for the chunk.
func (r *EmbeddingBackfillRepository) RecordFailure(ctx context.Context, chunkID, errMsg string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE knowledge_chunks
		 SET embedding_attempts = embedding_attempts + 1, embedding_error = $2
		 WHERE id = $1`,
		chunkID, errMsg,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrChunkNotFound
	}
	return nil
}
