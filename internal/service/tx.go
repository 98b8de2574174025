package service

import (
	"context"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

// ItemWriter persists knowledge items and their chunks.
type ItemWriter interface {
	CreateItem(ctx context.Context, item *domain.KnowledgeItem) error
	ReplaceChunks(ctx context.Context, itemID string, chunks []domain.Chunk) error
}

// FactWriter persists business facts.
type FactWriter interface {
	CreateFact(ctx context.Context, f *domain.Fact) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Items() ItemWriter
	Facts() FactWriter
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
