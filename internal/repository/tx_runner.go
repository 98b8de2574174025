package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/knowctx/internal/service"
)

// TxRunner runs ingestion writes in a single transaction.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

type txRepositories struct {
	chunks *ChunkRepository
	facts  *FactRepository
}

func (t txRepositories) Items() service.ItemWriter { return t.chunks }
func (t txRepositories) Facts() service.FactWriter { return t.facts }

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(newTxRepositories(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

func newTxRepositories(tx pgx.Tx) txRepositories {
	return txRepositories{
		chunks: &ChunkRepository{db: tx},
		facts:  &FactRepository{db: tx},
	}
}
