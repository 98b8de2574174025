package service

import (
	"context"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

type memoryItemWriter struct {
	items  map[string]domain.KnowledgeItem
	chunks map[string][]domain.Chunk
	err    error
}

func (m *memoryItemWriter) CreateItem(_ context.Context, item *domain.KnowledgeItem) error {
	if m.err != nil {
		return m.err
	}
	m.items[item.ID] = *item
	return nil
}

func (m *memoryItemWriter) ReplaceChunks(_ context.Context, itemID string, chunks []domain.Chunk) error {
	m.chunks[itemID] = append([]domain.Chunk(nil), chunks...)
	return nil
}

type memoryFactWriter struct {
	facts []domain.Fact
}

func (m *memoryFactWriter) CreateFact(_ context.Context, f *domain.Fact) error {
	m.facts = append(m.facts, *f)
	return nil
}

type testTxRepos struct {
	items *memoryItemWriter
	facts *memoryFactWriter
}

func (t *testTxRepos) Items() ItemWriter { return t.items }
func (t *testTxRepos) Facts() FactWriter { return t.facts }

type testTxRunner struct {
	repos *testTxRepos
	calls int
}

func newTestTxRunner() *testTxRunner {
	return &testTxRunner{repos: &testTxRepos{
		items: &memoryItemWriter{items: map[string]domain.KnowledgeItem{}, chunks: map[string][]domain.Chunk{}},
		facts: &memoryFactWriter{},
	}}
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.calls++
	return fn(t.repos)
}
