package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

func newTestRetrieval(store VectorStore, cfg RetrievalConfig) *RetrievalService {
	return NewRetrievalServiceWithConfig(nil, &stubEmbedder{}, store, nil, cfg, zap.NewNop())
}

func cand(c domain.Chunk, distance float64, protected bool) domain.Candidate {
	out := domain.NewCandidate(c, distance)
	out.Protected = protected
	out.NearMatch = protected
	return out
}

func TestSelectFinal_ExcerptCap(t *testing.T) {
	cfg := DefaultRetrievalConfig()
	s := newTestRetrieval(&memoryStore{}, cfg)

	window := []domain.Candidate{
		cand(testChunk("e1", "d1", withType(domain.ChunkTypeExcerpt)), 0.2, false),
		cand(testChunk("e2", "d2", withType(domain.ChunkTypeExcerpt)), 0.2, false),
		cand(testChunk("e3", "d3", withType(domain.ChunkTypeExcerpt)), 0.2, false),
		cand(testChunk("n1", "d4"), 0.3, false),
		cand(testChunk("e4", "d5", withType(domain.ChunkTypeExcerpt)), 0.3, false),
		cand(testChunk("n2", "d6"), 0.3, false),
	}

	trace := &decisionTrace{}
	out := s.selectFinal(window, 10, trace)

	assert.Equal(t, []string{"e1", "e2", "n1", "n2"}, candidateIDs(out))

	skipped := 0
	for _, d := range trace.list() {
		if d.Reason == "excerpt_cap" {
			skipped++
		}
	}
	assert.Equal(t, 2, skipped)
}

func TestSelectFinal_ProtectedExcerptsBypassCap(t *testing.T) {
	cfg := DefaultRetrievalConfig()
	cfg.ExcerptCap = 1
	s := newTestRetrieval(&memoryStore{}, cfg)

	window := []domain.Candidate{
		cand(testChunk("n1", "d1"), 0.3, false),
		cand(testChunk("p2", "d2", withType(domain.ChunkTypeExcerpt)), 0.08, true),
		cand(testChunk("p1", "d3", withType(domain.ChunkTypeExcerpt)), 0.02, true),
		cand(testChunk("e1", "d4", withType(domain.ChunkTypeExcerpt)), 0.2, false),
	}

	out := s.selectFinal(window, 10, &decisionTrace{})

	require.Equal(t, []string{"p1", "p2", "n1"}, candidateIDs(out))
	assert.False(t, out[0].ExcerptCapBypassed)
	assert.True(t, out[1].ExcerptCapBypassed)
}

func TestSelectFinal_DedupAndTruncate(t *testing.T) {
	s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())

	window := []domain.Candidate{
		cand(testChunk("a", "d1"), 0.3, false),
		cand(testChunk("a", "d1"), 0.3, false),
		cand(testChunk("p", "d2"), 0.05, true),
		cand(testChunk("p", "d2"), 0.05, true),
		cand(testChunk("b", "d3"), 0.3, false),
		cand(testChunk("c", "d4"), 0.3, false),
	}

	out := s.selectFinal(window, 3, nil)

	assert.Equal(t, []string{"p", "a", "b"}, candidateIDs(out))
}

func TestReorderVariants(t *testing.T) {
	cfg := DefaultRetrievalConfig()
	window := []domain.Candidate{
		cand(testChunk("a-raw", "A", withVariant(domain.VariantRaw)), 0.2, false),
		cand(testChunk("b1", "B"), 0.2, false),
		cand(testChunk("a-norm", "A"), 0.3, false),
		cand(testChunk("b2", "B", withVariant(domain.VariantRaw)), 0.3, false),
	}

	t.Run("normalized first within document", func(t *testing.T) {
		out := reorderVariants(window, domain.IntentEducational, cfg)
		assert.Equal(t, []string{"a-norm", "b1", "a-raw", "b2"}, candidateIDs(out))
	})

	t.Run("story keeps order", func(t *testing.T) {
		out := reorderVariants(window, domain.IntentStory, cfg)
		assert.Equal(t, []string{"a-raw", "b1", "a-norm", "b2"}, candidateIDs(out))
	})

	t.Run("disabled", func(t *testing.T) {
		c := cfg
		c.VariantReorder = false
		out := reorderVariants(window, domain.IntentEducational, c)
		assert.Equal(t, candidateIDs(window), candidateIDs(out))
	})
}
