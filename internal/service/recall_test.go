package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

func injections(trace *decisionTrace) []domain.Decision {
	var out []domain.Decision
	for _, d := range trace.list() {
		if d.Stage == "sparse_document" || d.Stage == "small_dense" {
			out = append(out, d)
		}
	}
	return out
}

func TestInjectRecall_EvictsWorstForSparseDocument(t *testing.T) {
	s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
	selected := []domain.Candidate{
		cand(testChunk("a1", "A"), 0.12, false),
		cand(testChunk("a2", "A"), 0.13, false),
		cand(testChunk("a3", "A"), 0.14, false),
	}
	window := append(append([]domain.Candidate(nil), selected...),
		cand(testChunk("a4", "A"), 0.15, false),
		cand(testChunk("b1", "B"), 0.18, false),
	)

	trace := &decisionTrace{}
	out := s.injectRecall(context.Background(), selected, window, "pricing tiers", 3, trace)

	require.Equal(t, []string{"a1", "a2", "b1"}, candidateIDs(out))
	assert.True(t, out[2].RecallInjected)
	assert.Equal(t, domain.AssistSparseDocument, out[2].AssistReason)

	got := injections(trace)
	require.Len(t, got, 1)
	assert.Equal(t, "evicted", got[0].Action)
	assert.Equal(t, "a3", got[0].Reason)
	assert.Equal(t, "b1", got[0].ChunkID)
}

func TestInjectRecall_ReplacesWorseChunkOfSameDocument(t *testing.T) {
	s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
	selected := []domain.Candidate{
		cand(testChunk("x1", "X"), 0.30, false),
		cand(testChunk("e2", "E"), 0.35, false),
	}
	window := []domain.Candidate{
		selected[0],
		selected[1],
		cand(testChunk("e1", "E"), 0.15, false),
	}

	trace := &decisionTrace{}
	out := s.injectRecall(context.Background(), selected, window, "onboarding", 5, trace)

	assert.Equal(t, []string{"x1", "e1"}, candidateIDs(out))
	got := injections(trace)
	require.Len(t, got, 1)
	assert.Equal(t, "replaced", got[0].Action)
	assert.Equal(t, "e2", got[0].Reason)
}

func TestInjectRecall_SkipsDocumentWithProtectedChunk(t *testing.T) {
	s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
	selected := []domain.Candidate{
		cand(testChunk("w1", "W"), 0.04, true),
		cand(testChunk("s1", "S"), 0.20, false),
	}

	trace := &decisionTrace{}
	out := s.injectRecall(context.Background(), selected, selected, "pricing tiers", 2, trace)

	assert.Equal(t, []string{"w1", "s1"}, candidateIDs(out))
	got := injections(trace)
	require.NotEmpty(t, got)
	assert.Equal(t, "skipped", got[0].Action)
	assert.Equal(t, "protected_present", got[0].Reason)
}

func TestInjectRecall_NoEvictableSlot(t *testing.T) {
	s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
	selected := []domain.Candidate{
		cand(testChunk("p1", "P"), 0.05, true),
		cand(testChunk("p2", "Q"), 0.06, true),
	}
	window := append(append([]domain.Candidate(nil), selected...),
		cand(testChunk("c1", "C"), 0.15, false))

	trace := &decisionTrace{}
	out := s.injectRecall(context.Background(), selected, window, "pricing", 2, trace)

	assert.Equal(t, []string{"p1", "p2"}, candidateIDs(out))
	var reasons []string
	for _, d := range injections(trace) {
		reasons = append(reasons, d.Reason)
	}
	assert.Contains(t, reasons, "no_evictable_slot")
}

func TestInjectRecall_NumericQueryPrefersMetric(t *testing.T) {
	window := []domain.Candidate{
		cand(testChunk("d1", "D"), 0.15, false),
		cand(testChunk("d2", "D", withRole(domain.RoleMetric)), 0.18, false),
		cand(testChunk("d3", "D"), 0.30, false),
	}

	t.Run("numeric", func(t *testing.T) {
		s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
		out := s.injectRecall(context.Background(), nil, window, "how much does onboarding cost", 5, &decisionTrace{})
		require.Len(t, out, 1)
		assert.Equal(t, "d2", out[0].ID())
		assert.Equal(t, domain.AssistSmallDense, out[0].AssistReason)
	})

	t.Run("plain", func(t *testing.T) {
		s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
		out := s.injectRecall(context.Background(), nil, window, "onboarding story", 5, &decisionTrace{})
		require.Len(t, out, 1)
		assert.Equal(t, "d1", out[0].ID())
	})

	t.Run("metric appended next to closer chunk of same document", func(t *testing.T) {
		s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
		trace := &decisionTrace{}
		out := s.injectRecall(context.Background(), []domain.Candidate{window[0]}, window, "what is the price", 5, trace)
		assert.Equal(t, []string{"d1", "d2"}, candidateIDs(out))
		got := injections(trace)
		require.Len(t, got, 1)
		assert.Equal(t, "appended", got[0].Action)
	})

	t.Run("represented document does not evict when full", func(t *testing.T) {
		s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
		selected := []domain.Candidate{window[0], cand(testChunk("z1", "Z"), 0.40, false)}
		trace := &decisionTrace{}
		out := s.injectRecall(context.Background(), selected, window, "what is the price", 2, trace)
		assert.Equal(t, []string{"d1", "z1"}, candidateIDs(out))
		got := injections(trace)
		require.Len(t, got, 1)
		assert.Equal(t, "already_represented", got[0].Reason)
	})
}

func TestInjectRecall_ExcerptCap(t *testing.T) {
	excerpt := withType(domain.ChunkTypeExcerpt)

	t.Run("append blocked when cap is full", func(t *testing.T) {
		s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
		selected := []domain.Candidate{
			cand(testChunk("a1", "A", excerpt), 0.15, false),
			cand(testChunk("a2", "A", excerpt), 0.16, false),
		}
		window := append(append([]domain.Candidate(nil), selected...),
			cand(testChunk("a3", "A", excerpt), 0.17, false),
			cand(testChunk("b1", "B", excerpt, weak), 0.19, false),
		)

		trace := &decisionTrace{}
		out := s.injectRecall(context.Background(), selected, window, "pricing tiers", 3, trace)

		assert.Equal(t, []string{"a1", "a2"}, candidateIDs(out))
		assert.LessOrEqual(t, countExcerpts(out), s.cfg.ExcerptCap)
		var reasons []string
		for _, d := range injections(trace) {
			reasons = append(reasons, d.Reason)
		}
		assert.Contains(t, reasons, "excerpt_cap")
	})

	t.Run("eviction only displaces another excerpt", func(t *testing.T) {
		s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
		selected := []domain.Candidate{
			cand(testChunk("x1", "X", excerpt), 0.10, false),
			cand(testChunk("y1", "Y", excerpt), 0.11, false),
			cand(testChunk("z1", "Z"), 0.30, false),
		}
		window := append(append([]domain.Candidate(nil), selected...),
			cand(testChunk("b1", "B", excerpt), 0.19, false))

		out := s.injectRecall(context.Background(), selected, window, "pricing", 3, &decisionTrace{})

		assert.Equal(t, []string{"x1", "z1", "b1"}, candidateIDs(out))
		assert.Equal(t, 2, countExcerpts(out))
	})

	t.Run("excerpt may replace excerpt of same document", func(t *testing.T) {
		s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
		selected := []domain.Candidate{
			cand(testChunk("x1", "X", excerpt), 0.30, false),
			cand(testChunk("e2", "E", excerpt), 0.35, false),
		}
		window := append(append([]domain.Candidate(nil), selected...),
			cand(testChunk("e1", "E", excerpt), 0.15, false))

		trace := &decisionTrace{}
		out := s.injectRecall(context.Background(), selected, window, "onboarding", 5, trace)

		assert.Equal(t, []string{"x1", "e1"}, candidateIDs(out))
		got := injections(trace)
		require.Len(t, got, 1)
		assert.Equal(t, "replaced", got[0].Action)
	})
}

func TestInjectRecall_RespectsPassBounds(t *testing.T) {
	var window []domain.Candidate
	for i := 0; i < 5; i++ {
		window = append(window, cand(testChunk(fmt.Sprintf("c%d", i), fmt.Sprintf("D%d", i)), 0.11+float64(i)*0.01, false))
	}
	window = append(window, cand(testChunk("far", "F"), 0.22, false))

	s := newTestRetrieval(&memoryStore{}, DefaultRetrievalConfig())
	out := s.injectRecall(context.Background(), nil, window, "pricing", 10, &decisionTrace{})

	assert.Equal(t, []string{"c0", "c1", "c2"}, candidateIDs(out))

	cfg := DefaultRetrievalConfig()
	cfg.Sparse.Enabled = false
	cfg.SmallDense.Enabled = false
	s = newTestRetrieval(&memoryStore{}, cfg)
	assert.Empty(t, s.injectRecall(context.Background(), nil, window, "pricing", 10, &decisionTrace{}))
}

func TestGroupByDocument(t *testing.T) {
	groups := groupByDocument(byDistance([]domain.Candidate{
		cand(testChunk("b2", "B"), 0.3, false),
		cand(testChunk("a1", "A"), 0.2, false),
		cand(testChunk("b1", "B"), 0.1, false),
	}))

	require.Len(t, groups, 2)
	assert.Equal(t, "B", groups[0].id)
	assert.Equal(t, []string{"b1", "b2"}, candidateIDs(groups[0].chunks))
	assert.Equal(t, "A", groups[1].id)
}
