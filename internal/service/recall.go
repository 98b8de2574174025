package service

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/metrics"
	"github.com/cloo-solutions/knowctx/internal/telemetry"
)

var numericQueryPattern = regexp.MustCompile(`(?i)(\d|[$€£%]|\b(price|prices|pricing|cost|costs|how much|revenue|rate|rates|percent|metrics?|numbers?|roi|budget)\b)`)

type recallPass struct {
	name   string
	reason domain.AssistReason
	cfg    RecallPassConfig
}

type documentGroup struct {
	id     string
	chunks []domain.Candidate
}

// groupByDocument groups a distance-sorted window by document. Groups come
// out in order of their best chunk.
func groupByDocument(sorted []domain.Candidate) []documentGroup {
	index := make(map[string]int)
	var groups []documentGroup
	for _, c := range sorted {
		i, ok := index[c.DocumentID()]
		if !ok {
			i = len(groups)
			index[c.DocumentID()] = i
			groups = append(groups, documentGroup{id: c.DocumentID()})
		}
		groups[i].chunks = append(groups[i].chunks, c)
	}
	return groups
}

// injectRecall runs the sparse-document pass and then the small-dense pass
// over the raw-distance window, forcing under-represented documents into the
// selection. The selection never grows past limit.
func (s *RetrievalService) injectRecall(ctx context.Context, selected, window []domain.Candidate, query string, limit int, trace *decisionTrace) []domain.Candidate {
	groups := groupByDocument(byDistance(window))
	numeric := numericQueryPattern.MatchString(query)

	passes := []recallPass{
		{name: "sparse_document", reason: domain.AssistSparseDocument, cfg: s.cfg.Sparse},
		{name: "small_dense", reason: domain.AssistSmallDense, cfg: s.cfg.SmallDense},
	}

	for _, p := range passes {
		if !p.cfg.Enabled || p.cfg.MaxInjections <= 0 {
			continue
		}
		injected := 0
		for _, g := range groups {
			if injected >= p.cfg.MaxInjections {
				break
			}
			n := len(g.chunks)
			if n < p.cfg.MinChunks || n > p.cfg.MaxChunks {
				continue
			}
			if g.chunks[0].Distance > p.cfg.DistanceCeiling {
				continue
			}
			pick := pickRecallChunk(g.chunks, numeric, p.cfg.DistanceCeiling)
			if hasProtectedFrom(selected, g.id) {
				s.recordInjection(ctx, trace, p, "skipped", "protected_present", pick)
				continue
			}

			var ok bool
			selected, ok = s.applyInjection(ctx, selected, pick, p, limit, trace)
			if ok {
				injected++
			}
		}
	}
	return selected
}

// pickRecallChunk prefers a metric chunk within the ceiling for numeric
// queries and otherwise the closest chunk.
func pickRecallChunk(chunks []domain.Candidate, numeric bool, ceiling float64) domain.Candidate {
	if numeric {
		for _, c := range chunks {
			if c.Chunk.Role == domain.RoleMetric && c.Distance <= ceiling {
				return c
			}
		}
	}
	return chunks[0]
}

// applyInjection forces pick into the selection. A worse chunk of the same
// document is replaced; otherwise pick is appended while there is room. A
// document not yet represented may evict the worst non-protected chunk. An
// excerpt pick never raises the excerpt count past the cap.
func (s *RetrievalService) applyInjection(ctx context.Context, selected []domain.Candidate, pick domain.Candidate, p recallPass, limit int, trace *decisionTrace) ([]domain.Candidate, bool) {
	for _, c := range selected {
		if c.ID() == pick.ID() {
			return selected, false
		}
	}

	pick.RecallInjected = true
	pick.AssistReason = p.reason

	// capFull means pick may only take the slot of another excerpt.
	capFull := isExcerpt(pick) && countExcerpts(selected) >= s.cfg.ExcerptCap

	worst, represented := -1, false
	for i, c := range selected {
		if c.DocumentID() != pick.DocumentID() {
			continue
		}
		represented = true
		if c.Protected {
			continue
		}
		if worst < 0 || c.Distance >= selected[worst].Distance {
			worst = i
		}
	}

	if worst >= 0 && selected[worst].Distance > pick.Distance {
		if capFull && !isExcerpt(selected[worst]) {
			s.recordInjection(ctx, trace, p, "skipped", "excerpt_cap", pick)
			return selected, false
		}
		replaced := selected[worst]
		out := append([]domain.Candidate(nil), selected...)
		out[worst] = pick
		s.recordInjection(ctx, trace, p, "replaced", replaced.ID(), pick)
		return out, true
	}

	if len(selected) < limit {
		if capFull {
			s.recordInjection(ctx, trace, p, "skipped", "excerpt_cap", pick)
			return selected, false
		}
		s.recordInjection(ctx, trace, p, "appended", "", pick)
		return append(append([]domain.Candidate(nil), selected...), pick), true
	}
	if represented {
		s.recordInjection(ctx, trace, p, "skipped", "already_represented", pick)
		return selected, false
	}

	evict := -1
	for i, c := range selected {
		if c.Protected || c.RecallInjected {
			continue
		}
		if capFull && !isExcerpt(c) {
			continue
		}
		if evict < 0 || c.Distance >= selected[evict].Distance {
			evict = i
		}
	}
	if evict < 0 {
		reason := "no_evictable_slot"
		if capFull {
			reason = "excerpt_cap"
		}
		s.recordInjection(ctx, trace, p, "skipped", reason, pick)
		return selected, false
	}

	evicted := selected[evict]
	out := make([]domain.Candidate, 0, len(selected))
	out = append(out, selected[:evict]...)
	out = append(out, selected[evict+1:]...)
	out = append(out, pick)
	s.recordInjection(ctx, trace, p, "evicted", evicted.ID(), pick)
	return out, true
}

func isExcerpt(c domain.Candidate) bool {
	return c.Chunk.Type == domain.ChunkTypeExcerpt
}

// countExcerpts counts every excerpt in the selection, protected ones
// included, the same way selectFinal charges the cap.
func countExcerpts(selected []domain.Candidate) int {
	n := 0
	for _, c := range selected {
		if isExcerpt(c) {
			n++
		}
	}
	return n
}

func hasProtectedFrom(selected []domain.Candidate, documentID string) bool {
	for _, c := range selected {
		if c.Protected && c.DocumentID() == documentID {
			return true
		}
	}
	return false
}

// recordInjection logs, counts and traces one injector action. For replaced
// and evicted actions detail is the id of the displaced chunk.
func (s *RetrievalService) recordInjection(ctx context.Context, trace *decisionTrace, p recallPass, action, detail string, pick domain.Candidate) {
	fields := []zap.Field{
		zap.String("pass", p.name),
		zap.String("action", action),
		zap.String("document_id", pick.DocumentID()),
		zap.String("chunk_id", pick.ID()),
		zap.Float64("distance", pick.Distance),
	}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}
	s.log.Info("recall injector", fields...)
	metrics.RecallInjectionsTotal.WithLabelValues(p.name, action).Inc()
	telemetry.AddBreadcrumb(ctx, "recall", p.name+" "+action, map[string]interface{}{
		"document_id": pick.DocumentID(),
		"chunk_id":    pick.ID(),
		"distance":    pick.Distance,
	})

	trace.add(domain.Decision{
		Stage:      p.name,
		Action:     action,
		Reason:     detail,
		ChunkID:    pick.ID(),
		DocumentID: pick.DocumentID(),
		Distance:   pick.Distance,
		Score:      pick.Score,
		Composite:  pick.Composite,
	})
}
