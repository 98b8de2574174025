package service

import (
	"sort"

	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

// reorderVariants moves normalized chunks ahead of raw ones within each
// document. Each document keeps the window positions it already occupied, so
// cross-document order is unchanged. Story queries keep raw wording first.
func reorderVariants(window []domain.Candidate, intent domain.Intent, cfg RetrievalConfig) []domain.Candidate {
	if !cfg.VariantReorder || intent == domain.IntentStory {
		return window
	}

	positions := make(map[string][]int)
	var docs []string
	for i, c := range window {
		doc := c.DocumentID()
		if _, ok := positions[doc]; !ok {
			docs = append(docs, doc)
		}
		positions[doc] = append(positions[doc], i)
	}

	out := make([]domain.Candidate, len(window))
	for _, doc := range docs {
		idx := positions[doc]
		group := make([]domain.Candidate, 0, len(idx))
		for _, i := range idx {
			group = append(group, window[i])
		}
		sort.SliceStable(group, func(a, b int) bool {
			return variantRank(group[a]) < variantRank(group[b])
		})
		for k, i := range idx {
			out[i] = group[k]
		}
	}
	return out
}

func variantRank(c domain.Candidate) int {
	if c.Chunk.SourceVariant == domain.VariantRaw {
		return 1
	}
	return 0
}

// selectFinal emits protected candidates first by raw distance, then fills
// from the rest in window order under the excerpt cap, dedups by id and
// truncates to limit.
func (s *RetrievalService) selectFinal(window []domain.Candidate, limit int, trace *decisionTrace) []domain.Candidate {
	var protected, rest []domain.Candidate
	for _, c := range window {
		if c.Protected {
			protected = append(protected, c)
		} else {
			rest = append(rest, c)
		}
	}
	protected = byDistance(protected)

	seen := make(map[string]struct{}, len(window))
	out := make([]domain.Candidate, 0, limit)
	excerpts := 0

	for _, c := range protected {
		if _, dup := seen[c.ID()]; dup {
			continue
		}
		seen[c.ID()] = struct{}{}
		if c.Chunk.Type == domain.ChunkTypeExcerpt {
			if excerpts >= s.cfg.ExcerptCap {
				c.ExcerptCapBypassed = true
				s.log.Info("protected excerpt bypassed excerpt cap",
					zap.String("chunk_id", c.ID()),
					zap.String("document_id", c.DocumentID()),
					zap.Float64("distance", c.Distance))
				trace.add(domain.Decision{
					Stage:      "selection",
					Action:     "excerpt_cap_bypassed",
					Reason:     "protected_near_match",
					ChunkID:    c.ID(),
					DocumentID: c.DocumentID(),
					Distance:   c.Distance,
				})
			}
			excerpts++
		}
		out = append(out, c)
	}

	for _, c := range rest {
		if _, dup := seen[c.ID()]; dup {
			continue
		}
		if c.Chunk.Type == domain.ChunkTypeExcerpt {
			if excerpts >= s.cfg.ExcerptCap {
				trace.add(domain.Decision{
					Stage:      "selection",
					Action:     "skipped",
					Reason:     "excerpt_cap",
					ChunkID:    c.ID(),
					DocumentID: c.DocumentID(),
					Distance:   c.Distance,
				})
				continue
			}
			excerpts++
		}
		seen[c.ID()] = struct{}{}
		out = append(out, c)
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
