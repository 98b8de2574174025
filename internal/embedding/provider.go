// Package embedding adapts embedding generators to the retrieval pipeline:
// a fallback that never fails and a content-hash cache in front of the API.
package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

// Generator produces real embeddings and may fail.
type Generator interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Resilient implements service.EmbeddingProvider on top of a Generator.
// Failures return FallbackVector output flagged Degraded.
type Resilient struct {
	gen   Generator
	model string
	dims  int
	log   *zap.Logger
}

// NewResilient wraps gen. A nil gen always degrades.
func NewResilient(gen Generator, model string, dims int, log *zap.Logger) *Resilient {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resilient{gen: gen, model: model, dims: dims, log: log}
}

func (r *Resilient) degraded(text string) domain.Embedding {
	return domain.Embedding{
		Vector:   FallbackVector(text, r.dims),
		Model:    "fallback",
		Degraded: true,
	}
}

// EmbedOne never fails.
func (r *Resilient) EmbedOne(ctx context.Context, text string) domain.Embedding {
	if r.gen == nil || text == "" {
		return r.degraded(text)
	}
	vec, err := r.gen.GenerateEmbedding(ctx, text)
	if err != nil {
		r.log.Warn("embedding failed, using fallback vector", zap.Error(err))
		return r.degraded(text)
	}
	return domain.Embedding{Vector: vec, Model: r.model}
}

// EmbedMany embeds texts in one batch. A batch failure degrades every entry.
func (r *Resilient) EmbedMany(ctx context.Context, texts []string) []domain.Embedding {
	out := make([]domain.Embedding, len(texts))
	if len(texts) == 0 {
		return out
	}

	var vecs [][]float32
	var err error
	if r.gen == nil {
		err = domain.ErrEmbeddingUnavailable
	} else {
		vecs, err = r.gen.GenerateEmbeddings(ctx, texts)
	}
	if err == nil && len(vecs) != len(texts) {
		err = domain.ErrEmbeddingUnavailable
	}
	if err != nil {
		r.log.Warn("batch embedding failed, using fallback vectors",
			zap.Int("texts", len(texts)), zap.Error(err))
		for i, t := range texts {
			out[i] = r.degraded(t)
		}
		return out
	}

	for i, v := range vecs {
		out[i] = domain.Embedding{Vector: v, Model: r.model}
	}
	return out
}
