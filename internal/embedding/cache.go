package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/metrics"
)

// ErrCacheMiss is returned by a Store when the key is absent.
var ErrCacheMiss = errors.New("embedding cache miss")

const cacheKeyPrefix = "knowctx:emb:"

// Store is a byte-oriented key-value store for cached vectors.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CachedGenerator caches a Generator by model and content hash.
type CachedGenerator struct {
	inner Generator
	store Store
	model string
	log   *zap.Logger
}

// NewCachedGenerator creates a caching decorator.
func NewCachedGenerator(inner Generator, store Store, model string, log *zap.Logger) *CachedGenerator {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedGenerator{inner: inner, store: store, model: model, log: log}
}

func (c *CachedGenerator) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.model + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

// GenerateEmbedding returns a cached vector or calls the inner generator.
func (c *CachedGenerator) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.get(ctx, key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := c.inner.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	c.put(ctx, key, vec)
	return vec, nil
}

// GenerateEmbeddings serves hits from the cache and embeds only the misses,
// in one batch.
func (c *CachedGenerator) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, t := range texts {
		if vec, ok := c.get(ctx, c.cacheKey(t)); ok {
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			out[i] = vec
			continue
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.GenerateEmbeddings(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embed batch: got %d vectors for %d texts", len(vecs), len(missing))
	}
	for k, v := range vecs {
		out[missingIdx[k]] = v
		c.put(ctx, c.cacheKey(missing[k]), v)
	}
	return out, nil
}

func (c *CachedGenerator) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("failed to read cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		c.log.Warn("failed to decode cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedGenerator) put(ctx context.Context, key string, vec []float32) {
	if err := c.store.Set(ctx, key, encodeVector(vec)); err != nil {
		c.log.Warn("failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid cached embedding: len=%d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
