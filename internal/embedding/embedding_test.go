package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockGenerator) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func TestFallbackVector(t *testing.T) {
	a := FallbackVector("pricing tiers", 64)
	b := FallbackVector("pricing tiers", 64)
	c := FallbackVector("hiring", 64)

	require.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
	assert.Empty(t, FallbackVector("x", 0))
}

func TestResilient_EmbedOne(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		gen := new(MockGenerator)
		gen.On("GenerateEmbedding", ctx, "q").Return([]float32{1, 2}, nil)

		emb := NewResilient(gen, "text-embedding-3-small", 2, zap.NewNop()).EmbedOne(ctx, "q")

		assert.False(t, emb.Degraded)
		assert.Equal(t, []float32{1, 2}, emb.Vector)
		assert.Equal(t, "text-embedding-3-small", emb.Model)
	})

	t.Run("failure degrades", func(t *testing.T) {
		gen := new(MockGenerator)
		gen.On("GenerateEmbedding", ctx, "q").Return(nil, errors.New("503"))

		emb := NewResilient(gen, "m", 8, nil).EmbedOne(ctx, "q")

		assert.True(t, emb.Degraded)
		assert.Equal(t, FallbackVector("q", 8), emb.Vector)
	})

	t.Run("nil generator", func(t *testing.T) {
		emb := NewResilient(nil, "m", 4, nil).EmbedOne(ctx, "q")
		assert.True(t, emb.Degraded)
		assert.Len(t, emb.Vector, 4)
	})
}

func TestResilient_EmbedMany(t *testing.T) {
	ctx := context.Background()

	gen := new(MockGenerator)
	gen.On("GenerateEmbeddings", ctx, []string{"a", "b"}).Return([][]float32{{1}, {2}}, nil)
	out := NewResilient(gen, "m", 1, nil).EmbedMany(ctx, []string{"a", "b"})
	require.Len(t, out, 2)
	assert.Equal(t, []float32{2}, out[1].Vector)
	assert.False(t, out[0].Degraded)

	failing := new(MockGenerator)
	failing.On("GenerateEmbeddings", ctx, []string{"a", "b"}).Return(nil, errors.New("down"))
	out = NewResilient(failing, "m", 4, nil).EmbedMany(ctx, []string{"a", "b"})
	require.Len(t, out, 2)
	assert.True(t, out[0].Degraded)
	assert.True(t, out[1].Degraded)

	assert.Empty(t, NewResilient(gen, "m", 1, nil).EmbedMany(ctx, nil))
}

func TestCachedGenerator(t *testing.T) {
	ctx := context.Background()

	t.Run("second call is served from cache", func(t *testing.T) {
		gen := new(MockGenerator)
		gen.On("GenerateEmbedding", ctx, "q").Return([]float32{0.5, -0.25}, nil).Once()
		store := NewMemoryStore(10)
		cached := NewCachedGenerator(gen, store, "m", zap.NewNop())

		first, err := cached.GenerateEmbedding(ctx, "q")
		require.NoError(t, err)
		second, err := cached.GenerateEmbedding(ctx, "q")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, store.Len())
		gen.AssertNumberOfCalls(t, "GenerateEmbedding", 1)
	})

	t.Run("batch embeds only misses", func(t *testing.T) {
		gen := new(MockGenerator)
		gen.On("GenerateEmbedding", ctx, "a").Return([]float32{1}, nil)
		gen.On("GenerateEmbeddings", ctx, []string{"b", "c"}).Return([][]float32{{2}, {3}}, nil)
		cached := NewCachedGenerator(gen, NewMemoryStore(10), "m", nil)

		_, err := cached.GenerateEmbedding(ctx, "a")
		require.NoError(t, err)
		out, err := cached.GenerateEmbeddings(ctx, []string{"a", "b", "c"})

		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1}, {2}, {3}}, out)
		gen.AssertExpectations(t)
	})

	t.Run("model is part of the key", func(t *testing.T) {
		store := NewMemoryStore(10)
		a := NewCachedGenerator(nil, store, "m1", nil)
		b := NewCachedGenerator(nil, store, "m2", nil)
		assert.NotEqual(t, a.cacheKey("q"), b.cacheKey("q"))
	})

	t.Run("errors are not cached", func(t *testing.T) {
		gen := new(MockGenerator)
		gen.On("GenerateEmbedding", ctx, "q").Return(nil, errors.New("boom"))
		store := NewMemoryStore(10)

		_, err := NewCachedGenerator(gen, store, "m", nil).GenerateEmbedding(ctx, "q")

		assert.Error(t, err)
		assert.Equal(t, 0, store.Len())
	})
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0, 1.5, -3.25, float32(math.Pi)}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestMemoryStore_Miss(t *testing.T) {
	_, err := NewMemoryStore(0).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
