package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, splitText("   ", DefaultSplitConfig()))
	})

	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"pricing has three tiers"}, splitText("  pricing has three tiers \n", DefaultSplitConfig()))
	})

	t.Run("prefers paragraph breaks", func(t *testing.T) {
		first := strings.Repeat("a", 60)
		second := strings.Repeat("b", 60)
		cfg := SplitConfig{MaxChars: 100, MinChars: 20}

		chunks := splitText(first+"\n\n"+second, cfg)
		require.Len(t, chunks, 2)
		assert.Equal(t, first, chunks[0])
		assert.Equal(t, second, chunks[1])
	})

	t.Run("prefers sentence ends over spaces", func(t *testing.T) {
		text := "One two three. Four five six seven eight nine ten eleven"
		chunks := splitText(text, SplitConfig{MaxChars: 30, MinChars: 5})
		require.NotEmpty(t, chunks)
		assert.Equal(t, "One two three.", chunks[0])
	})

	t.Run("respects max chunks and max chars", func(t *testing.T) {
		text := strings.Repeat("word ", 500)
		cfg := SplitConfig{MaxChars: 100, MinChars: 40, Overlap: 20, MaxChunks: 5}

		chunks := splitText(text, cfg)
		assert.Len(t, chunks, 5)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), 100)
			assert.False(t, strings.HasPrefix(c, "ord"), "chunk starts mid-word: %q", c)
		}
	})
}
