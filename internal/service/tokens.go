package service

import (
	"unicode/utf8"

	"github.com/cloo-solutions/knowctx/internal/domain"
)

// EstimateTokens is the budgeting heuristic: ceil(chars / 4).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

func chunkTokens(c domain.Chunk) int {
	if c.TokenCount > 0 {
		return c.TokenCount
	}
	return EstimateTokens(c.Text)
}

func factTokens(f domain.Fact) int {
	if f.TokenCount > 0 {
		return f.TokenCount
	}
	return EstimateTokens(f.Text)
}
