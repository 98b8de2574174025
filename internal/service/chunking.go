package service

import (
	"strings"
	"unicode"
)

// SplitConfig controls how an item body is split into chunks.
type SplitConfig struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultSplitConfig keeps chunks near 300 tokens.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		MaxChars:  1200,
		MinChars:  400,
		Overlap:   150,
		MaxChunks: 40,
	}
}

// splitText cuts text into windows of at most MaxChars runes. A cut prefers a
// paragraph break, then a sentence end, then any whitespace, searching back
// no further than MinChars into the window.
func splitText(text string, cfg SplitConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultSplitConfig()
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	var out []string
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(out) >= cfg.MaxChunks {
			break
		}

		end := min(start+cfg.MaxChars, len(runes))
		if end < len(runes) {
			floor := start + cfg.MinChars
			if floor >= end {
				floor = start
			}
			end = bestCut(runes, floor, end)
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end >= len(runes) {
			break
		}

		next := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			next = snapForward(runes, end-cfg.Overlap, end)
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func bestCut(runes []rune, floor, end int) int {
	for i := end; i > floor+1; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > floor+1; i-- {
		if unicode.IsSpace(runes[i-1]) && strings.ContainsRune(".!?", runes[i-2]) {
			return i
		}
	}
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// snapForward moves an overlap start to the next word boundary so chunks do
// not begin mid-word.
func snapForward(runes []rune, from, limit int) int {
	for i := from; i < limit; i++ {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return from
}
