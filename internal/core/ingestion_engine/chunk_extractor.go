package ingestion_engine

import (
	"regexp"
	"strings"
)

// wordPattern keeps each word together with the whitespace that follows it,
// so joining a window of words reproduces the original spacing.
var wordPattern = regexp.MustCompile(`\S+\s*`)

// Splitter cuts text into token-bounded windows with a tail overlap.
//
// ChunkTokens:   approximate tokens per chunk (parent 512, child 100).
// OverlapTokens: tokens of the previous chunk's tail repeated at the head of the next (24).
type Splitter struct {
	ChunkTokens   int
	OverlapTokens int
}

func NewSplitter(chunkTokens, overlapTokens int) *Splitter {
	if chunkTokens < 1 {
		chunkTokens = 1
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	return &Splitter{ChunkTokens: chunkTokens, OverlapTokens: overlapTokens}
}

// Split returns the chunks of text in emission order. It is a pure function of
// its input: identical text always yields identical boundaries. Empty or
// whitespace-only text yields no chunks.
func (s *Splitter) Split(text string) []string {
	words := wordPattern.FindAllString(text, -1)
	if len(words) == 0 {
		return nil
	}
	costs := make([]int, len(words))
	for i, w := range words {
		costs[i] = wordTokens(w)
	}

	var out []string
	start := 0
	for start < len(words) {
		end, tokSum := start, 0
		// A single oversized word still forms its own chunk.
		for end < len(words) && (end == start || tokSum+costs[end] <= s.ChunkTokens) {
			tokSum += costs[end]
			end++
		}
		out = append(out, strings.TrimSpace(strings.Join(words[start:end], "")))
		if end == len(words) {
			break
		}

		// Keep a tail whose token sum fits in OverlapTokens; always advance.
		next, remain := end, s.OverlapTokens
		for next-1 > start && remain-costs[next-1] >= 0 {
			remain -= costs[next-1]
			next--
		}
		start = next
	}
	return out
}

func wordTokens(w string) int {
	if t := approxTokens(strings.TrimSpace(w)); t > 0 {
		return t
	}
	return 1
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
