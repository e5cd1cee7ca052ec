package usecase

import (
	"strings"
	"unicode"

	"pdfrag/internal/core/domain"
)

// HeuristicScorer estimates answer groundedness as the unweighted mean of
// three clamped factors: retrieved-chunk coverage, total context mass, and
// lexical overlap with the question. A cheap monotonic proxy, not a
// calibrated probability.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

func (s *HeuristicScorer) Score(question string, chunks []domain.RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0.0
	}

	// Coverage saturates at five chunks.
	coverage := clamp01(float64(len(chunks)) * 0.2)

	totalChars := 0
	for _, chunk := range chunks {
		totalChars += len(chunk.Content)
	}
	mass := clamp01(float64(totalChars) / 1000.0)

	words := splitAlphaNumLower(question)
	matching := 0
	for _, chunk := range chunks {
		content := strings.ToLower(chunk.Content)
		for _, word := range words {
			if strings.Contains(content, word) {
				matching++
				break
			}
		}
	}
	overlap := clamp01(float64(matching) / float64(len(chunks)))

	return clamp01((coverage + mass + overlap) / 3.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
