// Package scoring grades free-text assessment answers with a keyword heuristic.
package scoring

import (
	"strings"
	"unicode/utf8"
)

const (
	maxLengthPoints  = 50
	charsPerPoint    = 12
	pointsPerKeyword = 8
	maxKeywordPoints = 40
	multilineBonus   = 10
	maxScore         = 100
	strongThreshold  = 60

	FeedbackStrong = "Strong response."
	FeedbackWeak   = "Needs more depth and domain-specific reasoning."
)

// keywords per track, matched case-insensitively as substrings
var keywords = map[string][]string{
	"python":      {"validate", "exception", "edge", "test"},
	"backend c++": {"pointer", "memory", "leak", "raii", "overflow"},
}

// Keywords returns the keyword list for a track, nil for unknown tracks
func Keywords(track string) []string {
	return keywords[strings.ToLower(strings.TrimSpace(track))]
}

// ScoreAnswer grades an answer for the given track on a 0-100 scale
func ScoreAnswer(track, answer string) (int, string) {
	score := min(maxLengthPoints, utf8.RuneCountInString(answer)/charsPerPoint)

	lowered := strings.ToLower(answer)
	hits := 0
	for _, kw := range Keywords(track) {
		if strings.Contains(lowered, kw) {
			hits++
		}
	}
	score += min(maxKeywordPoints, hits*pointsPerKeyword)

	if strings.Contains(answer, "\n") {
		score += multilineBonus
	}
	score = min(maxScore, score)

	feedback := FeedbackStrong
	if score < strongThreshold {
		feedback = FeedbackWeak
	}
	return score, feedback
}
