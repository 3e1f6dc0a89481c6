package matcher

import (
	"strings"
	"unicode/utf8"
)

const (
	ScoreExact     = 1.0
	ScoreContained = 0.9
)

// Score compares two normalized addresses. Containment counts only when the
// shorter key is longer than minContained characters. Empty keys never match.
func Score(a, b string, minContained int) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return ScoreExact
	}

	shorter, longer := a, b
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	if utf8.RuneCountInString(shorter) > minContained && strings.Contains(longer, shorter) {
		return ScoreContained
	}
	return 0
}
