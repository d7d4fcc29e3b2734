package prompt

import (
	"strings"
	"unicode"
)

// Degenerate-prompt thresholds.
const (
	// MinPromptLength is the minimum prompt length in characters.
	MinPromptLength = 3

	// MaxPromptLength is the maximum prompt length in characters.
	MaxPromptLength = 50000

	// maxCharRun is the longest allowed run of a single repeated character.
	maxCharRun = 50

	// maxSpecialCharRatio is the allowed fraction of non-alphanumeric,
	// non-space characters.
	maxSpecialCharRatio = 0.5
)

// DetectSuspicious flags prompts that are degenerate: too short, absurdly
// long, dominated by a repeated character, or mostly non-alphanumeric.
// Returns whether the prompt is suspicious and a human-readable reason.
func DetectSuspicious(text string) (bool, string) {
	if len(strings.TrimSpace(text)) < MinPromptLength {
		return true, "Prompt too short"
	}

	if len(text) > MaxPromptLength {
		return true, "Prompt exceeds reasonable length"
	}

	if hasCharRun(text, maxCharRun) {
		return true, "Contains excessive repeated characters"
	}

	if specialCharRatio(text) > maxSpecialCharRatio {
		return true, "Excessive special characters"
	}

	return false, ""
}

// hasCharRun reports whether text contains a run of more than limit
// consecutive identical runes.
func hasCharRun(text string, limit int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run > limit {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// specialCharRatio returns the fraction of runes that are neither
// alphanumeric nor whitespace.
func specialCharRatio(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	total := 0
	special := 0
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	return float64(special) / float64(total)
}
