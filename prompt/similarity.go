package prompt

import "strings"

// Similarity returns the Jaccard similarity of two prompts' word sets,
// in [0, 1]. Prompts are normalized (lowercased, whitespace collapsed)
// before comparison; an exact match after normalization is 1.0.
func Similarity(a, b string) float64 {
	na := normalizeWords(a)
	nb := normalizeWords(b)

	if na == nb {
		return 1.0
	}

	wordsA := wordSet(na)
	wordsB := wordSet(nb)

	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1.0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}

	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Normalize lowercases a prompt, trims it, and collapses internal
// whitespace. Used both for similarity comparison and cache keying so the
// same prompt modulo casing and spacing is treated identically.
func Normalize(text string) string {
	return normalizeWords(text)
}

func normalizeWords(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func wordSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		set[w] = struct{}{}
	}
	return set
}
