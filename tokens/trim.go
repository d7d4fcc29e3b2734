package tokens

// TruncationSuffix marks text shortened by Truncate.
const TruncationSuffix = "..."

// Truncate shortens text from the end to fit within maxTokens, appending
// TruncationSuffix when anything was removed. Binary search over the rune
// count keeps it cheap for large inputs.
func Truncate(text string, maxTokens int) string {
	c := NewEstimatingCounter()
	if c.FitsInLimit(text, maxTokens) {
		return text
	}

	target := maxTokens - c.Count(TruncationSuffix)
	if target <= 0 {
		return TruncationSuffix
	}

	runes := []rune(text)
	low, high := 0, len(runes)
	for low < high {
		mid := (low + high + 1) / 2
		if c.FitsInLimit(string(runes[:mid]), target) {
			low = mid
		} else {
			high = mid - 1
		}
	}
	if low == 0 {
		return TruncationSuffix
	}
	return string(runes[:low]) + TruncationSuffix
}

// TrimHistory drops the oldest conversation turns until the prompt, the
// remaining history, and the response reserve fit within maxTokens.
// Returns the number of leading turns to drop. The prompt itself is never
// trimmed; when even the prompt alone exceeds the budget, all history is
// dropped and per-request quota checks handle the rest.
func TrimHistory(prompt string, history []string, maxTokens int) int {
	c := NewEstimatingCounter()
	budget := maxTokens - c.Count(prompt) - ResponseReserve
	if budget <= 0 {
		return len(history)
	}

	total := 0
	for _, turn := range history {
		total += c.Count(turn)
	}

	drop := 0
	for drop < len(history) && total > budget {
		total -= c.Count(history[drop])
		drop++
	}
	return drop
}
