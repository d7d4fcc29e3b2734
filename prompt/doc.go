// Package prompt classifies user prompts into task categories and screens
// them for abuse signals.
//
// Classification is purely lexical: each category is scored by keyword
// membership and structural pattern matches (fenced code blocks, arithmetic
// expressions, "write a poem"-style imperatives), with patterns weighted
// more heavily than keywords. The result feeds model selection; it is
// deterministic, allocation-light, and makes no network calls.
//
//	analysis := prompt.Analyze("Write a function to check if a number is prime")
//	// analysis.Category == prompt.CategoryCoding
//
// The package also provides the input-hygiene primitives used by the abuse
// guard: DetectSuspicious for degenerate prompts and Similarity for
// near-duplicate detection.
package prompt
