package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/routekit/routekit/tokens"
)

// Category is the coarse task classification of a prompt.
type Category string

// Task categories, in precedence order for tie-breaking.
const (
	CategoryCoding       Category = "coding"
	CategoryCreative     Category = "creative"
	CategoryMath         Category = "math"
	CategoryCasual       Category = "casual"
	CategoryDataAnalysis Category = "data_analysis"
)

// Categories lists all task categories in scoring order.
var Categories = []Category{
	CategoryCoding,
	CategoryCreative,
	CategoryMath,
	CategoryCasual,
	CategoryDataAnalysis,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryCoding, CategoryCreative, CategoryMath, CategoryCasual, CategoryDataAnalysis:
		return true
	}
	return false
}

// Analysis is the result of classifying a prompt.
type Analysis struct {
	// Category is the winning task category.
	Category Category

	// Confidence is the winning score divided by the total score (0-1).
	// 0.5 when the prompt carried no signal at all.
	Confidence float64

	// EstimatedTokens is a coarse token estimate for the prompt text.
	EstimatedTokens int

	// Reasoning is a human-readable explanation of the classification.
	Reasoning string
}

// Scoring weights. Structural patterns are stronger signals than keyword hits.
const (
	keywordWeight        = 1
	patternWeight        = 3
	simpleQuestionWeight = 5
)

// categorySignals holds the lexical signals for one category.
type categorySignals struct {
	keywords []string
	patterns []*regexp.Regexp
}

var signals = map[Category]categorySignals{
	CategoryCoding: {
		keywords: []string{
			"code", "function", "debug", "error", "bug", "implement",
			"refactor", "algorithm", "programming", "python", "javascript",
			"typescript", "react", "api", "database", "sql", "git", "regex",
			"class", "method", "variable", "syntax", "compile", "runtime",
			"npm", "install", "component", "hook",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile("(?s)```.*?```"),            // fenced code blocks
			regexp.MustCompile("`[^`]+`"),                  // inline code
			regexp.MustCompile(`(?i)\bdef\s+\w+`),          // Python functions
			regexp.MustCompile(`(?i)\bfunction\s+\w+`),     // JS functions
			regexp.MustCompile(`(?i)\bconst\s+\w+\s*=`),    // variable declarations
			regexp.MustCompile(`(?i)\bimport\s+`),          // import statements
			regexp.MustCompile(`(?i)\bclass\s+\w+`),        // class definitions
		},
	},
	CategoryCreative: {
		keywords: []string{
			"write", "story", "poem", "creative", "blog", "article", "essay",
			"novel", "character", "plot", "narrative", "fiction", "draft",
			"brainstorm", "imagine", "describe", "scene", "dialogue",
			"marketing", "slogan", "advertisement", "email", "letter", "script",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)write\s+(a|an|me)\s+`),
			regexp.MustCompile(`(?i)create\s+(a|an)\s+(story|poem|article)`),
			regexp.MustCompile(`(?i)help\s+me\s+write`),
		},
	},
	CategoryMath: {
		keywords: []string{
			"calculate", "solve", "equation", "mathematics", "algebra",
			"geometry", "calculus", "probability", "statistics", "formula",
			"theorem", "proof", "derivative", "integral", "matrix", "vector",
			"sum", "average", "percentage",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\d+\s*[-+*/^]\s*\d+`), // arithmetic expressions
			regexp.MustCompile(`\b\d+%`),              // percentages
			regexp.MustCompile(`\b\d+\.\d+`),          // decimals
			regexp.MustCompile(`[∫∑∏√≤≥±∞]`),          // math symbols
			regexp.MustCompile(`(?i)\b(x|y|z)\s*[=<>]`),
		},
	},
	CategoryDataAnalysis: {
		keywords: []string{
			"analyze", "data", "summarize", "extract", "table", "chart",
			"csv", "json", "dataset", "report", "trend", "insight", "pattern",
			"compare", "metrics", "dashboard", "visualization", "parse",
			"format", "transform",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bcsv\b`),
			regexp.MustCompile(`(?i)\bjson\b`),
			regexp.MustCompile(`(?i)\bdata\s+(analysis|science|mining)`),
			regexp.MustCompile(`(?i)summarize\s+(this|the)`),
		},
	},
	CategoryCasual: {
		// Fallback category: scored on question words only.
		keywords: []string{
			"what", "how", "why", "when", "where", "who", "explain", "tell",
			"help", "advice", "recommend", "opinion", "think", "suggest",
		},
	},
}

// simpleQuestionRe matches plain informational questions ("what is...",
// "who are...") that should route to a conversational model.
var simpleQuestionRe = regexp.MustCompile(`(?i)^(what is|what are|who is|who are|where is|when is|why is)`)

// creationVerbRe matches imperative/creation verbs that disqualify a prompt
// from the simple-question boost.
var creationVerbRe = regexp.MustCompile(`(?i)(write|create|code|function|build|implement|develop)`)

// Analyze classifies a prompt into a task category.
// It is pure and deterministic: identical input always yields the identical
// analysis. No network calls, no randomness.
func Analyze(text string) Analysis {
	lower := strings.ToLower(text)

	scores := make(map[Category]int, len(Categories))

	isSimpleQuestion := simpleQuestionRe.MatchString(strings.TrimSpace(lower)) &&
		!creationVerbRe.MatchString(lower)

	for cat, sig := range signals {
		score := 0
		for _, kw := range sig.keywords {
			if strings.Contains(lower, kw) {
				score += keywordWeight
			}
		}
		for _, re := range sig.patterns {
			if re.MatchString(text) {
				score += patternWeight
			}
		}
		scores[cat] = score
	}

	if isSimpleQuestion {
		scores[CategoryCasual] += simpleQuestionWeight
	}

	// Pick the winner in fixed category order so strict ties resolve
	// deterministically. All-zero scores fall through to casual.
	maxScore := 0
	selected := CategoryCasual
	total := 0
	for _, cat := range Categories {
		total += scores[cat]
		if scores[cat] > maxScore {
			maxScore = scores[cat]
			selected = cat
		}
	}

	confidence := 0.5
	if total > 0 {
		confidence = float64(maxScore) / float64(total)
	}

	return Analysis{
		Category:        selected,
		Confidence:      confidence,
		EstimatedTokens: tokens.EstimateTokens(text),
		Reasoning:       reasoning(selected, maxScore),
	}
}

// categoryReasons holds the phrasing used to explain a classification.
var categoryReasons = map[Category][]string{
	CategoryCoding: {
		"contains code syntax",
		"mentions programming concepts",
		"includes technical keywords",
	},
	CategoryMath: {
		"contains mathematical expressions",
		"includes numerical calculations",
		"mentions math concepts",
	},
	CategoryCreative: {
		"requests creative writing",
		"asks for content generation",
		"involves storytelling",
	},
	CategoryDataAnalysis: {
		"requests data processing",
		"mentions analysis or summarization",
		"involves structured data",
	},
	CategoryCasual: {
		"general question",
		"conversational request",
		"informational query",
	},
}

func reasoning(cat Category, score int) string {
	reasons := categoryReasons[cat]
	n := min(2, score)
	if n > len(reasons) {
		n = len(reasons)
	}
	if n <= 0 {
		return fmt.Sprintf("Categorized as %s (general purpose)", cat)
	}
	return fmt.Sprintf("Categorized as %s because it %s", cat, strings.Join(reasons[:n], " and "))
}
