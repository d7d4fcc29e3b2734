package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/routekit/routekit/prompt"
)

// HistoryDepth is how many trailing conversation turns participate in the
// cache key. Older turns rarely change the answer to the newest prompt and
// would needlessly fragment the key space.
const HistoryDepth = 5

// Turn is one conversation turn for key derivation.
type Turn struct {
	Role    string
	Content string
}

// Key derives the deterministic cache key for a request: a SHA-256 over
// the model id, the normalized prompt, and the last five history turns.
// The cryptographic hash keeps unrelated prompts from ever aliasing.
// Prompts differing only in case or surrounding whitespace produce the
// same key.
func Key(modelID, promptText string, history []Turn) string {
	recent := history
	if len(recent) > HistoryDepth {
		recent = recent[len(recent)-HistoryDepth:]
	}

	var b strings.Builder
	b.WriteString(modelID)
	b.WriteByte(':')
	b.WriteString(prompt.Normalize(promptText))
	b.WriteByte(':')
	for i, turn := range recent {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(turn.Role)
		b.WriteByte(':')
		b.WriteString(turn.Content)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
