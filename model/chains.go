package model

// FailoverChains maps a model id to the ordered list of substitute model
// ids tried when a call to it fails in a retryable way. Chains are keyed by
// the originally requested model, not the most recent attempt, and are
// read-only at request time.
type FailoverChains map[string][]string

// NextCandidate returns the first substitute in the chain for original that
// does not appear in attempted. Returns false when the chain is exhausted
// or the model has no chain.
func (f FailoverChains) NextCandidate(original string, attempted []string) (string, bool) {
	chain, ok := f[original]
	if !ok {
		return "", false
	}

	tried := make(map[string]struct{}, len(attempted))
	for _, id := range attempted {
		tried[id] = struct{}{}
	}

	for _, sub := range chain {
		if _, done := tried[sub]; !done {
			return sub, true
		}
	}
	return "", false
}
