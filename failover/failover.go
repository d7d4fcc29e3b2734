// Package failover orchestrates streaming completions with automatic
// failover along a model's fallback chain. A retryable upstream failure
// before any content has been delivered moves to the next candidate
// model, with exponential backoff between attempts.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/routekit/routekit/model"
	"github.com/routekit/routekit/provider"
)

// MaxAttempts bounds the total number of models tried for one request:
// the original plus up to three fallbacks.
const MaxAttempts = 4

// ErrExhausted indicates every candidate model failed.
var ErrExhausted = errors.New("all failover candidates exhausted")

// Result is a successfully started stream, possibly on a fallback model.
type Result struct {
	// Chunks delivers the response stream.
	Chunks <-chan provider.StreamChunk

	// Model is the model actually serving the request.
	Model model.Descriptor

	// OriginalModel is the model originally requested.
	OriginalModel string

	// Reason says, in caller-facing words, why the original model was
	// substituted. Empty when no failover occurred.
	Reason string

	// Attempts is how many models were tried, including the serving one.
	Attempts int
}

// FailedOver reports whether the serving model differs from the one
// requested.
func (r *Result) FailedOver() bool {
	return r.Model.ID != r.OriginalModel
}

// Orchestrator runs completions against vendor clients with failover.
type Orchestrator struct {
	catalog *model.Catalog
	clients map[string]provider.Client
	logger  *slog.Logger

	initialInterval time.Duration
	maxInterval     time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBackoff overrides the retry backoff bounds. Useful in tests.
func WithBackoff(initial, max time.Duration) Option {
	return func(o *Orchestrator) {
		o.initialInterval = initial
		o.maxInterval = max
	}
}

// New creates an Orchestrator. The clients map is keyed by vendor name
// (model.ProviderOpenAI and friends).
func New(catalog *model.Catalog, clients map[string]provider.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:         catalog,
		clients:         clients,
		logger:          slog.Default(),
		initialInterval: time.Second,
		maxInterval:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stream starts a streaming completion on modelID, failing over along the
// model's fallback chain when an attempt fails with a retryable error.
// The request's Model field is overwritten per attempt.
func (o *Orchestrator) Stream(ctx context.Context, modelID string, req provider.Request) (*Result, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.initialInterval
	bo.MaxInterval = o.maxInterval
	bo.RandomizationFactor = 0

	var attempted []string
	var firstErr, lastErr error
	current := modelID

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		desc, err := o.catalog.Get(current)
		if err != nil {
			return nil, fmt.Errorf("failover candidate %s: %w", current, err)
		}

		chunks, err := o.attempt(ctx, desc, req)
		if err == nil {
			res := &Result{
				Chunks:        chunks,
				Model:         desc,
				OriginalModel: modelID,
				Attempts:      attempt,
			}
			if len(attempted) > 0 {
				res.Reason = substitutionReason(firstErr)
				o.logger.Info("request failed over",
					"original", modelID, "serving", current,
					"reason", res.Reason, "attempts", attempt)
			}
			return res, nil
		}

		if !provider.IsRetryable(err) {
			return nil, err
		}
		if firstErr == nil {
			firstErr = err
		}
		lastErr = err
		attempted = append(attempted, current)
		o.logger.Warn("model attempt failed",
			"model", current, "attempt", attempt, "error", err)

		// No point picking a candidate or waiting out a backoff when the
		// attempt budget is already spent.
		if attempt == MaxAttempts {
			break
		}

		next, ok := o.catalog.NextCandidate(modelID, attempted)
		if !ok {
			break
		}
		current = next

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}

	return nil, fmt.Errorf("%w for %s: %w", ErrExhausted, modelID, lastErr)
}

// substitutionReason renders the original model's failure for callers, so
// a "answered by a backup model" notice can say why without digging
// through logs.
func substitutionReason(err error) string {
	vendor := "the provider"
	var perr *provider.Error
	if errors.As(err, &perr) && perr.Provider != "" {
		vendor = perr.Provider
	}

	switch {
	case errors.Is(err, provider.ErrRateLimited):
		return vendor + " rate limited the request"
	case errors.Is(err, provider.ErrTimeout):
		return vendor + " timed out"
	case errors.Is(err, provider.ErrInvalidCredentials):
		return vendor + " rejected the credentials"
	default:
		return vendor + " was unavailable"
	}
}

// attempt starts one stream and verifies it produces something before
// handing it to the caller. A retryable error on the very first chunk
// fails the attempt; once content has flowed, errors pass through.
func (o *Orchestrator) attempt(ctx context.Context, desc model.Descriptor, req provider.Request) (<-chan provider.StreamChunk, error) {
	client, ok := o.clients[desc.Provider]
	if !ok {
		return nil, provider.NewError(desc.Provider, "stream",
			fmt.Errorf("no client configured for provider %s", desc.Provider), true)
	}

	req.Model = desc.ID

	if !desc.SupportsStreaming {
		return o.completeAsStream(ctx, client, req)
	}

	chunks, err := client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	// Peek at the first chunk so a stream that dies immediately still
	// triggers failover.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case first, open := <-chunks:
		if !open {
			return nil, provider.NewError(desc.Provider, "stream",
				fmt.Errorf("stream closed without output"), true)
		}
		if first.Error != nil && provider.IsRetryable(first.Error) {
			return nil, first.Error
		}

		out := make(chan provider.StreamChunk)
		go func() {
			defer close(out)
			select {
			case <-ctx.Done():
				return
			case out <- first:
			}
			for chunk := range chunks {
				select {
				case <-ctx.Done():
					return
				case out <- chunk:
				}
			}
		}()
		return out, nil
	}
}

// completeAsStream adapts a non-streaming model to the chunk interface:
// one content chunk followed by a done chunk carrying usage.
func (o *Orchestrator) completeAsStream(ctx context.Context, client provider.Client, req provider.Request) (<-chan provider.StreamChunk, error) {
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan provider.StreamChunk, 2)
	out <- provider.StreamChunk{Content: resp.Content}
	usage := resp.Usage
	out <- provider.StreamChunk{Done: true, Usage: &usage}
	close(out)
	return out, nil
}
