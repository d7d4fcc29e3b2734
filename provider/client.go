// Package provider defines the unified interface for upstream LLM vendors.
//
// This package enables seamless switching between vendor APIs (OpenAI,
// Anthropic, Google) while maintaining a consistent request, response,
// and streaming format. Vendor adapters register themselves with the
// registry and translate the unified format to their wire protocol.
//
// # Usage
//
// Create a client using the registry:
//
//	client, err := provider.New("openai", provider.Config{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	chunks, err := client.Stream(ctx, provider.Request{
//	    Model:    "gpt-4o-mini",
//	    Messages: []provider.Message{provider.NewTextMessage(provider.RoleUser, "hello")},
//	})
//
// # Available Providers
//
//   - "openai": OpenAI chat completions API
//   - "anthropic": Anthropic messages API
//   - "google": Google Gemini generateContent API
package provider

import "context"

// Client is the unified interface for upstream LLM vendors.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends a request and returns the full response.
	// The context controls cancellation and timeouts.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream sends a request and returns a channel of response chunks.
	// The channel is closed when streaming completes (check chunk.Done).
	// Errors during streaming are returned via chunk.Error.
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)

	// Provider returns the vendor name (e.g., "openai", "anthropic").
	Provider() string

	// Close releases any resources held by the client.
	Close() error
}
