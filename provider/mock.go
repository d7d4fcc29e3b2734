package provider

import (
	"context"
	"sync"
	"time"
)

// MockClient is a test double for Client.
// It supports fixed responses, sequential responses, and custom handlers.
type MockClient struct {
	mu           sync.Mutex
	name         string
	responses    []string
	responseIdx  int
	err          error
	completeFunc func(ctx context.Context, req Request) (*Response, error)
	streamFunc   func(ctx context.Context, req Request) (<-chan StreamChunk, error)

	// Calls tracks all requests for assertions.
	Calls []Request
}

// NewMockClient creates a mock that returns a fixed response.
func NewMockClient(response string) *MockClient {
	return &MockClient{name: "mock", responses: []string{response}}
}

// WithName sets the vendor name the mock reports.
func (m *MockClient) WithName(name string) *MockClient {
	m.name = name
	return m
}

// WithResponses configures sequential responses.
// Each call returns the next response in the list, cycling back to the
// beginning after exhausting all responses.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.responses = responses
	return m
}

// WithError configures the mock to always return an error.
func (m *MockClient) WithError(err error) *MockClient {
	m.err = err
	return m
}

// WithCompleteFunc sets a custom handler for Complete calls.
// This takes precedence over fixed responses.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req Request) (*Response, error)) *MockClient {
	m.completeFunc = fn
	return m
}

// WithStreamFunc sets a custom handler for Stream calls.
func (m *MockClient) WithStreamFunc(fn func(ctx context.Context, req Request) (<-chan StreamChunk, error)) *MockClient {
	m.streamFunc = fn
	return m
}

func (m *MockClient) nextResponse() string {
	if len(m.responses) == 0 {
		return ""
	}
	response := m.responses[m.responseIdx%len(m.responses)]
	m.responseIdx++
	return response
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}
	if m.err != nil {
		return nil, m.err
	}

	response := m.nextResponse()
	return &Response{
		Content:      response,
		Usage:        TokenUsage{InputTokens: 10, OutputTokens: len(response) / 4, TotalTokens: 10 + len(response)/4},
		Model:        req.Model,
		FinishReason: "stop",
		Duration:     10 * time.Millisecond,
	}, nil
}

// Stream implements Client.
func (m *MockClient) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)

	if m.streamFunc != nil {
		fn := m.streamFunc
		m.mu.Unlock()
		return fn(ctx, req)
	}
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return nil, err
	}
	response := m.nextResponse()
	m.mu.Unlock()

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)

		// Split the response into a few chunks to exercise consumers.
		half := len(response) / 2
		for _, part := range []string{response[:half], response[half:]} {
			if part == "" {
				continue
			}
			select {
			case <-ctx.Done():
				chunks <- StreamChunk{Error: ctx.Err()}
				return
			case chunks <- StreamChunk{Content: part}:
			}
		}
		chunks <- StreamChunk{
			Done: true,
			Usage: &TokenUsage{
				InputTokens:  10,
				OutputTokens: len(response) / 4,
				TotalTokens:  10 + len(response)/4,
			},
		}
	}()
	return chunks, nil
}

// Provider implements Client.
func (m *MockClient) Provider() string {
	return m.name
}

// Close implements Client.
func (m *MockClient) Close() error {
	return nil
}

// CallCount returns how many requests the mock has received.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
