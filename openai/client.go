// Package openai implements the provider.Client interface against the
// OpenAI chat completions API, including SSE streaming.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/routekit/routekit/provider"
)

// Name is the registry name for this vendor.
const Name = "openai"

const defaultBaseURL = "https://api.openai.com/v1"

func init() {
	provider.Register(Name, func(cfg provider.Config) (provider.Client, error) {
		return New(cfg)
	})
}

// Client talks to the OpenAI chat completions API.
type Client struct {
	cfg  provider.Config
	http *http.Client
}

// New creates an OpenAI client.
func New(cfg provider.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("openai config: %w", err)
	}
	return &Client{cfg: cfg, http: cfg.Client()}, nil
}

// Provider implements provider.Client.
func (c *Client) Provider() string { return Name }

// Close implements provider.Client.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type chatRequest struct {
	Model         string        `json:"model"`
	Messages      []chatMessage `json:"messages"`
	Temperature   float64       `json:"temperature,omitempty"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	Stream        bool          `json:"stream,omitempty"`
	StreamOptions *streamOpts   `json:"stream_options,omitempty"`
}

type streamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

func (c *Client) messages(req provider.Request) []chatMessage {
	msgs := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return msgs
}

func (c *Client) post(ctx context.Context, op string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, provider.NewError(Name, op, err, false)
	}

	base := c.cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		base+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, provider.NewError(Name, op, err, false)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, provider.WrapTransportError(Name, op, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, provider.ErrorFromStatus(Name, op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// Complete implements provider.Client.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	start := time.Now()
	resp, err := c.post(ctx, "complete", chatRequest{
		Model:       req.Model,
		Messages:    c.messages(req),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, provider.NewError(Name, "complete", fmt.Errorf("decoding response: %w", err), false)
	}
	if len(parsed.Choices) == 0 {
		return nil, provider.NewError(Name, "complete", fmt.Errorf("response contains no choices"), false)
	}

	out := &provider.Response{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
		Duration:     time.Since(start),
	}
	if parsed.Usage != nil {
		out.Usage = provider.TokenUsage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		}
	}
	return out, nil
}

// Stream implements provider.Client. The OpenAI SSE wire format sends
// "data: {json}" lines with token deltas, a usage-bearing event when
// stream_options.include_usage is set, and a terminal "data: [DONE]".
func (c *Client) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	resp, err := c.post(ctx, "stream", chatRequest{
		Model:         req.Model,
		Messages:      c.messages(req),
		Temperature:   req.Temperature,
		MaxTokens:     req.MaxTokens,
		Stream:        true,
		StreamOptions: &streamOpts{IncludeUsage: true},
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan provider.StreamChunk)
	go func() {
		defer close(chunks)
		defer func() { _ = resp.Body.Close() }()

		var usage provider.TokenUsage
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			if data == "[DONE]" {
				send(ctx, chunks, provider.StreamChunk{Done: true, Usage: &usage})
				return
			}

			var event chatStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				// Skip malformed events
				continue
			}
			if event.Usage != nil {
				usage = provider.TokenUsage{
					InputTokens:  event.Usage.PromptTokens,
					OutputTokens: event.Usage.CompletionTokens,
					TotalTokens:  event.Usage.TotalTokens,
				}
			}
			if len(event.Choices) > 0 && event.Choices[0].Delta.Content != "" {
				if !send(ctx, chunks, provider.StreamChunk{Content: event.Choices[0].Delta.Content}) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			send(ctx, chunks, provider.StreamChunk{Error: provider.WrapTransportError(Name, "stream", err)})
			return
		}
		// Body ended without a [DONE] marker.
		send(ctx, chunks, provider.StreamChunk{Done: true, Usage: &usage})
	}()
	return chunks, nil
}

func send(ctx context.Context, chunks chan<- provider.StreamChunk, chunk provider.StreamChunk) bool {
	select {
	case <-ctx.Done():
		return false
	case chunks <- chunk:
		return true
	}
}
