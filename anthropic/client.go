// Package anthropic implements the provider.Client interface against the
// Anthropic messages API, including SSE streaming.
package anthropic

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
const Name = "anthropic"

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"

	// defaultMaxTokens applies when the request does not set one; the
	// messages API requires the field.
	defaultMaxTokens = 4096
)

func init() {
	provider.Register(Name, func(cfg provider.Config) (provider.Client, error) {
		return New(cfg)
	})
}

// Client talks to the Anthropic messages API.
type Client struct {
	cfg  provider.Config
	http *http.Client
}

// New creates an Anthropic client.
func New(cfg provider.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("anthropic config: %w", err)
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

type messagesRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	System      string       `json:"system,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens"`
	Stream      bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string   `json:"stop_reason"`
	Usage      apiUsage `json:"usage"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// streamEvent covers the subset of the messages stream events the router
// needs: message_start carries input tokens, content_block_delta carries
// text, message_delta carries output tokens, message_stop terminates.
type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage apiUsage `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Text string `json:"text"`
	} `json:"delta"`
	Usage *apiUsage `json:"usage"`
}

// split separates the system prompt from conversation turns; the messages
// API takes the system prompt as a top-level field.
func split(req provider.Request) (string, []apiMessage) {
	system := req.SystemPrompt
	msgs := make([]apiMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == provider.RoleSystem {
			if system == "" {
				system = m.Content
			}
			continue
		}
		msgs = append(msgs, apiMessage{Role: string(m.Role), Content: m.Content})
	}
	return system, msgs
}

func (c *Client) post(ctx context.Context, op string, body messagesRequest) (*http.Response, error) {
	if body.MaxTokens == 0 {
		body.MaxTokens = defaultMaxTokens
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, provider.NewError(Name, op, err, false)
	}

	base := c.cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, provider.NewError(Name, op, err, false)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, provider.WrapTransportError(Name, op, err)
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, provider.ErrorFromStatus(Name, op, resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	return resp, nil
}

// Complete implements provider.Client.
func (c *Client) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	start := time.Now()
	system, msgs := split(req)
	resp, err := c.post(ctx, "complete", messagesRequest{
		Model:       req.Model,
		Messages:    msgs,
		System:      system,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, provider.NewError(Name, "complete", fmt.Errorf("decoding response: %w", err), false)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &provider.Response{
		Content:      text.String(),
		Model:        parsed.Model,
		FinishReason: parsed.StopReason,
		Duration:     time.Since(start),
		Usage: provider.TokenUsage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TotalTokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

// Stream implements provider.Client.
func (c *Client) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	system, msgs := split(req)
	resp, err := c.post(ctx, "stream", messagesRequest{
		Model:       req.Model,
		Messages:    msgs,
		System:      system,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
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

			var event streamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					usage.InputTokens = event.Message.Usage.InputTokens
				}
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Text != "" {
					if !send(ctx, chunks, provider.StreamChunk{Content: event.Delta.Text}) {
						return
					}
				}
			case "message_delta":
				if event.Usage != nil {
					usage.OutputTokens = event.Usage.OutputTokens
				}
			case "message_stop":
				usage.TotalTokens = usage.InputTokens + usage.OutputTokens
				send(ctx, chunks, provider.StreamChunk{Done: true, Usage: &usage})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(ctx, chunks, provider.StreamChunk{Error: provider.WrapTransportError(Name, "stream", err)})
			return
		}
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
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
