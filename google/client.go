// Package google implements the provider.Client interface against the
// Gemini generateContent API, including SSE streaming.
package google

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
const Name = "google"

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

func init() {
	provider.Register(Name, func(cfg provider.Config) (provider.Client, error) {
		return New(cfg)
	})
}

// Client talks to the Gemini generateContent API.
type Client struct {
	cfg  provider.Config
	http *http.Client
}

// New creates a Gemini client.
func New(cfg provider.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("google config: %w", err)
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

type generateRequest struct {
	Contents          []content       `json:"contents"`
	SystemInstruction *content        `json:"systemInstruction,omitempty"`
	GenerationConfig  *generateConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// contents maps unified messages to the Gemini role scheme, which only
// knows "user" and "model".
func contents(req provider.Request) ([]content, *content) {
	var system *content
	if req.SystemPrompt != "" {
		system = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}

	out := make([]content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case provider.RoleSystem:
			if system == nil {
				system = &content{Parts: []part{{Text: m.Content}}}
			}
		case provider.RoleAssistant:
			out = append(out, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			out = append(out, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	return out, system
}

func (c *Client) post(ctx context.Context, op, endpoint string, req provider.Request) (*http.Response, error) {
	msgs, system := contents(req)
	body := generateRequest{Contents: msgs, SystemInstruction: system}
	if req.Temperature != 0 || req.MaxTokens != 0 {
		body.GenerationConfig = &generateConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, provider.NewError(Name, op, err, false)
	}

	base := c.cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	url := fmt.Sprintf("%s/models/%s:%s", base, req.Model, endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, provider.NewError(Name, op, err, false)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

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
	resp, err := c.post(ctx, "complete", "generateContent", req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, provider.NewError(Name, "complete", fmt.Errorf("decoding response: %w", err), false)
	}
	if len(parsed.Candidates) == 0 {
		return nil, provider.NewError(Name, "complete", fmt.Errorf("response contains no candidates"), false)
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	out := &provider.Response{
		Content:      text.String(),
		Model:        req.Model,
		FinishReason: strings.ToLower(parsed.Candidates[0].FinishReason),
		Duration:     time.Since(start),
	}
	if parsed.UsageMetadata != nil {
		out.Usage = provider.TokenUsage{
			InputTokens:  parsed.UsageMetadata.PromptTokenCount,
			OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  parsed.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

// Stream implements provider.Client. With alt=sse the API emits one
// "data: {json}" line per generation step, each a generateResponse
// fragment; there is no terminal marker, the stream just ends.
func (c *Client) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamChunk, error) {
	resp, err := c.post(ctx, "stream", "streamGenerateContent?alt=sse", req)
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

			var event generateResponse
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}
			if event.UsageMetadata != nil {
				usage = provider.TokenUsage{
					InputTokens:  event.UsageMetadata.PromptTokenCount,
					OutputTokens: event.UsageMetadata.CandidatesTokenCount,
					TotalTokens:  event.UsageMetadata.TotalTokenCount,
				}
			}
			if len(event.Candidates) > 0 {
				for _, p := range event.Candidates[0].Content.Parts {
					if p.Text == "" {
						continue
					}
					if !send(ctx, chunks, provider.StreamChunk{Content: p.Text}) {
						return
					}
				}
			}
		}

		if err := scanner.Err(); err != nil {
			send(ctx, chunks, provider.StreamChunk{Error: provider.WrapTransportError(Name, "stream", err)})
			return
		}
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
