package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config configures the client. Vision fields fall back to the primary
// endpoint when unset.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// FallbackModel is switched to on a hard provider error; the switch
	// itself does not consume a retry.
	FallbackModel string

	VisionEnabled bool
	VisionAPIKey  string
	VisionBaseURL string
	VisionModel   string

	MaxRetries        int // retries beyond the initial attempt
	Timeout           time.Duration
	MaxResponseTokens int
}

// Client wraps an OpenAI-compatible chat completion API with retries,
// exponential backoff, fallback-model switching and a separately
// configurable vision path.
type Client struct {
	cfg  Config
	http *http.Client

	visionKey   string
	visionBase  string
	visionModel string
}

// NewClient builds a client from config, resolving vision fallbacks.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxResponseTokens <= 0 {
		cfg.MaxResponseTokens = 2048
	}

	c := &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: cfg.Timeout},
		visionKey:   cfg.VisionAPIKey,
		visionBase:  strings.TrimRight(cfg.VisionBaseURL, "/"),
		visionModel: cfg.VisionModel,
	}
	if c.visionKey == "" {
		c.visionKey = cfg.APIKey
	}
	if c.visionBase == "" {
		c.visionBase = cfg.BaseURL
	}
	if c.visionModel == "" {
		c.visionModel = cfg.Model
	}
	return c
}

// Complete runs a plain chat completion and returns sanitized text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	req.Tools = nil
	resp, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}
	return Sanitize(resp.Content), nil
}

// CompleteWithTools runs a chat completion advertising the given tool
// schemas. Content is returned unsanitized; the agent loop sanitizes only
// the final user-facing answer.
func (c *Client) CompleteWithTools(ctx context.Context, req Request) (*Response, error) {
	return c.complete(ctx, req)
}

// CompleteVision runs a completion against the vision endpoint. Returns
// ErrVisionUnavailable when vision is disabled or the call fails, so the
// caller can degrade to a text-only path.
func (c *Client) CompleteVision(ctx context.Context, req Request) (string, error) {
	if !c.cfg.VisionEnabled {
		return "", ErrVisionUnavailable
	}

	req.Tools = nil
	resp, err := c.doChat(ctx, c.visionBase, c.visionKey, c.visionModel, req)
	if err != nil {
		slog.Error("vision request failed, degrading to text-only", "error", err)
		return "", ErrVisionUnavailable
	}
	return Sanitize(resp.Content), nil
}

// complete is the retry loop shared by Complete and CompleteWithTools.
//
// Policy: transient failures (rate limit, timeout) back off exponentially
// with jitter and retry up to MaxRetries; a hard provider error switches to
// the fallback model first (without consuming a retry) and then keeps
// retrying under the new model. Exhaustion yields a typed *Error.
func (c *Client) complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	attempt := 0
	for {
		resp, err := c.doChat(ctx, c.cfg.BaseURL, c.cfg.APIKey, model, req)
		if err == nil {
			return resp, nil
		}

		class := classify(err)

		if class == failHard && c.cfg.FallbackModel != "" && model != c.cfg.FallbackModel {
			slog.Info("switching to fallback model",
				"from", model, "to", c.cfg.FallbackModel, "error", err)
			model = c.cfg.FallbackModel
			continue
		}

		if attempt >= c.cfg.MaxRetries {
			return nil, newError(class.kind(), err)
		}

		delay := backoffDelay(attempt, err)
		slog.Warn("llm request failed, backing off",
			"attempt", attempt+1, "delay", delay, "model", model, "error", err)
		if serr := sleepCtx(ctx, delay); serr != nil {
			return nil, newError(class.kind(), err)
		}
		attempt++
	}
}

// doChat performs one request against an OpenAI-compatible endpoint.
func (c *Client) doChat(ctx context.Context, baseURL, apiKey, model string, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxResponseTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	body := map[string]any{
		"model":       model,
		"messages":    wireMessages(req.Messages),
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
	if len(req.Tools) > 0 {
		body["tools"] = req.Tools
		body["tool_choice"] = "auto"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, &HTTPError{
			Status:     httpResp.StatusCode,
			Body:       string(respBody),
			RetryAfter: parseRetryAfter(httpResp.Header.Get("Retry-After")),
		}
	}

	var wire chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parseResponse(&wire), nil
}

// wireMessages converts internal messages to the OpenAI wire format:
// tool calls need the type+function wrapper and arguments as a JSON string,
// image references become image_url content parts.
func wireMessages(msgs []Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		msg := map[string]any{"role": m.Role}

		if m.Role == RoleUser && len(m.Images) > 0 {
			var parts []map[string]any
			if m.Content != "" {
				parts = append(parts, map[string]any{"type": "text", "text": m.Content})
			}
			for _, img := range m.Images {
				parts = append(parts, map[string]any{
					"type":      "image_url",
					"image_url": map[string]any{"url": img.URL},
				})
			}
			msg["content"] = parts
		} else if m.Content != "" || len(m.ToolCalls) == 0 {
			msg["content"] = m.Content
		}

		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				calls[i] = map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": tc.Arguments,
					},
				}
			}
			msg["tool_calls"] = calls
		}
		if m.ToolCallID != "" {
			msg["tool_call_id"] = m.ToolCallID
		}
		if m.Reasoning != "" {
			msg["reasoning_content"] = m.Reasoning
		}

		out = append(out, msg)
	}
	return out
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			ToolCalls        []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func parseResponse(wire *chatResponse) *Response {
	resp := &Response{}
	if len(wire.Choices) == 0 {
		return resp
	}

	msg := wire.Choices[0].Message
	resp.Content = msg.Content
	resp.Reasoning = msg.ReasoningContent
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      strings.TrimSpace(tc.Function.Name),
			Arguments: tc.Function.Arguments,
		})
	}
	return resp
}
