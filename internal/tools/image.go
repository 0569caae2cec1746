package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ImageConfig points the image tool at an OpenAI-compatible images endpoint.
type ImageConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ImageTool generates images through the images/generations endpoint.
type ImageTool struct {
	cfg    ImageConfig
	client *http.Client
}

func NewImageTool(cfg ImageConfig) *ImageTool {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "dall-e-3"
	}
	return &ImageTool{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (t *ImageTool) Name() string { return "generate_image" }

func (t *ImageTool) Description() string {
	return "Generate an image based on a text description."
}

func (t *ImageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "Detailed description of the image to generate.",
			},
			"size": map[string]any{
				"type":        "string",
				"enum":        []string{"1024x1024"},
				"description": "Size of the image.",
			},
		},
		"required": []string{"prompt"},
	}
}

func (t *ImageTool) Execute(ctx context.Context, args map[string]any, _ Caller) *Result {
	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return Failed("prompt is required")
	}
	size, _ := args["size"].(string)
	if size == "" {
		size = "1024x1024"
	}

	imageURL, err := t.generate(ctx, prompt, size)
	if err != nil {
		return Failed(fmt.Sprintf("Image generation failed: %v", err))
	}
	return OKData(fmt.Sprintf("Image generated successfully: %s", imageURL), map[string]any{"url": imageURL})
}

func (t *ImageTool) generate(ctx context.Context, prompt, size string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":   t.cfg.Model,
		"prompt":  prompt,
		"size":    size,
		"quality": "standard",
		"n":       1,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	var payload struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Data) == 0 || payload.Data[0].URL == "" {
		return "", fmt.Errorf("empty response")
	}
	return payload.Data[0].URL, nil
}
