package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func chatOK(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestCompleteSuccess(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		io.WriteString(w, chatOK("<think>hmm</think>Привіт!"))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "test-model"})
	answer, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "привіт"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if answer != "Привіт!" {
		t.Errorf("answer = %q, want sanitized text", answer)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("model = %v", gotBody["model"])
	}
}

func TestCompleteWithToolsParsesCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"choices": [{"message": {
				"content": "",
				"reasoning_content": "thinking about it",
				"tool_calls": [
					{"id": "call_1", "function": {"name": "calculator", "arguments": "{\"expression\":\"2+2\"}"}},
					{"id": "call_2", "function": {"name": "weather", "arguments": "{\"location\":\"Kyiv\"}"}}
				]
			}}]
		}`)
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
	resp, err := c.CompleteWithTools(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Tools:    []ToolDefinition{{Type: "function", Function: ToolFunctionSchema{Name: "calculator"}}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].ID != "call_1" || resp.ToolCalls[0].Name != "calculator" {
		t.Errorf("first call = %+v", resp.ToolCalls[0])
	}
	if resp.ToolCalls[1].Arguments != `{"location":"Kyiv"}` {
		t.Errorf("raw arguments lost: %q", resp.ToolCalls[1].Arguments)
	}
	if resp.Reasoning != "thinking about it" {
		t.Errorf("reasoning = %q", resp.Reasoning)
	}
}

func TestRetriesExhaustedOnRateLimit(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m", MaxRetries: 2})
	_, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindRateLimited {
		t.Errorf("kind = %q, want rate_limited", KindOf(err))
	}
	// Initial attempt plus two retries.
	if calls != 3 {
		t.Errorf("made %d calls, want 3", calls)
	}
}

func TestFallbackModelSwitchDoesNotConsumeRetry(t *testing.T) {
	var models []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		models = append(models, body.Model)

		if body.Model == "primary" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, chatOK("відповідь від запасної"))
	}))
	defer server.Close()

	// MaxRetries 0: the switch must happen before any retry budget is spent.
	c := NewClient(Config{
		APIKey: "k", BaseURL: server.URL,
		Model: "primary", FallbackModel: "backup",
		MaxRetries: 0,
	})
	answer, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if answer != "відповідь від запасної" {
		t.Errorf("answer = %q", answer)
	}
	if len(models) != 2 || models[0] != "primary" || models[1] != "backup" {
		t.Errorf("models = %v", models)
	}
}

func TestHardErrorWithoutFallback(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m", MaxRetries: 0})
	_, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if KindOf(err) != KindModelUnavailable {
		t.Errorf("kind = %q, want model_unavailable", KindOf(err))
	}
	if calls != 1 {
		t.Errorf("made %d calls, want 1", calls)
	}
}

func TestCompleteVisionDisabled(t *testing.T) {
	c := NewClient(Config{APIKey: "k", Model: "m"})
	_, err := c.CompleteVision(context.Background(), Request{})
	if !errors.Is(err, ErrVisionUnavailable) {
		t.Errorf("err = %v, want ErrVisionUnavailable", err)
	}
}

func TestCompleteVisionDegradesOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewClient(Config{
		APIKey: "k", BaseURL: server.URL, Model: "m",
		VisionEnabled: true, Timeout: 5 * time.Second,
	})
	_, err := c.CompleteVision(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "що на фото?", Images: []ImageRef{{URL: "http://x/1.jpg"}}}},
	})
	if !errors.Is(err, ErrVisionUnavailable) {
		t.Errorf("err = %v, want ErrVisionUnavailable", err)
	}
}

func TestWireMessages(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "system"},
		{Role: RoleUser, Content: "look", Images: []ImageRef{{URL: "http://x/1.jpg"}}},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "calculator", Arguments: `{"expression":"1"}`}}},
		{Role: RoleTool, Content: "1", ToolCallID: "c1"},
	}
	wire := wireMessages(msgs)
	if len(wire) != 4 {
		t.Fatalf("got %d messages", len(wire))
	}

	// Image turns become content-part lists.
	parts, ok := wire[1]["content"].([]map[string]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("image content = %#v", wire[1]["content"])
	}
	if parts[0]["type"] != "text" || parts[1]["type"] != "image_url" {
		t.Errorf("part types = %v, %v", parts[0]["type"], parts[1]["type"])
	}

	// Assistant tool calls get the function wrapper and keep raw arguments.
	calls, ok := wire[2]["tool_calls"].([]map[string]any)
	if !ok || len(calls) != 1 {
		t.Fatalf("tool_calls = %#v", wire[2]["tool_calls"])
	}
	if calls[0]["type"] != "function" {
		t.Errorf("call type = %v", calls[0]["type"])
	}
	fn := calls[0]["function"].(map[string]any)
	if fn["arguments"] != `{"expression":"1"}` {
		t.Errorf("arguments = %v", fn["arguments"])
	}
	// No empty content key alongside tool calls.
	if _, present := wire[2]["content"]; present {
		t.Error("assistant with tool calls must omit empty content")
	}

	if wire[3]["tool_call_id"] != "c1" {
		t.Errorf("tool_call_id = %v", wire[3]["tool_call_id"])
	}
}
