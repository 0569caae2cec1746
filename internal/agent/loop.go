package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gryag-bot/gryag/internal/llm"
	"github.com/gryag-bot/gryag/internal/tools"
)

// fallbackAnswer is returned when the loop runs out of turns without a
// plain answer from the model.
const fallbackAnswer = "🤔 Я трохи заплутався..."

// imagePlaceholder replaces image turns when the vision path is unavailable.
const imagePlaceholder = "[user referenced an image I cannot see]"

const defaultMaxTurns = 10

// ModelClient is the slice of the reliability client the loop needs.
type ModelClient interface {
	CompleteWithTools(ctx context.Context, req llm.Request) (*llm.Response, error)
	CompleteVision(ctx context.Context, req llm.Request) (string, error)
}

// ToolExecutor dispatches tool calls and advertises their schemas.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any, caller tools.Caller) *tools.Result
	Schemas() []llm.ToolDefinition
}

// Loop drives one agent turn: a bounded sequence of model calls, each
// followed by claim inspection and, when the model asked for them, tool
// executions whose results are appended back into the transcript.
type Loop struct {
	client   ModelClient
	tools    ToolExecutor
	detector Detector
	maxTurns int
}

func NewLoop(client ModelClient, executor ToolExecutor, detector Detector, maxTurns int) *Loop {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &Loop{
		client:   client,
		tools:    executor,
		detector: detector,
		maxTurns: maxTurns,
	}
}

// TurnRequest is one user turn to run through the loop.
type TurnRequest struct {
	ChatID int64
	UserID int64

	// UserText is the triggering message's raw text, used by the
	// unbacked-claim detector.
	UserText string

	Transcript []llm.Message
}

// Run executes the loop and returns the final user-facing answer. Model
// backend errors propagate as typed *llm.Error values; tool failures never
// abort the loop.
func (l *Loop) Run(ctx context.Context, req TurnRequest) (string, error) {
	transcript := req.Transcript

	if hasImages(transcript) {
		answer, err := l.client.CompleteVision(ctx, llm.Request{Messages: transcript})
		if err == nil {
			return answer, nil
		}
		if !errors.Is(err, llm.ErrVisionUnavailable) {
			return "", err
		}
		slog.Info("vision unavailable, substituting image placeholder",
			"chat_id", req.ChatID, "user_id", req.UserID)
		transcript = substituteImages(transcript)
	}

	schemas := l.tools.Schemas()
	caller := tools.Caller{UserID: req.UserID, ChatID: req.ChatID}

	// Every physical model call consumes a turn, forced corrections
	// included, so the loop always terminates within maxTurns.
	for turn := 0; turn < l.maxTurns; turn++ {
		resp, err := l.client.CompleteWithTools(ctx, llm.Request{
			Messages: transcript,
			Tools:    schemas,
		})
		if err != nil {
			return "", err
		}

		if len(resp.ToolCalls) == 0 && l.detector != nil {
			if corr := l.detector.Detect(resp.Content, req.UserText); corr != nil {
				slog.Info("forced correction",
					"chat_id", req.ChatID, "user_id", req.UserID,
					"response_preview", contentPrefix(resp.Content, 100))
				// Discard the assistant message; keep only the corrective
				// note and re-ask.
				transcript = append(transcript, llm.Message{
					Role:    llm.RoleSystem,
					Content: corr.Instruction,
				})
				continue
			}
		}

		transcript = append(transcript, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
			Reasoning: resp.Reasoning,
		})

		if len(resp.ToolCalls) == 0 {
			return llm.Sanitize(resp.Content), nil
		}

		for _, call := range resp.ToolCalls {
			transcript = append(transcript, l.runToolCall(ctx, call, caller))
		}
	}

	slog.Warn("agent loop exhausted turns",
		"chat_id", req.ChatID, "user_id", req.UserID, "max_turns", l.maxTurns)
	return fallbackAnswer, nil
}

// runToolCall executes one tool call and wraps its result into the tool
// turn correlated by the call id.
func (l *Loop) runToolCall(ctx context.Context, call llm.ToolCall, caller tools.Caller) llm.Message {
	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			slog.Warn("malformed tool arguments", "tool", call.Name, "error", err)
			args = map[string]any{}
		}
	}

	result := l.tools.Execute(ctx, call.Name, args, caller)
	slog.Info("tool executed",
		"tool", call.Name, "success", result.Success,
		"chat_id", caller.ChatID, "user_id", caller.UserID)

	content := result.Output
	if !result.Success {
		content = fmt.Sprintf("Error: %s", result.Error)
	}
	return llm.Message{
		Role:       llm.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
	}
}

func hasImages(transcript []llm.Message) bool {
	for _, m := range transcript {
		if len(m.Images) > 0 {
			return true
		}
	}
	return false
}

// substituteImages replaces every image carrier with a text-only turn.
func substituteImages(transcript []llm.Message) []llm.Message {
	out := make([]llm.Message, len(transcript))
	copy(out, transcript)
	for i := range out {
		if len(out[i].Images) == 0 {
			continue
		}
		out[i].Images = nil
		if out[i].Content != "" {
			out[i].Content += " " + imagePlaceholder
		} else {
			out[i].Content = imagePlaceholder
		}
	}
	return out
}
