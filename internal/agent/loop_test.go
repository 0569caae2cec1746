package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gryag-bot/gryag/internal/llm"
	"github.com/gryag-bot/gryag/internal/tools"
)

type fakeModel struct {
	steps []modelStep
	calls [][]llm.Message

	visionText  string
	visionErr   error
	visionCalls int
}

type modelStep struct {
	resp *llm.Response
	err  error
}

func (f *fakeModel) CompleteWithTools(_ context.Context, req llm.Request) (*llm.Response, error) {
	msgs := append([]llm.Message(nil), req.Messages...)
	f.calls = append(f.calls, msgs)

	idx := len(f.calls) - 1
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	step := f.steps[idx]
	return step.resp, step.err
}

func (f *fakeModel) CompleteVision(_ context.Context, _ llm.Request) (string, error) {
	f.visionCalls++
	return f.visionText, f.visionErr
}

type recordingTool struct {
	name    string
	callers []tools.Caller
	args    []map[string]any
}

func (t *recordingTool) Name() string               { return t.name }
func (t *recordingTool) Description() string        { return "records calls" }
func (t *recordingTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (t *recordingTool) Execute(_ context.Context, args map[string]any, caller tools.Caller) *tools.Result {
	t.callers = append(t.callers, caller)
	t.args = append(t.args, args)
	return tools.OK("done")
}

func testRegistry(extra ...tools.Tool) *tools.Registry {
	r := tools.NewRegistry()
	for _, t := range extra {
		r.Register(t)
	}
	return r
}

func baseTranscript(userText string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: "system prompt"},
		{Role: llm.RoleUser, Content: userText},
	}
}

func TestLoopPlainAnswer(t *testing.T) {
	model := &fakeModel{steps: []modelStep{
		{resp: &llm.Response{Content: "Привіт!"}},
	}}
	loop := NewLoop(model, testRegistry(), NewPhraseDetector(DefaultPhraseSets()), 10)

	answer, err := loop.Run(context.Background(), TurnRequest{
		ChatID: 1, UserID: 2,
		UserText:   "привіт",
		Transcript: baseTranscript("привіт"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != "Привіт!" {
		t.Errorf("answer = %q", answer)
	}
	if len(model.calls) != 1 {
		t.Errorf("model called %d times, want 1", len(model.calls))
	}
}

func TestLoopForcedCorrectionThenToolCall(t *testing.T) {
	saveTool := &recordingTool{name: "save_user_fact"}
	model := &fakeModel{steps: []modelStep{
		{resp: &llm.Response{Content: "Noted, I'll remember!"}},
		{resp: &llm.Response{ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "save_user_fact", Arguments: `{"fact":"lives in Lviv"}`},
		}}},
		{resp: &llm.Response{Content: "Зроблено!"}},
	}}
	loop := NewLoop(model, testRegistry(saveTool), NewPhraseDetector(DefaultPhraseSets()), 10)

	userText := "I live in Lviv, remember that"
	answer, err := loop.Run(context.Background(), TurnRequest{
		ChatID: 10, UserID: 42,
		UserText:   userText,
		Transcript: baseTranscript(userText),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != "Зроблено!" {
		t.Errorf("answer = %q", answer)
	}
	if len(model.calls) != 3 {
		t.Fatalf("model called %d times, want 3", len(model.calls))
	}

	// The correction adds exactly one system turn; the hallucinated
	// assistant message is discarded.
	first, second := model.calls[0], model.calls[1]
	if len(second) != len(first)+1 {
		t.Fatalf("second call has %d turns, want %d", len(second), len(first)+1)
	}
	injected := second[len(second)-1]
	if injected.Role != llm.RoleSystem || injected.Content != correctSaveFact {
		t.Errorf("injected turn = %+v", injected)
	}

	// The tool ran once, scoped to the calling user, never to model args.
	if len(saveTool.callers) != 1 {
		t.Fatalf("save tool ran %d times, want 1", len(saveTool.callers))
	}
	if saveTool.callers[0].UserID != 42 || saveTool.callers[0].ChatID != 10 {
		t.Errorf("caller = %+v", saveTool.callers[0])
	}
	if saveTool.args[0]["fact"] != "lives in Lviv" {
		t.Errorf("args = %+v", saveTool.args[0])
	}

	// Third call sees the assistant turn with the call and its result,
	// correlated by id.
	third := model.calls[2]
	assistant := third[len(third)-2]
	toolTurn := third[len(third)-1]
	if assistant.Role != llm.RoleAssistant || len(assistant.ToolCalls) != 1 {
		t.Errorf("assistant turn = %+v", assistant)
	}
	if toolTurn.Role != llm.RoleTool || toolTurn.ToolCallID != "call_1" || toolTurn.Content != "done" {
		t.Errorf("tool turn = %+v", toolTurn)
	}
}

func TestLoopToolResultsMatchCallsInOrder(t *testing.T) {
	calc := tools.NewCalculatorTool()
	model := &fakeModel{steps: []modelStep{
		{resp: &llm.Response{ToolCalls: []llm.ToolCall{
			{ID: "a", Name: "calculator", Arguments: `{"expression":"2+2"}`},
			{ID: "b", Name: "no_such_tool", Arguments: `{}`},
		}}},
		{resp: &llm.Response{Content: "Готово з обчисленнями"}},
	}}
	loop := NewLoop(model, testRegistry(calc), nil, 10)

	answer, err := loop.Run(context.Background(), TurnRequest{
		UserText:   "скільки 2+2?",
		Transcript: baseTranscript("скільки 2+2?"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != "Готово з обчисленнями" {
		t.Errorf("answer = %q", answer)
	}

	second := model.calls[1]
	// base(2) + assistant + two tool turns
	if len(second) != 5 {
		t.Fatalf("second call has %d turns, want 5", len(second))
	}
	if second[3].ToolCallID != "a" || second[4].ToolCallID != "b" {
		t.Errorf("tool order broken: %q, %q", second[3].ToolCallID, second[4].ToolCallID)
	}
	if second[3].Content != "2+2 = 4" {
		t.Errorf("calculator result = %q", second[3].Content)
	}
	if !strings.HasPrefix(second[4].Content, "Error: Tool not found") {
		t.Errorf("unknown tool result = %q", second[4].Content)
	}
}

func TestLoopFallbackWhenTurnsExhausted(t *testing.T) {
	calc := tools.NewCalculatorTool()
	model := &fakeModel{steps: []modelStep{
		{resp: &llm.Response{ToolCalls: []llm.ToolCall{
			{ID: "x", Name: "calculator", Arguments: `{"expression":"1+1"}`},
		}}},
	}}
	loop := NewLoop(model, testRegistry(calc), nil, 3)

	answer, err := loop.Run(context.Background(), TurnRequest{
		UserText:   "рахуй",
		Transcript: baseTranscript("рахуй"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != fallbackAnswer {
		t.Errorf("answer = %q, want fallback", answer)
	}
	if len(model.calls) != 3 {
		t.Errorf("model called %d times, want 3", len(model.calls))
	}
}

func TestLoopCorrectionAlwaysTerminates(t *testing.T) {
	// The model keeps claiming it remembered without ever calling a tool;
	// every corrective re-ask still consumes a turn.
	model := &fakeModel{steps: []modelStep{
		{resp: &llm.Response{Content: "Запам'ятав!"}},
	}}
	loop := NewLoop(model, testRegistry(), NewPhraseDetector(DefaultPhraseSets()), 4)

	answer, err := loop.Run(context.Background(), TurnRequest{
		UserText:   "запам'ятай що я люблю каву",
		Transcript: baseTranscript("запам'ятай що я люблю каву"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != fallbackAnswer {
		t.Errorf("answer = %q, want fallback", answer)
	}
	if len(model.calls) != 4 {
		t.Errorf("model called %d times, want 4", len(model.calls))
	}
	// Only corrective system turns were appended, no tool results.
	last := model.calls[len(model.calls)-1]
	for _, m := range last[2:] {
		if m.Role != llm.RoleSystem {
			t.Errorf("unexpected %s turn in transcript", m.Role)
		}
	}
}

func TestLoopPropagatesModelErrors(t *testing.T) {
	wantErr := &llm.Error{}
	model := &fakeModel{steps: []modelStep{{err: wantErr}}}
	loop := NewLoop(model, testRegistry(), nil, 10)

	_, err := loop.Run(context.Background(), TurnRequest{Transcript: baseTranscript("hi")})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want the model error", err)
	}
}

func TestLoopVisionAnswer(t *testing.T) {
	model := &fakeModel{visionText: "На фото кіт"}
	loop := NewLoop(model, testRegistry(), nil, 10)

	transcript := append(baseTranscript("що на фото?"), llm.Message{
		Role:    llm.RoleUser,
		Content: "I am replying to this image:",
		Images:  []llm.ImageRef{{URL: "https://example.com/cat.jpg"}},
	})
	answer, err := loop.Run(context.Background(), TurnRequest{Transcript: transcript})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != "На фото кіт" {
		t.Errorf("answer = %q", answer)
	}
	if model.visionCalls != 1 || len(model.calls) != 0 {
		t.Errorf("vision=%d text=%d calls", model.visionCalls, len(model.calls))
	}
}

func TestLoopVisionFallsBackToText(t *testing.T) {
	model := &fakeModel{
		visionErr: llm.ErrVisionUnavailable,
		steps:     []modelStep{{resp: &llm.Response{Content: "Не бачу, але відповім"}}},
	}
	loop := NewLoop(model, testRegistry(), nil, 10)

	transcript := append(baseTranscript("що на фото?"), llm.Message{
		Role:   llm.RoleUser,
		Images: []llm.ImageRef{{URL: "https://example.com/cat.jpg"}},
	})
	answer, err := loop.Run(context.Background(), TurnRequest{Transcript: transcript})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != "Не бачу, але відповім" {
		t.Errorf("answer = %q", answer)
	}

	sent := model.calls[0]
	for _, m := range sent {
		if len(m.Images) > 0 {
			t.Error("image turns must be substituted on vision fallback")
		}
	}
	if sent[len(sent)-1].Content != imagePlaceholder {
		t.Errorf("placeholder missing: %q", sent[len(sent)-1].Content)
	}
}
