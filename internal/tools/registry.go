package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gryag-bot/gryag/internal/llm"
)

// Caller identifies who triggered the current turn. Memory tools scope
// their reads and writes to Caller.UserID rather than trusting anything
// the model puts in its arguments.
type Caller struct {
	UserID int64
	ChatID int64
}

// Tool is one function the model can call.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any, caller Caller) *Result
}

// toolAliases maps names older prompts and model habits still produce onto
// the canonical tool names.
var toolAliases = map[string]string{
	"remember_memory": "save_user_fact",
	"recall_memories": "get_user_facts",
}

// Registry holds the registered tools. Registration happens once at
// startup; execution is read-only and safe for concurrent use.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
	slog.Debug("registered tool", "name", t.Name())
}

// Get resolves a tool by name, applying aliases.
func (r *Registry) Get(name string) Tool {
	if t, ok := r.tools[name]; ok {
		return t
	}
	if canonical, ok := toolAliases[name]; ok {
		if t, ok := r.tools[canonical]; ok {
			slog.Info("tool alias applied", "from", name, "to", canonical)
			return t
		}
	}
	return nil
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the function schemas advertised to the model.
func (r *Registry) Schemas() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Type: "function",
			Function: llm.ToolFunctionSchema{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs a tool by name. An unknown name or a panicking tool yields a
// failed Result, never an error or a crash.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, caller Caller) (result *Result) {
	tool := r.Get(name)
	if tool == nil {
		return Failed(fmt.Sprintf("Tool not found: %s", name))
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked", "tool", name, "panic", rec)
			result = Failed(fmt.Sprintf("Tool %s failed: %v", name, rec))
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	return tool.Execute(ctx, args, caller)
}
