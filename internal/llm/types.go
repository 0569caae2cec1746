package llm

// Role values for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ImageRef points at an image the model can fetch (vision requests).
type ImageRef struct {
	URL string `json:"url"`
}

// Message is one conversation turn in the model-facing transcript.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Images     []ImageRef `json:"images,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // for role="tool" responses
	Reasoning  string     `json:"reasoning_content,omitempty"`
}

// ToolCall is a tool invocation requested by the model. Arguments is the
// raw JSON string as returned by the API; the ID must round-trip unchanged
// into the matching tool message so the model can correlate call and result.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes one callable tool in OpenAI function format.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema is the function portion of a tool definition.
type ToolFunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the input for a completion call.
type Request struct {
	Messages    []Message
	Tools       []ToolDefinition
	Model       string // overrides the client default when set
	MaxTokens   int
	Temperature float64
}

// Response is the result of a tool-calling completion.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Reasoning string
}

// EstimateTokens gives a rough token count for truncation decisions.
// About 4 characters per token; advisory only, never billing-accurate.
func EstimateTokens(text string) int {
	return len(text) / 4
}
