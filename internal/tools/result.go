// Package tools implements the function-calling tools exposed to the model
// and the registry that dispatches tool calls. Registry execution never
// fails outright: every problem, including a panicking tool, comes back as
// a failed Result the model can read and react to.
package tools

// Result is the unified return type from tool execution. A failed result
// carries its message in Error and has an empty Output.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`

	// Data holds structured payload for callers that want more than the
	// formatted text (not serialized to the model).
	Data any `json:"-"`
}

func OK(output string) *Result {
	return &Result{Success: true, Output: output}
}

func OKData(output string, data any) *Result {
	return &Result{Success: true, Output: output, Data: data}
}

func Failed(message string) *Result {
	return &Result{Success: false, Error: message}
}

// Text returns what the model should see: the output on success, the error
// message otherwise.
func (r *Result) Text() string {
	if r.Success {
		return r.Output
	}
	return r.Error
}
