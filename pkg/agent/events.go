// Package agent runs chat model rounds and dispatches tool calls,
// reporting progress as a stream of run events.
package agent

// Usage accumulates token counts across the rounds of one run.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Failure reasons reported by RunFailed.
const (
	FailTimeout       = "timeout"
	FailModelError    = "model_error"
	FailToolCallLimit = "tool_call_limit_exceeded"
)

// RunEvent is a progress event emitted while a run executes.
// The variant set is closed; consumers switch on the concrete type.
type RunEvent interface {
	runEvent()
}

// TextDelta carries an incremental piece of assistant text.
type TextDelta struct {
	Text string
}

// ToolCallRequested is emitted when the model requests a tool call,
// before execution starts.
type ToolCallRequested struct {
	CallID string
	Name   string
	Label  string
}

// ToolCallFinished is emitted when a tool call completes or fails.
type ToolCallFinished struct {
	CallID  string
	Name    string
	Label   string
	OK      bool
	Summary string
}

// RunCompleted terminates a run that produced a final answer.
// Cancelled runs complete with whatever text streamed before the stop.
type RunCompleted struct {
	FinalText string
	Usage     Usage
	Cancelled bool
}

// RunFailed terminates a run that could not produce an answer.
type RunFailed struct {
	Reason string
	Err    error
}

func (TextDelta) runEvent()         {}
func (ToolCallRequested) runEvent() {}
func (ToolCallFinished) runEvent()  {}
func (RunCompleted) runEvent()      {}
func (RunFailed) runEvent()         {}
