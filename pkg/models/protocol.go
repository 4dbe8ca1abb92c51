// Wire protocol types for the chat websocket
package models

// Inbound is a client frame received on the chat websocket.
type Inbound struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
	Stop     bool   `json:"stop,omitempty"`
}

// Outbound frame types
const (
	OutboundTextDelta        = "text_delta"
	OutboundToolProgress     = "tool_progress"
	OutboundToolResult       = "tool_result"
	OutboundRunComplete      = "run_complete"
	OutboundRunFailed        = "run_failed"
	OutboundSuggestedPrompts = "suggested_prompts"
)

// Failure reasons carried in run_failed frames
const (
	ReasonTimeout               = "timeout"
	ReasonModelError            = "model_error"
	ReasonToolCallLimitExceeded = "tool_call_limit_exceeded"
	ReasonSessionBusy           = "session_busy"
	ReasonPersistenceError      = "persistence_error"
)

// Outbound is a server frame sent on the chat websocket. Type selects
// the variant; Seq is monotonic per connection starting at 0.
type Outbound struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`

	// text_delta
	Text string `json:"text,omitempty"`

	// tool_progress, tool_result
	Label  string `json:"label,omitempty"`
	CallID string `json:"call_id,omitempty"`

	// tool_result
	OK      *bool  `json:"ok,omitempty"`
	Summary string `json:"summary,omitempty"`

	// run_complete
	FinalText string      `json:"final_text,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`

	// run_failed
	Reason string `json:"reason,omitempty"`

	// suggested_prompts
	Prompts []string `json:"prompts,omitempty"`
	Title   string   `json:"title,omitempty"`
}

// TokenUsage reports token counts for a completed run.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}
