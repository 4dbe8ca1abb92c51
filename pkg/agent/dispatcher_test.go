package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/odaihq/odai-server/pkg/tools"
)

// scriptedOrchestrator replays pre-built chunk sequences, one per Step
// call, and records the messages each step received.
type scriptedOrchestrator struct {
	mu     sync.Mutex
	steps  [][]*schema.Message
	inputs [][]*schema.Message
}

func (s *scriptedOrchestrator) Step(_ context.Context, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recorded := make([]*schema.Message, len(messages))
	copy(recorded, messages)
	s.inputs = append(s.inputs, recorded)
	if len(s.steps) == 0 {
		return nil, fmt.Errorf("no scripted step left")
	}
	chunks := s.steps[0]
	s.steps = s.steps[1:]
	return schema.StreamReaderFromArray(chunks), nil
}

func textChunk(text string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: text}
}

func toolCallChunk(callID, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       callID,
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func collect(t *testing.T, events <-chan RunEvent) []RunEvent {
	t.Helper()
	var out []RunEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("run did not finish, got %d events", len(out))
		}
	}
}

func userHistory(text string) []*schema.Message {
	return []*schema.Message{{Role: schema.User, Content: text}}
}

func TestRun_TextOnly(t *testing.T) {
	orch := &scriptedOrchestrator{steps: [][]*schema.Message{
		{
			textChunk("Hello"),
			textChunk(", world"),
			{Role: schema.Assistant, ResponseMeta: &schema.ResponseMeta{
				Usage: &schema.TokenUsage{PromptTokens: 5, CompletionTokens: 7},
			}},
		},
	}}
	d := NewDispatcher(orch, 5, time.Second, 4)

	events := collect(t, d.Run(context.Background(), make(chan struct{}), userHistory("hi")))

	var text string
	for _, ev := range events {
		if delta, ok := ev.(TextDelta); ok {
			text += delta.Text
		}
	}
	if text != "Hello, world" {
		t.Fatalf("streamed text = %q, want %q", text, "Hello, world")
	}

	last, ok := events[len(events)-1].(RunCompleted)
	if !ok {
		t.Fatalf("last event = %T, want RunCompleted", events[len(events)-1])
	}
	if last.FinalText != "Hello, world" {
		t.Fatalf("FinalText = %q, want %q", last.FinalText, "Hello, world")
	}
	if last.Cancelled {
		t.Fatalf("run reported cancelled")
	}
	if last.Usage.PromptTokens != 5 || last.Usage.CompletionTokens != 7 {
		t.Fatalf("usage = %+v, want 5/7", last.Usage)
	}
}

func TestRun_ToolRound(t *testing.T) {
	var gotArgs string
	tools.Register(tools.Definition{
		Name:  "dispatch_test_echo",
		Label: "Echoing...",
	}, func(_ context.Context, args json.RawMessage) (string, error) {
		gotArgs = string(args)
		return "echoed", nil
	})

	orch := &scriptedOrchestrator{steps: [][]*schema.Message{
		{toolCallChunk("call-1", "dispatch_test_echo", `{"text":"hi"}`)},
		{textChunk("done")},
	}}
	d := NewDispatcher(orch, 5, time.Second, 4)

	events := collect(t, d.Run(context.Background(), make(chan struct{}), userHistory("echo hi")))

	var requested *ToolCallRequested
	var finishedEv *ToolCallFinished
	for _, ev := range events {
		switch v := ev.(type) {
		case ToolCallRequested:
			requested = &v
		case ToolCallFinished:
			finishedEv = &v
		}
	}
	if requested == nil || requested.Label != "Echoing..." || requested.CallID != "call-1" {
		t.Fatalf("ToolCallRequested = %+v", requested)
	}
	if finishedEv == nil || !finishedEv.OK || finishedEv.Summary != "echoed" {
		t.Fatalf("ToolCallFinished = %+v", finishedEv)
	}
	if gotArgs != `{"text":"hi"}` {
		t.Fatalf("tool args = %q", gotArgs)
	}

	last, ok := events[len(events)-1].(RunCompleted)
	if !ok || last.FinalText != "done" {
		t.Fatalf("last event = %+v, want RunCompleted with final text", events[len(events)-1])
	}

	// Second step must see the assistant tool call and the tool result.
	if len(orch.inputs) != 2 {
		t.Fatalf("steps taken = %d, want 2", len(orch.inputs))
	}
	second := orch.inputs[1]
	toolMsg := second[len(second)-1]
	if toolMsg.Role != schema.Tool || toolMsg.Content != "echoed" || toolMsg.ToolCallID != "call-1" {
		t.Fatalf("tool result message = %+v", toolMsg)
	}
}

func TestRun_UnknownToolContinues(t *testing.T) {
	orch := &scriptedOrchestrator{steps: [][]*schema.Message{
		{toolCallChunk("call-1", "no_such_capability", `{}`)},
		{textChunk("recovered")},
	}}
	d := NewDispatcher(orch, 5, time.Second, 4)

	events := collect(t, d.Run(context.Background(), make(chan struct{}), userHistory("x")))

	var finishedEv *ToolCallFinished
	for _, ev := range events {
		if v, ok := ev.(ToolCallFinished); ok {
			finishedEv = &v
		}
	}
	if finishedEv == nil || finishedEv.OK {
		t.Fatalf("ToolCallFinished = %+v, want failed", finishedEv)
	}
	if finishedEv.Summary != "unknown tool: no_such_capability" {
		t.Fatalf("summary = %q", finishedEv.Summary)
	}

	// The failure is scoped to the call; the run still completes.
	last, ok := events[len(events)-1].(RunCompleted)
	if !ok || last.FinalText != "recovered" {
		t.Fatalf("last event = %+v", events[len(events)-1])
	}

	second := orch.inputs[1]
	toolMsg := second[len(second)-1]
	if toolMsg.Content != "error: unknown tool: no_such_capability" {
		t.Fatalf("tool result content = %q", toolMsg.Content)
	}
}

func TestRun_ToolErrorFedBack(t *testing.T) {
	tools.Register(tools.Definition{
		Name: "dispatch_test_fails",
	}, func(_ context.Context, _ json.RawMessage) (string, error) {
		return "", fmt.Errorf("boom")
	})

	orch := &scriptedOrchestrator{steps: [][]*schema.Message{
		{toolCallChunk("call-1", "dispatch_test_fails", `{}`)},
		{textChunk("handled")},
	}}
	d := NewDispatcher(orch, 5, time.Second, 4)

	events := collect(t, d.Run(context.Background(), make(chan struct{}), userHistory("x")))

	var finishedEv *ToolCallFinished
	for _, ev := range events {
		if v, ok := ev.(ToolCallFinished); ok {
			finishedEv = &v
		}
	}
	if finishedEv == nil || finishedEv.OK || finishedEv.Summary != "boom" {
		t.Fatalf("ToolCallFinished = %+v", finishedEv)
	}

	second := orch.inputs[1]
	toolMsg := second[len(second)-1]
	if toolMsg.Content != "error: boom" {
		t.Fatalf("tool result content = %q", toolMsg.Content)
	}
}

func TestRun_RoundLimit(t *testing.T) {
	tools.Register(tools.Definition{
		Name: "dispatch_test_loop",
	}, func(_ context.Context, _ json.RawMessage) (string, error) {
		return "again", nil
	})

	orch := &scriptedOrchestrator{steps: [][]*schema.Message{
		{toolCallChunk("call-1", "dispatch_test_loop", `{}`)},
		{toolCallChunk("call-2", "dispatch_test_loop", `{}`)},
		{toolCallChunk("call-3", "dispatch_test_loop", `{}`)},
	}}
	d := NewDispatcher(orch, 2, time.Second, 4)

	events := collect(t, d.Run(context.Background(), make(chan struct{}), userHistory("x")))

	last, ok := events[len(events)-1].(RunFailed)
	if !ok {
		t.Fatalf("last event = %T, want RunFailed", events[len(events)-1])
	}
	if last.Reason != FailToolCallLimit {
		t.Fatalf("reason = %q, want %q", last.Reason, FailToolCallLimit)
	}
}

func TestRun_StopCompletesCancelled(t *testing.T) {
	orch := &scriptedOrchestrator{steps: [][]*schema.Message{
		{textChunk("partial"), textChunk(" tail")},
	}}
	d := NewDispatcher(orch, 5, time.Second, 4)

	stop := make(chan struct{})
	close(stop)

	events := collect(t, d.Run(context.Background(), stop, userHistory("x")))

	last, ok := events[len(events)-1].(RunCompleted)
	if !ok {
		t.Fatalf("last event = %T, want RunCompleted", events[len(events)-1])
	}
	if !last.Cancelled {
		t.Fatalf("run not reported cancelled")
	}
	if last.FinalText != "partial" {
		t.Fatalf("FinalText = %q, want partial text only", last.FinalText)
	}
}

func TestDispatch_DependsOnSerializes(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	tools.Register(tools.Definition{
		Name: "dispatch_test_first",
	}, func(_ context.Context, _ json.RawMessage) (string, error) {
		time.Sleep(50 * time.Millisecond)
		record("first")
		return "one", nil
	})
	tools.Register(tools.Definition{
		Name:      "dispatch_test_second",
		DependsOn: []string{"dispatch_test_first"},
	}, func(_ context.Context, _ json.RawMessage) (string, error) {
		record("second")
		return "two", nil
	})

	first := toolCallChunk("call-1", "dispatch_test_first", `{}`)
	second := toolCallChunk("call-2", "dispatch_test_second", `{}`)
	round := &schema.Message{
		Role:      schema.Assistant,
		ToolCalls: append(first.ToolCalls, second.ToolCalls...),
	}

	orch := &scriptedOrchestrator{steps: [][]*schema.Message{
		{round},
		{textChunk("done")},
	}}
	d := NewDispatcher(orch, 5, time.Second, 4)

	collect(t, d.Run(context.Background(), make(chan struct{}), userHistory("x")))

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("execution order = %v, want [first second]", order)
	}
}

func TestRun_ToolTimeout(t *testing.T) {
	tools.Register(tools.Definition{
		Name:    "dispatch_test_slow",
		Timeout: 20 * time.Millisecond,
	}, func(ctx context.Context, _ json.RawMessage) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	})

	orch := &scriptedOrchestrator{steps: [][]*schema.Message{
		{toolCallChunk("call-1", "dispatch_test_slow", `{}`)},
		{textChunk("moved on")},
	}}
	d := NewDispatcher(orch, 5, time.Second, 4)

	events := collect(t, d.Run(context.Background(), make(chan struct{}), userHistory("x")))

	var finishedEv *ToolCallFinished
	for _, ev := range events {
		if v, ok := ev.(ToolCallFinished); ok {
			finishedEv = &v
		}
	}
	if finishedEv == nil || finishedEv.OK {
		t.Fatalf("ToolCallFinished = %+v, want timed-out failure", finishedEv)
	}

	last, ok := events[len(events)-1].(RunCompleted)
	if !ok || last.FinalText != "moved on" {
		t.Fatalf("last event = %+v", events[len(events)-1])
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short string untouched", "ok", 10, "ok"},
		{"ascii cut", "abcdef", 4, "abcd..."},
		{"multibyte rune not split", "abécd", 3, "ab..."},
		{"cut lands on boundary", "abécd", 4, "abé..."},
		{"cjk summary", "东京天气", 7, "东京..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.limit)
			if got != tt.want {
				t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.limit)
			}
		})
	}
}
