package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/semaphore"

	"github.com/odaihq/odai-server/pkg/tools"
	"github.com/odaihq/odai-server/pkg/utils"
)

const summaryLimit = 200

// Dispatcher drives the round loop of a run: it streams a model step,
// executes any requested tool calls, feeds the results back, and
// repeats until the model answers without tool calls or a limit trips.
type Dispatcher struct {
	orch        Orchestrator
	maxRounds   int
	toolTimeout time.Duration
	maxParallel int64
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher. maxRounds caps model rounds per
// run, toolTimeout is the default per-call timeout, and maxParallel
// bounds concurrently executing tool calls.
func NewDispatcher(orch Orchestrator, maxRounds int, toolTimeout time.Duration, maxParallel int) *Dispatcher {
	if maxRounds < 1 {
		maxRounds = 1
	}
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Dispatcher{
		orch:        orch,
		maxRounds:   maxRounds,
		toolTimeout: toolTimeout,
		maxParallel: int64(maxParallel),
		logger:      utils.GetLogger(),
	}
}

// Run executes one run over history and returns its event stream.
// The channel is closed after a terminal event (RunCompleted or
// RunFailed). Closing stop drains in-flight tool calls and completes
// the run as cancelled; it never abandons a started call.
func (d *Dispatcher) Run(ctx context.Context, stop <-chan struct{}, history []*schema.Message) <-chan RunEvent {
	events := make(chan RunEvent, 64)
	go func() {
		defer close(events)
		d.run(ctx, stop, history, events)
	}()
	return events
}

func (d *Dispatcher) run(ctx context.Context, stop <-chan struct{}, history []*schema.Message, events chan<- RunEvent) {
	messages := make([]*schema.Message, len(history))
	copy(messages, history)

	var final strings.Builder
	var usage Usage

	stopped := func() bool {
		select {
		case <-stop:
			return true
		default:
			return false
		}
	}

	for round := 0; ; round++ {
		if round >= d.maxRounds {
			d.logger.Warn("tool call round limit reached", "rounds", round)
			events <- RunFailed{Reason: FailToolCallLimit}
			return
		}

		reader, err := d.orch.Step(ctx, messages)
		if err != nil {
			events <- d.failure(ctx, err)
			return
		}

		chunks := make([]*schema.Message, 0)
		cancelled := false
		for {
			chunk, rerr := reader.Recv()
			if errors.Is(rerr, io.EOF) {
				break
			}
			if rerr != nil {
				reader.Close()
				events <- d.failure(ctx, rerr)
				return
			}
			chunks = append(chunks, chunk)
			if len(chunk.ToolCalls) == 0 && chunk.Content != "" {
				final.WriteString(chunk.Content)
				events <- TextDelta{Text: chunk.Content}
			}
			if stopped() {
				cancelled = true
				break
			}
		}
		reader.Close()

		if len(chunks) == 0 {
			events <- RunCompleted{FinalText: final.String(), Usage: usage, Cancelled: cancelled}
			return
		}

		msg, err := schema.ConcatMessages(chunks)
		if err != nil {
			events <- d.failure(ctx, err)
			return
		}
		if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
			usage.PromptTokens += msg.ResponseMeta.Usage.PromptTokens
			usage.CompletionTokens += msg.ResponseMeta.Usage.CompletionTokens
		}

		if cancelled || len(msg.ToolCalls) == 0 {
			events <- RunCompleted{FinalText: final.String(), Usage: usage, Cancelled: cancelled}
			return
		}

		messages = append(messages, msg)
		messages = append(messages, d.dispatch(ctx, msg.ToolCalls, events)...)

		if stopped() {
			events <- RunCompleted{FinalText: final.String(), Usage: usage, Cancelled: true}
			return
		}
	}
}

// dispatch executes one round of tool calls and returns their result
// messages in call order. Independent calls run concurrently up to
// maxParallel; a call whose capability depends on another capability
// requested earlier in the same round waits for it to finish first.
func (d *Dispatcher) dispatch(ctx context.Context, calls []schema.ToolCall, events chan<- RunEvent) []*schema.Message {
	results := make([]*schema.Message, len(calls))
	finished := make([]*sync.WaitGroup, len(calls))
	for i := range calls {
		finished[i] = &sync.WaitGroup{}
		finished[i].Add(1)
	}

	// waits[i] lists earlier calls that call i must let finish first
	waits := make([][]int, len(calls))
	for i, call := range calls {
		cap, ok := tools.Lookup(call.Function.Name)
		if !ok {
			continue
		}
		for _, dep := range cap.DependsOn {
			for j := 0; j < i; j++ {
				if calls[j].Function.Name == dep {
					waits[i] = append(waits[i], j)
				}
			}
		}
	}

	sem := semaphore.NewWeighted(d.maxParallel)
	var wg sync.WaitGroup
	for i, call := range calls {
		label := tools.Label(call.Function.Name)
		events <- ToolCallRequested{CallID: call.ID, Name: call.Function.Name, Label: label}

		wg.Add(1)
		go func(i int, call schema.ToolCall, label string) {
			defer wg.Done()
			defer finished[i].Done()
			results[i] = d.execute(ctx, sem, waits[i], finished, call, label, events)
		}(i, call, label)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) execute(ctx context.Context, sem *semaphore.Weighted, waits []int, finished []*sync.WaitGroup, call schema.ToolCall, label string, events chan<- RunEvent) *schema.Message {
	name := call.Function.Name

	fail := func(summary string) *schema.Message {
		events <- ToolCallFinished{CallID: call.ID, Name: name, Label: label, OK: false, Summary: summary}
		return toolMessage(call, "error: "+summary)
	}

	cap, ok := tools.Lookup(name)
	if !ok {
		d.logger.Warn("model requested unknown capability", "tool", name)
		return fail(fmt.Sprintf("unknown tool: %s", name))
	}

	for _, j := range waits {
		finished[j].Wait()
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return fail(err.Error())
	}
	defer sem.Release(1)

	timeout := cap.Timeout
	if timeout <= 0 {
		timeout = d.toolTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := cap.Invoke(callCtx, json.RawMessage(call.Function.Arguments))
	elapsed := time.Since(start)
	if err != nil {
		d.logger.Warn("tool call failed", "tool", name, "elapsed", elapsed, "error", err)
		return fail(err.Error())
	}

	d.logger.Debug("tool call finished", "tool", name, "elapsed", elapsed)
	events <- ToolCallFinished{CallID: call.ID, Name: name, Label: label, OK: true, Summary: truncate(out, summaryLimit)}
	return toolMessage(call, out)
}

func toolMessage(call schema.ToolCall, content string) *schema.Message {
	return &schema.Message{
		Role:       schema.Tool,
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Function.Name,
	}
}

// failure maps a run error to its terminal event, distinguishing run
// timeouts from model errors.
func (d *Dispatcher) failure(ctx context.Context, err error) RunFailed {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		d.logger.Warn("run timed out", "error", err)
		return RunFailed{Reason: FailTimeout, Err: err}
	}
	d.logger.Error("model step failed", "error", err)
	return RunFailed{Reason: FailModelError, Err: err}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Back up to a rune boundary so the cut never splits a character.
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
