package session

import (
	"log/slog"

	"github.com/odaihq/odai-server/pkg/agent"
	"github.com/odaihq/odai-server/pkg/models"
	"github.com/odaihq/odai-server/pkg/utils"
)

// Run terminal statuses recorded on a transcript.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// ToolOutcome records one finished tool call for the transcript.
type ToolOutcome struct {
	CallID  string
	Name    string
	OK      bool
	Summary string
}

// Transcript is the outcome of one fully drained run.
type Transcript struct {
	FinalText   string
	Usage       agent.Usage
	Status      string
	FailReason  string
	Err         error
	ToolResults []ToolOutcome
}

// Multiplexer translates run events into wire frames for the chat's
// connection while accumulating the run transcript.
type Multiplexer struct {
	reg    *Registry
	logger *slog.Logger
}

// NewMultiplexer creates a multiplexer delivering through reg.
func NewMultiplexer(reg *Registry) *Multiplexer {
	return &Multiplexer{reg: reg, logger: utils.GetLogger()}
}

// Drain consumes events until the channel closes and returns the
// transcript. Delivery stops after the first NoRecipient or transport
// failure, but the channel is always drained so the run finishes and
// its outcome persists regardless of the client connection.
func (m *Multiplexer) Drain(chatID string, events <-chan agent.RunEvent) *Transcript {
	tr := &Transcript{Status: StatusCompleted}
	deliver := true

	send := func(frame models.Outbound) {
		if !deliver {
			return
		}
		if outcome := m.reg.Send(chatID, frame); outcome != Delivered {
			m.logger.Debug("chat client gone, draining run without delivery", "chat_id", chatID)
			deliver = false
		}
	}

	for ev := range events {
		switch v := ev.(type) {
		case agent.TextDelta:
			send(models.Outbound{Type: models.OutboundTextDelta, Text: v.Text})

		case agent.ToolCallRequested:
			send(models.Outbound{Type: models.OutboundToolProgress, CallID: v.CallID, Label: v.Label})

		case agent.ToolCallFinished:
			tr.ToolResults = append(tr.ToolResults, ToolOutcome{
				CallID:  v.CallID,
				Name:    v.Name,
				OK:      v.OK,
				Summary: v.Summary,
			})
			ok := v.OK
			send(models.Outbound{
				Type:    models.OutboundToolResult,
				CallID:  v.CallID,
				Label:   v.Label,
				OK:      &ok,
				Summary: v.Summary,
			})

		case agent.RunCompleted:
			tr.FinalText = v.FinalText
			tr.Usage = v.Usage
			if v.Cancelled {
				tr.Status = StatusCancelled
			}
			usage := &models.TokenUsage{
				PromptTokens:     v.Usage.PromptTokens,
				CompletionTokens: v.Usage.CompletionTokens,
			}
			send(models.Outbound{Type: models.OutboundRunComplete, FinalText: v.FinalText, Usage: usage})

		case agent.RunFailed:
			tr.Status = StatusFailed
			tr.FailReason = v.Reason
			tr.Err = v.Err
			send(models.Outbound{Type: models.OutboundRunFailed, Reason: v.Reason})
		}
	}

	return tr
}
