package event

import (
	"testing"
)

func TestParseWSFilter_Match(t *testing.T) {
	tests := []struct {
		name    string
		events  string
		chatID  string
		ev      Event
		matches bool
	}{
		{
			name:    "empty filter matches everything",
			ev:      RunStartedEvent{ChatID: "chat-1"},
			matches: true,
		},
		{
			name:    "listed event name",
			events:  "run.started, run.failed",
			ev:      RunFailedEvent{ChatID: "chat-1", Reason: "timeout"},
			matches: true,
		},
		{
			name:    "unlisted event name",
			events:  "run.started",
			ev:      RunCompletedEvent{ChatID: "chat-1"},
			matches: false,
		},
		{
			name:    "matching chat id",
			chatID:  "chat-1",
			ev:      RunStartedEvent{ChatID: "chat-1"},
			matches: true,
		},
		{
			name:    "other chat id",
			chatID:  "chat-1",
			ev:      RunStartedEvent{ChatID: "chat-2"},
			matches: false,
		},
		{
			name:    "event and chat combined",
			events:  "connection.opened",
			chatID:  "chat-1",
			ev:      ConnectionOpenedEvent{ConnID: "c1", ChatID: "chat-1"},
			matches: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parseWSFilter(tt.events, tt.chatID)
			if got := f.match(tt.ev, eventToData(tt.ev)); got != tt.matches {
				t.Fatalf("match() = %v, want %v", got, tt.matches)
			}
		})
	}
}

func TestEventToData(t *testing.T) {
	data := eventToData(ConnectionReplacedEvent{
		OldConnID: "old", NewConnID: "new", ChatID: "chat-1",
	})
	if data["old_conn_id"] != "old" || data["new_conn_id"] != "new" || data["chat_id"] != "chat-1" {
		t.Fatalf("data = %v", data)
	}
}
