package event

import (
	"testing"
)

func TestOn_DeliversMatchingEvents(t *testing.T) {
	e := NewEmitter()

	var started []RunStartedEvent
	e.On(RunStarted, func(ev Event) {
		started = append(started, ev.(RunStartedEvent))
	})

	e.Emit(RunStartedEvent{ChatID: "chat-1", ThreadID: "thread-1"})
	e.Emit(RunCompletedEvent{ChatID: "chat-1", ThreadID: "thread-1"})
	e.Emit(RunStartedEvent{ChatID: "chat-2", ThreadID: "thread-2"})

	if len(started) != 2 {
		t.Fatalf("got %d run.started events, want 2", len(started))
	}
	if started[0].ChatID != "chat-1" || started[1].ChatID != "chat-2" {
		t.Fatalf("events = %+v", started)
	}
}

func TestOnAny_ReceivesAllEvents(t *testing.T) {
	e := NewEmitter()

	var names []string
	e.OnAny(func(ev Event) {
		names = append(names, ev.EventName())
	})

	e.Emit(ConnectionOpenedEvent{ChatID: "chat-1"})
	e.Emit(RunStartedEvent{ChatID: "chat-1"})
	e.Emit(RunFailedEvent{ChatID: "chat-1", Reason: "timeout"})

	want := []string{ConnectionOpened, RunStarted, RunFailed}
	if len(names) != len(want) {
		t.Fatalf("got %d events, want %d", len(names), len(want))
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestOn_UnsubscribeStopsDelivery(t *testing.T) {
	e := NewEmitter()

	var got int
	off := e.On(RunCompleted, func(Event) { got++ })

	e.Emit(RunCompletedEvent{ChatID: "chat-1"})
	off()
	e.Emit(RunCompletedEvent{ChatID: "chat-1"})

	if got != 1 {
		t.Fatalf("got %d deliveries after unsubscribe, want 1", got)
	}
}

func TestOn_UnsubscribeOnlyRemovesItself(t *testing.T) {
	e := NewEmitter()

	// Two listeners with identical callbacks; removing one must not
	// detach the other.
	var first, second int
	offFirst := e.On(RunStarted, func(Event) { first++ })
	e.On(RunStarted, func(Event) { second++ })

	offFirst()
	offFirst() // repeat is harmless
	e.Emit(RunStartedEvent{ChatID: "chat-1"})

	if first != 0 {
		t.Fatalf("removed listener fired %d times", first)
	}
	if second != 1 {
		t.Fatalf("remaining listener fired %d times, want 1", second)
	}
}

func TestOnAny_Unsubscribe(t *testing.T) {
	e := NewEmitter()

	var got int
	off := e.OnAny(func(Event) { got++ })
	e.Emit(ConnectionClosedEvent{ChatID: "chat-1"})
	off()
	e.Emit(ConnectionClosedEvent{ChatID: "chat-1"})

	if got != 1 {
		t.Fatalf("got %d deliveries after unsubscribe, want 1", got)
	}
}
