package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/odaihq/odai-server/pkg/agent"
	"github.com/odaihq/odai-server/pkg/db"
	"github.com/odaihq/odai-server/pkg/event"
	"github.com/odaihq/odai-server/pkg/models"
	"github.com/odaihq/odai-server/pkg/utils"
)

// Session states per chat.
const (
	StateIdle       = "idle"
	StateRunActive  = "run_active"
	StateFinalizing = "finalizing"
)

// ErrSessionBusy is returned when a message arrives while the chat
// already has an active run. The message is rejected, not queued.
var ErrSessionBusy = errors.New("session busy")

const systemPrompt = "You are ODAI, a helpful personal assistant. " +
	"Answer concisely. Use the available tools when they help."

// persistTimeout bounds finalization independently of the run timeout,
// so a run that hits its deadline can still be persisted.
const persistTimeout = 10 * time.Second

// Store is the persistence surface the manager needs.
type Store interface {
	GetOrCreate(ctx context.Context, userID, chatID string) (*db.Chat, error)
	GetMessages(ctx context.Context, chatID string) ([]db.Message, error)
	AppendExchange(ctx context.Context, chatID, threadID, userText, assistantText string, usage agent.Usage) error
	SetTitleAndPrompts(ctx context.Context, chatID, title string, prompts []string) error
}

// Runner executes one run and streams its events. *agent.Dispatcher
// satisfies it.
type Runner interface {
	Run(ctx context.Context, stop <-chan struct{}, history []*schema.Message) <-chan agent.RunEvent
}

type run struct {
	threadID string
	stop     chan struct{}
	stopOnce sync.Once
}

func (r *run) cancel() {
	r.stopOnce.Do(func() { close(r.stop) })
}

type chatState struct {
	mu     sync.Mutex
	state  string
	active *run
}

// Manager owns the per-chat session state machine. Each chat is Idle,
// RunActive, or Finalizing; a chat executes at most one run at a time.
type Manager struct {
	reg        *Registry
	mux        *Multiplexer
	store      Store
	runner     Runner
	runTimeout time.Duration
	logger     *slog.Logger

	chats sync.Map // chatID -> *chatState
	wg    sync.WaitGroup
}

// NewManager wires the session manager.
func NewManager(reg *Registry, store Store, runner Runner, runTimeout time.Duration) *Manager {
	return &Manager{
		reg:        reg,
		mux:        NewMultiplexer(reg),
		store:      store,
		runner:     runner,
		runTimeout: runTimeout,
		logger:     utils.GetLogger(),
	}
}

func (m *Manager) chat(chatID string) *chatState {
	cs, _ := m.chats.LoadOrStore(chatID, &chatState{state: StateIdle})
	return cs.(*chatState)
}

// Status returns the chat's current session state.
func (m *Manager) Status(chatID string) string {
	if cs, ok := m.chats.Load(chatID); ok {
		st := cs.(*chatState)
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.state
	}
	return StateIdle
}

// Submit starts a run for a user message. While a run is active the
// chat rejects further messages with ErrSessionBusy and tells the
// client on the wire.
//
// The run executes on its own context bounded by the run timeout, so a
// client disconnect never cancels it.
func (m *Manager) Submit(userID, chatID, threadID, text string) error {
	if threadID == "" {
		threadID = uuid.New().String()
	}

	cs := m.chat(chatID)
	cs.mu.Lock()
	if cs.state != StateIdle {
		cs.mu.Unlock()
		m.reg.Send(chatID, models.Outbound{Type: models.OutboundRunFailed, Reason: models.ReasonSessionBusy})
		return ErrSessionBusy
	}
	r := &run{threadID: threadID, stop: make(chan struct{})}
	cs.state = StateRunActive
	cs.active = r
	cs.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(cs, r, userID, chatID, text)
	}()
	return nil
}

// Cancel stops the chat's active run, if any. In-flight tool calls
// drain before the run completes as cancelled.
func (m *Manager) Cancel(chatID string) bool {
	cs, ok := m.chats.Load(chatID)
	if !ok {
		return false
	}
	st := cs.(*chatState)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.active == nil {
		return false
	}
	st.active.cancel()
	event.Emit(event.RunCancelledEvent{ChatID: chatID, ThreadID: st.active.threadID})
	return true
}

// Wait blocks until all active runs have finalized. Used on shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) execute(cs *chatState, r *run, userID, chatID, text string) {
	defer func() {
		cs.mu.Lock()
		cs.state = StateIdle
		cs.active = nil
		cs.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), m.runTimeout)
	defer cancel()

	chat, err := m.store.GetOrCreate(ctx, userID, chatID)
	if err != nil {
		m.logger.Error("load chat failed", "chat_id", chatID, "error", err)
		m.reg.Send(chatID, models.Outbound{Type: models.OutboundRunFailed, Reason: models.ReasonPersistenceError})
		return
	}
	prior, err := m.store.GetMessages(ctx, chatID)
	if err != nil {
		m.logger.Error("load chat history failed", "chat_id", chatID, "error", err)
		m.reg.Send(chatID, models.Outbound{Type: models.OutboundRunFailed, Reason: models.ReasonPersistenceError})
		return
	}

	history := make([]*schema.Message, 0, len(prior)+2)
	history = append(history, &schema.Message{Role: schema.System, Content: systemPrompt})
	for _, msg := range prior {
		role := schema.RoleType(msg.Role)
		history = append(history, &schema.Message{Role: role, Content: msg.Content})
	}
	history = append(history, &schema.Message{Role: schema.User, Content: text})

	event.Emit(event.RunStartedEvent{ChatID: chatID, ThreadID: r.threadID})
	m.logger.Info("run started", "chat_id", chatID, "thread_id", r.threadID)

	tr := m.mux.Drain(chatID, m.runner.Run(ctx, r.stop, history))

	cs.mu.Lock()
	cs.state = StateFinalizing
	cs.mu.Unlock()

	m.finalize(chat, r, chatID, text, len(prior) == 0, tr)
}

// finalize persists the exchange and, for a chat's first exchange,
// derives the title and suggested prompts. A persistence failure is
// reported on the wire but still returns the chat to Idle.
func (m *Manager) finalize(chat *db.Chat, r *run, chatID, userText string, firstExchange bool, tr *Transcript) {
	// The run context may already be past its deadline here, so
	// finalization gets its own.
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	// Persist even failed and cancelled runs so partial answers survive.
	if err := m.store.AppendExchange(ctx, chatID, r.threadID, userText, tr.FinalText, tr.Usage); err != nil {
		m.logger.Error("persist exchange failed", "chat_id", chatID, "error", err)
		m.reg.Send(chatID, models.Outbound{Type: models.OutboundRunFailed, Reason: models.ReasonPersistenceError})
		event.Emit(event.RunFailedEvent{ChatID: chatID, ThreadID: r.threadID, Reason: models.ReasonPersistenceError})
		return
	}

	if firstExchange {
		title := DeriveTitle(userText)
		prompts := SuggestPrompts(userText)
		if err := m.store.SetTitleAndPrompts(ctx, chatID, title, prompts); err != nil {
			m.logger.Warn("set chat title failed", "chat_id", chatID, "error", err)
		} else {
			m.reg.Send(chatID, models.Outbound{
				Type:    models.OutboundSuggestedPrompts,
				Title:   title,
				Prompts: prompts,
			})
		}
	}

	switch tr.Status {
	case StatusFailed:
		m.logger.Warn("run failed", "chat_id", chatID, "thread_id", r.threadID, "reason", tr.FailReason, "error", tr.Err)
		event.Emit(event.RunFailedEvent{ChatID: chatID, ThreadID: r.threadID, Reason: tr.FailReason})
	default:
		m.logger.Info("run finished", "chat_id", chatID, "thread_id", r.threadID,
			"status", tr.Status, "title", chat.Title,
			"prompt_tokens", tr.Usage.PromptTokens, "completion_tokens", tr.Usage.CompletionTokens)
		event.Emit(event.RunCompletedEvent{ChatID: chatID, ThreadID: r.threadID})
	}
}
