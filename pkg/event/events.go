package event

// Event names
const (
	ConnectionOpened   = "connection.opened"
	ConnectionClosed   = "connection.closed"
	ConnectionReplaced = "connection.replaced"
	RunStarted         = "run.started"
	RunCompleted       = "run.completed"
	RunFailed          = "run.failed"
	RunCancelled       = "run.cancelled"
)

// ============================================================================
// Connection Events
// ============================================================================

// ConnectionOpenedEvent is emitted when a chat websocket is registered.
type ConnectionOpenedEvent struct {
	ConnID string `json:"conn_id"`
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
}

func (e ConnectionOpenedEvent) EventName() string { return ConnectionOpened }

// ConnectionClosedEvent is emitted when a chat websocket is unregistered.
type ConnectionClosedEvent struct {
	ConnID string `json:"conn_id"`
	ChatID string `json:"chat_id"`
}

func (e ConnectionClosedEvent) EventName() string { return ConnectionClosed }

// ConnectionReplacedEvent is emitted when a newer connection for the same
// user and chat displaces an older one.
type ConnectionReplacedEvent struct {
	OldConnID string `json:"old_conn_id"`
	NewConnID string `json:"new_conn_id"`
	ChatID    string `json:"chat_id"`
}

func (e ConnectionReplacedEvent) EventName() string { return ConnectionReplaced }

// ============================================================================
// Run Events
// ============================================================================

// RunStartedEvent is emitted when a chat run begins.
type RunStartedEvent struct {
	ChatID   string `json:"chat_id"`
	ThreadID string `json:"thread_id"`
}

func (e RunStartedEvent) EventName() string { return RunStarted }

// RunCompletedEvent is emitted when a run finishes and persists.
type RunCompletedEvent struct {
	ChatID   string `json:"chat_id"`
	ThreadID string `json:"thread_id"`
}

func (e RunCompletedEvent) EventName() string { return RunCompleted }

// RunFailedEvent is emitted when a run fails.
type RunFailedEvent struct {
	ChatID   string `json:"chat_id"`
	ThreadID string `json:"thread_id"`
	Reason   string `json:"reason"`
}

func (e RunFailedEvent) EventName() string { return RunFailed }

// RunCancelledEvent is emitted when a run is stopped by the user.
type RunCancelledEvent struct {
	ChatID   string `json:"chat_id"`
	ThreadID string `json:"thread_id"`
}

func (e RunCancelledEvent) EventName() string { return RunCancelled }
