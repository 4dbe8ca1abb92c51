// Package session manages chat websocket connections, per-chat run
// state, and the delivery of run events to clients.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/odaihq/odai-server/pkg/event"
	"github.com/odaihq/odai-server/pkg/models"
	"github.com/odaihq/odai-server/pkg/utils"
)

const writeWait = 5 * time.Second

// Transport is the write side of a chat websocket. *websocket.Conn
// satisfies it; tests substitute fakes.
type Transport interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Connection is one registered chat websocket. All writes go through
// it so the per-connection sequence number stays gapless.
type Connection struct {
	ID     string
	UserID string
	ChatID string

	tp        Transport
	writeMu   sync.Mutex
	seq       uint64
	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(userID, chatID string, tp Transport) *Connection {
	return &Connection{
		ID:     uuid.New().String(),
		UserID: userID,
		ChatID: chatID,
		tp:     tp,
		closed: make(chan struct{}),
	}
}

// Closed is closed when the connection has been displaced or torn down.
func (c *Connection) Closed() <-chan struct{} {
	return c.closed
}

// Ping sends a websocket ping frame.
func (c *Connection) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.tp.SetWriteDeadline(time.Now().Add(writeWait))
	return c.tp.WriteMessage(websocket.PingMessage, nil)
}

// send stamps the next sequence number on frame and writes it.
func (c *Connection) send(frame models.Outbound) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	frame.Seq = c.seq
	_ = c.tp.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.tp.WriteJSON(frame); err != nil {
		return err
	}
	c.seq++
	return nil
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.tp.Close()
	})
}

// SendOutcome reports what happened to an attempted delivery.
type SendOutcome int

const (
	// Delivered means the frame was written to the live connection.
	Delivered SendOutcome = iota
	// NoRecipient means no connection is registered for the chat.
	NoRecipient
	// TransportError means the write failed; the connection has been
	// unregistered.
	TransportError
)

// Registry tracks the live chat connections. A chat has one owner, so
// it carries at most one live connection; registering a new one
// displaces the previous connection for that chat.
type Registry struct {
	mu     sync.RWMutex
	byChat map[string]*Connection
	byID   map[string]*Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		byChat: make(map[string]*Connection),
		byID:   make(map[string]*Connection),
	}
}

// Register adds a connection for the given user and chat. A previous
// connection for the same chat is closed and replaced; its in-flight
// run keeps executing and future frames go to the new connection.
func (r *Registry) Register(userID, chatID string, tp Transport) *Connection {
	conn := newConnection(userID, chatID, tp)

	r.mu.Lock()
	old := r.byChat[chatID]
	r.byChat[chatID] = conn
	r.byID[conn.ID] = conn
	if old != nil {
		delete(r.byID, old.ID)
	}
	r.mu.Unlock()

	if old != nil {
		old.close()
		utils.GetLogger().Info("chat connection replaced", "chat_id", chatID, "old_conn", old.ID, "new_conn", conn.ID)
		event.Emit(event.ConnectionReplacedEvent{OldConnID: old.ID, NewConnID: conn.ID, ChatID: chatID})
	}
	event.Emit(event.ConnectionOpenedEvent{ConnID: conn.ID, UserID: userID, ChatID: chatID})
	return conn
}

// Unregister removes the connection if it is still the current one for
// its chat. It is safe to call for an already displaced connection.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	conn, ok := r.byID[connID]
	if ok {
		delete(r.byID, connID)
		if r.byChat[conn.ChatID] == conn {
			delete(r.byChat, conn.ChatID)
		}
	}
	r.mu.Unlock()

	if ok {
		conn.close()
		event.Emit(event.ConnectionClosedEvent{ConnID: connID, ChatID: conn.ChatID})
	}
}

// Send delivers frame to the chat's current connection, stamping the
// connection's next sequence number. A write failure tears the
// connection down before reporting TransportError.
func (r *Registry) Send(chatID string, frame models.Outbound) SendOutcome {
	r.mu.RLock()
	conn := r.byChat[chatID]
	r.mu.RUnlock()

	if conn == nil {
		return NoRecipient
	}
	if err := conn.send(frame); err != nil {
		utils.GetLogger().Warn("chat frame write failed", "chat_id", chatID, "conn_id", conn.ID, "error", err)
		r.Unregister(conn.ID)
		return TransportError
	}
	return Delivered
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
