// Database models for chats and their messages
package db

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Chat represents a single conversation between a user and the assistant
type Chat struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	UserID string `json:"user_id" gorm:"index;size:36;not null"`
	Title  string `json:"title" gorm:"size:200;default:'New Chat'"`

	// SuggestedPrompts holds follow-up prompts derived after the first
	// exchange. Stored as a JSON array in a text column.
	SuggestedPrompts StringList `json:"suggested_prompts,omitempty" gorm:"type:text"`

	// Cumulative token usage across all runs in this chat
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Chat) TableName() string {
	return "chats"
}

// Message represents a single user or assistant message within a chat
type Message struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	ChatID string `json:"chat_id" gorm:"index;size:36;not null"`

	Role    string `json:"role" gorm:"size:20;not null"` // user, assistant
	Content string `json:"content" gorm:"type:text"`

	// ThreadID groups the user message and the assistant reply of one run
	ThreadID string `json:"thread_id,omitempty" gorm:"index;size:36"`

	CreatedAt time.Time `json:"created_at"`
}

func (*Message) TableName() string {
	return "messages"
}

// Message roles (OpenAI standard)
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// StringList is a slice of strings stored as JSON in a text column
type StringList []string

// Value implements driver.Valuer for database storage
func (s StringList) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for database retrieval
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, s)
}
