package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/odaihq/odai-server/pkg/agent"
	"github.com/odaihq/odai-server/pkg/db"
)

// ErrChatNotFound is returned when a chat does not exist.
var ErrChatNotFound = errors.New("chat not found")

// ChatStore persists chats and their messages.
type ChatStore struct {
	db *gorm.DB
}

// NewChatStore creates a chat store over the given database.
func NewChatStore(database *gorm.DB) *ChatStore {
	return &ChatStore{db: database}
}

// GetOrCreate returns the chat, creating it on first use.
func (s *ChatStore) GetOrCreate(ctx context.Context, userID, chatID string) (*db.Chat, error) {
	var chat db.Chat
	err := s.db.WithContext(ctx).First(&chat, "id = ?", chatID).Error
	if err == nil {
		return &chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "load chat")
	}

	chat = db.Chat{ID: chatID, UserID: userID, Title: "New Chat"}
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(&chat).Error; err != nil {
		return nil, errors.Wrap(err, "create chat")
	}
	return &chat, nil
}

// GetChat returns the chat or ErrChatNotFound.
func (s *ChatStore) GetChat(ctx context.Context, chatID string) (*db.Chat, error) {
	var chat db.Chat
	if err := s.db.WithContext(ctx).First(&chat, "id = ?", chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, errors.Wrap(err, "load chat")
	}
	return &chat, nil
}

// ListChats lists a user's chats, most recently updated first.
func (s *ChatStore) ListChats(ctx context.Context, userID string) ([]db.Chat, error) {
	var chats []db.Chat
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&chats).Error; err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	return chats, nil
}

// GetMessages returns the chat's messages in conversation order.
func (s *ChatStore) GetMessages(ctx context.Context, chatID string) ([]db.Message, error) {
	var messages []db.Message
	if err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, errors.Wrap(err, "load messages")
	}
	return messages, nil
}

// AppendExchange stores one user/assistant exchange atomically and
// bumps the chat's token counters. The assistant message is stamped a
// millisecond after the user message so conversation order is stable.
func (s *ChatStore) AppendExchange(ctx context.Context, chatID, threadID, userText, assistantText string, usage agent.Usage) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userMsg := &db.Message{
			ID:        uuid.New().String(),
			ChatID:    chatID,
			Role:      db.RoleUser,
			Content:   userText,
			ThreadID:  threadID,
			CreatedAt: now,
		}
		if err := tx.Create(userMsg).Error; err != nil {
			return err
		}

		assistantMsg := &db.Message{
			ID:        uuid.New().String(),
			ChatID:    chatID,
			Role:      db.RoleAssistant,
			Content:   assistantText,
			ThreadID:  threadID,
			CreatedAt: now.Add(time.Millisecond),
		}
		if err := tx.Create(assistantMsg).Error; err != nil {
			return err
		}

		return tx.Model(&db.Chat{}).Where("id = ?", chatID).Updates(map[string]interface{}{
			"prompt_tokens":     gorm.Expr("prompt_tokens + ?", usage.PromptTokens),
			"completion_tokens": gorm.Expr("completion_tokens + ?", usage.CompletionTokens),
			"updated_at":        now,
		}).Error
	})
	return errors.Wrap(err, "append exchange")
}

// SetTitleAndPrompts stores the derived title and suggested prompts.
func (s *ChatStore) SetTitleAndPrompts(ctx context.Context, chatID, title string, prompts []string) error {
	err := s.db.WithContext(ctx).Model(&db.Chat{}).Where("id = ?", chatID).Updates(map[string]interface{}{
		"title":             title,
		"suggested_prompts": db.StringList(prompts),
		"updated_at":        time.Now(),
	}).Error
	return errors.Wrap(err, "set chat title")
}

// DeleteChat removes the chat and its messages.
func (s *ChatStore) DeleteChat(ctx context.Context, chatID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&db.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Chat{}, "id = ?", chatID).Error
	})
	return errors.Wrap(err, "delete chat")
}
