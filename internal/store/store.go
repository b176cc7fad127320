// Package store provides persistence for conversations and messages, the
// durable artifacts of generation tasks.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a conversation or message is not found.
var ErrNotFound = errors.New("record not found")

// Message status constants.
const (
	MessageStatusPending     = "pending"
	MessageStatusComplete    = "complete"
	MessageStatusInterrupted = "interrupted"
	MessageStatusFailed      = "failed"
)

// Conversation groups the messages of one research thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one persisted turn in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewMessageID generates a message identifier.
func NewMessageID() string { return uuid.NewString() }

// Store defines the persistence operations for conversations and messages.
type Store interface {
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	SetConversationTitle(ctx context.Context, id, title string) error
	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	UpdateMessage(ctx context.Context, id, content, status string) error
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
	Close() error
}
