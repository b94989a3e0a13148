package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kmlikithkumar/skillswap/backend/model"
)

var (
	// ErrValidation marks a record rejected for missing or malformed fields.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an operation on a record that does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the persistence surface for users, conversations and messages.
// The realtime core only calls CreateMessage and UpdateConversationSummary;
// the rest backs the REST API.
type Store interface {
	CreateMessage(ctx context.Context, conversationID, senderID, receiverID, content string) (model.ChatMessage, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.ChatMessage, error)

	// UpdateConversationSummary refreshes the conversation's last-message
	// preview and activity timestamp. Unknown conversation ids are ignored:
	// messages may legitimately flow in rooms that have no conversation
	// record yet.
	UpdateConversationSummary(ctx context.Context, conversationID, lastMessage string, at time.Time) error
	FindConversation(ctx context.Context, id string) (model.Conversation, error)
	// CreateConversation creates a two-party conversation. If the same
	// participant pair already has one, that record is returned instead
	// and the bool result is false.
	CreateConversation(ctx context.Context, participants []string) (model.Conversation, bool, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]model.Conversation, error)

	CreateUser(ctx context.Context, user model.User) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	// Seed wipes all records and loads the development fixture. Returns the
	// created users and the id of their conversation.
	Seed(ctx context.Context) ([]model.User, string, error)
}
