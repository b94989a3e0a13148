package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kmlikithkumar/skillswap/backend/model"
	"github.com/kmlikithkumar/skillswap/backend/storage"
	"github.com/rs/zerolog"
)

var (
	ErrPersist   = errors.New("unable to persist message")
	ErrSummarize = errors.New("unable to update conversation summary")
)

type (
	// Rooms is the membership surface of the room registry.
	Rooms interface {
		Join(connID uuid.UUID, wire model.Wire, roomID string)
		LeaveAll(connID uuid.UUID) []string
	}

	// Relay delivers envelopes to room members.
	Relay interface {
		Signal(ctx context.Context, env model.Envelope, senderID uuid.UUID)
		Broadcast(ctx context.Context, env model.Envelope, roomID string)
	}

	// Service ties the room registry, the relay and the store together. It
	// is the single entry point for both the realtime server and the REST
	// API.
	Service struct {
		rooms    Rooms
		relay    Relay
		store    storage.Store
		validate *validator.Validate
		logger   zerolog.Logger
	}

	Config struct {
		Rooms  Rooms
		Relay  Relay
		Store  storage.Store
		Logger *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		rooms:    cfg.Rooms,
		relay:    cfg.Relay,
		store:    cfg.Store,
		validate: validator.New(),
		logger:   cfg.Logger.With().Str("component", "service").Logger(),
	}
}

// Join adds the connection to a conversation room. Any connection that
// knows a conversation id may join it; there is no membership check, which
// mirrors the original product behavior.
func (svc *Service) Join(connID uuid.UUID, wire model.Wire, roomID string) {
	if roomID == "" {
		return
	}
	svc.rooms.Join(connID, wire, roomID)
}

type sendRequest struct {
	RoomID     string `validate:"required"`
	SenderID   string `validate:"required"`
	ReceiverID string `validate:"required"`
	Content    string `validate:"required"`
}

// Send persists a chat message and fans it out to every connection
// currently in the room. Persistence strictly precedes the broadcast: a
// message that clients see is always durably recorded, and a store failure
// reaches the sender only.
func (svc *Service) Send(ctx context.Context, roomID, senderID, receiverID, content string) (model.ChatMessage, error) {
	req := sendRequest{
		RoomID:     roomID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	if err := svc.validate.Struct(req); err != nil {
		return model.ChatMessage{}, errors.Join(storage.ErrValidation, err)
	}

	msg, err := svc.store.CreateMessage(ctx, roomID, senderID, receiverID, content)
	if err != nil {
		return model.ChatMessage{}, errors.Join(ErrPersist, err)
	}
	if err = svc.store.UpdateConversationSummary(ctx, roomID, msg.Content, msg.CreatedAt); err != nil {
		return model.ChatMessage{}, errors.Join(ErrSummarize, err)
	}

	svc.relay.Broadcast(ctx, model.Envelope{
		Event:   model.EventMessageNew,
		Message: &msg,
	}, roomID)

	svc.logger.Debug().
		Str("roomID", roomID).
		Str("messageID", msg.ID).
		Msg("message persisted and broadcast")
	return msg, nil
}

// Signal relays a call-setup envelope to the other members of its room.
// Fire and forget: malformed or undeliverable envelopes are dropped.
func (svc *Service) Signal(ctx context.Context, env model.Envelope, senderID uuid.UUID) {
	svc.relay.Signal(ctx, env, senderID)
}

// Disconnect removes the connection from every room it joined and tells
// each room's remaining members that any call with it is over. Membership
// removal happens first, so the synthesized call-ended never echoes back.
func (svc *Service) Disconnect(ctx context.Context, connID uuid.UUID) {
	rooms := svc.rooms.LeaveAll(connID)
	for _, roomID := range rooms {
		svc.relay.Broadcast(ctx, model.Envelope{Event: model.EventCallEnded}, roomID)
	}
	if len(rooms) > 0 {
		svc.logger.Debug().
			Str("connID", connID.String()).
			Int("rooms", len(rooms)).
			Msg("connection cleaned up")
	}
}

// ConversationWithMessages is the detail view of one conversation: the
// record plus its messages, oldest first.
type ConversationWithMessages struct {
	model.Conversation
	Messages []model.ChatMessage `json:"messages"`
}

func (svc *Service) Conversation(ctx context.Context, id string) (ConversationWithMessages, error) {
	conv, err := svc.store.FindConversation(ctx, id)
	if err != nil {
		return ConversationWithMessages{}, err
	}
	messages, err := svc.store.ListMessages(ctx, id)
	if err != nil {
		return ConversationWithMessages{}, err
	}
	return ConversationWithMessages{Conversation: conv, Messages: messages}, nil
}

func (svc *Service) ConversationsByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	return svc.store.ListConversationsByUser(ctx, userID)
}

func (svc *Service) CreateConversation(ctx context.Context, participants []string) (model.Conversation, bool, error) {
	return svc.store.CreateConversation(ctx, participants)
}

func (svc *Service) Users(ctx context.Context) ([]model.User, error) {
	return svc.store.ListUsers(ctx)
}

func (svc *Service) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	return svc.store.CreateUser(ctx, user)
}

func (svc *Service) Seed(ctx context.Context) ([]model.User, string, error) {
	return svc.store.Seed(ctx)
}
