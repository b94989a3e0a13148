package model

import (
	"encoding/json"
	"time"
)

// User is a directory record. Profile fields beyond name and email are
// optional and opaque to the realtime core.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	Interests []string  `json:"interests,omitempty"`
	Timezone  string    `json:"timezone,omitempty"`
	Rating    float64   `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation pairs exactly two participants and carries a denormalized
// last-message summary for listing.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	LastMessage  string    `json:"last_message"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatMessage is immutable once persisted, except for the seen flag which
// is owned by the store.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Content        string    `json:"content"`
	Seen           bool      `json:"seen"`
	CreatedAt      time.Time `json:"created_at"`
}

// Client event types.
const (
	EventJoin         = "join"
	EventSend         = "send"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
	EventCallEnded    = "call-ended"
)

// Server event types.
const (
	EventMessageNew = "message:new"
	EventError      = "error"
)

// Envelope is the single frame format used in both directions on the
// realtime connection. Which fields are meaningful depends on Event.
// RoomID is only ever present on inbound frames; outbound signaling frames
// re-emit the payload without it.
type Envelope struct {
	Event      string          `json:"event"`
	RoomID     string          `json:"roomId,omitempty"`
	SenderID   string          `json:"senderId,omitempty"`
	ReceiverID string          `json:"receiverId,omitempty"`
	Content    string          `json:"content,omitempty"`
	SDP        string          `json:"sdp,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	Message    *ChatMessage    `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Wire is the outbound delivery channel of one realtime connection. The
// websocket sender goroutine drains TX; the relay writes to it.
type Wire struct {
	TX chan Envelope
}

const defaultWireBuffer = 64

func NewWire() Wire {
	return Wire{
		TX: make(chan Envelope, defaultWireBuffer),
	}
}
