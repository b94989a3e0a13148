package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kmlikithkumar/skillswap/backend/model"
	"github.com/kmlikithkumar/skillswap/backend/registry"
	"github.com/kmlikithkumar/skillswap/backend/relay"
	"github.com/kmlikithkumar/skillswap/backend/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore records calls and can be scripted to fail.
type fakeStore struct {
	storage.Store

	created      []model.ChatMessage
	summaries    []string
	failCreate   error
	failSummary  error
	summaryCalls int
}

func (f *fakeStore) CreateMessage(_ context.Context, conversationID, senderID, receiverID, content string) (model.ChatMessage, error) {
	if f.failCreate != nil {
		return model.ChatMessage{}, f.failCreate
	}
	msg := model.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	f.created = append(f.created, msg)
	return msg, nil
}

func (f *fakeStore) UpdateConversationSummary(_ context.Context, _, lastMessage string, _ time.Time) error {
	f.summaryCalls++
	if f.failSummary != nil {
		return f.failSummary
	}
	f.summaries = append(f.summaries, lastMessage)
	return nil
}

func newTestService(store storage.Store) (*Service, *registry.Registry) {
	logger := zerolog.Nop()
	reg := registry.New(&logger)
	svc := NewService(Config{
		Rooms:  reg,
		Relay:  relay.New(reg, &logger),
		Store:  store,
		Logger: &logger,
	})
	return svc, reg
}

func drain(wire model.Wire) []model.Envelope {
	var envs []model.Envelope
	for {
		select {
		case env := <-wire.TX:
			envs = append(envs, env)
		default:
			return envs
		}
	}
}

func TestSendRejectsEmptyFieldsBeforePersistence(t *testing.T) {
	store := &fakeStore{}
	svc, reg := newTestService(store)

	peer := model.NewWire()
	reg.Join(uuid.New(), peer, "c1")

	cases := [][4]string{
		{"", "u1", "u2", "hello"},
		{"c1", "", "u2", "hello"},
		{"c1", "u1", "", "hello"},
		{"c1", "u1", "u2", ""},
	}
	for _, c := range cases {
		_, err := svc.Send(context.Background(), c[0], c[1], c[2], c[3])
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrValidation)
	}
	// store and room members observed nothing
	assert.Empty(t, store.created)
	assert.Zero(t, store.summaryCalls)
	assert.Empty(t, drain(peer))
}

func TestSendPersistsThenBroadcasts(t *testing.T) {
	store := &fakeStore{}
	svc, reg := newTestService(store)

	x, y := uuid.New(), uuid.New()
	wx, wy := model.NewWire(), model.NewWire()
	reg.Join(x, wx, "c1")
	reg.Join(y, wy, "c1")

	msg, err := svc.Send(context.Background(), "c1", "u1", "u2", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())

	require.Len(t, store.created, 1)
	assert.Equal(t, []string{"hello"}, store.summaries)

	// exactly one copy per connection, sender's connection included
	for _, w := range []model.Wire{wx, wy} {
		envs := drain(w)
		require.Len(t, envs, 1)
		assert.Equal(t, model.EventMessageNew, envs[0].Event)
		require.NotNil(t, envs[0].Message)
		assert.Equal(t, msg.ID, envs[0].Message.ID)
	}
}

func TestSendStoreFailureSkipsBroadcast(t *testing.T) {
	store := &fakeStore{failCreate: errors.New("store unavailable")}
	svc, reg := newTestService(store)

	peer := model.NewWire()
	reg.Join(uuid.New(), peer, "c1")

	_, err := svc.Send(context.Background(), "c1", "u1", "u2", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersist)
	assert.Empty(t, drain(peer))
}

func TestSendSummaryFailureSkipsBroadcast(t *testing.T) {
	store := &fakeStore{failSummary: errors.New("store unavailable")}
	svc, reg := newTestService(store)

	peer := model.NewWire()
	reg.Join(uuid.New(), peer, "c1")

	_, err := svc.Send(context.Background(), "c1", "u1", "u2", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSummarize)
	assert.Empty(t, drain(peer))
}

func TestSendOrderingPerSender(t *testing.T) {
	store := &fakeStore{}
	svc, reg := newTestService(store)

	peer := model.NewWire()
	reg.Join(uuid.New(), peer, "c1")

	_, err := svc.Send(context.Background(), "c1", "u1", "u2", "A")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), "c1", "u1", "u2", "B")
	require.NoError(t, err)

	envs := drain(peer)
	require.Len(t, envs, 2)
	assert.Equal(t, "A", envs[0].Message.Content)
	assert.Equal(t, "B", envs[1].Message.Content)
}

func TestRepeatedJoinStillSingleCopy(t *testing.T) {
	store := &fakeStore{}
	svc, _ := newTestService(store)

	connID := uuid.New()
	wire := model.NewWire()
	svc.Join(connID, wire, "c1")
	svc.Join(connID, wire, "c1")

	_, err := svc.Send(context.Background(), "c1", "u1", "u2", "hello")
	require.NoError(t, err)
	assert.Len(t, drain(wire), 1)
}

func TestJoinIgnoresEmptyRoomID(t *testing.T) {
	store := &fakeStore{}
	svc, reg := newTestService(store)

	svc.Join(uuid.New(), model.NewWire(), "")
	assert.Empty(t, reg.MembersOf(""))
}

func TestDisconnectSynthesizesCallEnded(t *testing.T) {
	store := &fakeStore{}
	svc, reg := newTestService(store)

	x, y := uuid.New(), uuid.New()
	wx, wy := model.NewWire(), model.NewWire()
	reg.Join(x, wx, "c1")
	reg.Join(y, wy, "c1")

	svc.Disconnect(context.Background(), x)

	envs := drain(wy)
	require.Len(t, envs, 1)
	assert.Equal(t, model.EventCallEnded, envs[0].Event)
	// the disconnected side gets nothing
	assert.Empty(t, drain(wx))
	// membership is gone immediately
	require.Len(t, reg.MembersOf("c1"), 1)
	assert.Equal(t, y, reg.MembersOf("c1")[0].ID)
}

func TestDisconnectCoversEveryJoinedRoom(t *testing.T) {
	store := &fakeStore{}
	svc, reg := newTestService(store)

	x := uuid.New()
	reg.Join(x, model.NewWire(), "c1")
	reg.Join(x, model.NewWire(), "c2")

	peers := map[string]model.Wire{
		"c1": model.NewWire(),
		"c2": model.NewWire(),
	}
	for roomID, w := range peers {
		reg.Join(uuid.New(), w, roomID)
	}

	svc.Disconnect(context.Background(), x)

	for roomID, w := range peers {
		envs := drain(w)
		require.Len(t, envs, 1, "room %s", roomID)
		assert.Equal(t, model.EventCallEnded, envs[0].Event)
	}
}

func TestSignalDelegatesToRelay(t *testing.T) {
	store := &fakeStore{}
	svc, reg := newTestService(store)

	x, y := uuid.New(), uuid.New()
	wy := model.NewWire()
	reg.Join(x, model.NewWire(), "c1")
	reg.Join(y, wy, "c1")

	svc.Signal(context.Background(), model.Envelope{
		Event:  model.EventOffer,
		RoomID: "c1",
		SDP:    "v=0...",
	}, x)

	envs := drain(wy)
	require.Len(t, envs, 1)
	assert.Equal(t, "v=0...", envs[0].SDP)
}
