package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kmlikithkumar/skillswap/backend/model"
	"github.com/kmlikithkumar/skillswap/backend/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	logger := zerolog.Nop()
	return New(db, &logger)
}

func TestCreateMessageValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cases := [][4]string{
		{"", "u1", "u2", "hello"},
		{"c1", "", "u2", "hello"},
		{"c1", "u1", "", "hello"},
		{"c1", "u1", "u2", ""},
	}
	for _, c := range cases {
		_, err := store.CreateMessage(ctx, c[0], c[1], c[2], c[3])
		assert.ErrorIs(t, err, storage.ErrValidation)
	}

	msgs, err := store.ListMessages(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessagesListedOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	contents := []string{"first", "second", "third"}
	for _, c := range contents {
		msg, err := store.CreateMessage(ctx, "c1", "u1", "u2", c)
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.False(t, msg.Seen)
		time.Sleep(time.Millisecond) // distinct creation timestamps
	}
	// a second conversation must not bleed into the listing
	_, err := store.CreateMessage(ctx, "c2", "u1", "u2", "other room")
	require.NoError(t, err)

	msgs, err := store.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, c := range contents {
		assert.Equal(t, c, msgs[i].Content)
	}
}

func TestCreateConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, created, err := store.CreateConversation(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, conv.ID)

	// identical pair, either order, returns the existing record
	again, created, err := store.CreateConversation(ctx, []string{"u2", "u1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)

	// a different pair gets its own conversation
	other, created, err := store.CreateConversation(ctx, []string{"u1", "u3"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, conv.ID, other.ID)
}

func TestCreateConversationValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, participants := range [][]string{
		nil,
		{"u1"},
		{"u1", "u2", "u3"},
		{"u1", ""},
	} {
		_, _, err := store.CreateConversation(ctx, participants)
		assert.ErrorIs(t, err, storage.ErrValidation)
	}
}

func TestUpdateConversationSummary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, _, err := store.CreateConversation(ctx, []string{"u1", "u2"})
	require.NoError(t, err)

	at := time.Now().UTC().Add(time.Minute)
	require.NoError(t, store.UpdateConversationSummary(ctx, conv.ID, "latest", at))

	got, err := store.FindConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "latest", got.LastMessage)
	assert.True(t, got.UpdatedAt.Equal(at), "activity timestamp must be refreshed")
}

func TestUpdateConversationSummaryUnknownRoomIsNoop(t *testing.T) {
	store := newTestStore(t)
	// messages can flow on rooms with no conversation record
	assert.NoError(t, store.UpdateConversationSummary(context.Background(), "ghost", "hi", time.Now()))
}

func TestFindConversationNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.FindConversation(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListConversationsByUserSortedByActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, _, err := store.CreateConversation(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	second, _, err := store.CreateConversation(ctx, []string{"u1", "u3"})
	require.NoError(t, err)
	_, _, err = store.CreateConversation(ctx, []string{"u4", "u5"})
	require.NoError(t, err)

	// bump the older conversation, it should list first now
	require.NoError(t, store.UpdateConversationSummary(ctx, first.ID, "ping", time.Now().UTC().Add(time.Hour)))

	convos, err := store.ListConversationsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, convos, 2)
	assert.Equal(t, first.ID, convos[0].ID)
	assert.Equal(t, second.ID, convos[1].ID)
}

func TestCreateUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, model.User{Name: "Alice Wonder", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	_, err = store.CreateUser(ctx, model.User{Name: "Impostor", Email: "Alice@Example.com"})
	assert.ErrorIs(t, err, storage.ErrValidation, "duplicate email must be rejected")

	_, err = store.CreateUser(ctx, model.User{Name: "No Email"})
	assert.ErrorIs(t, err, storage.ErrValidation)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Alice Wonder", users[0].Name)
}

func TestSeed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// pre-existing data must be wiped
	_, err := store.CreateUser(ctx, model.User{Name: "Old", Email: "old@example.com"})
	require.NoError(t, err)

	users, convID, err := store.Seed(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.NotEmpty(t, convID)

	all, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	conv, err := store.FindConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, "Sure, let's start this week!", conv.LastMessage)

	msgs, err := store.ListMessages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hey Bob, can you teach me design?", msgs[0].Content)
}
