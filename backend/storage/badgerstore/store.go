package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/kmlikithkumar/skillswap/backend/model"
	"github.com/kmlikithkumar/skillswap/backend/storage"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Key layout:
//
//	user:<id>                      -> User json
//	email:<email>                  -> user id (uniqueness index)
//	conv:<id>                      -> Conversation json
//	pair:<idA>:<idB>               -> conversation id, participant ids sorted
//	msg:<convID>:<nano %019d>:<id> -> ChatMessage json
//
// The zero-padded nanosecond timestamp keeps messages of a conversation in
// chronological order under lexicographic iteration; the trailing uuid
// disambiguates two messages landing on the same nanosecond.
const (
	prefixUser  = "user:"
	prefixEmail = "email:"
	prefixConv  = "conv:"
	prefixPair  = "pair:"
	prefixMsg   = "msg:"
)

// Store is an embedded record store on badger. It satisfies storage.Store.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

var _ storage.Store = (*Store)(nil)

func New(db *badger.DB, logger *zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

func (s *Store) CreateMessage(_ context.Context, conversationID, senderID, receiverID, content string) (model.ChatMessage, error) {
	if conversationID == "" || senderID == "" || receiverID == "" || content == "" {
		return model.ChatMessage{}, fmt.Errorf("%w: conversationId, senderId, receiverId, content are required", storage.ErrValidation)
	}

	msg := model.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, msgKey(msg), msg)
	})
	if err != nil {
		return model.ChatMessage{}, err
	}
	return msg, nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixMsg + conversationID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg model.ChatMessage
			if err := getJSONItem(it.Item(), &msg); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) UpdateConversationSummary(_ context.Context, conversationID, lastMessage string, at time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var conv model.Conversation
		err := getJSON(txn, prefixConv+conversationID, &conv)
		if errors.Is(err, badger.ErrKeyNotFound) {
			// Room without a conversation record, nothing to refresh.
			return nil
		}
		if err != nil {
			return err
		}
		conv.LastMessage = lastMessage
		conv.UpdatedAt = at
		return setJSON(txn, prefixConv+conversationID, conv)
	})
}

func (s *Store) FindConversation(_ context.Context, id string) (model.Conversation, error) {
	var conv model.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, prefixConv+id, &conv)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.Conversation{}, fmt.Errorf("%w: conversation %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return model.Conversation{}, err
	}
	return conv, nil
}

func (s *Store) CreateConversation(_ context.Context, participants []string) (model.Conversation, bool, error) {
	if len(participants) != 2 || lo.Contains(participants, "") {
		return model.Conversation{}, false, fmt.Errorf("%w: participants (2) required", storage.ErrValidation)
	}

	var (
		conv    model.Conversation
		created bool
	)
	err := s.db.Update(func(txn *badger.Txn) error {
		pk := pairKey(participants)
		item, err := txn.Get([]byte(pk))
		if err == nil {
			// Identical pair already has a conversation, return it.
			var existingID string
			if err = item.Value(func(v []byte) error {
				existingID = string(v)
				return nil
			}); err != nil {
				return err
			}
			return getJSON(txn, prefixConv+existingID, &conv)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		now := time.Now().UTC()
		conv = model.Conversation{
			ID:           uuid.NewString(),
			Participants: participants,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err = setJSON(txn, prefixConv+conv.ID, conv); err != nil {
			return err
		}
		if err = txn.Set([]byte(pk), []byte(conv.ID)); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return model.Conversation{}, false, err
	}
	return conv, created, nil
}

func (s *Store) ListConversationsByUser(_ context.Context, userID string) ([]model.Conversation, error) {
	var convos []model.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, prefixConv, func(conv model.Conversation) {
			if lo.Contains(conv.Participants, userID) {
				convos = append(convos, conv)
			}
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(convos, func(i, j int) bool {
		return convos[i].UpdatedAt.After(convos[j].UpdatedAt)
	})
	return convos, nil
}

func (s *Store) CreateUser(_ context.Context, user model.User) (model.User, error) {
	if user.Name == "" || user.Email == "" {
		return model.User{}, fmt.Errorf("%w: name and email are required", storage.ErrValidation)
	}

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	err := s.db.Update(func(txn *badger.Txn) error {
		emailKey := prefixEmail + strings.ToLower(user.Email)
		_, err := txn.Get([]byte(emailKey))
		if err == nil {
			return fmt.Errorf("%w: email already registered", storage.ErrValidation)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err = setJSON(txn, prefixUser+user.ID, user); err != nil {
			return err
		}
		return txn.Set([]byte(emailKey), []byte(user.ID))
	})
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, prefixUser, func(u model.User) {
			users = append(users, u)
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Store) Seed(ctx context.Context) ([]model.User, string, error) {
	if err := s.db.DropAll(); err != nil {
		return nil, "", err
	}

	alice, err := s.CreateUser(ctx, model.User{
		Name:   "Alice Wonder",
		Email:  "alice@example.com",
		Avatar: "https://picsum.photos/seed/alice/200/200",
	})
	if err != nil {
		return nil, "", err
	}
	bob, err := s.CreateUser(ctx, model.User{
		Name:   "Bob Smith",
		Email:  "bob@example.com",
		Avatar: "https://picsum.photos/seed/bob/200/200",
	})
	if err != nil {
		return nil, "", err
	}

	conv, _, err := s.CreateConversation(ctx, []string{alice.ID, bob.ID})
	if err != nil {
		return nil, "", err
	}
	seedMessages := []struct {
		from, to, content string
	}{
		{alice.ID, bob.ID, "Hey Bob, can you teach me design?"},
		{bob.ID, alice.ID, "Sure, let's start this week!"},
	}
	var last model.ChatMessage
	for _, sm := range seedMessages {
		if last, err = s.CreateMessage(ctx, conv.ID, sm.from, sm.to, sm.content); err != nil {
			return nil, "", err
		}
	}
	if err = s.UpdateConversationSummary(ctx, conv.ID, last.Content, last.CreatedAt); err != nil {
		return nil, "", err
	}

	s.logger.Info().Str("conversationID", conv.ID).Msg("development fixture loaded")
	return []model.User{alice, bob}, conv.ID, nil
}

func msgKey(msg model.ChatMessage) string {
	return fmt.Sprintf("%s%s:%019d:%s", prefixMsg, msg.ConversationID, msg.CreatedAt.UnixNano(), msg.ID)
}

func pairKey(participants []string) string {
	pair := make([]string, len(participants))
	copy(pair, participants)
	sort.Strings(pair)
	return prefixPair + strings.Join(pair, ":")
}

func setJSON(txn *badger.Txn, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), b)
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return getJSONItem(item, v)
}

func getJSONItem(item *badger.Item, v any) error {
	return item.Value(func(b []byte) error {
		return json.Unmarshal(b, v)
	})
}

func scanJSON[T any](txn *badger.Txn, prefix string, visit func(T)) error {
	p := []byte(prefix)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		var v T
		if err := getJSONItem(it.Item(), &v); err != nil {
			return err
		}
		visit(v)
	}
	return nil
}
