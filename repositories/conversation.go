package repositories

import (
	"context"
	stdErrors "errors"
	"fmt"
	"match-chat/domain"
	"match-chat/errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type conversationRecord struct {
	UUID      domain.RoomID   `json:"uuid"`
	Users     []domain.UserID `json:"users"`
	CreatedAt int64           `json:"createdAt"`
}

// GetConversations returns every conversation the user is a member of,
// with its users and its latest messages in chronological order.
func (r *ChatRepository) GetConversations(_ context.Context, user domain.UserID) ([]domain.ConversationSnapshot, error) {
	conversations := []domain.ConversationSnapshot{}
	err := r.db.View(func(txn *badger.Txn) error {
		if err := getUser(txn, user, &User{}); err != nil {
			return err
		}
		prefix := memberPrefixOf(user)
		for _, key := range keysWithPrefix(txn, prefix) {
			room := domain.RoomID(strings.TrimPrefix(string(key), string(prefix)))
			snapshot, err := r.snapshot(txn, room)
			if err != nil {
				return err
			}
			conversations = append(conversations, snapshot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *ChatRepository) snapshot(txn *badger.Txn, room domain.RoomID) (domain.ConversationSnapshot, error) {
	var record conversationRecord
	if err := getJSON(txn, convKey(room), &record); err != nil {
		if stdErrors.Is(err, badger.ErrKeyNotFound) {
			return domain.ConversationSnapshot{}, fmt.Errorf("%w: %s", errors.ErrConversationNotFound, room)
		}
		return domain.ConversationSnapshot{}, err
	}
	usernames := make(map[domain.UserID]string, len(record.Users))
	users := make([]domain.ConversationUser, 0, len(record.Users))
	for _, id := range record.Users {
		var user User
		if err := getUser(txn, id, &user); err != nil {
			return domain.ConversationSnapshot{}, err
		}
		usernames[id] = user.Username
		users = append(users, user.toConversationUser())
	}
	messages, _, err := r.readMessages(txn, room, nil, usernames)
	if err != nil {
		return domain.ConversationSnapshot{}, err
	}
	return domain.NewConversationSnapshot(record.UUID, users, messages), nil
}

// CreateConversation opens the conversation of a pair. A pair has at most one conversation.
func (r *ChatRepository) CreateConversation(_ context.Context, userA, userB domain.UserID) (domain.ConversationSnapshot, error) {
	if userA == userB {
		return domain.ConversationSnapshot{}, errors.ErrSameUser
	}
	var snapshot domain.ConversationSnapshot
	err := r.db.Update(func(txn *badger.Txn) error {
		var a, b User
		if err := getUser(txn, userA, &a); err != nil {
			return err
		}
		if err := getUser(txn, userB, &b); err != nil {
			return err
		}
		found, err := exists(txn, pairKey(userA, userB))
		if err != nil {
			return err
		}
		if found {
			return errors.ErrConversationExists
		}
		record := conversationRecord{
			UUID:      domain.RoomID(uuid.NewString()),
			Users:     []domain.UserID{userA, userB},
			CreatedAt: r.now().UnixMilli(),
		}
		if err := setJSON(txn, convKey(record.UUID), record); err != nil {
			return err
		}
		if err := txn.Set(pairKey(userA, userB), []byte(record.UUID)); err != nil {
			return err
		}
		for _, user := range record.Users {
			if err := txn.Set(memberKey(user, record.UUID), nil); err != nil {
				return err
			}
		}
		snapshot = domain.NewConversationSnapshot(record.UUID,
			[]domain.ConversationUser{a.toConversationUser(), b.toConversationUser()}, nil)
		return nil
	})
	return snapshot, err
}

// DeleteConversation removes the pair's conversation with its messages.
// It returns false when the pair had no conversation.
func (r *ChatRepository) DeleteConversation(_ context.Context, userA, userB domain.UserID) (bool, error) {
	deleted := false
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey(userA, userB))
		if stdErrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		room := domain.RoomID(value)
		keys := append(keysWithPrefix(txn, msgPrefixOf(room)),
			pairKey(userA, userB), convKey(room), memberKey(userA, room), memberKey(userB, room))
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		r.log.Debug("Conversation deleted", "userA", userA, "userB", userB)
	}
	return deleted, nil
}
