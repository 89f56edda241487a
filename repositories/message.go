package repositories

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"match-chat/domain"
	"match-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type messageRecord struct {
	UUID       string        `json:"uuid"`
	AuthorUUID domain.UserID `json:"authorUuid"`
	Payload    string        `json:"payload"`
	CreatedAt  int64         `json:"createdAt"`
}

func (m messageRecord) toChatMessage(authorUsername string) domain.ChatMessage {
	return domain.ChatMessage{
		UUID:           m.UUID,
		AuthorUUID:     m.AuthorUUID,
		AuthorUsername: authorUsername,
		Payload:        m.Payload,
		CreatedAt:      m.CreatedAt,
	}
}

// CreateMessage persists a message in BadgerDB.
// The key is formatted as "msg:{room}:{timestamp_padded}:{uuid}":
//  1. 19-digit zero padding keeps keys in chronological order.
//  2. The uuid separates two messages stored at the same nanosecond.
func (r *ChatRepository) CreateMessage(_ context.Context, room domain.RoomID, author domain.UserID, text string) (domain.ChatMessage, error) {
	var message domain.ChatMessage
	err := r.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, convKey(room))
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", errors.ErrConversationNotFound, room)
		}
		member, err := exists(txn, memberKey(author, room))
		if err != nil {
			return err
		}
		if !member {
			return fmt.Errorf("%w: %s in %s", errors.ErrNotAMember, author, room)
		}
		var user User
		if err := getUser(txn, author, &user); err != nil {
			return err
		}
		at := r.now()
		record := messageRecord{
			UUID:       uuid.NewString(),
			AuthorUUID: author,
			Payload:    text,
			CreatedAt:  at.UnixMilli(),
		}
		if err := setJSON(txn, msgKey(room, at, record.UUID), record); err != nil {
			return err
		}
		message = record.toChatMessage(user.Username)
		return nil
	})
	return message, err
}

// GetMessages pages backwards through a conversation, starting from the newest message.
// Pass the returned cursor to read the previous page. Each page is in chronological order.
func (r *ChatRepository) GetMessages(_ context.Context, room domain.RoomID, cursor *string) ([]domain.ChatMessage, *string, error) {
	var messages []domain.ChatMessage
	var next *string
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		messages, next, err = r.readMessages(txn, room, cursor, map[domain.UserID]string{})
		return err
	})
	return messages, next, err
}

// readMessages scans msg:{room}: in reverse, stops at limitMessages and returns the page
// in chronological order with the cursor of its oldest message.
func (r *ChatRepository) readMessages(txn *badger.Txn, room domain.RoomID, cursor *string,
	usernames map[domain.UserID]string) ([]domain.ChatMessage, *string, error) {
	prefix := msgPrefixOf(room)
	options := badger.DefaultIteratorOptions
	options.Reverse = true
	it := txn.NewIterator(options)
	defer it.Close()

	var seekKey []byte
	switch cursor {
	case nil:
		// Past the newest possible key, iteration goes back from there
		seekKey = append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
	default:
		seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
	}
	it.Seek(seekKey)
	if cursor != nil && it.ValidForPrefix(prefix) {
		it.Next()
	}

	var messages []domain.ChatMessage
	var lastKey string
	for ; it.ValidForPrefix(prefix); it.Next() {
		if r.limitMessages != nil && len(messages) == *r.limitMessages {
			r.log.Debug(fmt.Sprintf("Maximum of %d message reached", *r.limitMessages))
			break
		}
		item := it.Item()
		lastKey = string(item.Key()[len(prefix):])
		var record messageRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return nil, nil, err
		}
		username, err := r.username(txn, record.AuthorUUID, usernames)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, record.toChatMessage(username))
	}
	if len(messages) == 0 {
		return []domain.ChatMessage{}, nil, nil
	}
	return lo.Reverse(messages), &lastKey, nil
}

// username resolves authors through a per-read cache. A deleted author keeps its messages.
func (r *ChatRepository) username(txn *badger.Txn, id domain.UserID, cache map[domain.UserID]string) (string, error) {
	if name, ok := cache[id]; ok {
		return name, nil
	}
	var user User
	err := getUser(txn, id, &user)
	if stdErrors.Is(err, errors.ErrUserNotFound) {
		err = nil
	}
	if err != nil {
		return "", err
	}
	cache[id] = user.Username
	return user.Username, nil
}
