// Package repositories is the embedded persistence collaborator, backed by Badger.
package repositories

import (
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ChatRepository stores users, conversations, messages and notifications.
// It implements contract.IChatRepository and contract.IPresenceRepository.
type ChatRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	now           func() time.Time
}

// NewChatRepository keeps at most limitMessages latest messages per conversation
// in snapshots, nil means no limit.
func NewChatRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *ChatRepository {
	return &ChatRepository{
		db:            db,
		log:           log,
		limitMessages: limitMessages,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, bytes)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case stdErrors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// keysWithPrefix returns copies of every key under prefix, in key order.
func keysWithPrefix(txn *badger.Txn, prefix []byte) [][]byte {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}
