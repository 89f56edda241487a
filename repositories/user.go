package repositories

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"match-chat/domain"
	"match-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

// User is the stored profile of a user, with its presence.
type User struct {
	UUID       domain.UserID `json:"uuid"`
	Username   string        `json:"username"`
	ProfilePic string        `json:"profilePic"`
	Online     bool          `json:"online"`
	// LastSeen is the epoch milliseconds of the last presence change.
	LastSeen int64 `json:"lastSeen"`
}

func (u User) toConversationUser() domain.ConversationUser {
	return domain.ConversationUser{UUID: u.UUID, Username: u.Username, ProfilePic: u.ProfilePic}
}

// PutUser creates or replaces a user profile, its presence is kept.
func (r *ChatRepository) PutUser(_ context.Context, user domain.ConversationUser) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var stored User
		if err := getJSON(txn, userKey(user.UUID), &stored); err != nil && !stdErrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		stored.UUID = user.UUID
		stored.Username = user.Username
		stored.ProfilePic = user.ProfilePic
		return setJSON(txn, userKey(user.UUID), stored)
	})
}

func (r *ChatRepository) GetUser(_ context.Context, id domain.UserID) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		return getUser(txn, id, &user)
	})
	return user, err
}

func getUser(txn *badger.Txn, id domain.UserID, user *User) error {
	err := getJSON(txn, userKey(id), user)
	if stdErrors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", errors.ErrUserNotFound, id)
	}
	return err
}

// ListUsers returns every user in key order.
func (r *ChatRepository) ListUsers(_ context.Context) ([]User, error) {
	var users []User
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user User
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			}); err != nil {
				return err
			}
			users = append(users, user)
		}
		return nil
	})
	return users, err
}

// SetOnline records the presence of a user.
func (r *ChatRepository) SetOnline(_ context.Context, id domain.UserID, online bool) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var user User
		if err := getUser(txn, id, &user); err != nil {
			return err
		}
		user.Online = online
		user.LastSeen = r.now().UnixMilli()
		return setJSON(txn, userKey(id), user)
	})
}

// Block stops notifications from blocked to blocker.
func (r *ChatRepository) Block(_ context.Context, blocker, blocked domain.UserID) error {
	if blocker == blocked {
		return errors.ErrSameUser
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(blocker, blocked), nil)
	})
}

func (r *ChatRepository) Unblock(_ context.Context, blocker, blocked domain.UserID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(blockKey(blocker, blocked))
	})
}

// IsBlocked reports whether blocker blocked blocked.
func (r *ChatRepository) IsBlocked(_ context.Context, blocker, blocked domain.UserID) (bool, error) {
	var blockedFlag bool
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		blockedFlag, err = exists(txn, blockKey(blocker, blocked))
		return err
	})
	return blockedFlag, err
}
