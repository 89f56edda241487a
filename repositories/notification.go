package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"match-chat/domain"
	"match-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// RecordNotification stores a notification for target about source.
// It is refused when target blocked source.
func (r *ChatRepository) RecordNotification(_ context.Context, target, source domain.UserID, kind domain.NotificationType) (domain.Notification, error) {
	if !kind.IsValid() {
		return domain.Notification{}, fmt.Errorf("%w: %s", errors.ErrUnknownNotificationType, kind)
	}
	var notification domain.Notification
	err := r.db.Update(func(txn *badger.Txn) error {
		blocked, err := exists(txn, blockKey(target, source))
		if err != nil {
			return err
		}
		if blocked {
			return fmt.Errorf("%w: %s blocked %s", errors.ErrNotificationRefused, target, source)
		}
		if err := getUser(txn, target, &User{}); err != nil {
			return err
		}
		var sender User
		if err := getUser(txn, source, &sender); err != nil {
			return err
		}
		at := r.now()
		notification = domain.Notification{
			UUID:      uuid.NewString(),
			Type:      kind,
			Message:   domain.NotificationMessage(sender.Username, kind),
			Seen:      false,
			CreatedAt: at.UnixMilli(),
		}
		return setJSON(txn, notifKey(target, at, notification.UUID), notification)
	})
	return notification, err
}

// GetNotifications returns the notifications of a user, newest first.
func (r *ChatRepository) GetNotifications(_ context.Context, user domain.UserID) ([]domain.Notification, error) {
	notifications := []domain.Notification{}
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := notifPrefixOf(user)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(append(append([]byte{}, prefix...), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			var n domain.Notification
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return err
			}
			notifications = append(notifications, n)
		}
		return nil
	})
	return notifications, err
}
