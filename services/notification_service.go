package services

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/errors"
)

// NotificationService records a notification and pushes it to the target's open connections.
type NotificationService struct {
	log        *slog.Logger
	repository contract.IChatRepository
	dispatcher contract.IDispatcher
}

func NewNotificationService(log *slog.Logger, repository contract.IChatRepository, dispatcher contract.IDispatcher) *NotificationService {
	return &NotificationService{log: log, repository: repository, dispatcher: dispatcher}
}

func (s *NotificationService) Notify(ctx context.Context, target, source domain.UserID, kind domain.NotificationType) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %s", errors.ErrUnknownNotificationType, kind)
	}
	if target == source {
		return errors.ErrSameUser
	}
	notification, err := s.repository.RecordNotification(ctx, target, source, kind)
	if err != nil {
		return fmt.Errorf("record %s for %s: %w", kind, target, err)
	}
	s.dispatcher.SendTo([]domain.UserID{target}, event.NotificationCreated{Notification: notification})
	return nil
}
