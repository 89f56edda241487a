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

// ConversationService opens a conversation on a match and tears it down on unmatch or block.
type ConversationService struct {
	log        *slog.Logger
	repository contract.IChatRepository
	rooms      contract.IRoomRegistry
	dispatcher contract.IDispatcher
}

func NewConversationService(log *slog.Logger, repository contract.IChatRepository,
	rooms contract.IRoomRegistry, dispatcher contract.IDispatcher) *ConversationService {
	return &ConversationService{log: log, repository: repository, rooms: rooms, dispatcher: dispatcher}
}

// Create persists the conversation, subscribes both users and sends NEW_CONVERSATION to both.
func (s *ConversationService) Create(ctx context.Context, userA, userB domain.UserID) (domain.ConversationSnapshot, error) {
	if userA == userB {
		return domain.ConversationSnapshot{}, errors.ErrSameUser
	}
	conversation, err := s.repository.CreateConversation(ctx, userA, userB)
	if err != nil {
		return domain.ConversationSnapshot{}, fmt.Errorf("create conversation %s/%s: %w", userA, userB, err)
	}
	members := []domain.UserID{userA, userB}
	s.rooms.SubscribeMany(conversation.UUID, members)
	s.dispatcher.SendTo(members, event.ConversationCreated{Conversation: conversation})
	s.log.Debug("Conversation created", "room", conversation.UUID, "users", members)
	return conversation, nil
}

// Remove deletes the pair's conversation. Rooms are torn down and DELETE_CONVERSATION sent
// only once persistence confirmed the deletion.
func (s *ConversationService) Remove(ctx context.Context, userA, userB domain.UserID) ([]domain.RoomID, error) {
	deleted, err := s.repository.DeleteConversation(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("delete conversation %s/%s: %w", userA, userB, err)
	}
	if !deleted {
		s.log.Debug("No conversation to delete", "userA", userA, "userB", userB)
		return nil, nil
	}
	rooms := s.rooms.UnsubscribePairFromSharedRooms(userA, userB)
	for _, room := range rooms {
		s.dispatcher.SendTo([]domain.UserID{userA, userB}, event.ConversationDeleted{ConversationID: room})
	}
	return rooms, nil
}
