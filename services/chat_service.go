package services

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/errors"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// MaxMessageLength is the only place the message length bound is enforced, counted in characters after trimming.
const MaxMessageLength = 255

// ChatService handles INIT and NEW_MESSAGE frames and connection closes.
type ChatService struct {
	log         *slog.Logger
	repository  contract.IChatRepository
	presence    contract.IPresenceRepository
	connections contract.IConnectionRegistry
	rooms       contract.IRoomRegistry
	dispatcher  contract.IDispatcher
	notifier    contract.INotifier
	moderator   contract.IModerator
	presenceMu  *userLocks
}

func NewChatService(
	log *slog.Logger,
	repository contract.IChatRepository,
	presence contract.IPresenceRepository,
	connections contract.IConnectionRegistry,
	rooms contract.IRoomRegistry,
	dispatcher contract.IDispatcher,
	notifier contract.INotifier,
) *ChatService {
	return &ChatService{
		log:         log,
		repository:  repository,
		presence:    presence,
		connections: connections,
		rooms:       rooms,
		dispatcher:  dispatcher,
		notifier:    notifier,
		presenceMu:  newUserLocks(),
	}
}

// WithModerator censors every message before it is persisted.
func (s *ChatService) WithModerator(moderator contract.IModerator) *ChatService {
	s.moderator = moderator
	return s
}

func (s *ChatService) OnMessage(ctx context.Context, args contract.MessageArgs) error {
	switch body := args.Body.(type) {
	case event.InitRequested:
		return s.init(ctx, args.User, args.Conn)
	case event.MessageSubmitted:
		return s.newMessage(ctx, args.User, args.Conn, body)
	default:
		return fmt.Errorf("%w: %T", errors.ErrUnsupportedFrame, args.Body)
	}
}

// init answers on the initiating connection only. Nothing is sent if the conversations cannot be read,
// a presence failure is only logged.
func (s *ChatService) init(ctx context.Context, user domain.UserID, conn contract.Connection) error {
	var conversations []domain.ConversationSnapshot
	var g errgroup.Group
	g.Go(func() error {
		var err error
		conversations, err = s.repository.GetConversations(ctx, user)
		return err
	})
	g.Go(func() error {
		if err := s.markOnline(ctx, user, conn); err != nil {
			s.log.Warn("Presence not updated", "user", user, "error", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Debug("Init aborted", "user", user, "error", err)
		return fmt.Errorf("init %s: %w", user, err)
	}

	for _, conversation := range conversations {
		s.rooms.Subscribe(conversation.UUID, user)
	}
	s.dispatcher.SendToConnection(conn, event.ConversationsSnapshot{Conversations: conversations})
	return nil
}

// markOnline skips connections already closed, their close has been or will be handled under the same lock.
func (s *ChatService) markOnline(ctx context.Context, user domain.UserID, conn contract.Connection) error {
	unlock := s.presenceMu.lock(user)
	defer unlock()
	conns, _ := s.connections.ListConnections(user)
	if !lo.Contains(conns, conn) {
		return nil
	}
	return s.presence.SetOnline(ctx, user, true)
}

func (s *ChatService) newMessage(ctx context.Context, user domain.UserID, conn contract.Connection, body event.MessageSubmitted) error {
	text := strings.TrimSpace(body.Message)
	if text == "" {
		return errors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return fmt.Errorf("%w: %d characters", errors.ErrMessageTooLong, utf8.RuneCountInString(text))
	}

	if s.moderator != nil {
		var words []string
		if text, words = s.moderator.Censor(text); len(words) > 0 {
			s.log.Debug("Message censored", "user", user, "room", body.ConversationID, "words", len(words))
		}
	}

	message, err := s.repository.CreateMessage(ctx, body.ConversationID, user, text)
	if err != nil {
		s.log.Debug("Message not persisted", "user", user, "room", body.ConversationID, "error", err)
		return fmt.Errorf("create message in %s: %w", body.ConversationID, err)
	}

	created := event.MessageCreated{ConversationID: body.ConversationID, Message: message}
	s.dispatcher.BroadcastToRoomExcluding(body.ConversationID, created, []domain.UserID{user})
	s.dispatcher.SendToAllExceptOneConnection(user, conn, created)

	// Membership is read again here, it may have changed while the message was persisted.
	members, _ := s.rooms.MembersOf(body.ConversationID)
	var g errgroup.Group
	for _, member := range lo.Without(members, user) {
		g.Go(func() error {
			return s.notifier.Notify(ctx, member, user, domain.GotMessage)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("notify members of %s: %w", body.ConversationID, err)
	}
	return nil
}

// OnClose marks the user offline once its last connection is gone.
// The check and the write hold the user's presence lock, an INIT on a new connection waits for both.
func (s *ChatService) OnClose(ctx context.Context, args contract.CloseArgs) error {
	unlock := s.presenceMu.lock(args.User)
	defer unlock()
	if !s.connections.IsLastConnection(args.User, args.Conn) {
		return nil
	}
	if err := s.presence.SetOnline(ctx, args.User, false); err != nil {
		return fmt.Errorf("set %s offline: %w", args.User, err)
	}
	return nil
}
