// Package postgres is the relational persistence collaborator, over a pgx connection pool.
package postgres

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"match-chat/errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

// Schema is applied by Migrate. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    uuid        TEXT PRIMARY KEY,
    username    TEXT NOT NULL,
    profile_pic TEXT NOT NULL DEFAULT '',
    online      BOOLEAN NOT NULL DEFAULT FALSE,
    last_seen   TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS conversations (
    uuid       TEXT PRIMARY KEY,
    user_a     TEXT NOT NULL REFERENCES users(uuid) ON DELETE CASCADE,
    user_b     TEXT NOT NULL REFERENCES users(uuid) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    CHECK (user_a < user_b),
    UNIQUE (user_a, user_b)
);
CREATE TABLE IF NOT EXISTS messages (
    uuid              TEXT PRIMARY KEY,
    conversation_uuid TEXT NOT NULL REFERENCES conversations(uuid) ON DELETE CASCADE,
    author_uuid       TEXT NOT NULL REFERENCES users(uuid) ON DELETE CASCADE,
    payload           TEXT NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_uuid, created_at DESC);
CREATE TABLE IF NOT EXISTS notifications (
    uuid        TEXT PRIMARY KEY,
    user_uuid   TEXT NOT NULL REFERENCES users(uuid) ON DELETE CASCADE,
    type        TEXT NOT NULL,
    message     TEXT NOT NULL,
    seen        BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS blocks (
    blocker TEXT NOT NULL REFERENCES users(uuid) ON DELETE CASCADE,
    blocked TEXT NOT NULL REFERENCES users(uuid) ON DELETE CASCADE,
    PRIMARY KEY (blocker, blocked)
);
`

const foreignKeyViolation = "23503"

// ChatRepository implements contract.IChatRepository and contract.IPresenceRepository.
type ChatRepository struct {
	pool          *pgxpool.Pool
	log           *slog.Logger
	limitMessages int
}

// NewChatRepository keeps at most limitMessages latest messages per conversation in snapshots,
// zero or less means no limit.
func NewChatRepository(pool *pgxpool.Pool, log *slog.Logger, limitMessages int) *ChatRepository {
	return &ChatRepository{pool: pool, log: log, limitMessages: limitMessages}
}

func (r *ChatRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// orderedPair gives the (user_a, user_b) column order of a pair.
func orderedPair(a, b domain.UserID) (domain.UserID, domain.UserID) {
	if b < a {
		return b, a
	}
	return a, b
}

func (r *ChatRepository) PutUser(ctx context.Context, user domain.ConversationUser) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (uuid, username, profile_pic) VALUES ($1, $2, $3)
		ON CONFLICT (uuid) DO UPDATE SET username = EXCLUDED.username, profile_pic = EXCLUDED.profile_pic`,
		user.UUID, user.Username, user.ProfilePic)
	return err
}

func (r *ChatRepository) SetOnline(ctx context.Context, user domain.UserID, online bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET online = $2, last_seen = now() WHERE uuid = $1`, user, online)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", errors.ErrUserNotFound, user)
	}
	return nil
}

func (r *ChatRepository) Block(ctx context.Context, blocker, blocked domain.UserID) error {
	if blocker == blocked {
		return errors.ErrSameUser
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO blocks (blocker, blocked) VALUES ($1, $2) ON CONFLICT DO NOTHING`, blocker, blocked)
	return err
}

func (r *ChatRepository) GetConversations(ctx context.Context, user domain.UserID) ([]domain.ConversationSnapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.uuid, ua.uuid, ua.username, ua.profile_pic, ub.uuid, ub.username, ub.profile_pic
		FROM conversations c
		JOIN users ua ON ua.uuid = c.user_a
		JOIN users ub ON ub.uuid = c.user_b
		WHERE c.user_a = $1 OR c.user_b = $1
		ORDER BY c.created_at`, user)
	if err != nil {
		return nil, err
	}
	conversations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ConversationSnapshot, error) {
		var id domain.RoomID
		var a, b domain.ConversationUser
		err := row.Scan(&id, &a.UUID, &a.Username, &a.ProfilePic, &b.UUID, &b.Username, &b.ProfilePic)
		return domain.NewConversationSnapshot(id, []domain.ConversationUser{a, b}, nil), err
	})
	if err != nil {
		return nil, err
	}
	for i := range conversations {
		messages, err := r.latestMessages(ctx, conversations[i].UUID)
		if err != nil {
			return nil, err
		}
		conversations[i].Messages = messages
	}
	return conversations, nil
}

func (r *ChatRepository) latestMessages(ctx context.Context, room domain.RoomID) ([]domain.ChatMessage, error) {
	limit := any(nil)
	if r.limitMessages > 0 {
		limit = r.limitMessages
	}
	rows, err := r.pool.Query(ctx, `
		SELECT m.uuid, m.author_uuid, COALESCE(u.username, ''), m.payload, m.created_at
		FROM messages m
		LEFT JOIN users u ON u.uuid = m.author_uuid
		WHERE m.conversation_uuid = $1
		ORDER BY m.created_at DESC
		LIMIT $2`, room, limit)
	if err != nil {
		return nil, err
	}
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ChatMessage, error) {
		var m domain.ChatMessage
		var at time.Time
		err := row.Scan(&m.UUID, &m.AuthorUUID, &m.AuthorUsername, &m.Payload, &at)
		m.CreatedAt = at.UnixMilli()
		return m, err
	})
	if err != nil {
		return nil, err
	}
	return lo.Reverse(messages), nil
}

func (r *ChatRepository) CreateMessage(ctx context.Context, room domain.RoomID, author domain.UserID, text string) (domain.ChatMessage, error) {
	message := domain.ChatMessage{UUID: uuid.NewString(), AuthorUUID: author, Payload: text}
	var at time.Time
	err := r.pool.QueryRow(ctx, `
		WITH member AS (
			SELECT c.uuid FROM conversations c WHERE c.uuid = $1 AND (c.user_a = $2 OR c.user_b = $2)
		)
		INSERT INTO messages (uuid, conversation_uuid, author_uuid, payload)
		SELECT $3, member.uuid, $2, $4 FROM member
		RETURNING created_at, (SELECT username FROM users WHERE uuid = $2)`,
		room, author, message.UUID, text).Scan(&at, &message.AuthorUsername)
	if stdErrors.Is(err, pgx.ErrNoRows) {
		return domain.ChatMessage{}, fmt.Errorf("%w: %s in %s", errors.ErrNotAMember, author, room)
	}
	if err != nil {
		return domain.ChatMessage{}, err
	}
	message.CreatedAt = at.UnixMilli()
	return message, nil
}

func (r *ChatRepository) RecordNotification(ctx context.Context, target, source domain.UserID, kind domain.NotificationType) (domain.Notification, error) {
	if !kind.IsValid() {
		return domain.Notification{}, fmt.Errorf("%w: %s", errors.ErrUnknownNotificationType, kind)
	}
	var blocked bool
	var username *string
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM blocks WHERE blocker = $1 AND blocked = $2),
		       (SELECT username FROM users WHERE uuid = $2)`, target, source).Scan(&blocked, &username)
	if err != nil {
		return domain.Notification{}, err
	}
	if blocked {
		return domain.Notification{}, fmt.Errorf("%w: %s blocked %s", errors.ErrNotificationRefused, target, source)
	}
	if username == nil {
		return domain.Notification{}, fmt.Errorf("%w: %s", errors.ErrUserNotFound, source)
	}
	notification := domain.Notification{
		UUID:    uuid.NewString(),
		Type:    kind,
		Message: domain.NotificationMessage(*username, kind),
	}
	var at time.Time
	err = r.pool.QueryRow(ctx, `
		INSERT INTO notifications (uuid, user_uuid, type, message) VALUES ($1, $2, $3, $4)
		RETURNING created_at`, notification.UUID, target, kind, notification.Message).Scan(&at)
	if err != nil {
		return domain.Notification{}, err
	}
	notification.CreatedAt = at.UnixMilli()
	return notification, nil
}

func (r *ChatRepository) CreateConversation(ctx context.Context, userA, userB domain.UserID) (domain.ConversationSnapshot, error) {
	if userA == userB {
		return domain.ConversationSnapshot{}, errors.ErrSameUser
	}
	first, second := orderedPair(userA, userB)
	id := domain.RoomID(uuid.NewString())
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO conversations (uuid, user_a, user_b) VALUES ($1, $2, $3)
		ON CONFLICT (user_a, user_b) DO NOTHING`, id, first, second)
	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return domain.ConversationSnapshot{}, fmt.Errorf("%w: %s", errors.ErrUserNotFound, pgErr.Detail)
	}
	if err != nil {
		return domain.ConversationSnapshot{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.ConversationSnapshot{}, errors.ErrConversationExists
	}
	users := make([]domain.ConversationUser, 0, 2)
	for _, member := range []domain.UserID{userA, userB} {
		user := domain.ConversationUser{UUID: member}
		if err := r.pool.QueryRow(ctx, `SELECT username, profile_pic FROM users WHERE uuid = $1`, member).
			Scan(&user.Username, &user.ProfilePic); err != nil {
			return domain.ConversationSnapshot{}, err
		}
		users = append(users, user)
	}
	return domain.NewConversationSnapshot(id, users, nil), nil
}

func (r *ChatRepository) DeleteConversation(ctx context.Context, userA, userB domain.UserID) (bool, error) {
	first, second := orderedPair(userA, userB)
	tag, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE user_a = $1 AND user_b = $2`, first, second)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
