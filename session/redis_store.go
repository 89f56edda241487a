package session

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"match-chat/domain"
	"match-chat/errors"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "sess:"

// RedisStore reads sessions written by connect-redis: the value under "<prefix><sid>"
// is the JSON-serialized session whose "user" field holds the user identity.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

type storedSession struct {
	User string `json:"user"`
}

func (s *RedisStore) Get(ctx context.Context, key string) (domain.UserID, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if stdErrors.Is(err, redis.Nil) {
		return "", errors.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis session lookup: %w", err)
	}
	return decodeSession(raw)
}

func decodeSession(raw []byte) (domain.UserID, error) {
	var sess storedSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	if sess.User == "" {
		return "", errors.ErrSessionNotFound
	}
	return domain.UserID(sess.User), nil
}
