// Package redis keeps user presence in Redis so that other processes can read it.
package redis

import (
	"context"
	"match-chat/domain"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultPresencePrefix = "chat:presence:"

// PresenceRepository stores "<prefix><user>" -> node id while the user is online.
// A positive ttl bounds how long a crashed node can keep users online.
type PresenceRepository struct {
	rdb    goredis.UniversalClient
	prefix string
	nodeID string
	ttl    time.Duration
}

func NewPresenceRepository(rdb goredis.UniversalClient, prefix, nodeID string, ttl time.Duration) *PresenceRepository {
	if prefix == "" {
		prefix = DefaultPresencePrefix
	}
	return &PresenceRepository{rdb: rdb, prefix: prefix, nodeID: nodeID, ttl: ttl}
}

func (p *PresenceRepository) key(user domain.UserID) string {
	return p.prefix + string(user)
}

// SetOnline marks the user online, renewing the ttl, or deletes its key.
func (p *PresenceRepository) SetOnline(ctx context.Context, user domain.UserID, online bool) error {
	if !online {
		return p.rdb.Del(ctx, p.key(user)).Err()
	}
	return p.rdb.Set(ctx, p.key(user), p.nodeID, p.ttl).Err()
}
