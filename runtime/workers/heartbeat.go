package workers

import (
	"context"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"time"
)

type onlineUsers interface {
	OnlineUsers() []domain.UserID
}

// PresenceHeartbeatWorker marks every connected user online again on each tick,
// renewing presence entries that expire on their own.
type PresenceHeartbeatWorker struct {
	log         *slog.Logger
	connections onlineUsers
	presence    contract.IPresenceRepository
	interval    time.Duration
}

func NewPresenceHeartbeatWorker(
	log *slog.Logger,
	connections onlineUsers,
	presence contract.IPresenceRepository,
	interval time.Duration,
) *PresenceHeartbeatWorker {
	return &PresenceHeartbeatWorker{
		log:         log,
		connections: connections,
		presence:    presence,
		interval:    interval,
	}
}

func (w *PresenceHeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting presence heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence heartbeat")
			return nil
		case <-ticker.C:
			w.beat(ctx)
		}
	}
}

func (w *PresenceHeartbeatWorker) beat(ctx context.Context) {
	users := w.connections.OnlineUsers()
	failures := 0
	for _, user := range users {
		if err := w.presence.SetOnline(ctx, user, true); err != nil {
			failures++
			w.log.Debug("Presence renewal failed", "user", user, "error", err)
		}
	}
	if failures > 0 {
		w.log.Warn("Presence heartbeat incomplete", "users", len(users), "failures", failures)
	}
}
