package workers

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"match-chat/mocks"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type stubOnline []domain.UserID

func (s stubOnline) OnlineUsers() []domain.UserID { return s }

func TestPresenceHeartbeatWorker_Renews_Every_Online_User(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	presence := mocks.NewMockIPresenceRepository(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Given two connected users, one of which cannot be renewed
	renewed := make(chan domain.UserID, 4)
	presence.EXPECT().SetOnline(gomock.Any(), domain.UserID("alice"), true).
		DoAndReturn(func(context.Context, domain.UserID, bool) error {
			select {
			case renewed <- "alice":
			default:
			}
			return nil
		}).MinTimes(1)
	presence.EXPECT().SetOnline(gomock.Any(), domain.UserID("bob"), true).
		DoAndReturn(func(context.Context, domain.UserID, bool) error {
			select {
			case renewed <- "bob":
			default:
			}
			return fmt.Errorf("redis down")
		}).MinTimes(1)
	w := NewPresenceHeartbeatWorker(logs.GetLoggerFromLevel(slog.LevelDebug), stubOnline{"alice", "bob"}, presence, 10*time.Millisecond)

	// When the worker ticks
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Then both are renewed and a failure does not stop the worker
	got := map[domain.UserID]bool{}
	for len(got) < 2 {
		select {
		case user := <-renewed:
			got[user] = true
		case <-time.After(time.Second):
			req.Fail("heartbeat did not run")
		}
	}
	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("worker did not stop")
	}
}
