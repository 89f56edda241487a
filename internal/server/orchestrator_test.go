package server

import (
	"encoding/json"
	"log/slog"
	"match-chat/api"
	"match-chat/gateway"
	"match-chat/mocks"
	"match-chat/observability"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newOrchestrator(t *testing.T, heartbeat time.Duration) *Orchestrator {
	ctrl := gomock.NewController(t)
	return NewOrchestrator(logs.GetLoggerFromLevel(slog.LevelDebug), Options{
		PresenceHeartbeat: heartbeat,
		Gateway:           gateway.Config{AllowedOrigins: []string{"http://localhost:3000"}, CookieName: "connect.sid", Subprotocol: "echo-protocol"},
		Transport:         gateway.TransportConfig{Subprotocol: "echo-protocol", SendBufferSize: 8, WriteTimeout: time.Second, PongTimeout: time.Minute, MaxFrameSize: 4096},
		API:               api.Config{WSPath: "/ws"},
		MetricInterval:    time.Minute,
		ShutdownTimeout:   time.Second,
	}, mocks.NewMockSessionResolver(ctrl), mocks.NewMockIChatRepository(ctrl), mocks.NewMockIPresenceRepository(ctrl))
}

func TestOrchestrator_Stats_Are_Served(t *testing.T) {
	req := require.New(t)
	o := newOrchestrator(t, 0)

	// When the stats endpoint is called on the assembled handler
	recorder := httptest.NewRecorder()
	o.Handler(nil).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/debug/stats", nil))

	// Then registry sizes and gateway counters are reported
	req.Equal(http.StatusOK, recorder.Code)
	var stats struct {
		Users       int                        `json:"users"`
		Connections int                        `json:"connections"`
		Rooms       int                        `json:"rooms"`
		Gateway     observability.GatewayStats `json:"gateway"`
	}
	req.NoError(json.Unmarshal(recorder.Body.Bytes(), &stats))
	req.Zero(stats.Users)
	req.Zero(stats.Connections)
	req.Equal(observability.GatewayStats{}, stats.Gateway)
}

func TestOrchestrator_Foreign_Origin_Is_Rejected(t *testing.T) {
	req := require.New(t)
	o := newOrchestrator(t, 0)

	request := httptest.NewRequest(http.MethodGet, "/ws", nil)
	request.Header.Set("Origin", "https://evil.example")
	recorder := httptest.NewRecorder()
	o.Handler(nil).ServeHTTP(recorder, request)

	req.Equal(http.StatusForbidden, recorder.Code)
	req.Equal(uint64(1), o.Monitoring.Snapshot().ConnectionsRejected)
}

func TestOrchestrator_Workers(t *testing.T) {
	req := require.New(t)

	req.Len(newOrchestrator(t, 0).Workers("127.0.0.1:0", http.NotFoundHandler()), 2)
	req.Len(newOrchestrator(t, time.Minute).Workers("127.0.0.1:0", http.NotFoundHandler()), 3)
}
