package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/errors"
	"match-chat/internal/fakeconn"
	"match-chat/mocks"
	"match-chat/observability"
	"match-chat/runtime"
	"net/http"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const allowedOrigin = "http://localhost:3000"

type harness struct {
	gateway     *Gateway
	resolver    *mocks.MockSessionResolver
	handler     *mocks.MockHandler
	connections *runtime.ConnectionRegistry
	monitoring  *observability.Monitoring
}

func newHarness(t *testing.T) harness {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockSessionResolver(ctrl)
	handler := mocks.NewMockHandler(ctrl)
	connections := runtime.NewConnectionRegistry()
	monitoring := observability.NewMonitoring()
	config := Config{AllowedOrigins: []string{allowedOrigin}, CookieName: "connect.sid", Subprotocol: "echo-protocol"}
	g := New(logs.GetLoggerFromLevel(slog.LevelDebug), config, resolver, connections, handler, monitoring)
	return harness{gateway: g, resolver: resolver, handler: handler, connections: connections, monitoring: monitoring}
}

func sessionCookie(value string) []*http.Cookie {
	return []*http.Cookie{{Name: "theme", Value: "dark"}, {Name: "connect.sid", Value: value}}
}

func TestGateway_Rejects_Disallowed_Origin_Before_Resolving(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	// Given a resolver that must never be called
	h.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Times(0)

	// When a handshake comes from a foreign origin
	admission := h.gateway.OnConnectionRequest(context.Background(), "https://evil.example", sessionCookie("s%3Aabc.sig"))

	// Then it is rejected
	req.Equal(Reject, admission.Decision)
	req.ErrorIs(admission.Reason, errors.ErrOriginNotAllowed)
	req.Equal(uint64(1), h.monitoring.Snapshot().ConnectionsRejected)
}

func TestGateway_Origin_Must_Match_Exactly(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Times(0)

	for _, origin := range []string{"", "http://localhost:3001", "https://localhost:3000", "http://localhost:3000/"} {
		admission := h.gateway.OnConnectionRequest(context.Background(), origin, sessionCookie("s%3Aabc.sig"))
		req.Equal(Reject, admission.Decision, origin)
	}
}

func TestGateway_Ignores_Missing_Cookie(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Times(0)

	admission := h.gateway.OnConnectionRequest(context.Background(), allowedOrigin, []*http.Cookie{{Name: "theme", Value: "dark"}})

	req.Equal(Ignore, admission.Decision)
	req.ErrorIs(admission.Reason, errors.ErrMissingCredential)
	req.Empty(admission.User)
}

func TestGateway_Ignores_Unresolved_Session(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.resolver.EXPECT().Resolve(gomock.Any(), "s%3Aexpired.sig").Return(domain.UserID(""), false)

	admission := h.gateway.OnConnectionRequest(context.Background(), allowedOrigin, sessionCookie("s%3Aexpired.sig"))

	req.Equal(Ignore, admission.Decision)
	req.ErrorIs(admission.Reason, errors.ErrUnresolvedSession)
	req.Equal(uint64(1), h.monitoring.Snapshot().ConnectionsIgnored)
}

func TestGateway_Accepts_Resolved_Session(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.resolver.EXPECT().Resolve(gomock.Any(), "s%3Aabc.sig").Return(domain.UserID("alice"), true)

	admission := h.gateway.OnConnectionRequest(context.Background(), allowedOrigin, sessionCookie("s%3Aabc.sig"))

	req.Equal(Accept, admission.Decision)
	req.NoError(admission.Reason)
	req.Equal(domain.UserID("alice"), admission.User)
}

func TestGateway_OnOpen_Registers_Connection(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	conn := fakeconn.New("c1")

	h.gateway.OnOpen("alice", conn)

	conns, ok := h.connections.ListConnections("alice")
	req.True(ok)
	req.Len(conns, 1)
	req.True(h.connections.IsLastConnection("alice", conn))
}

func TestGateway_OnFrame_Dispatches_Valid_Frames(t *testing.T) {
	h := newHarness(t)
	conn := fakeconn.New("c1")

	gomock.InOrder(
		h.handler.EXPECT().OnMessage(gomock.Any(), contract.MessageArgs{
			User: "alice", Body: event.InitRequested{}, Conn: conn,
		}).Return(nil),
		h.handler.EXPECT().OnMessage(gomock.Any(), contract.MessageArgs{
			User: "alice",
			Body: event.MessageSubmitted{ConversationID: "room-1", Message: "hello"},
			Conn: conn,
		}).Return(nil),
	)

	h.gateway.OnFrame(context.Background(), "alice", conn, true, []byte(`{"type":"INIT"}`))
	h.gateway.OnFrame(context.Background(), "alice", conn, true,
		[]byte(`{"type":"NEW_MESSAGE","payload":{"conversationId":"room-1","message":"hello"}}`))
}

func TestGateway_OnFrame_Drops_Invalid_Frames(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	conn := fakeconn.New("c1")
	h.handler.EXPECT().OnMessage(gomock.Any(), gomock.Any()).Times(0)

	frames := []struct {
		text bool
		data string
	}{
		{text: false, data: `{"type":"INIT"}`},
		{text: true, data: ``},
		{text: true, data: `not json`},
		{text: true, data: `{"type":"HELLO"}`},
		{text: true, data: `{"type":"NEW_MESSAGE"}`},
		{text: true, data: `{"type":"NEW_MESSAGE","payload":{"conversationId":"room-1"}}`},
	}
	for _, f := range frames {
		h.gateway.OnFrame(context.Background(), "alice", conn, f.text, []byte(f.data))
	}

	// Then nothing was sent back on the connection
	req.Empty(conn.Frames())
	req.Equal(uint64(len(frames)), h.monitoring.Snapshot().FramesDropped)
}

func TestGateway_OnFrame_Swallows_Handler_Failures(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	conn := fakeconn.New("c1")

	gomock.InOrder(
		h.handler.EXPECT().OnMessage(gomock.Any(), gomock.Any()).Return(fmt.Errorf("db down")),
		h.handler.EXPECT().OnMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, contract.MessageArgs) error { panic("nil map") }),
		h.handler.EXPECT().OnMessage(gomock.Any(), gomock.Any()).Return(nil),
	)

	req.NotPanics(func() {
		for range 3 {
			h.gateway.OnFrame(context.Background(), "alice", conn, true, []byte(`{"type":"INIT"}`))
		}
	})
	req.Equal(uint64(2), h.monitoring.Snapshot().HandlerFailures)
}

func TestGateway_OnClose_Detaches_Before_Handler(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	phone := fakeconn.New("phone")
	laptop := fakeconn.New("laptop")
	h.gateway.OnOpen("alice", phone)
	h.gateway.OnOpen("alice", laptop)

	// The handler sees the registry after removal
	h.handler.EXPECT().OnClose(gomock.Any(), contract.CloseArgs{User: "alice", Conn: phone, Code: 1000, Reason: "bye"}).
		DoAndReturn(func(context.Context, contract.CloseArgs) error {
			conns, _ := h.connections.ListConnections("alice")
			req.Len(conns, 1)
			return nil
		})

	h.gateway.OnClose(context.Background(), "alice", phone, 1000, "bye")

	req.False(h.connections.IsLastConnection("alice", phone))
	req.True(h.connections.IsLastConnection("alice", laptop))
}
