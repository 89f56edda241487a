package gateway

import (
	"context"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/errors"
	"match-chat/mocks"
	"match-chat/runtime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recordingHandler answers every frame with an echo of its type on the originating connection.
type recordingHandler struct {
	messages chan contract.MessageArgs
	closes   chan contract.CloseArgs
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		messages: make(chan contract.MessageArgs, 10),
		closes:   make(chan contract.CloseArgs, 10),
	}
}

func (h *recordingHandler) OnMessage(_ context.Context, args contract.MessageArgs) error {
	h.messages <- args
	return args.Conn.Send([]byte(`{"type":"ACK","payload":"` + string(args.Body.InType()) + `"}`))
}

func (h *recordingHandler) OnClose(_ context.Context, args contract.CloseArgs) error {
	h.closes <- args
	return nil
}

type wsHarness struct {
	server      *httptest.Server
	url         string
	handler     *recordingHandler
	connections *runtime.ConnectionRegistry
}

func newWSHarness(t *testing.T, resolver contract.SessionResolver) wsHarness {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	handler := newRecordingHandler()
	connections := runtime.NewConnectionRegistry()
	g := New(log, Config{AllowedOrigins: []string{allowedOrigin}, CookieName: "connect.sid", Subprotocol: "echo-protocol"},
		resolver, connections, handler, nil)
	ws := NewWebSocketServer(log, g, TransportConfig{
		Subprotocol:    "echo-protocol",
		SendBufferSize: 8,
		WriteTimeout:   time.Second,
		PongTimeout:    5 * time.Second,
		MaxFrameSize:   4096,
	})
	server := httptest.NewServer(ws)
	t.Cleanup(server.Close)
	return wsHarness{
		server:      server,
		url:         "ws" + strings.TrimPrefix(server.URL, "http"),
		handler:     handler,
		connections: connections,
	}
}

func handshakeHeader(origin, cookie string) http.Header {
	header := http.Header{}
	header.Set("Origin", origin)
	if cookie != "" {
		header.Set("Cookie", "connect.sid="+cookie)
	}
	return header
}

func dialer() *websocket.Dialer {
	return &websocket.Dialer{Subprotocols: []string{"echo-protocol"}, HandshakeTimeout: 2 * time.Second}
}

func TestWebSocketServer_Forbidden_Origin(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockSessionResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Times(0)
	h := newWSHarness(t, resolver)

	_, resp, err := dialer().Dial(h.url, handshakeHeader("https://evil.example", "s%3Aabc.sig"))

	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.NotNil(resp)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketServer_Unresolved_Session_Gets_No_Response(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockSessionResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(domain.UserID(""), false)
	h := newWSHarness(t, resolver)

	_, resp, err := dialer().Dial(h.url, handshakeHeader(allowedOrigin, "s%3Aunknown.sig"))

	req.Error(err)
	req.Nil(resp)
}

func TestWebSocketServer_Accepted_Connection_Lifecycle(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockSessionResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "s%3Aabc.sig").Return(domain.UserID("alice"), true)
	h := newWSHarness(t, resolver)

	// Given an accepted connection
	client, resp, err := dialer().Dial(h.url, handshakeHeader(allowedOrigin, "s%3Aabc.sig"))
	req.NoError(err)
	req.Equal("echo-protocol", resp.Header.Get("Sec-WebSocket-Protocol"))

	// When a binary frame, a malformed frame then INIT are sent
	req.NoError(client.WriteMessage(websocket.BinaryMessage, []byte(`{"type":"INIT"}`)))
	req.NoError(client.WriteMessage(websocket.TextMessage, []byte(`{"type":"NOPE"}`)))
	req.NoError(client.WriteMessage(websocket.TextMessage, []byte(`{"type":"INIT"}`)))

	// Then only INIT reaches the handler and the answer comes back on the same connection
	select {
	case args := <-h.handler.messages:
		req.Equal(domain.UserID("alice"), args.User)
	case <-time.After(2 * time.Second):
		req.FailNow("INIT never reached the handler")
	}
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	req.NoError(err)
	req.JSONEq(`{"type":"ACK","payload":"INIT"}`, string(data))
	conns, ok := h.connections.ListConnections("alice")
	req.True(ok)
	req.Len(conns, 1)

	// When the client closes
	req.NoError(client.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "tab closed"), time.Now().Add(time.Second)))

	// Then the close reaches the handler with its code and the connection is deregistered
	select {
	case args := <-h.handler.closes:
		req.Equal(websocket.CloseGoingAway, args.Code)
		req.Equal("tab closed", args.Reason)
	case <-time.After(2 * time.Second):
		req.FailNow("close never reached the handler")
	}
	conns, _ = h.connections.ListConnections("alice")
	req.Empty(conns)
	req.Empty(h.handler.messages)
	_ = client.Close()
}

func TestWSConnection_Send_Is_Bounded(t *testing.T) {
	req := require.New(t)
	conn := newWSConnection(nil, TransportConfig{SendBufferSize: 1})

	req.NoError(conn.Send([]byte("1")))
	req.ErrorIs(conn.Send([]byte("2")), errors.ErrSendBufferFull)

	req.NoError(conn.Close())
	req.NoError(conn.Close())
	req.ErrorIs(conn.Send([]byte("3")), errors.ErrConnectionClosed)
	req.NotEmpty(conn.ID())
}
