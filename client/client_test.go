package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// echoServer answers every INIT with an empty snapshot and echoes the cookie it saw.
func echoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{
		Subprotocols: []string{"echo-protocol"},
		CheckOrigin:  func(r *http.Request) bool { return r.Header.Get("Origin") == "http://localhost:3000" },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, _ := r.Cookie("connect.sid")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			_ = conn.WriteJSON(map[string]any{
				"type":    "CONVERSATIONS",
				"payload": map[string]any{"cookie": cookie.Value, "received": frame["type"]},
			})
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_RoundTrip(t *testing.T) {
	req := require.New(t)
	server := echoServer(t)

	// Given a connected client
	c, _, err := Dial(context.Background(), Config{
		URL:         "ws" + strings.TrimPrefix(server.URL, "http"),
		Origin:      "http://localhost:3000",
		CookieName:  "connect.sid",
		Credential:  Credential("abc"),
		Subprotocol: "echo-protocol",
	})
	req.NoError(err)
	defer func() { _ = c.Close(websocket.CloseNormalClosure, "bye") }()
	req.Equal("echo-protocol", c.Subprotocol())

	// When it sends INIT
	req.NoError(c.Init())

	// Then the server saw the frame and the cookie
	e, err := c.Next(time.Second)
	req.NoError(err)
	req.Equal("CONVERSATIONS", string(e.Type))
	req.JSONEq(`{"cookie":"s:abc.unsigned","received":"INIT"}`, string(e.Payload))
}

func TestClient_Dial_Reports_Refusal(t *testing.T) {
	req := require.New(t)
	server := echoServer(t)

	_, resp, err := Dial(context.Background(), Config{
		URL:         "ws" + strings.TrimPrefix(server.URL, "http"),
		Origin:      "https://evil.example",
		Subprotocol: "echo-protocol",
	})

	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.NotNil(resp)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}
