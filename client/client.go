// Package client speaks the chat protocol over a websocket, for the CLI and the e2e suite.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"match-chat/domain/event"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type Config struct {
	URL         string
	Origin      string
	CookieName  string
	Credential  string
	Subprotocol string
}

// Event is an outbound server frame, payload left raw for the caller to decode.
type Event struct {
	Type    event.OutType   `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Client struct {
	conn *websocket.Conn
}

// Credential builds a cookie value in the signed session format, "s:<sid>.<signature>".
func Credential(sid string) string {
	return "s:" + sid + ".unsigned"
}

// Dial opens a connection. The response is returned even on failure so that callers
// can tell a refused handshake (403) from an ignored one (no response).
func Dial(ctx context.Context, config Config) (*Client, *http.Response, error) {
	header := http.Header{}
	if config.Origin != "" {
		header.Set("Origin", config.Origin)
	}
	if config.Credential != "" {
		header.Set("Cookie", (&http.Cookie{Name: config.CookieName, Value: config.Credential}).String())
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
		Subprotocols:     []string{config.Subprotocol},
	}
	conn, resp, err := dialer.DialContext(ctx, config.URL, header)
	if err != nil {
		return nil, resp, fmt.Errorf("dial %s: %w", config.URL, err)
	}
	return &Client{conn: conn}, resp, nil
}

func (c *Client) Subprotocol() string {
	return c.conn.Subprotocol()
}

func (c *Client) Init() error {
	return c.conn.WriteJSON(map[string]string{"type": string(event.Init)})
}

func (c *Client) SendMessage(room string, text string) error {
	return c.conn.WriteJSON(map[string]any{
		"type": string(event.NewMessageType),
		"payload": map[string]string{
			"conversationId": room,
			"message":        text,
		},
	})
}

// WriteRaw sends data as a text frame without any validation.
func (c *Client) WriteRaw(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Next waits at most timeout for the next event.
func (c *Client) Next(timeout time.Duration) (Event, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Event{}, err
	}
	var e Event
	if err := c.conn.ReadJSON(&e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Close sends a close frame with code and reason before closing the socket.
func (c *Client) Close(code int, reason string) error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	return c.conn.Close()
}
