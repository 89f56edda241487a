package gateway

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"match-chat/domain"
	"match-chat/errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type TransportConfig struct {
	Subprotocol    string
	SendBufferSize int
	WriteTimeout   time.Duration
	// PongTimeout is how long a connection may stay silent, pings go out at 9/10 of it.
	PongTimeout  time.Duration
	MaxFrameSize int64
}

// WebSocketServer is the gorilla/websocket transport in front of a Lifecycle.
type WebSocketServer struct {
	log       *slog.Logger
	lifecycle Lifecycle
	config    TransportConfig
	upgrader  websocket.Upgrader
}

func NewWebSocketServer(log *slog.Logger, lifecycle Lifecycle, config TransportConfig) *WebSocketServer {
	return &WebSocketServer{
		log:       log,
		lifecycle: lifecycle,
		config:    config,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{config.Subprotocol},
			// Origins are checked by the lifecycle before the upgrade.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admission := s.lifecycle.OnConnectionRequest(ctx, r.Header.Get("Origin"), r.Cookies())
	switch admission.Decision {
	case Reject:
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	case Accept:
	default:
		s.drop(w)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Upgrade failed", "user", admission.User, "error", err)
		return
	}
	conn := newWSConnection(ws, s.config)
	go conn.writePump()
	s.lifecycle.OnOpen(admission.User, conn)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	code, reason := s.readLoop(ctx, admission.User, conn)
	_ = conn.Close()
	s.lifecycle.OnClose(context.WithoutCancel(ctx), admission.User, conn, code, reason)
}

// drop closes the underlying TCP connection without writing any response.
func (s *WebSocketServer) drop(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return
	}
	netConn, _, err := hj.Hijack()
	if err != nil {
		s.log.Debug("Hijack failed", "error", err)
		return
	}
	_ = netConn.Close()
}

// readLoop handles frames in arrival order and returns the close code and reason.
func (s *WebSocketServer) readLoop(ctx context.Context, user domain.UserID, conn *wsConnection) (int, string) {
	ws := conn.ws
	if s.config.MaxFrameSize > 0 {
		ws.SetReadLimit(s.config.MaxFrameSize)
	}
	_ = ws.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	})
	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if stdErrors.As(err, &closeErr) {
				return closeErr.Code, closeErr.Text
			}
			s.log.Debug("Read failed", "user", user, "connection", conn.ID(), "error", err)
			return websocket.CloseAbnormalClosure, err.Error()
		}
		s.lifecycle.OnFrame(ctx, user, conn, messageType == websocket.TextMessage, data)
	}
}

// wsConnection owns a bounded send queue drained by writePump, the only goroutine writing to ws.
type wsConnection struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	createdAt time.Time
	config    TransportConfig
}

func newWSConnection(ws *websocket.Conn, config TransportConfig) *wsConnection {
	return &wsConnection{
		id:        uuid.NewString(),
		ws:        ws,
		send:      make(chan []byte, config.SendBufferSize),
		done:      make(chan struct{}),
		createdAt: time.Now().UTC(),
		config:    config,
	}
}

func (c *wsConnection) ID() string { return c.id }

func (c *wsConnection) CreatedAt() time.Time { return c.createdAt }

// Send never blocks: a full queue is reported as ErrSendBufferFull.
func (c *wsConnection) Send(data []byte) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
		return errors.ErrSendBufferFull
	}
}

func (c *wsConnection) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *wsConnection) writePump() {
	pingPeriod := c.config.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
		_ = c.ws.Close()
	}()
	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-c.done:
			deadline := time.Now().Add(c.config.WriteTimeout)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}
