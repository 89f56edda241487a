// Package gateway turns connection requests and raw frames into authenticated, validated
// application events. The transport is pluggable: Gateway only knows about origins, cookies,
// text frames and close codes.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/errors"
	"match-chat/observability"
	"match-chat/protocol"
	"net/http"
	"runtime/debug"

	"github.com/samber/lo"
)

type Decision int

const (
	// Reject answers the handshake with a forbidden status.
	Reject Decision = iota
	// Ignore neither accepts nor rejects: the request is dropped without a response.
	Ignore
	Accept
)

func (d Decision) String() string {
	switch d {
	case Reject:
		return "reject"
	case Ignore:
		return "ignore"
	case Accept:
		return "accept"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

type Admission struct {
	Decision Decision
	User     domain.UserID
	// Reason is set when the connection is not accepted.
	Reason error
}

type Config struct {
	// AllowedOrigins are compared exactly against the Origin header (scheme, host and port).
	AllowedOrigins []string
	CookieName     string
	Subprotocol    string
}

// Lifecycle is what a transport drives for every connection.
type Lifecycle interface {
	OnConnectionRequest(ctx context.Context, origin string, cookies []*http.Cookie) Admission
	OnOpen(user domain.UserID, conn contract.Connection)
	OnFrame(ctx context.Context, user domain.UserID, conn contract.Connection, text bool, data []byte)
	OnClose(ctx context.Context, user domain.UserID, conn contract.Connection, code int, reason string)
}

type Gateway struct {
	log         *slog.Logger
	config      Config
	resolver    contract.SessionResolver
	connections contract.IConnectionRegistry
	handler     contract.Handler
	monitoring  *observability.Monitoring
}

func New(log *slog.Logger, config Config, resolver contract.SessionResolver,
	connections contract.IConnectionRegistry, handler contract.Handler,
	monitoring *observability.Monitoring) *Gateway {
	return &Gateway{
		log:         log,
		config:      config,
		resolver:    resolver,
		connections: connections,
		handler:     handler,
		monitoring:  monitoring,
	}
}

// OnConnectionRequest checks the origin first, the session resolver is never called for a foreign origin.
func (g *Gateway) OnConnectionRequest(ctx context.Context, origin string, cookies []*http.Cookie) Admission {
	if !lo.Contains(g.config.AllowedOrigins, origin) {
		g.monitoring.IncrRejected()
		g.log.Debug("Connection rejected", "origin", origin)
		return Admission{Decision: Reject, Reason: errors.ErrOriginNotAllowed}
	}
	cookie, ok := lo.Find(cookies, func(c *http.Cookie) bool { return c.Name == g.config.CookieName })
	if !ok {
		g.monitoring.IncrIgnored()
		g.log.Debug("Connection ignored, no session cookie", "origin", origin)
		return Admission{Decision: Ignore, Reason: errors.ErrMissingCredential}
	}
	user, ok := g.resolver.Resolve(ctx, cookie.Value)
	if !ok {
		g.monitoring.IncrIgnored()
		g.log.Debug("Connection ignored, unresolved session", "origin", origin)
		return Admission{Decision: Ignore, Reason: errors.ErrUnresolvedSession}
	}
	return Admission{Decision: Accept, User: user}
}

func (g *Gateway) OnOpen(user domain.UserID, conn contract.Connection) {
	g.connections.Attach(user, conn)
	g.monitoring.IncrAccepted()
	g.log.Debug("Connection accepted", "user", user, "connection", conn.ID())
}

// OnFrame never fails: invalid frames are dropped and handler errors or panics are swallowed.
func (g *Gateway) OnFrame(ctx context.Context, user domain.UserID, conn contract.Connection, text bool, data []byte) {
	if !text || len(data) == 0 {
		g.monitoring.IncrDropped()
		return
	}
	g.monitoring.IncrReceived()
	body, err := protocol.Decode(data)
	if err != nil {
		g.monitoring.IncrDropped()
		g.log.Debug("Frame dropped", "user", user, "connection", conn.ID(), "error", err)
		return
	}
	if err := g.handle(ctx, contract.MessageArgs{User: user, Body: body, Conn: conn}); err != nil {
		g.monitoring.IncrHandlerFailure()
		g.log.Debug("Frame handling failed", "user", user, "type", body.InType(), "error", err)
	}
}

func (g *Gateway) handle(ctx context.Context, args contract.MessageArgs) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("Panic while handling frame", "user", args.User, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return g.handler.OnMessage(ctx, args)
}

// OnClose deregisters the connection then hands over to the handler, which decides about presence.
func (g *Gateway) OnClose(ctx context.Context, user domain.UserID, conn contract.Connection, code int, reason string) {
	g.connections.Detach(user, conn)
	g.monitoring.IncrClosed()
	g.log.Debug("Connection closed", "user", user, "connection", conn.ID(), "code", code, "reason", reason)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return g.handler.OnClose(ctx, contract.CloseArgs{User: user, Conn: conn, Code: code, Reason: reason})
	}()
	if err != nil {
		g.monitoring.IncrHandlerFailure()
		g.log.Debug("Close handling failed", "user", user, "error", err)
	}
}
