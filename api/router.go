// Package api mounts the websocket endpoint, the debug endpoints and the internal control API
// used by the rest of the application to open and close conversations and to notify users.
package api

import (
	stdErrors "errors"
	"log/slog"
	"match-chat/auth"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceKey = "service"

type StatsProvider func() map[string]any

type Config struct {
	WSPath string
	// InternalSecret verifies the bearer tokens of /internal callers, empty leaves it open.
	InternalSecret []byte
}

type Router struct {
	log           *slog.Logger
	conversations contract.IConversationService
	notifier      contract.INotifier
	stats         StatsProvider
}

// NewRouter builds the gin engine. inspect may be nil when no embedded store is used.
func NewRouter(log *slog.Logger, config Config, ws http.Handler, inspect http.Handler,
	conversations contract.IConversationService, notifier contract.INotifier, stats StatsProvider) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := &Router{log: log, conversations: conversations, notifier: notifier, stats: stats}

	engine := gin.New()
	engine.Use(gin.Recovery(), r.logRequests())
	engine.GET(config.WSPath, gin.WrapH(ws))

	debug := engine.Group("/debug")
	debug.GET("/stats", r.getStats)
	if inspect != nil {
		debug.GET("/inspect", gin.WrapH(inspect))
	}

	internal := engine.Group("/internal", requireServiceToken(config.InternalSecret))
	internal.POST("/conversations", r.createConversation)
	internal.DELETE("/conversations", r.removeConversation)
	internal.POST("/notifications", r.notify)
	return engine
}

func (r *Router) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		r.log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"service", c.GetString(serviceKey),
			"duration", time.Since(start))
	}
}

func requireServiceToken(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, err := auth.ValidateToken(secret, token)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(serviceKey, claims.Service)
		c.Next()
	}
}

type pairRequest struct {
	UserA domain.UserID `json:"userA" binding:"required"`
	UserB domain.UserID `json:"userB" binding:"required"`
}

type notificationRequest struct {
	Target domain.UserID           `json:"target" binding:"required"`
	Source domain.UserID           `json:"source" binding:"required"`
	Type   domain.NotificationType `json:"type" binding:"required"`
}

func (r *Router) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, r.stats())
}

func (r *Router) createConversation(c *gin.Context) {
	var body pairRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conversation, err := r.conversations.Create(c.Request.Context(), body.UserA, body.UserB)
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conversation)
}

func (r *Router) removeConversation(c *gin.Context) {
	var body pairRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rooms, err := r.conversations.Remove(c.Request.Context(), body.UserA, body.UserB)
	if err != nil {
		r.fail(c, err)
		return
	}
	if rooms == nil {
		rooms = []domain.RoomID{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (r *Router) notify(c *gin.Context) {
	var body notificationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.notifier.Notify(c.Request.Context(), body.Target, body.Source, body.Type); err != nil {
		r.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (r *Router) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case stdErrors.Is(err, errors.ErrSameUser), stdErrors.Is(err, errors.ErrUnknownNotificationType):
		status = http.StatusBadRequest
	case stdErrors.Is(err, errors.ErrUserNotFound), stdErrors.Is(err, errors.ErrConversationNotFound):
		status = http.StatusNotFound
	case stdErrors.Is(err, errors.ErrConversationExists):
		status = http.StatusConflict
	case stdErrors.Is(err, errors.ErrNotificationRefused):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		r.log.Error("Internal API failure", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
