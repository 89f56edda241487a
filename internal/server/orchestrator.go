// Package server assembles the registries, the dispatcher, the application services
// and the gateway into one HTTP handler plus the background workers that serve it.
package server

import (
	"log/slog"
	"match-chat/api"
	"match-chat/contract"
	"match-chat/gateway"
	"match-chat/observability"
	"match-chat/runtime"
	"match-chat/runtime/workers"
	"match-chat/services"
	"net/http"
	"time"
)

type Options struct {
	Gateway         gateway.Config
	Transport       gateway.TransportConfig
	API             api.Config
	MetricInterval  time.Duration
	ShutdownTimeout time.Duration
	// PresenceHeartbeat renews presence of connected users, zero disables it.
	PresenceHeartbeat time.Duration
}

// Orchestrator owns the in-memory state of one chat process.
type Orchestrator struct {
	log           *slog.Logger
	options       Options
	Connections   *runtime.ConnectionRegistry
	Rooms         *runtime.RoomRegistry
	Monitoring    *observability.Monitoring
	Dispatcher    *runtime.Dispatcher
	Chat          *services.ChatService
	Conversations *services.ConversationService
	Notifications *services.NotificationService
	Gateway       *gateway.Gateway
	presence      contract.IPresenceRepository
}

func NewOrchestrator(log *slog.Logger, options Options, resolver contract.SessionResolver,
	repository contract.IChatRepository, presence contract.IPresenceRepository) *Orchestrator {
	connections := runtime.NewConnectionRegistry()
	rooms := runtime.NewRoomRegistry()
	monitoring := observability.NewMonitoring()
	dispatcher := runtime.NewDispatcher(log, connections, rooms, monitoring)
	notifications := services.NewNotificationService(log, repository, dispatcher)
	chat := services.NewChatService(log, repository, presence, connections, rooms, dispatcher, notifications)

	return &Orchestrator{
		log:           log,
		options:       options,
		Connections:   connections,
		Rooms:         rooms,
		Monitoring:    monitoring,
		Dispatcher:    dispatcher,
		Chat:          chat,
		Conversations: services.NewConversationService(log, repository, rooms, dispatcher),
		Notifications: notifications,
		Gateway:       gateway.New(log, options.Gateway, resolver, connections, chat, monitoring),
		presence:      presence,
	}
}

// Handler mounts the websocket endpoint and the HTTP API. inspect may be nil.
func (o *Orchestrator) Handler(inspect http.Handler) http.Handler {
	ws := gateway.NewWebSocketServer(o.log, o.Gateway, o.options.Transport)
	return api.NewRouter(o.log, o.options.API, ws, inspect, o.Conversations, o.Notifications, o.Stats)
}

func (o *Orchestrator) Stats() map[string]any {
	users, connections := o.Connections.Stats()
	return map[string]any{
		"users":       users,
		"connections": connections,
		"rooms":       o.Rooms.Count(),
		"gateway":     o.Monitoring.Snapshot(),
	}
}

// Workers returns what the supervisor has to run for the process to serve handler on address.
func (o *Orchestrator) Workers(address string, handler http.Handler) []contract.Worker {
	all := []contract.Worker{
		workers.NewHTTPServerWorker(o.log, address, handler, o.options.ShutdownTimeout),
		workers.NewHealthMonitoringWorker(o.log, o.Monitoring, o.Connections, o.Rooms, o.options.MetricInterval),
	}
	if o.options.PresenceHeartbeat > 0 {
		all = append(all, workers.NewPresenceHeartbeatWorker(o.log, o.Connections, o.presence, o.options.PresenceHeartbeat))
	}
	return all
}
