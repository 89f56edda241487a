//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"match-chat/domain"
	"match-chat/domain/event"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself, the supervisor restarts it on panic.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is one open duplex channel to a single client device.
// Two connections are the same only if they are the same value.
type Connection interface {
	ID() string
	// Send enqueues an already serialized frame. It never blocks.
	Send(data []byte) error
	CreatedAt() time.Time
	Close() error
}

// SessionStore is the external session store, keyed by the session id carried in the cookie.
type SessionStore interface {
	Get(ctx context.Context, key string) (domain.UserID, error)
}

// SessionResolver turns a raw cookie credential into an identity.
// The boolean is false whenever the credential cannot be resolved, whatever the cause.
type SessionResolver interface {
	Resolve(ctx context.Context, credential string) (domain.UserID, bool)
}

type IConnectionRegistry interface {
	Attach(user domain.UserID, conn Connection)
	Detach(user domain.UserID, conn Connection)
	ListConnections(user domain.UserID) ([]Connection, bool)
	IsLastConnection(user domain.UserID, conn Connection) bool
}

type IRoomRegistry interface {
	Subscribe(room domain.RoomID, user domain.UserID)
	SubscribeMany(room domain.RoomID, users []domain.UserID)
	Unsubscribe(room domain.RoomID, user domain.UserID)
	UnsubscribePairFromSharedRooms(userA, userB domain.UserID) []domain.RoomID
	MembersOf(room domain.RoomID) ([]domain.UserID, bool)
}

type IDispatcher interface {
	SendTo(users []domain.UserID, e event.OutboundEvent)
	SendToConnection(conn Connection, e event.OutboundEvent)
	BroadcastToRoom(room domain.RoomID, e event.OutboundEvent)
	BroadcastToRoomExcluding(room domain.RoomID, e event.OutboundEvent, excluded []domain.UserID)
	SendToAllExceptOneConnection(user domain.UserID, conn Connection, e event.OutboundEvent)
}

type MessageArgs struct {
	User domain.UserID
	Body event.InboundEvent
	Conn Connection
}

type CloseArgs struct {
	User   domain.UserID
	Conn   Connection
	Code   int
	Reason string
}

// Handler receives validated frames and close notifications from the gateway.
type Handler interface {
	OnMessage(ctx context.Context, args MessageArgs) error
	OnClose(ctx context.Context, args CloseArgs) error
}

// IChatRepository is the persistence collaborator for conversations, messages and notifications.
type IChatRepository interface {
	GetConversations(ctx context.Context, user domain.UserID) ([]domain.ConversationSnapshot, error)
	CreateMessage(ctx context.Context, room domain.RoomID, author domain.UserID, text string) (domain.ChatMessage, error)
	RecordNotification(ctx context.Context, target, source domain.UserID, kind domain.NotificationType) (domain.Notification, error)
	CreateConversation(ctx context.Context, userA, userB domain.UserID) (domain.ConversationSnapshot, error)
	DeleteConversation(ctx context.Context, userA, userB domain.UserID) (bool, error)
}

type IPresenceRepository interface {
	SetOnline(ctx context.Context, user domain.UserID, online bool) error
}

type INotifier interface {
	Notify(ctx context.Context, target, source domain.UserID, kind domain.NotificationType) error
}

// IConversationService opens a conversation on a match and tears it down on unmatch or block.
type IConversationService interface {
	Create(ctx context.Context, userA, userB domain.UserID) (domain.ConversationSnapshot, error)
	Remove(ctx context.Context, userA, userB domain.UserID) ([]domain.RoomID, error)
}

// IModerator masks forbidden words. The censored text keeps the rune count of its input.
type IModerator interface {
	Censor(text string) (string, []string)
}
