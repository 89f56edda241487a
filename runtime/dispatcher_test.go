package runtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/internal/fakeconn"
	"match-chat/observability"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	connections *ConnectionRegistry
	rooms       *RoomRegistry
	monitoring  *observability.Monitoring
	dispatcher  *Dispatcher
}

func newFixture() fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	connections := NewConnectionRegistry()
	rooms := NewRoomRegistry()
	monitoring := observability.NewMonitoring()
	return fixture{
		connections: connections,
		rooms:       rooms,
		monitoring:  monitoring,
		dispatcher:  NewDispatcher(log, connections, rooms, monitoring),
	}
}

func (f fixture) connect(user domain.UserID, id string) *fakeconn.Conn {
	conn := fakeconn.New(id)
	f.connections.Attach(user, conn)
	return conn
}

func messageEvent(room domain.RoomID) event.OutboundEvent {
	return event.MessageCreated{
		ConversationID: room,
		Message:        domain.ChatMessage{UUID: "m-1", AuthorUUID: "bob", Payload: "hi"},
	}
}

func TestDispatcher_SendTo_Offline_User_Is_Noop(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	// Given a user with no open connection
	// When an event is sent to them
	req.NotPanics(func() {
		f.dispatcher.SendTo([]domain.UserID{"ghost"}, event.ConversationDeleted{ConversationID: "r"})
	})

	// Then nothing was delivered
	req.Zero(f.monitoring.Snapshot().EventsSent)
}

func TestDispatcher_SendTo_All_Devices(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	phone := f.connect("alice", "phone")
	laptop := f.connect("alice", "laptop")
	bob := f.connect("bob", "bob")

	f.dispatcher.SendTo([]domain.UserID{"alice", "alice"}, event.ConversationDeleted{ConversationID: "r"})

	// Duplicated users receive a single copy per connection
	req.Equal([]string{"DELETE_CONVERSATION"}, phone.Types())
	req.Equal([]string{"DELETE_CONVERSATION"}, laptop.Types())
	req.Empty(bob.Types())
}

func TestDispatcher_BroadcastToRoomExcluding(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := domain.RoomID("room-1")
	a1 := f.connect("alice", "a1")
	a2 := f.connect("alice", "a2")
	b1 := f.connect("bob", "b1")
	c1 := f.connect("carol", "c1")
	c2 := f.connect("carol", "c2")
	outsider := f.connect("dave", "d1")
	f.rooms.SubscribeMany(room, []domain.UserID{"alice", "bob", "carol"})

	// When an event is broadcast excluding alice
	f.dispatcher.BroadcastToRoomExcluding(room, messageEvent(room), []domain.UserID{"alice"})

	// Then every connection of bob and carol gets exactly one copy
	for _, conn := range []*fakeconn.Conn{b1, c1, c2} {
		req.Equal([]string{"NEW_MESSAGE"}, conn.Types(), conn.ID())
	}
	// And none of alice's or non members'
	for _, conn := range []*fakeconn.Conn{a1, a2, outsider} {
		req.Empty(conn.Types(), conn.ID())
	}
}

func TestDispatcher_BroadcastToRoom_After_Double_Subscribe(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := domain.RoomID("room-1")
	conn := f.connect("alice", "a1")

	// Given alice subscribed twice
	f.rooms.Subscribe(room, "alice")
	f.rooms.Subscribe(room, "alice")

	// When one event is broadcast
	f.dispatcher.BroadcastToRoom(room, messageEvent(room))

	// Then a single copy is delivered
	req.Len(conn.Frames(), 1)
}

func TestDispatcher_BroadcastToRoom_Unknown_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	conn := f.connect("alice", "a1")

	f.dispatcher.BroadcastToRoom("nowhere", messageEvent("nowhere"))

	req.Empty(conn.Frames())
}

func TestDispatcher_Does_Not_Infer_Membership_From_Connections(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := domain.RoomID("room-1")
	f.rooms.Subscribe(room, "bob")
	alice := f.connect("alice", "a1")

	f.dispatcher.BroadcastToRoom(room, messageEvent(room))

	req.Empty(alice.Frames())
}

func TestDispatcher_SendToAllExceptOneConnection(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	origin := f.connect("alice", "a1")
	other := f.connect("alice", "a2")

	f.dispatcher.SendToAllExceptOneConnection("alice", origin, messageEvent("room-1"))

	req.Empty(origin.Frames())
	req.Equal([]string{"NEW_MESSAGE"}, other.Types())
}

func TestDispatcher_Isolates_Failing_Connections(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	broken := fakeconn.Failing("broken", fmt.Errorf("write: broken pipe"))
	f.connections.Attach("alice", broken)
	healthy := f.connect("alice", "healthy")
	bob := f.connect("bob", "bob")

	f.dispatcher.SendTo([]domain.UserID{"alice", "bob"}, messageEvent("room-1"))

	req.Len(healthy.Frames(), 1)
	req.Len(bob.Frames(), 1)
	stats := f.monitoring.Snapshot()
	req.Equal(uint64(1), stats.SendFailures)
	req.Equal(uint64(2), stats.EventsSent)
}

type panickingConn struct{ *fakeconn.Conn }

func (panickingConn) Send([]byte) error { panic("send on closed channel") }

func TestDispatcher_Recovers_From_Panicking_Connection(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.connections.Attach("alice", panickingConn{fakeconn.New("p")})
	healthy := f.connect("alice", "healthy")

	req.NotPanics(func() {
		f.dispatcher.SendTo([]domain.UserID{"alice"}, messageEvent("room-1"))
	})
	req.Len(healthy.Frames(), 1)
}

func TestDispatcher_SendToConnection_Payload(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	conn := fakeconn.New("solo")

	f.dispatcher.SendToConnection(conn, event.ConversationsSnapshot{Conversations: []domain.ConversationSnapshot{
		domain.NewConversationSnapshot("room-1", nil, nil),
	}})

	frames := conn.Frames()
	req.Len(frames, 1)
	req.Equal("CONVERSATIONS", frames[0].Type)
	var payload struct {
		Conversations []domain.ConversationSnapshot `json:"conversations"`
	}
	req.NoError(json.Unmarshal(frames[0].Payload, &payload))
	req.Len(payload.Conversations, 1)
	req.Equal(domain.RoomID("room-1"), payload.Conversations[0].UUID)
}
