package runtime

import (
	"fmt"
	"log/slog"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/errors"
	"match-chat/observability"

	"github.com/samber/lo"
)

// Dispatcher fans an outbound event out to live connections.
//
// Delivery is at most once per connection open at send time: no acknowledgment,
// no retry and no queue for users that are offline. A failing connection never
// prevents delivery to the others.
type Dispatcher struct {
	log         *slog.Logger
	connections contract.IConnectionRegistry
	rooms       contract.IRoomRegistry
	monitoring  *observability.Monitoring
}

func NewDispatcher(log *slog.Logger, connections contract.IConnectionRegistry,
	rooms contract.IRoomRegistry, monitoring *observability.Monitoring) *Dispatcher {
	return &Dispatcher{log: log, connections: connections, rooms: rooms, monitoring: monitoring}
}

// SendTo delivers e to every open connection of every given user.
func (d *Dispatcher) SendTo(users []domain.UserID, e event.OutboundEvent) {
	data, ok := d.encode(e)
	if !ok {
		return
	}
	for _, user := range lo.Uniq(users) {
		conns, _ := d.connections.ListConnections(user)
		for _, conn := range conns {
			d.deliver(conn, data, e.Type())
		}
	}
}

// SendToConnection delivers e to a single connection.
func (d *Dispatcher) SendToConnection(conn contract.Connection, e event.OutboundEvent) {
	data, ok := d.encode(e)
	if !ok {
		return
	}
	d.deliver(conn, data, e.Type())
}

func (d *Dispatcher) BroadcastToRoom(room domain.RoomID, e event.OutboundEvent) {
	d.BroadcastToRoomExcluding(room, e, nil)
}

// BroadcastToRoomExcluding delivers e to the room members that are not in excluded.
func (d *Dispatcher) BroadcastToRoomExcluding(room domain.RoomID, e event.OutboundEvent, excluded []domain.UserID) {
	members, ok := d.rooms.MembersOf(room)
	if !ok {
		return
	}
	d.SendTo(lo.Without(members, excluded...), e)
}

// SendToAllExceptOneConnection delivers e to every connection of user but conn.
// The sender's other devices stay in sync without echoing back to the tab that sent.
func (d *Dispatcher) SendToAllExceptOneConnection(user domain.UserID, conn contract.Connection, e event.OutboundEvent) {
	conns, ok := d.connections.ListConnections(user)
	if !ok {
		return
	}
	others := lo.Filter(conns, func(c contract.Connection, _ int) bool { return c != conn })
	if len(others) == 0 {
		return
	}
	data, ok := d.encode(e)
	if !ok {
		return
	}
	for _, c := range others {
		d.deliver(c, data, e.Type())
	}
}

func (d *Dispatcher) encode(e event.OutboundEvent) ([]byte, bool) {
	data, err := event.Encode(e)
	if err != nil {
		d.log.Error("Unable to encode outbound event", "type", e.Type(), "error", err)
		return nil, false
	}
	return data, true
}

func (d *Dispatcher) deliver(conn contract.Connection, data []byte, t event.OutType) {
	if err := safeSend(conn, data); err != nil {
		d.monitoring.IncrSendFailure()
		d.log.Debug("Send failed", "connection", conn.ID(), "type", t, "error", err)
		return
	}
	d.monitoring.IncrSent()
}

func safeSend(conn contract.Connection, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrConnectionClosed, r)
		}
	}()
	return conn.Send(data)
}
