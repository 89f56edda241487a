package runtime

import (
	"match-chat/domain"
	"sync"

	"github.com/samber/lo"
)

type Set map[domain.UserID]struct{}

// RoomRegistry maps a conversation to the users subscribed to its broadcasts.
// Membership is only changed by explicit calls, never inferred from connections.
type RoomRegistry struct {
	mu          sync.RWMutex
	roomMembers map[domain.RoomID]Set
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{roomMembers: make(map[domain.RoomID]Set)}
}

// Subscribe adds user to room. Subscribing twice has no further effect.
func (r *RoomRegistry) Subscribe(room domain.RoomID, user domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribeLocked(room, user)
}

func (r *RoomRegistry) SubscribeMany(room domain.RoomID, users []domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range users {
		r.subscribeLocked(room, user)
	}
}

func (r *RoomRegistry) subscribeLocked(room domain.RoomID, user domain.UserID) {
	members, ok := r.roomMembers[room]
	if !ok {
		members = make(Set)
		r.roomMembers[room] = members
	}
	members[user] = struct{}{}
}

// Unsubscribe removes user from room. Unknown rooms or users are ignored.
// A room left without members is dropped.
func (r *RoomRegistry) Unsubscribe(room domain.RoomID, user domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(room, user)
}

func (r *RoomRegistry) unsubscribeLocked(room domain.RoomID, user domain.UserID) {
	members, ok := r.roomMembers[room]
	if !ok {
		return
	}
	delete(members, user)
	if len(members) == 0 {
		delete(r.roomMembers, room)
	}
}

// UnsubscribePairFromSharedRooms removes both users from every room they are both members of
// and returns those rooms. Rooms holding only one of them are left untouched.
func (r *RoomRegistry) UnsubscribePairFromSharedRooms(userA, userB domain.UserID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var shared []domain.RoomID
	for room, members := range r.roomMembers {
		_, hasA := members[userA]
		_, hasB := members[userB]
		if hasA && hasB {
			shared = append(shared, room)
		}
	}
	for _, room := range shared {
		r.unsubscribeLocked(room, userA)
		r.unsubscribeLocked(room, userB)
	}
	return shared
}

// MembersOf returns a copy of the room members, false when the room is unknown.
func (r *RoomRegistry) MembersOf(room domain.RoomID) ([]domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.roomMembers[room]
	if !ok {
		return nil, false
	}
	return lo.Keys(members), true
}

// Count returns the number of rooms with at least one member.
func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomMembers)
}
