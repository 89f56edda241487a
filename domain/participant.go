// Package domain contains core concepts of the chat system.
// No runtime, network, or persistence logic should be added here.
package domain

// UserID is the stable identity of an authenticated user, as supplied by the session store.
type UserID string

// RoomID identifies a conversation. Rooms are created by the persistence layer.
type RoomID string

func (u UserID) String() string { return string(u) }

func (r RoomID) String() string { return string(r) }
