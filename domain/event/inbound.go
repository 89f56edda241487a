package event

import "match-chat/domain"

type InType string

const (
	Init           InType = "INIT"
	NewMessageType InType = "NEW_MESSAGE"
)

// InboundEvent is a validated client to server frame.
type InboundEvent interface {
	InType() InType
}

type InitRequested struct{}

func (InitRequested) InType() InType { return Init }

type MessageSubmitted struct {
	ConversationID domain.RoomID
	Message        string
}

func (MessageSubmitted) InType() InType { return NewMessageType }
