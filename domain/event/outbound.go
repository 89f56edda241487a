// Package event defines the frames exchanged over a realtime connection.
// Outbound and inbound frames are discriminated unions keyed by a "type" field.
package event

import (
	"encoding/json"
	"match-chat/domain"
)

type OutType string

const (
	Conversations      OutType = "CONVERSATIONS"
	NewMessage         OutType = "NEW_MESSAGE"
	NewNotification    OutType = "NEW_NOTIFICATION"
	NewConversation    OutType = "NEW_CONVERSATION"
	DeleteConversation OutType = "DELETE_CONVERSATION"
)

// OutboundEvent is any server to client frame.
type OutboundEvent interface {
	Type() OutType
	Payload() any
}

type envelope struct {
	Type    OutType `json:"type"`
	Payload any     `json:"payload"`
}

// Encode serializes an outbound event as {"type": ..., "payload": ...}.
func Encode(e OutboundEvent) ([]byte, error) {
	return json.Marshal(envelope{Type: e.Type(), Payload: e.Payload()})
}

type ConversationsSnapshot struct {
	Conversations []domain.ConversationSnapshot
}

func (ConversationsSnapshot) Type() OutType { return Conversations }

func (e ConversationsSnapshot) Payload() any {
	conversations := e.Conversations
	if conversations == nil {
		conversations = []domain.ConversationSnapshot{}
	}
	return struct {
		Conversations []domain.ConversationSnapshot `json:"conversations"`
	}{Conversations: conversations}
}

type MessageCreated struct {
	ConversationID domain.RoomID
	Message        domain.ChatMessage
}

func (MessageCreated) Type() OutType { return NewMessage }

func (e MessageCreated) Payload() any {
	return struct {
		ConversationID domain.RoomID `json:"conversationId"`
		domain.ChatMessage
	}{ConversationID: e.ConversationID, ChatMessage: e.Message}
}

type NotificationCreated struct {
	Notification domain.Notification
}

func (NotificationCreated) Type() OutType { return NewNotification }

func (e NotificationCreated) Payload() any { return e.Notification }

type ConversationCreated struct {
	Conversation domain.ConversationSnapshot
}

func (ConversationCreated) Type() OutType { return NewConversation }

func (e ConversationCreated) Payload() any { return e.Conversation }

type ConversationDeleted struct {
	ConversationID domain.RoomID
}

func (ConversationDeleted) Type() OutType { return DeleteConversation }

func (e ConversationDeleted) Payload() any {
	return struct {
		UUID domain.RoomID `json:"uuid"`
	}{UUID: e.ConversationID}
}
