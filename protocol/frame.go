// Package protocol decodes and validates inbound frames.
// A frame is accepted only when it matches one alternative of the union:
//
//	{"type":"INIT"}
//	{"type":"NEW_MESSAGE","payload":{"conversationId":"<uuid>","message":"<text>"}}
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type frame struct {
	Type    string          `json:"type" validate:"required,oneof=INIT NEW_MESSAGE"`
	Payload json.RawMessage `json:"payload"`
}

type newMessagePayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Message        string `json:"message" validate:"required"`
}

// Decode parses a text frame into a typed inbound event.
// Every failure wraps errors.ErrInvalidFrame.
func Decode(data []byte) (event.InboundEvent, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", errors.ErrInvalidFrame)
	}
	var f frame
	if err := decodeStrict(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}

	switch event.InType(f.Type) {
	case event.Init:
		return event.InitRequested{}, nil
	case event.NewMessageType:
		return decodeNewMessage(f.Payload)
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedFrame, f.Type)
	}
}

func decodeNewMessage(raw json.RawMessage) (event.InboundEvent, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing payload", errors.ErrInvalidFrame)
	}
	var p newMessagePayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}
	return event.MessageSubmitted{
		ConversationID: domain.RoomID(p.ConversationID),
		Message:        p.Message,
	}, nil
}

// decodeStrict refuses keys the target does not declare and anything after the first value.
func decodeStrict(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("unexpected data after the frame")
	}
	return nil
}
