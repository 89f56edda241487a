package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Handshake
	ErrOriginNotAllowed  = fmt.Errorf("origin not allowed")
	ErrMissingCredential = fmt.Errorf("missing session credential")
	ErrMalformedCookie   = fmt.Errorf("malformed session cookie")
	ErrSessionNotFound   = fmt.Errorf("session not found")
	ErrUnresolvedSession = fmt.Errorf("session could not be resolved")

	// Frames
	ErrInvalidFrame     = fmt.Errorf("invalid frame")
	ErrUnsupportedFrame = fmt.Errorf("unsupported frame type")
	ErrMessageTooLong   = fmt.Errorf("message exceeds maximum length")
	ErrEmptyMessage     = fmt.Errorf("message is empty")

	// Delivery
	ErrSendBufferFull   = fmt.Errorf("send buffer full")
	ErrConnectionClosed = fmt.Errorf("connection closed")

	// Persistence
	ErrUserNotFound            = fmt.Errorf("user not found")
	ErrConversationNotFound    = fmt.Errorf("conversation not found")
	ErrConversationExists      = fmt.Errorf("conversation already exists")
	ErrNotAMember              = fmt.Errorf("user is not a member of the conversation")
	ErrNotificationRefused     = fmt.Errorf("notification refused")
	ErrSameUser                = fmt.Errorf("a conversation needs two distinct users")
	ErrUnknownNotificationType = fmt.Errorf("unknown notification type")

	// Internal API
	ErrInvalidToken = fmt.Errorf("invalid service token")
)
