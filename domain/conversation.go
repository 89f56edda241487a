package domain

type ConversationUser struct {
	UUID       UserID `json:"uuid"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic"`
}

// ChatMessage is a persisted message as exposed on the wire.
// CreatedAt is expressed in epoch milliseconds.
type ChatMessage struct {
	UUID           string `json:"uuid"`
	AuthorUUID     UserID `json:"authorUuid"`
	AuthorUsername string `json:"authorUsername"`
	Payload        string `json:"payload"`
	CreatedAt      int64  `json:"createdAt"`
}

type ConversationSnapshot struct {
	UUID     RoomID             `json:"uuid"`
	Users    []ConversationUser `json:"users"`
	Messages []ChatMessage      `json:"messages"`
}

// NewConversationSnapshot never leaves Users or Messages nil, clients expect JSON arrays.
func NewConversationSnapshot(id RoomID, users []ConversationUser, messages []ChatMessage) ConversationSnapshot {
	if users == nil {
		users = []ConversationUser{}
	}
	if messages == nil {
		messages = []ChatMessage{}
	}
	return ConversationSnapshot{UUID: id, Users: users, Messages: messages}
}

// MemberIDs returns the identities of the conversation users.
func (c ConversationSnapshot) MemberIDs() []UserID {
	ids := make([]UserID, 0, len(c.Users))
	for _, u := range c.Users {
		ids = append(ids, u.UUID)
	}
	return ids
}
