package domain

type NotificationType string

const (
	GotLike         NotificationType = "GOT_LIKE"
	GotVisit        NotificationType = "GOT_VISIT"
	GotMessage      NotificationType = "GOT_MESSAGE"
	GotLikeMutual   NotificationType = "GOT_LIKE_MUTUAL"
	GotUnlikeMutual NotificationType = "GOT_UNLIKE_MUTUAL"
)

var notificationSuffixes = map[NotificationType]string{
	GotLike:         " liked your profile",
	GotVisit:        " is visiting your profile",
	GotMessage:      " sent you a message",
	GotLikeMutual:   " has matched with you",
	GotUnlikeMutual: " has unmatched you",
}

func (t NotificationType) IsValid() bool {
	_, ok := notificationSuffixes[t]
	return ok
}

// NotificationMessage builds the human readable text shown to the notified user.
func NotificationMessage(username string, t NotificationType) string {
	return username + notificationSuffixes[t]
}

type Notification struct {
	UUID      string           `json:"uuid"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Seen      bool             `json:"seen"`
	CreatedAt int64            `json:"createdAt"`
}
