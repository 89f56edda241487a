package repositories

import (
	"fmt"
	"match-chat/domain"
	"time"
)

// Key layout, every value is JSON:
//
//	user:{user}                     User
//	conv:{conv}                     conversationRecord
//	pair:{min(a,b)}:{max(a,b)}      conversation id shared by a pair
//	member:{user}:{conv}            empty
//	msg:{conv}:{ts19}:{uuid}        messageRecord
//	notif:{user}:{ts19}:{uuid}      domain.Notification
//	block:{blocker}:{blocked}       empty
//
// Timestamps are nanoseconds padded to 19 digits so that keys sort chronologically.
const (
	userPrefix   = "user:"
	convPrefix   = "conv:"
	pairPrefix   = "pair:"
	memberPrefix = "member:"
	msgPrefix    = "msg:"
	notifPrefix  = "notif:"
	blockPrefix  = "block:"
)

func userKey(user domain.UserID) []byte {
	return []byte(userPrefix + string(user))
}

func convKey(room domain.RoomID) []byte {
	return []byte(convPrefix + string(room))
}

func pairKey(a, b domain.UserID) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte(fmt.Sprintf("%s%s:%s", pairPrefix, a, b))
}

func memberKey(user domain.UserID, room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", memberPrefix, user, room))
}

func memberPrefixOf(user domain.UserID) []byte {
	return []byte(fmt.Sprintf("%s%s:", memberPrefix, user))
}

func msgKey(room domain.RoomID, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", msgPrefix, room, at.UnixNano(), id))
}

func msgPrefixOf(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("%s%s:", msgPrefix, room))
}

func notifKey(user domain.UserID, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", notifPrefix, user, at.UnixNano(), id))
}

func notifPrefixOf(user domain.UserID) []byte {
	return []byte(fmt.Sprintf("%s%s:", notifPrefix, user))
}

func blockKey(blocker, blocked domain.UserID) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", blockPrefix, blocker, blocked))
}
