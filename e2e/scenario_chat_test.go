package e2e

import (
	"context"
	"encoding/json"
	"match-chat/client"
	"match-chat/domain"
	"match-chat/domain/event"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type testChatSuite struct {
	BaseSuite
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, &testChatSuite{})
}

type newMessage struct {
	ConversationID domain.RoomID `json:"conversationId"`
	domain.ChatMessage
}

type conversations struct {
	Conversations []domain.ConversationSnapshot `json:"conversations"`
}

// open creates the alice/bob conversation through the internal API.
func (s *testChatSuite) open() domain.ConversationSnapshot {
	status, body := s.Internal(http.MethodPost, "/internal/conversations", map[string]string{"userA": "alice", "userB": "bob"})
	s.Require().Equal(http.StatusCreated, status, string(body))
	var conversation domain.ConversationSnapshot
	s.Require().NoError(json.Unmarshal(body, &conversation))
	return conversation
}

func (s *testChatSuite) TestMultiDeviceMessaging() {
	s.User("alice", "Alice")
	s.User("bob", "Bob")

	var room domain.RoomID
	alice := s.Connect("alice laptop", "alice")

	s.Run("Step 1: INIT on a fresh account returns an empty snapshot", func() {
		s.Require().NoError(alice.Init())
		var snapshot conversations
		s.Decode(s.Expect(alice, event.Conversations), &snapshot)
		s.Require().Empty(snapshot.Conversations)

		user, err := s.Repository.GetUser(context.Background(), "alice")
		s.Require().NoError(err)
		s.Require().True(user.Online)
	})

	s.Run("Step 2: a match opens the conversation on the live device", func() {
		room = s.open().UUID
		var created domain.ConversationSnapshot
		s.Decode(s.Expect(alice, event.NewConversation), &created)
		s.Require().Equal(room, created.UUID)
		s.Require().Equal([]domain.UserID{"alice", "bob"}, created.MemberIDs())
		s.Require().Empty(created.Messages)
	})

	bobPhone := s.Connect("bob phone", "bob")
	bobLaptop := s.Connect("bob laptop", "bob")
	aliceTablet := s.Connect("alice tablet", "alice")

	s.Run("Step 3: every device of bob gets the snapshot", func() {
		for _, c := range []*client.Client{bobPhone, bobLaptop} {
			s.Require().NoError(c.Init())
			var snapshot conversations
			s.Decode(s.Expect(c, event.Conversations), &snapshot)
			s.Require().Len(snapshot.Conversations, 1)
			s.Require().Equal(room, snapshot.Conversations[0].UUID)
		}
		s.Require().NoError(aliceTablet.Init())
		s.Expect(aliceTablet, event.Conversations)
	})

	s.Run("Step 4: a message reaches the peer devices and the sender's other devices", func() {
		s.Require().NoError(alice.SendMessage(string(room), "  hello bob  "))

		for _, c := range []*client.Client{bobPhone, bobLaptop} {
			var m newMessage
			s.Decode(s.Expect(c, event.NewMessage), &m)
			s.Require().Equal(room, m.ConversationID)
			s.Require().Equal("hello bob", m.Payload)
			s.Require().Equal(domain.UserID("alice"), m.AuthorUUID)
			s.Require().Equal("Alice", m.AuthorUsername)

			var n domain.Notification
			s.Decode(s.Expect(c, event.NewNotification), &n)
			s.Require().Equal(domain.GotMessage, n.Type)
			s.Require().Equal("Alice sent you a message", n.Message)
		}

		var m newMessage
		s.Decode(s.Expect(aliceTablet, event.NewMessage), &m)
		s.Require().Equal("hello bob", m.Payload)
	})

	s.Run("Step 5: over-length and malformed frames are dropped silently", func() {
		s.Require().NoError(bobPhone.SendMessage(string(room), strings.Repeat("x", 256)))
		s.Require().NoError(bobPhone.WriteRaw([]byte(`{"type":"NEW_MESSAGE"}`)))
		s.Require().NoError(bobPhone.WriteRaw([]byte(`not json`)))
		s.Require().NoError(bobPhone.SendMessage(string(room), strings.Repeat("é", 255)))

		// The first frame alice sees is the valid one
		var m newMessage
		s.Decode(s.Expect(alice, event.NewMessage), &m)
		s.Require().Equal(strings.Repeat("é", 255), m.Payload)
		s.Decode(s.Expect(bobLaptop, event.NewMessage), &m)
		s.Require().Equal(strings.Repeat("é", 255), m.Payload)
		s.Require().GreaterOrEqual(s.Orchestrator.Monitoring.Snapshot().FramesDropped, uint64(2))
	})

	s.Run("Step 6: the history survives a reconnect", func() {
		late := s.Connect("bob tablet", "bob")
		s.Require().NoError(late.Init())
		var snapshot conversations
		s.Decode(s.Expect(late, event.Conversations), &snapshot)
		s.Require().Len(snapshot.Conversations, 1)
		messages := snapshot.Conversations[0].Messages
		s.Require().Len(messages, 2)
		s.Require().Equal("hello bob", messages[0].Payload)
	})

	s.Run("Step 7: presence drops only with the last device", func() {
		s.Require().NoError(alice.Close(websocket.CloseGoingAway, "tab closed"))
		time.Sleep(100 * time.Millisecond)
		user, err := s.Repository.GetUser(context.Background(), "alice")
		s.Require().NoError(err)
		s.Require().True(user.Online)

		s.Require().NoError(aliceTablet.Close(websocket.CloseGoingAway, "tab closed"))
		s.Require().Eventually(func() bool {
			user, err := s.Repository.GetUser(context.Background(), "alice")
			return err == nil && !user.Online
		}, s.Config.EventTimeout, 20*time.Millisecond)
	})
}

func (s *testChatSuite) TestUnmatchAndNotifications() {
	s.User("alice", "Alice")
	s.User("bob", "Bob")
	room := s.open().UUID

	alice := s.Connect("alice", "alice")
	bob := s.Connect("bob", "bob")
	for _, c := range []*client.Client{alice, bob} {
		s.Require().NoError(c.Init())
		s.Expect(c, event.Conversations)
	}

	s.Run("Step 1: a profile event is pushed to the target", func() {
		status, body := s.Internal(http.MethodPost, "/internal/notifications",
			map[string]string{"target": "bob", "source": "alice", "type": "GOT_LIKE"})
		s.Require().Equal(http.StatusAccepted, status, string(body))

		var n domain.Notification
		s.Decode(s.Expect(bob, event.NewNotification), &n)
		s.Require().Equal("Alice liked your profile", n.Message)
		s.Require().False(n.Seen)
	})

	s.Run("Step 2: an unmatch deletes the conversation on both sides", func() {
		status, body := s.Internal(http.MethodDelete, "/internal/conversations", map[string]string{"userA": "bob", "userB": "alice"})
		s.Require().Equal(http.StatusOK, status, string(body))
		s.Require().JSONEq(`{"rooms":["`+string(room)+`"]}`, string(body))

		for _, c := range []*client.Client{alice, bob} {
			var deleted struct {
				UUID domain.RoomID `json:"uuid"`
			}
			s.Decode(s.Expect(c, event.DeleteConversation), &deleted)
			s.Require().Equal(room, deleted.UUID)
		}

		status, _ = s.Internal(http.MethodDelete, "/internal/conversations", map[string]string{"userA": "bob", "userB": "alice"})
		s.Require().Equal(http.StatusOK, status)
	})

	s.Run("Step 3: messages to a deleted conversation go nowhere", func() {
		s.Require().NoError(alice.SendMessage(string(room), "still there?"))

		// The next frame bob gets is the visit, not the message
		status, _ := s.Internal(http.MethodPost, "/internal/notifications",
			map[string]string{"target": "bob", "source": "alice", "type": "GOT_VISIT"})
		s.Require().Equal(http.StatusAccepted, status)
		var n domain.Notification
		s.Decode(s.Expect(bob, event.NewNotification), &n)
		s.Require().Equal(domain.GotVisit, n.Type)
	})

	s.Run("Step 4: a blocked source cannot notify", func() {
		s.Require().NoError(s.Repository.Block(context.Background(), "bob", "alice"))
		status, _ := s.Internal(http.MethodPost, "/internal/notifications",
			map[string]string{"target": "bob", "source": "alice", "type": "GOT_LIKE"})
		s.Require().Equal(http.StatusForbidden, status)

		status, _ = s.Internal(http.MethodPost, "/internal/notifications",
			map[string]string{"target": "bob", "source": "bob", "type": "GOT_LIKE"})
		s.Require().Equal(http.StatusBadRequest, status)
	})
}

func (s *testChatSuite) TestHandshake() {
	s.User("alice", "Alice")

	s.Run("Step 1: a foreign origin is refused", func() {
		config := s.dialConfig("sid-alice")
		config.Origin = "https://evil.example"
		_, resp, err := client.Dial(context.Background(), config)
		s.Require().ErrorIs(err, websocket.ErrBadHandshake)
		s.Require().Equal(http.StatusForbidden, resp.StatusCode)
	})

	s.Run("Step 2: an unknown session gets no answer at all", func() {
		_, resp, err := client.Dial(context.Background(), s.dialConfig("sid-nobody"))
		s.Require().Error(err)
		s.Require().Nil(resp)
	})

	s.Run("Step 3: a malformed cookie gets no answer either", func() {
		config := s.dialConfig("")
		config.Credential = "garbage"
		_, resp, err := client.Dial(context.Background(), config)
		s.Require().Error(err)
		s.Require().Nil(resp)
	})

	s.Run("Step 4: debug endpoints report the counters", func() {
		status, body := s.Get("/debug/stats")
		s.Require().Equal(http.StatusOK, status)
		s.Require().Contains(body, `"connections_rejected":1`)
		s.Require().Contains(body, `"connections_ignored":2`)

		status, body = s.Get("/debug/inspect?prefix=user:")
		s.Require().Equal(http.StatusOK, status)
		s.Require().Contains(body, "alice")
	})
}
