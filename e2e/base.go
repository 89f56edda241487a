package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"match-chat/api"
	"match-chat/auth"
	"match-chat/client"
	"match-chat/domain"
	"match-chat/domain/event"
	"match-chat/gateway"
	"match-chat/internal"
	"match-chat/internal/server"
	"match-chat/repositories"
	"match-chat/session"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

const (
	origin         = "http://localhost:3000"
	cookieName     = "connect.sid"
	subprotocol    = "echo-protocol"
	internalSecret = "e2e-secret"
)

// BaseSuite runs the whole server in process: Badger in memory, in-memory sessions,
// the real gateway and the real HTTP API behind an httptest server.
type BaseSuite struct {
	suite.Suite
	Config       Config
	Repository   *repositories.ChatRepository
	Sessions     *session.MemoryStore
	Orchestrator *server.Orchestrator
	server       *httptest.Server
	db           *badger.DB
	clients      []*client.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

func (s *BaseSuite) SetupTest() {
	var err error
	s.db, err = badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	var limit *int
	if s.Config.LimitMessages > 0 {
		limit = &s.Config.LimitMessages
	}
	s.Repository = repositories.NewChatRepository(s.db, log, limit)
	s.Sessions = session.NewMemoryStore()
	s.Orchestrator = server.NewOrchestrator(log, server.Options{
		Gateway: gateway.Config{AllowedOrigins: []string{origin}, CookieName: cookieName, Subprotocol: subprotocol},
		Transport: gateway.TransportConfig{
			Subprotocol:    subprotocol,
			SendBufferSize: 32,
			WriteTimeout:   time.Second,
			PongTimeout:    time.Minute,
			MaxFrameSize:   64 * 1024,
		},
		API:             api.Config{WSPath: "/ws", InternalSecret: []byte(internalSecret)},
		MetricInterval:  time.Minute,
		ShutdownTimeout: time.Second,
	}, session.NewResolver(log, s.Sessions), s.Repository, s.Repository)
	s.server = httptest.NewServer(s.Orchestrator.Handler(internal.NewInspectHandler(s.db, nil, s.Orchestrator.Stats)))
}

func (s *BaseSuite) TearDownTest() {
	for _, c := range s.clients {
		_ = c.Close(1000, "test done")
	}
	s.clients = nil
	s.server.Close()
	_ = s.db.Close()
}

// Header prints a colorized step header
func (s *BaseSuite) Header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// User stores a profile and a session for it, the session id is "sid-<id>".
func (s *BaseSuite) User(id domain.UserID, username string) {
	s.Require().NoError(s.Repository.PutUser(context.Background(), domain.ConversationUser{
		UUID: id, Username: username, ProfilePic: string(id) + ".png",
	}))
	s.Sessions.Put("sid-"+string(id), id)
}

func (s *BaseSuite) dialConfig(sid string) client.Config {
	return client.Config{
		URL:         "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws",
		Origin:      origin,
		CookieName:  cookieName,
		Credential:  client.Credential(sid),
		Subprotocol: subprotocol,
	}
}

// Connect opens a device for user, closed at the end of the test.
func (s *BaseSuite) Connect(name string, user domain.UserID) *client.Client {
	s.Header(fmt.Sprintf("%s connects", name))
	c, _, err := client.Dial(context.Background(), s.dialConfig("sid-"+string(user)))
	s.Require().NoError(err, "Failed to connect "+name)
	s.Require().Equal(subprotocol, c.Subprotocol())
	s.clients = append(s.clients, c)
	return c
}

// Expect reads the next frame of c and requires its type.
func (s *BaseSuite) Expect(c *client.Client, expected event.OutType) client.Event {
	e, err := c.Next(s.Config.EventTimeout)
	s.Require().NoError(err, "waiting for %s", expected)
	if s.Config.DebugJSON {
		s.T().Logf("<- %s %s", e.Type, string(e.Payload))
	}
	s.Require().Equal(expected, e.Type, "unexpected frame %s", string(e.Payload))
	return e
}

// Decode unmarshals the payload of e into v.
func (s *BaseSuite) Decode(e client.Event, v any) {
	s.Require().NoError(json.Unmarshal(e.Payload, v))
}

// Internal calls the internal API and returns the status code and the body.
func (s *BaseSuite) Internal(method, path string, body any) (int, []byte) {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	request, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(raw))
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")
	token, err := auth.GenerateToken([]byte(internalSecret), "e2e", time.Minute)
	s.Require().NoError(err)
	request.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.server.Client().Do(request)
	s.Require().NoError(err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	s.Require().NoError(err)
	if s.Config.DebugJSON {
		s.T().Logf("%s %s -> %d %s", method, path, resp.StatusCode, out.String())
	}
	return resp.StatusCode, out.Bytes()
}

// Get is a plain GET on the test server.
func (s *BaseSuite) Get(path string) (int, string) {
	resp, err := s.server.Client().Get(s.server.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, out.String()
}
