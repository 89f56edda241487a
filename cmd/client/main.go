package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"match-chat/client"
	"match-chat/domain"
	"match-chat/domain/event"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL   string `env:"CHAT_SERVER_URL,default=ws://localhost:8080/ws"`
	Origin      string `env:"CHAT_ORIGIN,default=http://localhost:3000"`
	CookieName  string `env:"CHAT_SESSION_COOKIE,default=connect.sid"`
	SessionID   string `env:"CHAT_SESSION_ID,required=true"`
	Subprotocol string `env:"CHAT_SUBPROTOCOL,default=echo-protocol"`
	LogLevel    string `env:"LOG_LEVEL,default=INFO"`
}

const usage = `commands:
  /init           request the conversations snapshot
  /room <id>      select the conversation new lines are sent to
  /quit           close the connection
  anything else   sent as a message to the selected conversation`

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run dials the server, prints every received event and turns stdin lines into frames.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect. An unknown session is not refused, the server just never answers.
	c, resp, err := client.Dial(ctx, client.Config{
		URL:         config.ServerURL,
		Origin:      config.Origin,
		CookieName:  config.CookieName,
		Credential:  client.Credential(config.SessionID),
		Subprotocol: config.Subprotocol,
	})
	if err != nil {
		if resp != nil {
			return exitRuntime, fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing connection...")
		_ = c.Close(websocket.CloseGoingAway, "client exit")
	}()

	color.Green.Printf(">>> Connected to %s (Ctrl+C to quit)\n", config.ServerURL)
	fmt.Println(usage)

	// 4. Reception loop.
	errChan := make(chan error, 1)
	go func() {
		for {
			e, err := c.Next(24 * time.Hour)
			if err != nil {
				errChan <- err
				return
			}
			render(e)
		}
	}()

	// 5. Input loop.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var room string
	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-errChan:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection lost: %w", err)
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			var err error
			room, err = handleLine(c, room, strings.TrimSpace(line))
			if errors.Is(err, errQuit) {
				return exitOK, nil
			}
			if err != nil {
				color.Red.Println(err)
			}
		}
	}
}

var errQuit = errors.New("quit")

// handleLine returns the selected room after line has been processed.
func handleLine(c *client.Client, room, line string) (string, error) {
	switch {
	case line == "":
		return room, nil
	case line == "/quit":
		return room, errQuit
	case line == "/init":
		return room, c.Init()
	case strings.HasPrefix(line, "/room "):
		room = strings.TrimSpace(strings.TrimPrefix(line, "/room "))
		color.Cyan.Printf("now talking in %s\n", room)
		return room, nil
	case room == "":
		return room, fmt.Errorf("select a conversation with /room <id> first")
	default:
		return room, c.SendMessage(room, line)
	}
}

func render(e client.Event) {
	switch e.Type {
	case event.Conversations:
		var payload struct {
			Conversations []domain.ConversationSnapshot `json:"conversations"`
		}
		if json.Unmarshal(e.Payload, &payload) != nil {
			break
		}
		color.Green.Printf("%d conversation(s)\n", len(payload.Conversations))
		for _, conv := range payload.Conversations {
			names := make([]string, 0, len(conv.Users))
			for _, u := range conv.Users {
				names = append(names, u.Username)
			}
			fmt.Printf("  %s  %s  (%d messages)\n", conv.UUID, strings.Join(names, ", "), len(conv.Messages))
		}
		return
	case event.NewMessage:
		var m struct {
			ConversationID string `json:"conversationId"`
			domain.ChatMessage
		}
		if json.Unmarshal(e.Payload, &m) != nil {
			break
		}
		at := time.UnixMilli(m.CreatedAt).Format(time.TimeOnly)
		color.Yellow.Printf("[%s] %s@%s: ", at, m.AuthorUsername, m.ConversationID)
		fmt.Println(m.Payload)
		return
	case event.NewNotification:
		var n domain.Notification
		if json.Unmarshal(e.Payload, &n) != nil {
			break
		}
		color.Magenta.Printf("🔔 %s\n", n.Message)
		return
	}
	color.Gray.Printf("%s %s\n", e.Type, string(e.Payload))
}
