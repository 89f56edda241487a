package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"match-chat/internal"
	"match-chat/repositories"
	"net/http"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH"`
	DebugPort      int    `env:"DEBUG_PORT,default=8081"`
	LogLevel       string `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	// 1. Load config, flags win over the environment
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if config.BadgerFilepath == "" {
		config.BadgerFilepath = database.DefaultPath
	}

	var q query
	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	serve := flag.Bool("serve", false, "Serve the HTML inspector instead of printing a table")
	flag.StringVar(&q.what, "what", "users", "users | conversations | messages | notifications | raw")
	flag.StringVar(&q.user, "user", "", "User for conversations and notifications")
	flag.StringVar(&q.room, "room", "", "Conversation for messages")
	flag.StringVar(&q.prefix, "prefix", internal.DefaultPrefix, "Key prefix for raw")
	flag.BoolVar(&q.all, "all", false, "Follow cursors until the first message")
	flag.Parse()

	// 2. Open Badger in Read-Only mode, next to a running server if needed
	db, err := badger.Open(internal.BadgerOptions(*dbPath, true, false))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if *serve {
		stats := func() map[string]any {
			return map[string]any{
				"Status": "Viewer Mode (Read-Only)",
				"Time":   time.Now().Format(time.RFC822),
			}
		}
		mux := http.NewServeMux()
		mux.Handle("/inspect", internal.NewInspectHandler(db, nil, stats))
		fmt.Printf("Viewer started at http://localhost:%d/inspect\n", config.DebugPort)
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", config.DebugPort), mux))
	}

	// 3. Dump a table
	repository := repositories.NewChatRepository(db, logs.GetLoggerFromString(config.LogLevel), nil)
	if err = dump(context.Background(), os.Stdout, db, repository, q); err != nil {
		log.Fatal(err)
	}
}
