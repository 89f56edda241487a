package main

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/api"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/gateway"
	"match-chat/internal"
	"match-chat/internal/server"
	"match-chat/moderation"
	"match-chat/repositories"
	"match-chat/repositories/postgres"
	presence "match-chat/repositories/redis"
	"match-chat/runtime/workers"
	"match-chat/session"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// store is what the persistence collaborator has to offer to the services.
type store interface {
	contract.IChatRepository
	contract.IPresenceRepository
}

// run initializes all components and returns once the process has been signalled
// and every worker has stopped. Deferred cleanups run before main exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Redis, only when a backend needs it
	var rdb redis.UniversalClient
	if config.needsRedis() {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{config.RedisAddr},
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		defer func() {
			log.Info("Closing Redis client...")
			_ = rdb.Close()
		}()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unreachable at %s: %w", config.RedisAddr, err)
		}
	}

	// 4. Persistence collaborator
	var (
		repository store
		db         *badger.DB
	)
	switch config.StoreBackend {
	case backendPostgres:
		pool, err := pgxpool.New(ctx, config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres pool creation failed: %w", err)
		}
		defer func() {
			log.Info("Closing Postgres pool...")
			pool.Close()
		}()
		pg := postgres.NewChatRepository(pool, log, limit(config.LimitMessages))
		if err = pg.Migrate(ctx); err != nil {
			return err
		}
		repository = pg
	default:
		var err error
		db, err = badger.Open(internal.BadgerOptions(config.BadgerFilepath, false, log.Enabled(ctx, slog.LevelDebug)))
		if err != nil {
			return fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		repository = repositories.NewChatRepository(db, log, config.LimitMessages)
	}

	var presenceRepository contract.IPresenceRepository = repository
	var heartbeat time.Duration
	if config.PresenceBackend == backendRedis {
		presenceRepository = presence.NewPresenceRepository(rdb, presence.DefaultPresencePrefix, nodeID(), config.RedisPresenceTTL)
		heartbeat = config.RedisPresenceTTL / 3
	}

	// 5. Session store
	sessions, err := sessionStore(config, rdb)
	if err != nil {
		return err
	}
	resolver := session.NewResolver(log, sessions)

	// 6. Assemble gateway, services and API
	orchestrator := server.NewOrchestrator(log, server.Options{
		Gateway: gateway.Config{
			AllowedOrigins: config.Origins(),
			CookieName:     config.SessionCookie,
			Subprotocol:    config.Subprotocol,
		},
		Transport: gateway.TransportConfig{
			Subprotocol:    config.Subprotocol,
			SendBufferSize: config.SendBufferSize,
			WriteTimeout:   config.WriteTimeout,
			PongTimeout:    config.PongTimeout,
			MaxFrameSize:   config.MaxFrameSize,
		},
		API:               api.Config{WSPath: config.WSPath, InternalSecret: []byte(config.InternalSecret)},
		MetricInterval:    config.MetricInterval,
		ShutdownTimeout:   config.ShutdownTimeout,
		PresenceHeartbeat: heartbeat,
	}, resolver, repository, presenceRepository)

	replacement, _ := config.Replacement()
	moderator, err := moderation.NewModerator(internal.SplitList(config.ModerationWords), replacement)
	if err != nil {
		return fmt.Errorf("moderation dictionary: %w", err)
	}
	if moderator != nil {
		orchestrator.Chat.WithModerator(moderator)
	}

	var inspect http.Handler
	if db != nil {
		inspect = internal.NewInspectHandler(db, nil, orchestrator.Stats)
	}
	handler := orchestrator.Handler(inspect)

	// 7. Run until signalled
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(orchestrator.Workers(config.Address(), handler)...)
	log.Info("Starting chat server",
		"address", config.Address(),
		"ws_path", config.WSPath,
		"store", config.StoreBackend,
		"sessions", config.SessionBackend,
		"presence", config.PresenceBackend)
	sup.Run(ctx)

	log.Info("Program stopped cleanly", "restarts", sup.Restarts())
	return nil
}

func sessionStore(config Config, rdb redis.UniversalClient) (contract.SessionStore, error) {
	if config.SessionBackend == backendRedis {
		return session.NewRedisStore(rdb, config.RedisSessionPrefix), nil
	}
	seed, err := config.Sessions()
	if err != nil {
		return nil, err
	}
	memory := session.NewMemoryStore()
	for key, user := range seed {
		memory.Put(key, domain.UserID(user))
	}
	return memory, nil
}

func limit(limitMessages *int) int {
	if limitMessages == nil {
		return 0
	}
	return *limitMessages
}

func nodeID() string {
	host, err := os.Hostname()
	if err != nil {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
