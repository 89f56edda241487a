package main

import (
	"fmt"
	"match-chat/internal"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	backendRedis    = "redis"
	backendMemory   = "memory"
	backendBadger   = "badger"
	backendPostgres = "postgres"
	backendStore    = "store"
)

type Config struct {
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8080" validate:"min=1,max=65535"`
	WSPath         string `env:"WS_PATH,default=/ws" validate:"startswith=/"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,required=true" validate:"required"`
	Subprotocol    string `env:"SUBPROTOCOL,default=echo-protocol" validate:"required"`
	SessionCookie  string `env:"SESSION_COOKIE,default=connect.sid" validate:"required"`
	// InternalSecret signs the service tokens of the internal API, empty leaves it open.
	InternalSecret string `env:"INTERNAL_SECRET"`

	SessionBackend string `env:"SESSION_BACKEND,default=redis" validate:"oneof=redis memory"`
	// SessionSeed preloads the memory backend, "key=user" pairs separated by commas.
	SessionSeed        string        `env:"SESSION_SEED"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB,default=0"`
	RedisSessionPrefix string        `env:"REDIS_SESSION_PREFIX,default=sess:"`
	RedisPresenceTTL   time.Duration `env:"REDIS_PRESENCE_TTL,default=2m"`

	StoreBackend    string `env:"STORE_BACKEND,default=badger" validate:"oneof=badger postgres"`
	BadgerFilepath  string `env:"BADGER_FILEPATH" validate:"required_if=StoreBackend badger"`
	DatabaseURL     string `env:"DATABASE_URL" validate:"required_if=StoreBackend postgres"`
	PresenceBackend string `env:"PRESENCE_BACKEND,default=store" validate:"oneof=store redis"`
	LimitMessages   *int   `env:"LIMIT_MESSAGES"`

	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=64" validate:"min=1"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	PongTimeout     time.Duration `env:"PONG_TIMEOUT,default=60s" validate:"gt=0"`
	MaxFrameSize    int64         `env:"MAX_FRAME_SIZE,default=65536" validate:"min=1"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gt=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`

	// ModerationWords is a comma list of words masked in every message, empty disables moderation.
	ModerationWords       string `env:"MODERATION_WORDS"`
	ModerationReplacement string `env:"MODERATION_REPLACEMENT,default=*"`
}

// Validate checks the combinations go-env cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if len(c.Origins()) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS must list at least one origin")
	}
	if c.needsRedis() && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when a redis backend is selected")
	}
	if _, err := c.Sessions(); err != nil {
		return err
	}
	if _, err := c.Replacement(); err != nil {
		return err
	}
	return nil
}

// Replacement is the single character forbidden words are masked with.
func (c Config) Replacement() (rune, error) {
	r := []rune(c.ModerationReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf("MODERATION_REPLACEMENT must be a single character, got %q", c.ModerationReplacement)
	}
	return r[0], nil
}

func (c Config) Origins() []string {
	return internal.SplitList(c.AllowedOrigins)
}

// Sessions parses SESSION_SEED.
func (c Config) Sessions() (map[string]string, error) {
	return internal.ParsePairs(c.SessionSeed)
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) needsRedis() bool {
	return c.SessionBackend == backendRedis || c.PresenceBackend == backendRedis
}
