package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_DEBUG_JSON dumps every received frame and internal API body
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_EVENT_TIMEOUT bounds every wait for a server frame
	EventTimeout time.Duration `envconfig:"E2E_EVENT_TIMEOUT" default:"3s"`
	// E2E_LIMIT_MESSAGES caps the messages of each conversation snapshot, 0 means unlimited
	LimitMessages int `envconfig:"E2E_LIMIT_MESSAGES" default:"0"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
