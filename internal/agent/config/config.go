package config

import (
	"errors"

	"github.com/lapworks/lapstream-go/internal/agent/wsserver"
	"github.com/lapworks/lapstream-go/internal/feed"
	"github.com/lapworks/lapstream-go/internal/storage"
)

// Default values for sections owned by this package.
const (
	DefaultDataDir   = "/var/lib/lapstream/data"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// AgentConfig is the root configuration for lapstream-agent.
type AgentConfig struct {
	Feed    feed.Config     `koanf:"feed"`
	Fanout  wsserver.Config `koanf:"fanout"`
	Storage storage.Config  `koanf:"storage"`
	Log     LogSection      `koanf:"log"`
}

// LogSection configures logging behavior.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the default agent configuration. The simulator
// address has no sensible default and must be provided.
func Default() *AgentConfig {
	return &AgentConfig{
		Feed:    feed.DefaultConfig(),
		Fanout:  wsserver.DefaultConfig(),
		Storage: storage.DefaultConfig(DefaultDataDir),
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Verify validates the configuration.
func Verify(cfg *AgentConfig) error {
	if err := cfg.Feed.Verify(); err != nil {
		return errors.New("feed: " + err.Error())
	}
	if err := cfg.Fanout.Verify(); err != nil {
		return errors.New("fanout: " + err.Error())
	}
	if cfg.Storage.Dir == "" {
		return errors.New("storage: dir is required")
	}
	return nil
}
