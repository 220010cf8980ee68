// Package app assembles the bot: configuration, infrastructure, capability
// clients and the conversation router, exposed through the core runner
// contract.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/pasindu8/telegrambot/bot/ai"
	"github.com/pasindu8/telegrambot/bot/ops"
	"github.com/pasindu8/telegrambot/bot/relay"
	coreconfig "github.com/pasindu8/telegrambot/core/config"
	coredatabase "github.com/pasindu8/telegrambot/core/database"
)

// Config is the full application configuration: the reusable core settings
// plus the bot's own capability sections.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Relay    relay.Config        `yaml:"relay"`
	AI       ai.Config           `yaml:"ai"`
	Ops      ops.Config          `yaml:"ops"`

	// SessionTTLMinutes bounds how long an unanswered question keeps a chat
	// mid-flow; 0 uses the default.
	SessionTTLMinutes int `yaml:"session_ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// SessionTTL returns the configured session expiry as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// LoadConfig reads the YAML file at path and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("app: parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("app: process env: %w", err)
	}
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if cfg.SessionTTLMinutes < 0 {
		return nil, fmt.Errorf("app: session_ttl_minutes must be >= 0")
	}
	return &cfg, nil
}
