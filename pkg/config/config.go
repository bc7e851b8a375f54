// Package config defines the gateway configuration: server binding,
// bootstrap agent list, routing weights, transport timeouts, session
// lifecycle, observability, and logging. Files are YAML with ${ENV}
// expansion; every field has a working default so a config file is optional.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aktasdeniz/maestro/pkg/observability"
	"github.com/aktasdeniz/maestro/pkg/router"
)

// DefaultAgentsEnv seeds the bootstrap list when the config names none.
// Comma-separated agent base URLs.
const DefaultAgentsEnv = "MAESTRO_DEFAULT_AGENTS"

// Config is the root configuration document.
type Config struct {
	Server        ServerConfig         `yaml:"server,omitempty" mapstructure:"server" json:"server,omitempty"`
	Bootstrap     BootstrapConfig      `yaml:"bootstrap,omitempty" mapstructure:"bootstrap" json:"bootstrap,omitempty"`
	Routing       router.Weights       `yaml:"routing,omitempty" mapstructure:"routing" json:"routing,omitempty"`
	Transport     TransportConfig      `yaml:"transport,omitempty" mapstructure:"transport" json:"transport,omitempty"`
	Sessions      SessionConfig        `yaml:"sessions,omitempty" mapstructure:"sessions" json:"sessions,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty" mapstructure:"observability" json:"observability,omitempty"`
	Logging       LoggingConfig        `yaml:"logging,omitempty" mapstructure:"logging" json:"logging,omitempty"`
}

// ServerConfig is the HTTP listener binding.
type ServerConfig struct {
	Host string `yaml:"host,omitempty" mapstructure:"host" json:"host,omitempty"`
	Port int    `yaml:"port,omitempty" mapstructure:"port" json:"port,omitempty"`
}

// BootstrapConfig lists agents registered at startup. Unreachable agents are
// skipped with a warning; the server still starts.
type BootstrapConfig struct {
	Agents []string `yaml:"agents,omitempty" mapstructure:"agents" json:"agents,omitempty"`
}

// TransportConfig tunes the downstream A2A client.
type TransportConfig struct {
	SendTimeout      time.Duration `yaml:"send_timeout,omitempty" mapstructure:"send_timeout" json:"send_timeout,omitempty"`
	PollInterval     time.Duration `yaml:"poll_interval,omitempty" mapstructure:"poll_interval" json:"poll_interval,omitempty"`
	PollTimeout      time.Duration `yaml:"poll_timeout,omitempty" mapstructure:"poll_timeout" json:"poll_timeout,omitempty"`
	PollBudget       time.Duration `yaml:"poll_budget,omitempty" mapstructure:"poll_budget" json:"poll_budget,omitempty"`
	CardFetchTimeout time.Duration `yaml:"card_fetch_timeout,omitempty" mapstructure:"card_fetch_timeout" json:"card_fetch_timeout,omitempty"`
}

// SessionConfig tunes session lifecycle and history forwarding.
type SessionConfig struct {
	Timeout       time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout" json:"timeout,omitempty"`
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty" mapstructure:"sweep_interval" json:"sweep_interval,omitempty"`
	HistoryTurns  int           `yaml:"history_turns,omitempty" mapstructure:"history_turns" json:"history_turns,omitempty"`
}

// LoggingConfig configures the slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" mapstructure:"level" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" mapstructure:"format" json:"format,omitempty"`
	File   string `yaml:"file,omitempty" mapstructure:"file" json:"file,omitempty"`
}

// SetDefaults fills every unset field with its working default.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}

	if len(c.Bootstrap.Agents) == 0 {
		if env := os.Getenv(DefaultAgentsEnv); env != "" {
			for _, url := range strings.Split(env, ",") {
				if url = strings.TrimSpace(url); url != "" {
					c.Bootstrap.Agents = append(c.Bootstrap.Agents, url)
				}
			}
		}
	}

	if c.Routing == (router.Weights{}) {
		c.Routing = router.DefaultWeights()
	}

	if c.Transport.SendTimeout <= 0 {
		c.Transport.SendTimeout = 60 * time.Second
	}
	if c.Transport.PollInterval <= 0 {
		c.Transport.PollInterval = time.Second
	}
	if c.Transport.PollTimeout <= 0 {
		c.Transport.PollTimeout = 5 * time.Second
	}
	if c.Transport.PollBudget <= 0 {
		c.Transport.PollBudget = 120 * time.Second
	}
	if c.Transport.CardFetchTimeout <= 0 {
		c.Transport.CardFetchTimeout = 5 * time.Second
	}

	if c.Sessions.Timeout <= 0 {
		c.Sessions.Timeout = 24 * time.Hour
	}
	if c.Sessions.SweepInterval <= 0 {
		c.Sessions.SweepInterval = time.Hour
	}
	if c.Sessions.HistoryTurns <= 0 {
		c.Sessions.HistoryTurns = 3
	}

	c.Observability.SetDefaults()

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the configuration. Call after SetDefaults.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Server.Port)
	}

	for _, url := range c.Bootstrap.Agents {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("bootstrap: agent URL %q must start with http:// or https://", url)
		}
	}

	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("routing: %w", err)
	}

	if c.Transport.PollInterval > c.Transport.PollBudget {
		return fmt.Errorf("transport: poll_interval %s exceeds poll_budget %s",
			c.Transport.PollInterval, c.Transport.PollBudget)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging: invalid format %q (valid: text, json)", c.Logging.Format)
	}

	return nil
}
