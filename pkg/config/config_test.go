package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Transport.SendTimeout)
	assert.Equal(t, time.Second, cfg.Transport.PollInterval)
	assert.Equal(t, 120*time.Second, cfg.Transport.PollBudget)
	assert.Equal(t, 24*time.Hour, cfg.Sessions.Timeout)
	assert.Equal(t, 3, cfg.Sessions.HistoryTurns)
	assert.Equal(t, 0.2, cfg.Routing.Threshold)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  host: 0.0.0.0
  port: 9000
routing:
  tag_match: 2.0
  skill_match: 1.5
  keyword_class_weight: 0.7
  semantic_class_weight: 0.3
  threshold: 0.3
transport:
  send_timeout: 30s
  poll_budget: 60s
sessions:
  timeout: 1h
  history_turns: 5
`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2.0, cfg.Routing.TagMatch)
	assert.Equal(t, 0.3, cfg.Routing.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Transport.SendTimeout)
	assert.Equal(t, 60*time.Second, cfg.Transport.PollBudget)
	assert.Equal(t, time.Hour, cfg.Sessions.Timeout)
	assert.Equal(t, 5, cfg.Sessions.HistoryTurns)

	// Untouched sections keep their defaults.
	assert.Equal(t, time.Second, cfg.Transport.PollInterval)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestParseExpandsEnvVars(t *testing.T) {
	t.Setenv("AGENT_HOST", "agents.internal")

	cfg, err := Parse([]byte(`
bootstrap:
  agents:
    - http://${AGENT_HOST}:8001
    - http://${MISSING_HOST:-localhost}:8002
`))
	require.NoError(t, err)

	require.Len(t, cfg.Bootstrap.Agents, 2)
	assert.Equal(t, "http://agents.internal:8001", cfg.Bootstrap.Agents[0])
	assert.Equal(t, "http://localhost:8002", cfg.Bootstrap.Agents[1])
}

func TestDefaultAgentsEnvSeedsBootstrap(t *testing.T) {
	t.Setenv(DefaultAgentsEnv, "http://localhost:8001, http://localhost:8002")

	cfg := Default()
	assert.Equal(t, []string{"http://localhost:8001", "http://localhost:8002"}, cfg.Bootstrap.Agents)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"bad bootstrap url", func(c *Config) { c.Bootstrap.Agents = []string{"ftp://agent"} }},
		{"negative weight", func(c *Config) { c.Routing.TagMatch = -1 }},
		{"threshold above one", func(c *Config) { c.Routing.Threshold = 1.5 }},
		{"poll interval exceeds budget", func(c *Config) {
			c.Transport.PollInterval = 2 * time.Minute
			c.Transport.PollBudget = time.Minute
		}},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [not a map"))
	assert.Error(t, err)
}

func TestLoaderLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maestro.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8100\n"), 0644))

	loader, err := NewLoader(path)
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 8100, cfg.Server.Port)
}

func TestLoaderMissingFile(t *testing.T) {
	loader, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	_, err = loader.Load()
	assert.Error(t, err)
}
