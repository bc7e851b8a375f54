// Command maestro is the multi-agent orchestration gateway.
//
// Usage:
//
//	maestro serve --config maestro.yaml
//	maestro serve --port 8000 --log-level debug
//	maestro validate maestro.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/aktasdeniz/maestro"
	"github.com/aktasdeniz/maestro/pkg/a2a"
	"github.com/aktasdeniz/maestro/pkg/config"
	maestroctx "github.com/aktasdeniz/maestro/pkg/context"
	"github.com/aktasdeniz/maestro/pkg/httpclient"
	"github.com/aktasdeniz/maestro/pkg/logger"
	"github.com/aktasdeniz/maestro/pkg/observability"
	"github.com/aktasdeniz/maestro/pkg/orchestrator"
	"github.com/aktasdeniz/maestro/pkg/registry"
	"github.com/aktasdeniz/maestro/pkg/router"
	"github.com/aktasdeniz/maestro/pkg/transport"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the orchestration gateway."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the configuration."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (text, json)." default:"text"`
	LogFile   string `help:"Log file path (empty = stderr)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(maestro.GetVersion())
	return nil
}

// ServeCmd starts the gateway server.
type ServeCmd struct {
	Host    string `help:"Host to bind to." default:"localhost"`
	Port    int    `help:"Port to bind to." default:"8000"`
	Watch   bool   `help:"Watch config file for changes and re-bootstrap agents."`
	Observe bool   `help:"Enable observability (metrics + OTLP tracing to localhost:4317)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	// Explicit flags win over the config file.
	if c.Host != "localhost" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 8000 {
		cfg.Server.Port = c.Port
	}
	if c.Observe {
		cfg.Observability.Tracing.Enabled = true
		cfg.Observability.Metrics.Enabled = true
	}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	httpClient := httpclient.New(httpclient.WithTimeout(0))
	reg := registry.New(a2a.NewCardResolver(httpClient, cfg.Transport.CardFetchTimeout))
	sessions := maestroctx.NewManager(cfg.Sessions.Timeout)
	client := a2a.NewClient(httpClient, a2a.ClientConfig{
		SendTimeout:  cfg.Transport.SendTimeout,
		PollInterval: cfg.Transport.PollInterval,
		PollTimeout:  cfg.Transport.PollTimeout,
		PollBudget:   cfg.Transport.PollBudget,
	})
	orch := orchestrator.New(reg, sessions, router.New(cfg.Routing), client)

	if len(cfg.Bootstrap.Agents) > 0 {
		reg.Bootstrap(ctx, cfg.Bootstrap.Agents)
	}

	if cli.Config != "" && c.Watch {
		watchLoader, err := config.NewLoader(cli.Config, config.WithOnChange(func(next *config.Config) {
			reg.Bootstrap(ctx, next.Bootstrap.Agents)
		}))
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		go func() {
			if err := watchLoader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Endpoint
	}
	srv := transport.NewServer(orch, transport.Options{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		MetricsPath:   metricsPath,
		SweepInterval: cfg.Sessions.SweepInterval,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	}
}

// loadConfig loads the config file, or the defaults when no file is given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		slog.Info("No config file given, using defaults")
		return config.Default(), nil
	}

	loader, err := config.NewLoader(path)
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, nil
}

func main() {
	_ = godotenv.Load()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("maestro"),
		kong.Description("Maestro - multi-agent orchestration gateway"),
		kong.UsageOnError(),
	)

	output := os.Stderr
	if cli.LogFile != "" {
		file, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		output = file
	}
	logger.Init(logger.ParseLevel(cli.LogLevel), output, cli.LogFormat)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
