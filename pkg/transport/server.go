// Package transport exposes the orchestrator over HTTP on a single port: the
// A2A JSON-RPC surface at the root, the management REST API under
// /management, well-known agent card discovery, and optional Prometheus
// metrics.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aktasdeniz/maestro/pkg/observability"
	"github.com/aktasdeniz/maestro/pkg/orchestrator"
	"github.com/aktasdeniz/maestro/pkg/task"
)

// Options configures the HTTP server.
type Options struct {
	Host          string
	Port          int
	MetricsPath   string        // empty disables the metrics endpoint
	SweepInterval time.Duration // <= 0 disables the periodic session sweep
}

// Server hosts every HTTP surface of the orchestrator.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	tasks        *task.Store
	opts         Options

	httpServer *http.Server
	sweepStop  chan struct{}
}

// NewServer wires the server. Start must be called to begin serving.
func NewServer(orch *orchestrator.Orchestrator, opts Options) *Server {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Port == 0 {
		opts.Port = 8000
	}

	s := &Server{
		orchestrator: orch,
		tasks:        task.NewStore(),
		opts:         opts,
		sweepStop:    make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/agent.json", s.handleAgentCard)
	mux.HandleFunc("/.well-known/agent-card.json", s.handleAgentCard)
	mux.Handle("/management", http.RedirectHandler("/management/", http.StatusMovedPermanently))
	mux.Handle("/management/", http.StripPrefix("/management", s.managementRouter()))
	if opts.MetricsPath != "" {
		mux.Handle(opts.MetricsPath, promhttp.Handler())
	}
	mux.HandleFunc("/", s.handleJSONRPC)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           corsMiddleware(loggingMiddleware(metricsMiddleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	card := orchestrator.SelfCard(s.opts.Host, s.opts.Port)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(card); err != nil {
		slog.Error("Failed to encode agent card", "error", err)
	}
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called. A periodic session sweep runs alongside when configured.
func (s *Server) Start() error {
	s.printBanner()

	if s.opts.SweepInterval > 0 {
		go s.sweepLoop()
	}

	slog.Info("Server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops the sweep loop and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.sweepStop)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) sweepLoop() {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			evicted := s.orchestrator.CleanupSessions()
			if evicted > 0 {
				slog.Info("Expired sessions evicted", "count", evicted)
			}
			if metrics := observability.GetGlobalMetrics(); metrics != nil {
				metrics.RecordSessionSweep(context.Background(), evicted)
			}
		case <-s.sweepStop:
			return
		}
	}
}

func (s *Server) printBanner() {
	card := orchestrator.SelfCard(s.opts.Host, s.opts.Port)
	skillNames := make([]string, 0, len(card.Skills))
	for _, skill := range card.Skills {
		skillNames = append(skillNames, skill.Name)
	}
	base := fmt.Sprintf("http://%s:%d", s.opts.Host, s.opts.Port)

	fmt.Printf("Starting %s on %s:%d\n", card.Name, s.opts.Host, s.opts.Port)
	fmt.Printf("Description: %s\n", card.Description)
	fmt.Printf("Skills: %s\n", strings.Join(skillNames, ", "))
	fmt.Println()
	fmt.Println("Management endpoints:")
	fmt.Printf("  List agents:      GET  %s/management/api/v1/agents/list\n", base)
	fmt.Printf("  Register agent:   POST %s/management/api/v1/agents/register\n", base)
	fmt.Printf("  Unregister agent: POST %s/management/api/v1/agents/unregister\n", base)
	fmt.Printf("  Query:            POST %s/management/api/v1/agents/query\n", base)
	fmt.Printf("  Session stats:    GET  %s/management/api/v1/agents/stats\n", base)
	fmt.Println()
	fmt.Println("A2A protocol endpoints:")
	fmt.Printf("  JSON-RPC root: %s/\n", base)
	fmt.Printf("  Agent card:    %s/.well-known/agent.json\n", base)
	if s.opts.MetricsPath != "" {
		fmt.Printf("  Metrics:       %s%s\n", base, s.opts.MetricsPath)
	}
	fmt.Println()
}
