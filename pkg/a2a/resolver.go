package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// WellKnownCardPath is the canonical discovery path for agent cards.
const WellKnownCardPath = "/.well-known/agent.json"

// cardPaths are tried in order against an agent's base URL. The empty suffix
// accepts agents that serve the descriptor directly at their base URL.
var cardPaths = []string{WellKnownCardPath, "/.well-known/agent-card.json", ""}

// CardResolver fetches agent cards from remote endpoints. It is stateless and
// safe for concurrent use.
type CardResolver struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewCardResolver creates a resolver backed by the given client. A zero
// timeout defaults to 5 seconds per fetch.
func NewCardResolver(httpClient *http.Client, timeout time.Duration) *CardResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CardResolver{
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// Resolve fetches and parses the agent card advertised at baseURL. The
// well-known discovery paths are tried first, then the base URL itself as a
// direct descriptor. Returns a FetchError when no candidate yields a card.
func (r *CardResolver) Resolve(ctx context.Context, baseURL string) (*AgentCard, error) {
	base := strings.TrimRight(baseURL, "/")

	var lastErr error
	for _, suffix := range cardPaths {
		card, err := r.fetch(ctx, base, base+suffix)
		if err == nil {
			if card.URL == "" {
				card.URL = baseURL
			}
			return card, nil
		}
		lastErr = err
		slog.Debug("Agent card candidate failed", "url", base+suffix, "error", err)
	}

	return nil, lastErr
}

func (r *CardResolver) fetch(ctx context.Context, endpoint, url string) (*AgentCard, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Detail: "invalid request", Err: err}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			Endpoint: endpoint,
			Detail:   fmt.Sprintf("%s - %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, &FetchError{Endpoint: endpoint, Detail: "malformed descriptor", Err: err}
	}
	if card.Name == "" {
		return nil, &FetchError{Endpoint: endpoint, Detail: "descriptor missing name"}
	}

	return &card, nil
}
