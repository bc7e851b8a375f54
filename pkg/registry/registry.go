// Package registry keeps the in-memory set of registered agent cards and the
// derived routing indices (skill keywords and extracted capabilities).
//
// Registrations are rare relative to queries, so both indices are rebuilt
// from scratch under the write lock on every mutation. Readers take a shared
// lock and therefore always observe a consistent card set and index pair.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aktasdeniz/maestro/pkg/a2a"
)

// ErrNotFound is returned when an identifier resolves to no registered agent.
var ErrNotFound = errors.New("agent not found")

// Capabilities is the derived per-agent index computed from a card's skills.
type Capabilities struct {
	Name        string
	Description string
	URL         string
	// Domains are lowercased tokens longer than 3 chars drawn from skill
	// names and descriptions.
	Domains map[string]struct{}
	// Keywords is the union of all lowercased skill tags.
	Keywords map[string]struct{}
	// Examples concatenates all skill examples in card order.
	Examples []string
	// Skills maps skill id to its routing-relevant fields.
	Skills map[string]SkillInfo
}

// SkillInfo is the per-skill slice of the capability index.
type SkillInfo struct {
	Name        string
	Description string
	Tags        []string
}

// Summary is the list() view of one registered agent.
type Summary struct {
	AgentID      string         `json:"agent_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Endpoint     string         `json:"endpoint"`
	Skills       []SummarySkill `json:"skills"`
	Keywords     []string       `json:"keywords"`
	Capabilities []string       `json:"capabilities"`
}

// SummarySkill is the skill shape exposed in list responses.
type SummarySkill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry is the concurrency-safe agent card store. Cards are keyed by name;
// iteration follows insertion order so routing tie-breaks are deterministic.
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]*a2a.AgentCard
	order    []string // insertion order of agent ids
	resolver *a2a.CardResolver

	// Derived indices, rebuilt on every mutation.
	skillKeywords map[string][]string
	capabilities  map[string]*Capabilities
}

// New creates an empty registry that fetches cards through resolver.
func New(resolver *a2a.CardResolver) *Registry {
	return &Registry{
		agents:        make(map[string]*a2a.AgentCard),
		resolver:      resolver,
		skillKeywords: make(map[string][]string),
		capabilities:  make(map[string]*Capabilities),
	}
}

// Register fetches the card advertised at endpoint and inserts it under its
// name. Re-registering a name replaces the previous card in place, keeping
// its original position in iteration order.
func (r *Registry) Register(ctx context.Context, endpoint string) (*a2a.AgentCard, error) {
	card, err := r.resolver.Resolve(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	r.Add(card)
	return card, nil
}

// Add inserts or replaces a card under key card.Name and rebuilds the derived
// indices.
func (r *Registry) Add(card *a2a.AgentCard) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[card.Name]; exists {
		slog.Warn("Replacing registered agent card", "agent", card.Name, "endpoint", card.URL)
	} else {
		r.order = append(r.order, card.Name)
	}
	r.agents[card.Name] = card
	r.rebuildLocked()
}

// Remove resolves identifier against the registered agents and removes the
// match. Resolution priority: exact name, exact URL, case-insensitive name,
// URL substring. Each pass scans agents in insertion order.
func (r *Registry) Remove(identifier string) (*a2a.AgentCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.resolveLocked(identifier)
	if id == "" {
		return nil, ErrNotFound
	}

	card := r.agents[id]
	delete(r.agents, id)
	for i, name := range r.order {
		if name == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.rebuildLocked()
	return card, nil
}

func (r *Registry) resolveLocked(identifier string) string {
	for _, id := range r.order {
		if id == identifier {
			return id
		}
	}
	for _, id := range r.order {
		if r.agents[id].URL == identifier {
			return id
		}
	}
	for _, id := range r.order {
		if strings.EqualFold(r.agents[id].Name, identifier) {
			return id
		}
	}
	for _, id := range r.order {
		if strings.Contains(r.agents[id].URL, identifier) {
			return id
		}
	}
	return ""
}

// Lookup returns the card registered under id.
func (r *Registry) Lookup(id string) (*a2a.AgentCard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	card, ok := r.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return card, nil
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// IDs returns the agent ids in insertion order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Snapshot returns a consistent view of cards, capabilities, and skill
// keywords for one routing decision. The returned maps must not be mutated.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &Snapshot{
		Order:         make([]string, len(r.order)),
		Agents:        make(map[string]*a2a.AgentCard, len(r.agents)),
		Capabilities:  r.capabilities,
		SkillKeywords: r.skillKeywords,
	}
	copy(snap.Order, r.order)
	for id, card := range r.agents {
		snap.Agents[id] = card
	}
	return snap
}

// Snapshot is an immutable registry view handed to the routing engine.
type Snapshot struct {
	Order         []string
	Agents        map[string]*a2a.AgentCard
	Capabilities  map[string]*Capabilities
	SkillKeywords map[string][]string
}

// List returns summaries for all registered agents in insertion order.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]Summary, 0, len(r.order))
	for _, id := range r.order {
		card := r.agents[id]

		skills := make([]SummarySkill, 0, len(card.Skills))
		var keywords []string
		for _, skill := range card.Skills {
			skills = append(skills, SummarySkill{Name: skill.Name, Description: skill.Description})
			keywords = append(keywords, skill.Tags...)
		}

		var flags []string
		if card.Capabilities.Streaming {
			flags = append(flags, "streaming")
		}
		if card.Capabilities.PushNotifications {
			flags = append(flags, "push_notifications")
		}
		if card.Capabilities.StateTransitionHistory {
			flags = append(flags, "state_transition_history")
		}

		summaries = append(summaries, Summary{
			AgentID:      id,
			Name:         card.Name,
			Description:  card.Description,
			Endpoint:     card.URL,
			Skills:       skills,
			Keywords:     keywords,
			Capabilities: flags,
		})
	}
	return summaries
}

// SkillKeywords returns the derived skill-name to keywords index.
func (r *Registry) SkillKeywords() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skillKeywords
}

// CapabilitiesFor returns the derived capability index for an agent.
func (r *Registry) CapabilitiesFor(id string) (*Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps, ok := r.capabilities[id]
	return caps, ok
}

// Bootstrap fetches cards from the default endpoints concurrently. Failures
// are logged and skipped; the registry may come up empty.
func (r *Registry) Bootstrap(ctx context.Context, endpoints []string) {
	type loaded struct {
		endpoint string
		card     *a2a.AgentCard
	}

	results := make([]loaded, len(endpoints))
	g, gctx := errgroup.WithContext(ctx)
	for i, endpoint := range endpoints {
		g.Go(func() error {
			card, err := r.resolver.Resolve(gctx, endpoint)
			if err != nil {
				slog.Warn("Failed to load agent card during bootstrap", "endpoint", endpoint, "error", err)
				return nil
			}
			results[i] = loaded{endpoint: endpoint, card: card}
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.card == nil {
			continue
		}
		r.Add(res.card)
		slog.Info("Loaded agent", "agent", res.card.Name, "endpoint", res.endpoint)
	}
	slog.Info("Registry bootstrap finished", "agents", r.Len(), "endpoints", len(endpoints))
}

// rebuildLocked recomputes both derived indices over the current agent set.
// Callers hold the write lock.
func (r *Registry) rebuildLocked() {
	r.skillKeywords = buildSkillKeywords(r.orderedCardsLocked())
	r.capabilities = buildCapabilities(r.agents)
	slog.Debug("Registry indices rebuilt", "agents", len(r.agents), "skills", len(r.skillKeywords))
}

func (r *Registry) orderedCardsLocked() []*a2a.AgentCard {
	cards := make([]*a2a.AgentCard, 0, len(r.order))
	for _, id := range r.order {
		cards = append(cards, r.agents[id])
	}
	return cards
}
