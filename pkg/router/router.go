// Package router selects the best agent for a query by scoring every
// registered agent's advertised skills and capabilities against the request
// text, then normalizing the winner into a confidence figure.
package router

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/aktasdeniz/maestro/pkg/registry"
)

// DeclinedReasoning is returned when no agent clears the threshold.
const DeclinedReasoning = "No agent has sufficient capability to handle this request"

// Decision is the outcome of one routing pass. A declined decision has an
// empty AgentID, zero confidence, and DeclinedReasoning.
type Decision struct {
	AgentID    string             `json:"agent_id"`
	AgentName  string             `json:"agent_name"`
	Confidence float64            `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
	Scores     map[string]float64 `json:"agent_scores"`
	Declined   bool               `json:"-"`
}

// Engine scores queries against a registry snapshot. The scorer sets are
// fixed at construction; the weights come from config or DefaultWeights.
type Engine struct {
	weights  Weights
	keyword  []Scorer
	semantic []Scorer
}

// New creates a routing engine with the given weight table.
func New(weights Weights) *Engine {
	return &Engine{
		weights: weights,
		keyword: []Scorer{
			TagScorer{Weight: weights.TagMatch},
			SkillScorer{Weight: weights.SkillMatch},
		},
		semantic: []Scorer{
			DomainScorer{Weight: weights.DomainMatch},
			CapabilityKeywordScorer{Weight: weights.KeywordMatch},
			ExampleScorer{Weight: weights.ExampleMatch},
			DescriptionScorer{Weight: weights.DescriptionMatch},
		},
	}
}

// Select scores every agent in the snapshot against the query and returns the
// decision. Ties keep the earliest-registered agent. An empty snapshot or a
// best score under the threshold declines.
func (e *Engine) Select(query string, snap *registry.Snapshot) Decision {
	slog.Info("Agent selection started", "query", query, "agents", snap.Order)

	scores := make(map[string]float64, len(snap.Order))
	skillMatches := make(map[string][]string, len(snap.Order))
	semanticReasons := make(map[string][]string, len(snap.Order))

	bestID := ""
	bestScore := 0.0

	for _, id := range snap.Order {
		candidate := Candidate{
			ID:            id,
			Card:          snap.Agents[id],
			Capabilities:  snap.Capabilities[id],
			SkillKeywords: snap.SkillKeywords,
		}

		keywordScore, matched := e.scoreClass(e.keyword, query, candidate)
		semanticScore, reasons := e.scoreClass(e.semantic, query, candidate)
		if len(reasons) > 3 {
			reasons = reasons[:3]
		}

		combined := keywordScore*e.weights.KeywordClassWeight + semanticScore*e.weights.SemanticClassWeight
		scores[id] = combined
		skillMatches[id] = matched
		semanticReasons[id] = reasons

		slog.Debug("Agent scored",
			"agent", candidate.Card.Name,
			"keyword_score", keywordScore,
			"semantic_score", semanticScore,
			"combined_score", combined,
			"matched_skills", matched,
			"semantic_reasons", reasons)

		// Strict greater-than keeps the earliest-registered agent on ties.
		if combined > bestScore {
			bestScore = combined
			bestID = id
		}
	}

	slog.Info("Scoring finished",
		"best_agent", bestID,
		"best_score", bestScore,
		"num_agents", len(snap.Order),
		"all_scores", sortedScores(scores))

	if bestID == "" || bestScore < e.weights.Threshold {
		slog.Warn("No agent meets minimum threshold", "threshold", e.weights.Threshold, "best_score", bestScore)
		return Decision{
			Reasoning: DeclinedReasoning,
			Scores:    scores,
			Declined:  true,
		}
	}

	// Normalize by agent count: the same raw score means less when more
	// agents competed for it.
	confidence := bestScore / float64(len(snap.Order))
	if confidence > 1.0 {
		confidence = 1.0
	}

	decision := Decision{
		AgentID:    bestID,
		AgentName:  snap.Agents[bestID].Name,
		Confidence: confidence,
		Reasoning:  buildReasoning(query, snap.Agents[bestID].Name, candidateTags(snap, bestID, query), skillMatches[bestID], semanticReasons[bestID]),
		Scores:     scores,
	}
	slog.Info("Agent selected",
		"agent", decision.AgentName,
		"confidence", decision.Confidence,
		"reasoning", decision.Reasoning)
	return decision
}

func (e *Engine) scoreClass(scorers []Scorer, query string, c Candidate) (float64, []string) {
	var total float64
	var evidence []string
	for _, scorer := range scorers {
		score, ev := scorer.Score(query, c)
		total += score
		evidence = append(evidence, ev...)
	}
	return total, evidence
}

// candidateTags returns the winner's skill tags found verbatim in the query.
func candidateTags(snap *registry.Snapshot, id, query string) []string {
	lower := strings.ToLower(query)
	var matched []string
	for _, skill := range snap.Agents[id].Skills {
		for _, tag := range skill.Tags {
			if strings.Contains(lower, strings.ToLower(tag)) {
				matched = append(matched, tag)
			}
		}
	}
	return matched
}

// buildReasoning composes the human-readable routing explanation.
func buildReasoning(query, agentName string, keywords, skills, semanticReasons []string) string {
	parts := []string{"Selected " + agentName}

	if len(keywords) > 0 {
		parts = append(parts, "based on keywords: "+strings.Join(keywords, ", "))
	}
	if len(skills) > 0 {
		if len(keywords) > 0 {
			parts = append(parts, "and skills: "+strings.Join(skills, ", "))
		} else {
			parts = append(parts, "based on skills: "+strings.Join(skills, ", "))
		}
	}
	if len(semanticReasons) > 0 {
		parts = append(parts, "with additional context: "+strings.Join(semanticReasons, "; "))
	}
	if len(keywords) == 0 && len(skills) == 0 && len(semanticReasons) == 0 {
		parts = append(parts, "based on best overall capability match")
	}
	return strings.Join(parts, " ")
}

type scoredAgent struct {
	ID    string  `json:"agent_id"`
	Score float64 `json:"score"`
}

func sortedScores(scores map[string]float64) []scoredAgent {
	out := make([]scoredAgent, 0, len(scores))
	for id, score := range scores {
		out = append(out, scoredAgent{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out
}
