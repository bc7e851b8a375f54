package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aktasdeniz/maestro/pkg/a2a"
	"github.com/aktasdeniz/maestro/pkg/registry"
)

// Weights holds every scoring tunable in one place. Keyword-class signals are
// precise but narrow; semantic-class signals are broad but noisy, which the
// class mix reflects.
type Weights struct {
	// Keyword class.
	TagMatch   float64 `json:"tag_match" yaml:"tag_match" mapstructure:"tag_match"`
	SkillMatch float64 `json:"skill_match" yaml:"skill_match" mapstructure:"skill_match"`

	// Semantic class.
	DomainMatch      float64 `json:"domain_match" yaml:"domain_match" mapstructure:"domain_match"`
	KeywordMatch     float64 `json:"keyword_match" yaml:"keyword_match" mapstructure:"keyword_match"`
	ExampleMatch     float64 `json:"example_match" yaml:"example_match" mapstructure:"example_match"`
	DescriptionMatch float64 `json:"description_match" yaml:"description_match" mapstructure:"description_match"`

	// Class mix and acceptance.
	KeywordClassWeight  float64 `json:"keyword_class_weight" yaml:"keyword_class_weight" mapstructure:"keyword_class_weight"`
	SemanticClassWeight float64 `json:"semantic_class_weight" yaml:"semantic_class_weight" mapstructure:"semantic_class_weight"`
	Threshold           float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
}

// DefaultWeights returns the stock scoring table.
func DefaultWeights() Weights {
	return Weights{
		TagMatch:            1.0,
		SkillMatch:          1.5,
		DomainMatch:         0.5,
		KeywordMatch:        0.7,
		ExampleMatch:        0.3,
		DescriptionMatch:    0.4,
		KeywordClassWeight:  0.6,
		SemanticClassWeight: 0.4,
		Threshold:           0.2,
	}
}

// Validate rejects weight tables that cannot produce a usable score.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"tag_match":             w.TagMatch,
		"skill_match":           w.SkillMatch,
		"domain_match":          w.DomainMatch,
		"keyword_match":         w.KeywordMatch,
		"example_match":         w.ExampleMatch,
		"description_match":     w.DescriptionMatch,
		"keyword_class_weight":  w.KeywordClassWeight,
		"semantic_class_weight": w.SemanticClassWeight,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %f", name, v)
		}
	}
	if w.KeywordClassWeight+w.SemanticClassWeight <= 0 {
		return fmt.Errorf("class weights must sum to a positive value")
	}
	if w.Threshold < 0 || w.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", w.Threshold)
	}
	return nil
}

// Candidate bundles everything a scorer may inspect about one agent.
type Candidate struct {
	ID            string
	Card          *a2a.AgentCard
	Capabilities  *registry.Capabilities
	SkillKeywords map[string][]string
}

// Scorer contributes one signal to an agent's match score. Implementations
// are pure; evidence strings feed the human-readable reasoning.
type Scorer interface {
	Name() string
	Score(query string, c Candidate) (score float64, evidence []string)
}

// TagScorer awards points for each skill tag appearing verbatim in the query.
type TagScorer struct {
	Weight float64
}

func (s TagScorer) Name() string { return "tags" }

func (s TagScorer) Score(query string, c Candidate) (float64, []string) {
	lower := strings.ToLower(query)
	var score float64
	var matched []string
	for _, skill := range c.Card.Skills {
		for _, tag := range skill.Tags {
			if strings.Contains(lower, strings.ToLower(tag)) {
				score += s.Weight
				matched = append(matched, tag)
			}
		}
	}
	return score, matched
}

// SkillScorer awards points for each skill whose derived keyword list matches
// the query. The evidence is the matched skill names.
type SkillScorer struct {
	Weight float64
}

func (s SkillScorer) Name() string { return "skills" }

func (s SkillScorer) Score(query string, c Candidate) (float64, []string) {
	lower := strings.ToLower(query)
	var score float64
	var matched []string
	for _, skill := range c.Card.Skills {
		for _, keyword := range c.SkillKeywords[skill.Name] {
			if strings.Contains(lower, keyword) {
				score += s.Weight
				matched = append(matched, skill.Name)
				break
			}
		}
	}
	return score, matched
}

// DomainScorer awards points for each capability domain token present in the
// query.
type DomainScorer struct {
	Weight float64
}

func (s DomainScorer) Name() string { return "domains" }

func (s DomainScorer) Score(query string, c Candidate) (float64, []string) {
	lower := strings.ToLower(query)
	var score float64
	var evidence []string
	for _, domain := range sortedKeys(c.Capabilities.Domains) {
		if strings.Contains(lower, domain) {
			score += s.Weight
			evidence = append(evidence, "Request mentions domain: "+domain)
		}
	}
	return score, evidence
}

// CapabilityKeywordScorer awards points for each capability keyword present
// in the query.
type CapabilityKeywordScorer struct {
	Weight float64
}

func (s CapabilityKeywordScorer) Name() string { return "keywords" }

func (s CapabilityKeywordScorer) Score(query string, c Candidate) (float64, []string) {
	lower := strings.ToLower(query)
	var score float64
	var evidence []string
	for _, keyword := range sortedKeys(c.Capabilities.Keywords) {
		if strings.Contains(lower, keyword) {
			score += s.Weight
			evidence = append(evidence, "Request contains keyword: "+keyword)
		}
	}
	return score, evidence
}

// ExampleScorer awards points for each advertised example sharing a word with
// the query.
type ExampleScorer struct {
	Weight float64
}

func (s ExampleScorer) Name() string { return "examples" }

func (s ExampleScorer) Score(query string, c Candidate) (float64, []string) {
	words := strings.Fields(strings.ToLower(query))
	var score float64
	var evidence []string
	for _, example := range c.Capabilities.Examples {
		exampleLower := strings.ToLower(example)
		for _, word := range words {
			if strings.Contains(exampleLower, word) {
				score += s.Weight
				evidence = append(evidence, "Request similar to example: "+example)
				break
			}
		}
	}
	return score, evidence
}

// DescriptionScorer awards points for each significant query word (longer
// than 3 chars) found in a skill description.
type DescriptionScorer struct {
	Weight float64
}

func (s DescriptionScorer) Name() string { return "descriptions" }

func (s DescriptionScorer) Score(query string, c Candidate) (float64, []string) {
	var significant []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if len(word) > 3 {
			significant = append(significant, word)
		}
	}

	var score float64
	var evidence []string
	for _, skillID := range sortedSkillIDs(c.Capabilities.Skills) {
		info := c.Capabilities.Skills[skillID]
		description := strings.ToLower(info.Description)
		for _, word := range significant {
			if strings.Contains(description, word) {
				score += s.Weight
				evidence = append(evidence, fmt.Sprintf("Request term '%s' matches skill: %s", word, info.Name))
			}
		}
	}
	return score, evidence
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedSkillIDs(skills map[string]registry.SkillInfo) []string {
	ids := make([]string, 0, len(skills))
	for id := range skills {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
