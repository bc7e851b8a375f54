package registry

import (
	"strings"

	"github.com/aktasdeniz/maestro/pkg/a2a"
)

// buildSkillKeywords derives the skill-name to keywords index over all cards.
// Per skill: its lowercased tags, the skill name with underscores flattened,
// and the first three words (longer than 2 chars) of its description.
func buildSkillKeywords(cards []*a2a.AgentCard) map[string][]string {
	index := make(map[string][]string)

	for _, card := range cards {
		for _, skill := range card.Skills {
			keywords := index[skill.Name]

			for _, tag := range skill.Tags {
				keywords = appendKeyword(keywords, strings.ToLower(tag))
			}

			flatName := strings.ReplaceAll(strings.ToLower(skill.Name), "_", " ")
			keywords = appendKeyword(keywords, flatName)

			descWords := strings.Fields(strings.ToLower(skill.Description))
			if len(descWords) > 3 {
				descWords = descWords[:3]
			}
			for _, word := range descWords {
				if len(word) > 2 {
					keywords = appendKeyword(keywords, word)
				}
			}

			index[skill.Name] = keywords
		}
	}
	return index
}

func appendKeyword(keywords []string, candidate string) []string {
	for _, kw := range keywords {
		if strings.EqualFold(kw, candidate) {
			return keywords
		}
	}
	return append(keywords, candidate)
}

// buildCapabilities derives the per-agent capability index: domains from
// skill names and descriptions, keywords from tags, and collected examples.
func buildCapabilities(agents map[string]*a2a.AgentCard) map[string]*Capabilities {
	index := make(map[string]*Capabilities, len(agents))

	for id, card := range agents {
		caps := &Capabilities{
			Name:        card.Name,
			Description: card.Description,
			URL:         card.URL,
			Domains:     make(map[string]struct{}),
			Keywords:    make(map[string]struct{}),
			Skills:      make(map[string]SkillInfo),
		}

		for _, skill := range card.Skills {
			skillID := skill.ID
			if skillID == "" {
				skillID = strings.ReplaceAll(strings.ToLower(skill.Name), " ", "_")
			}
			caps.Skills[skillID] = SkillInfo{
				Name:        skill.Name,
				Description: skill.Description,
				Tags:        skill.Tags,
			}

			caps.Examples = append(caps.Examples, skill.Examples...)

			for _, word := range strings.Fields(skill.Name) {
				if len(word) > 3 {
					caps.Domains[strings.ToLower(word)] = struct{}{}
				}
			}
			for _, word := range strings.Fields(skill.Description) {
				if len(word) > 3 {
					caps.Domains[strings.ToLower(word)] = struct{}{}
				}
			}
			for _, tag := range skill.Tags {
				caps.Keywords[strings.ToLower(tag)] = struct{}{}
			}
		}

		index[id] = caps
	}
	return index
}
