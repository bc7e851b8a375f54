package orchestrator

import (
	"fmt"

	"github.com/aktasdeniz/maestro"
	"github.com/aktasdeniz/maestro/pkg/a2a"
)

// SelfCard builds the agent card the orchestrator serves at its own
// well-known discovery path.
func SelfCard(host string, port int) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:        "Smart Orchestrator Agent",
		Description: "Intelligent agent that routes requests to specialized agents over the A2A protocol with management endpoints",
		URL:         fmt.Sprintf("http://%s:%d/", host, port),
		Version:     maestro.Version,
		Capabilities: a2a.AgentCapabilities{
			Streaming:              true,
			PushNotifications:      false,
			StateTransitionHistory: false,
		},
		Skills: []a2a.AgentSkill{
			{
				ID:          "request_routing",
				Name:        "Request Routing",
				Description: "Intelligent request routing to specialized agents",
				Tags:        []string{"routing", "orchestration"},
			},
			{
				ID:          "agent_coordination",
				Name:        "Agent Coordination",
				Description: "Multi-agent system coordination and management",
				Tags:        []string{"coordination", "management"},
			},
			{
				ID:          "skill_matching",
				Name:        "Skill Matching",
				Description: "Skill-based agent selection and matching",
				Tags:        []string{"matching", "selection"},
			},
			{
				ID:          "confidence_scoring",
				Name:        "Confidence Scoring",
				Description: "Confidence scoring for routing decisions",
				Tags:        []string{"scoring", "confidence"},
			},
			{
				ID:          "dynamic_agent_discovery",
				Name:        "Dynamic Agent Discovery",
				Description: "Discover and integrate new agents dynamically",
				Tags:        []string{"discovery", "integration", "dynamic"},
			},
			{
				ID:          "semantic_routing",
				Name:        "Semantic Routing",
				Description: "Route requests based on semantic understanding",
				Tags:        []string{"semantic", "understanding", "context"},
			},
			{
				ID:          "agent_management",
				Name:        "Agent Management",
				Description: "Register, unregister, and list agents via API endpoints",
				Tags:        []string{"management", "api", "registration"},
			},
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
	}
}
