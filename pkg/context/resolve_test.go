package context

import (
	"strings"
	"testing"
)

func TestNeedsContext(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"Create a report about it", true},
		{"Summarize that for me", true},
		{"Show me the data", true},
		{"What about the previous one", true},
		{"What is the weather in Boston?", false},
		{"italic fonts are nice", false}, // "it" must be a whole word
		{"", false},
	}

	for _, tt := range tests {
		if got := NeedsContext(tt.query); got != tt.want {
			t.Errorf("NeedsContext(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestResolveReferencesWeatherTopic(t *testing.T) {
	last := Turn{
		UserQuery:     "What is winter like in New York?",
		AgentResponse: "New York winters are cold and snowy.",
	}

	got := ResolveReferences("Make a chart about that", last)
	if !strings.Contains(got, "winter in New York") {
		t.Errorf("expected topic substitution, got %q", got)
	}
}

func TestResolveReferencesTheData(t *testing.T) {
	last := Turn{
		UserQuery:     "exchange rate for euros",
		AgentResponse: "1 EUR = 1.08 USD as of today.",
	}

	got := ResolveReferences("Visualize the data", last)
	if !strings.Contains(got, "the data from: 1 EUR = 1.08 USD") {
		t.Errorf("expected data expansion, got %q", got)
	}
}

func TestResolveReferencesPassthrough(t *testing.T) {
	got := ResolveReferences("weather in Boston", Turn{UserQuery: "x", AgentResponse: "y"})
	if got != "weather in Boston" {
		t.Errorf("expected passthrough, got %q", got)
	}
}

func TestUpdateTopicsDedupes(t *testing.T) {
	topics := updateTopics(nil, "weather in chicago", "cold")
	topics = updateTopics(topics, "more weather please", "sure")

	count := 0
	for _, topic := range topics {
		if topic == "weather" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected weather once, got %v", topics)
	}
}
