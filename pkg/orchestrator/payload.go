package orchestrator

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aktasdeniz/maestro/pkg/context"
)

// reportIntentWords flag a request as report-style, which pulls the full
// previous data payload along instead of just the trimmed history.
var reportIntentWords = []string{"report", "generate", "create", "make"}

// dataSourceNames mark agents whose responses count as raw data worth
// forwarding in full to a report-style request.
var dataSourceNames = []string{"rag agent", "rag", "search", "query", "weather"}

// composePayload builds the text actually sent downstream: the request,
// optionally followed by recent conversation history, the previous data
// payload for report requests, and a closing instruction.
func composePayload(request string, view context.View) string {
	if len(view.Turns) == 0 {
		return request
	}

	lower := strings.ToLower(request)
	isReport := containsAnyWord(lower, reportIntentWords)

	history := historyBlock(view.Turns)
	previous := view.Turns[len(view.Turns)-1]

	if !isReport {
		return fmt.Sprintf("%s\n\n%s\nPlease use the above conversation context to answer the current request.", request, history)
	}

	parts := []string{history}
	if isDataSource(previous.AgentName) {
		slog.Debug("Including previous data payload for report request", "previous_agent", previous.AgentName)
		parts = append(parts, fmt.Sprintf("Detailed data from most recent query:\n%s\n", previous.AgentResponse))
	}

	return fmt.Sprintf("%s\n\n%s\n%s", request, strings.Join(parts, ""), instruction(lower))
}

// historyBlock renders the recent turns, responses trimmed to 200 chars.
func historyBlock(turns []context.Turn) string {
	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for i, turn := range turns {
		fmt.Fprintf(&b, "\n[%d] User: %s\n    %s: %s...\n",
			i+1, turn.UserQuery, turn.AgentName, trim(turn.AgentResponse, 200))
	}
	return b.String()
}

// instruction picks the closing sentence matching the request's verb.
func instruction(lower string) string {
	switch {
	case strings.Contains(lower, "report") || strings.Contains(lower, "generate") || strings.Contains(lower, "create"):
		return "Please use the above conversation context and data to generate a comprehensive report."
	case strings.Contains(lower, "analyze") || strings.Contains(lower, "analysis"):
		return "Please analyze the above conversation context and data."
	case strings.Contains(lower, "summarize") || strings.Contains(lower, "summarise"):
		return "Please summarize the above conversation context and data."
	default:
		return "Please use the above conversation context and data as needed."
	}
}

func isDataSource(agentName string) bool {
	lower := strings.ToLower(agentName)
	for _, name := range dataSourceNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

func containsAnyWord(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

func trim(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
