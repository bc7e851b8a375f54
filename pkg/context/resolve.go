package context

import (
	"fmt"
	"regexp"
	"strings"
)

// Reference tokens that signal a query leans on earlier conversation.
var pronounPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bit\b`),
	regexp.MustCompile(`(?i)\bthat\b`),
	regexp.MustCompile(`(?i)\bthis\b`),
	regexp.MustCompile(`(?i)\bthey\b`),
	regexp.MustCompile(`(?i)\bthem\b`),
	regexp.MustCompile(`(?i)\bthe above\b`),
	regexp.MustCompile(`(?i)\bthe previous\b`),
	regexp.MustCompile(`(?i)\bthe data\b`),
}

var (
	reIt          = regexp.MustCompile(`(?i)\bit\b`)
	reThat        = regexp.MustCompile(`(?i)\bthat\b`)
	reThis        = regexp.MustCompile(`(?i)\bthis\b`)
	reTheAbove    = regexp.MustCompile(`(?i)\bthe above\b`)
	reThePrevious = regexp.MustCompile(`(?i)\bthe previous\b`)
	reTheData     = regexp.MustCompile(`(?i)\bthe data\b`)

	reLocations    = regexp.MustCompile(`(?i)\b(New York|NYC|California|Chicago|Boston|San Francisco|Los Angeles)\b`)
	reWeatherTerms = regexp.MustCompile(`(?i)\b(weather|winter|summer|temperature|climate)\b`)
)

// NeedsContext reports whether the query contains a reference token worth
// resolving against conversation history.
func NeedsContext(query string) bool {
	lower := strings.ToLower(query)
	for _, pattern := range pronounPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

// ResolveReferences substitutes pronouns and anaphoric phrases in the query
// with concrete subjects drawn from the most recent turn. Pure function; the
// caller holds whatever lock protects lastTurn.
func ResolveReferences(query string, lastTurn Turn) string {
	if !NeedsContext(query) {
		return query
	}

	topic := extractMainTopic(lastTurn.UserQuery, lastTurn.AgentResponse)

	// Literal replacement: response text may contain characters that the
	// regexp package would otherwise expand as group references.
	enriched := query
	if topic != "" {
		enriched = reIt.ReplaceAllLiteralString(enriched, topic)
		enriched = reThat.ReplaceAllLiteralString(enriched, topic)
		enriched = reThis.ReplaceAllLiteralString(enriched, topic)
	}
	enriched = reTheAbove.ReplaceAllLiteralString(enriched, "the analysis: "+truncate(lastTurn.AgentResponse, 100)+"...")
	enriched = reThePrevious.ReplaceAllLiteralString(enriched, "the previous query about "+extractSubject(lastTurn.UserQuery))
	enriched = reTheData.ReplaceAllLiteralString(enriched, "the data from: "+truncate(lastTurn.AgentResponse, 100)+"...")

	// Very short queries that still carry a bare pronoun get an explicit
	// context block appended instead.
	if len(strings.Fields(enriched)) < 5 && containsAny(strings.ToLower(enriched), "it", "that", "this") {
		enriched = fmt.Sprintf("%s [Context: Previous query was '%s' with response about: %s...]",
			enriched, lastTurn.UserQuery, truncate(lastTurn.AgentResponse, 150))
	}

	return enriched
}

// extractMainTopic guesses the subject of the previous turn. Location plus a
// weather term wins; otherwise domain keywords; otherwise the first meaningful
// response words.
func extractMainTopic(query, response string) string {
	locations := reLocations.FindAllString(query, -1)
	weatherTerms := reWeatherTerms.FindAllString(query, -1)
	if len(locations) > 0 && len(weatherTerms) > 0 {
		return weatherTerms[0] + " in " + locations[0]
	}

	lower := strings.ToLower(query)
	if strings.Contains(lower, "currency") || strings.Contains(lower, "exchange") {
		return "currency exchange analysis"
	}
	if strings.Contains(lower, "math") || strings.ContainsAny(query, "+-*/") {
		return "mathematical calculation"
	}

	words := strings.Fields(response)
	if len(words) > 10 {
		words = words[:10]
	}
	meaningful := make([]string, 0, 3)
	for _, word := range words {
		if len(word) > 3 {
			meaningful = append(meaningful, word)
			if len(meaningful) == 3 {
				break
			}
		}
	}
	if len(meaningful) > 0 {
		return strings.Join(meaningful, " ")
	}
	return "the previous analysis"
}

// extractSubject returns the trailing words of a query, which usually carry
// the subject.
func extractSubject(query string) string {
	words := strings.Fields(query)
	if len(words) > 2 {
		return strings.Join(words[len(words)-3:], " ")
	}
	return query
}

// topicRules classify a turn's combined text into coarse topics.
var topicCities = []string{"new york", "california", "chicago", "boston", "san francisco", "los angeles"}

// updateTopics extracts topics from the turn and merges them into the current
// list, keeping only the most recent maxActiveTopics entries.
func updateTopics(current []string, userQuery, agentResponse string) []string {
	text := strings.ToLower(userQuery + " " + agentResponse)

	var topics []string
	if containsAny(text, "weather", "temperature", "winter", "summer", "rain", "snow") {
		topics = append(topics, "weather")
	}
	for _, city := range topicCities {
		if strings.Contains(text, city) {
			topics = append(topics, "location:"+city)
		}
	}
	if containsAny(text, "report", "analysis", "chart", "graph", "visualization") {
		topics = append(topics, "reporting")
	}
	if containsAny(text, "currency", "exchange", "dollar", "price", "market") {
		topics = append(topics, "finance")
	}

	for _, topic := range topics {
		current = appendUnique(current, topic)
	}
	if len(current) > maxActiveTopics {
		current = current[len(current)-maxActiveTopics:]
	}
	return current
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
