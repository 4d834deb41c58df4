package nl2sql

import (
	"regexp"
	"strings"
)

type IntentKind string

const (
	IntentConversational IntentKind = "conversational"
	IntentDatabaseQuery  IntentKind = "database_query"
)

type Reason string

const (
	ReasonMarker    Reason = "marker"
	ReasonSelect    Reason = "select"
	ReasonEmbedded  Reason = "embedded"
	ReasonHeuristic Reason = "heuristic"
	ReasonDefault   Reason = "default"
)

type Intent struct {
	Kind   IntentKind
	Reason Reason
	Text   string
}

const maxConversationalChars = 280

var (
	leadingSelectPattern = regexp.MustCompile(`(?i)^SELECT\s`)
	embeddedSQLPattern   = regexp.MustCompile("(?im)(^[ \\t]*SQL:|```sql)")
	greetingPattern      = regexp.MustCompile(`(?i)^(hello|hi|hey|greetings|good (morning|afternoon|evening)|thanks|thank you|you're welcome|you are welcome|sure|of course|absolutely|welcome)\b`)
)

// Classify decides whether model output is prose for the user or a request
// to run a query. It is a routing heuristic only; every attempted query still
// goes through Guard.
func Classify(text string) Intent {
	trimmed := strings.TrimSpace(text)
	switch {
	case len(trimmed) >= 4 && strings.EqualFold(trimmed[:4], "SQL:"):
		return Intent{Kind: IntentDatabaseQuery, Reason: ReasonMarker, Text: text}
	case leadingSelectPattern.MatchString(trimmed):
		return Intent{Kind: IntentDatabaseQuery, Reason: ReasonSelect, Text: text}
	case embeddedSQLPattern.MatchString(trimmed):
		return Intent{Kind: IntentDatabaseQuery, Reason: ReasonEmbedded, Text: text}
	case looksConversational(trimmed):
		return Intent{Kind: IntentConversational, Reason: ReasonHeuristic, Text: trimmed}
	default:
		return Intent{Kind: IntentDatabaseQuery, Reason: ReasonDefault, Text: text}
	}
}

func looksConversational(text string) bool {
	if text == "" || len(text) > maxConversationalChars {
		return false
	}
	if greetingPattern.MatchString(text) {
		return true
	}
	return strings.HasSuffix(text, "?") && !selectStartPattern.MatchString(text)
}
