package chat

import (
	"regexp"
	"strconv"

	domain "github.com/voiceops-ai/callground/internal/domain/calls"
)

// Match is the outcome of a direct-lookup recognizer. Exactly one of
// CallID or LastN is set.
type Match struct {
	CallID domain.CallID
	LastN  int
}

// Matcher recognizes a direct-reference pattern in free-text questions.
// Matchers are evaluated in a fixed priority order; the first match
// short-circuits vector search over call records.
type Matcher interface {
	Name() string
	Match(question string) (Match, bool)
}

// callIDMatcher recognizes an exact call identifier, e.g.
// "what happened in call_2026_02_09_a1b2c3?".
type callIDMatcher struct{}

var callIDPattern = regexp.MustCompile(`call_\d{4}_\d{2}_\d{2}_[0-9a-fA-F]{6}`)

func (callIDMatcher) Name() string { return "call_id" }

func (callIDMatcher) Match(question string) (Match, bool) {
	id := callIDPattern.FindString(question)
	if id == "" {
		return Match{}, false
	}
	return Match{CallID: domain.CallID(id)}, true
}

// recencyMatcher recognizes recency phrases such as "last 5 calls" or
// "the most recent call".
type recencyMatcher struct{}

var (
	recencyNPattern   = regexp.MustCompile(`(?i)\b(?:last|latest|most recent|past)\s+(\d+)\s+calls?\b`)
	recencyOnePattern = regexp.MustCompile(`(?i)\b(?:last|latest|most recent)\s+call\b`)
)

const maxRecency = 10

func (recencyMatcher) Name() string { return "recency" }

func (recencyMatcher) Match(question string) (Match, bool) {
	if m := recencyNPattern.FindStringSubmatch(question); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return Match{}, false
		}
		if n > maxRecency {
			n = maxRecency
		}
		return Match{LastN: n}, true
	}
	if recencyOnePattern.MatchString(question) {
		return Match{LastN: 1}, true
	}
	return Match{}, false
}

// Matchers in priority order: an exact identifier beats a recency phrase.
var Matchers = []Matcher{callIDMatcher{}, recencyMatcher{}}

// DetectDirectLookup runs the ordered matcher list over the question.
func DetectDirectLookup(question string) (Match, bool) {
	for _, m := range Matchers {
		if match, ok := m.Match(question); ok {
			return match, true
		}
	}
	return Match{}, false
}
