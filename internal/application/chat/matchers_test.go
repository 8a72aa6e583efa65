package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/voiceops-ai/callground/internal/domain/calls"
)

func TestCallIDMatcher(t *testing.T) {
	match, ok := DetectDirectLookup("what happened in call_2026_02_09_a1b2c3?")
	require.True(t, ok)
	assert.Equal(t, domain.CallID("call_2026_02_09_a1b2c3"), match.CallID)
	assert.Zero(t, match.LastN)
}

func TestCallIDMatcherIgnoresMalformedIDs(t *testing.T) {
	for _, q := range []string{
		"what about call_2026_02_09?",
		"call_26_02_09_a1b2c3 looked odd",
		"tell me about the call yesterday",
	} {
		_, ok := callIDMatcher{}.Match(q)
		assert.False(t, ok, "question %q should not match", q)
	}
}

func TestRecencyMatcherCountedForm(t *testing.T) {
	cases := map[string]int{
		"summarize the last 5 calls":          5,
		"show me the Latest 3 Calls":          3,
		"what were the most recent 2 calls?":  2,
		"risk trend over the past 10 calls":   10,
		"summarize the last 500 calls please": 10, // capped
	}
	for q, want := range cases {
		match, ok := DetectDirectLookup(q)
		require.True(t, ok, "question %q", q)
		assert.Equal(t, want, match.LastN, "question %q", q)
	}
}

func TestRecencyMatcherSingleForm(t *testing.T) {
	match, ok := DetectDirectLookup("what happened on the most recent call?")
	require.True(t, ok)
	assert.Equal(t, 1, match.LastN)
}

func TestMatcherPriorityIDBeatsRecency(t *testing.T) {
	match, ok := DetectDirectLookup("compare call_2026_02_09_a1b2c3 with the last 3 calls")
	require.True(t, ok)
	assert.Equal(t, domain.CallID("call_2026_02_09_a1b2c3"), match.CallID)
	assert.Zero(t, match.LastN)
}

func TestNoDirectLookup(t *testing.T) {
	_, ok := DetectDirectLookup("which fraud patterns involve payment redirection?")
	assert.False(t, ok)
}
