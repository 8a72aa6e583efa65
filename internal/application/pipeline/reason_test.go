package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/voiceops-ai/callground/internal/domain/calls"
)

const wellFormedOutput = `{
	"grounded_assessment": "medium_risk",
	"explanation": "Signals match a known stalling pattern.",
	"recommended_action": "flag_for_review",
	"confidence": 0.72,
	"regulatory_flags": ["FDCPA 807(11)"],
	"matched_patterns": ["Payment promise without commitment specifics"]
}`

func titleSet(titles ...string) map[string]bool {
	set := make(map[string]bool, len(titles))
	for _, title := range titles {
		set[title] = true
	}
	return set
}

func TestParseAssessmentWellFormed(t *testing.T) {
	a, err := parseAssessment(wellFormedOutput, titleSet("Payment promise without commitment specifics"))
	require.NoError(t, err)

	assert.Equal(t, domain.LabelMediumRisk, a.Label)
	assert.Equal(t, domain.ActionFlagReview, a.Action)
	assert.Equal(t, 0.72, a.Confidence)
	assert.Equal(t, []string{"Payment promise without commitment specifics"}, a.MatchedPatterns)
	assert.False(t, a.Fallback)
}

func TestParseAssessmentRejectsNonJSON(t *testing.T) {
	_, err := parseAssessment("the call looks risky", nil)
	require.Error(t, err)
}

func TestParseAssessmentRejectsMissingKey(t *testing.T) {
	_, err := parseAssessment(`{"grounded_assessment": "low_risk"}`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required key")
}

func TestParseAssessmentCoercesUnknownEnums(t *testing.T) {
	raw := `{
		"grounded_assessment": "catastrophic",
		"explanation": "e",
		"recommended_action": "call_the_police",
		"confidence": 0.5,
		"regulatory_flags": [],
		"matched_patterns": []
	}`
	a, err := parseAssessment(raw, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.LabelHighRisk, a.Label)
	assert.Equal(t, domain.ActionManualReview, a.Action)
}

func TestParseAssessmentClampsConfidence(t *testing.T) {
	for raw, want := range map[string]float64{
		`{"grounded_assessment":"low_risk","explanation":"e","recommended_action":"auto_clear","confidence":1.7,"regulatory_flags":[],"matched_patterns":[]}`:  1.0,
		`{"grounded_assessment":"low_risk","explanation":"e","recommended_action":"auto_clear","confidence":-0.3,"regulatory_flags":[],"matched_patterns":[]}`: 0.0,
	} {
		a, err := parseAssessment(raw, nil)
		require.NoError(t, err)
		assert.Equal(t, want, a.Confidence)
	}
}

func TestParseAssessmentFiltersUnknownPatterns(t *testing.T) {
	raw := `{
		"grounded_assessment": "high_risk",
		"explanation": "e",
		"recommended_action": "escalate_to_compliance",
		"confidence": 0.9,
		"regulatory_flags": null,
		"matched_patterns": ["Known pattern", "Invented pattern"]
	}`
	a, err := parseAssessment(raw, titleSet("Known pattern"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Known pattern"}, a.MatchedPatterns)
	assert.NotNil(t, a.RegulatoryFlags)
	assert.Empty(t, a.RegulatoryFlags)
}

func TestFallbackAssessmentIsConservative(t *testing.T) {
	a := FallbackAssessment()

	assert.Equal(t, domain.LabelHighRisk, a.Label)
	assert.Equal(t, domain.ActionManualReview, a.Action)
	assert.Equal(t, 0.0, a.Confidence)
	assert.Empty(t, a.MatchedPatterns)
	assert.True(t, a.Fallback)
	assert.True(t, domain.ValidLabel(a.Label))
	assert.True(t, domain.ValidAction(a.Action))
}
