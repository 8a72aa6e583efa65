package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/knowledge"
)

func testPayload() *domain.SignalPayload {
	return &domain.SignalPayload{
		CallContext: domain.CallContext{
			CallLanguage: "en",
			CallQuality: domain.CallQuality{
				NoiseLevel:        "low",
				CallStability:     "high",
				SpeechNaturalness: "natural",
			},
		},
		NLPInsights: domain.NLPInsights{
			Intent:             domain.IntentInsight{Label: "promise_to_pay", Confidence: 0.9, Conditionality: "low"},
			Sentiment:          domain.SentimentInsight{Label: "neutral", Confidence: 0.8},
			ObligationStrength: "strong",
		},
		RiskAssessment: domain.RiskAssessment{RiskScore: 40, FraudLikelihood: "medium", Confidence: 0.7},
		SummaryForRAG:  "Customer promised payment after a long discussion about hardship.",
	}
}

func doc(title, content string, sim float64) knowledge.Result {
	return knowledge.Result{
		Document:   knowledge.Document{Title: title, Content: content},
		Similarity: sim,
	}
}

func TestBuildGroundingContextSectionOrder(t *testing.T) {
	r := Retrieved{
		FraudPatterns: []knowledge.Result{doc("Urgent redirection", "pattern body", 0.83)},
		Compliance:    []knowledge.Result{doc("Disclosure rule", "rule body", 0.71)},
	}
	out := BuildGroundingContext(testPayload(), r, 0)

	signals := strings.Index(out, "=== CALL SIGNALS ===")
	fraud := strings.Index(out, "=== MATCHED FRAUD PATTERNS ===")
	comp := strings.Index(out, "=== COMPLIANCE GUIDANCE ===")
	heur := strings.Index(out, "=== RISK HEURISTICS ===")

	require.True(t, signals >= 0 && fraud > signals && comp > fraud && heur > comp,
		"sections out of order:\n%s", out)
}

func TestBuildGroundingContextEmptyCategories(t *testing.T) {
	out := BuildGroundingContext(testPayload(), Retrieved{}, 0)

	assert.Contains(t, out, "No matching fraud patterns found.")
	assert.Contains(t, out, "No matching compliance guidance found.")
	assert.Contains(t, out, "No matching risk heuristics found.")
}

func TestBuildGroundingContextRendersSignals(t *testing.T) {
	out := BuildGroundingContext(testPayload(), Retrieved{}, 0)

	assert.Contains(t, out, "Summary: Customer promised payment after a long discussion about hardship.")
	assert.Contains(t, out, "Intent: promise_to_pay (confidence: 0.90, conditionality: low)")
	assert.Contains(t, out, "Risk Score: 40 | Fraud Likelihood: medium | Confidence: 0.70")
	assert.Contains(t, out, "Entities: payment_commitment=none, amount_mentioned=none")
	assert.Contains(t, out, "Contradictions Detected: NO")
}

func TestBuildGroundingContextDocLineShape(t *testing.T) {
	r := Retrieved{FraudPatterns: []knowledge.Result{doc("Urgent redirection", "pattern body", 0.83)}}
	out := BuildGroundingContext(testPayload(), r, 0)

	assert.Contains(t, out, "[1] (0.83) Urgent redirection")
	assert.Contains(t, out, "    pattern body")
}

func TestBuildGroundingContextBudgetDropsLowestFirst(t *testing.T) {
	long := strings.Repeat("x", 400)
	r := Retrieved{
		FraudPatterns: []knowledge.Result{
			doc("keep-high", long, 0.9),
			doc("drop-me", long, 0.2),
		},
		Compliance: []knowledge.Result{doc("keep-comp", long, 0.6)},
	}

	full := BuildGroundingContext(testPayload(), r, 0)
	budget := len(full) - 10
	out := BuildGroundingContext(testPayload(), r, budget)

	assert.NotContains(t, out, "drop-me")
	assert.Contains(t, out, "keep-high")
	assert.Contains(t, out, "keep-comp")
	assert.LessOrEqual(t, len(out), budget)
}

func TestBuildGroundingContextBudgetTruncatesAsLastResort(t *testing.T) {
	r := Retrieved{
		FraudPatterns:  []knowledge.Result{doc("a", "body", 0.9)},
		RiskHeuristics: []knowledge.Result{doc("b", "body", 0.5)},
	}
	budget := 40
	out := BuildGroundingContext(testPayload(), r, budget)

	// the signal section alone exceeds the budget, so every doc is
	// dropped first and then the remaining artifact is cut to size
	assert.Len(t, out, budget)
	assert.Contains(t, out, "=== CALL SIGNALS ===")
	assert.NotContains(t, out, "body")
}

func TestRetrievedTitles(t *testing.T) {
	r := Retrieved{
		FraudPatterns: []knowledge.Result{doc("A", "", 0.9)},
		Compliance:    []knowledge.Result{doc("B", "", 0.8)},
	}
	titles := r.Titles()
	assert.True(t, titles["A"])
	assert.True(t, titles["B"])
	assert.False(t, titles["C"])
	assert.Equal(t, 2, r.TotalDocs())
}
