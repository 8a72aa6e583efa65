package calls

import (
	"fmt"
	"strings"

	"github.com/voiceops-ai/callground/internal/domain/errs"
)

const minSummaryLength = 10

var levelValues = map[string]bool{"low": true, "medium": true, "high": true}

// ValidatePayload enforces the ingestion contract on the upstream signal
// bundle: presence, closed enumerations, and numeric ranges. It returns a
// *errs.ValidationError with per-field detail, or nil when valid.
func ValidatePayload(p *SignalPayload) error {
	v := errs.NewValidationError()

	q := p.CallContext.CallQuality
	checkLevel(v, "call_context.call_quality.noise_level", q.NoiseLevel)
	checkLevel(v, "call_context.call_quality.call_stability", q.CallStability)
	switch q.SpeechNaturalness {
	case "natural", "suspicious":
	default:
		v.Add("call_context.call_quality.speech_naturalness", "must be one of: natural, suspicious")
	}
	if strings.TrimSpace(p.CallContext.CallLanguage) == "" {
		v.Add("call_context.call_language", "is required")
	}

	n := p.NLPInsights
	if strings.TrimSpace(n.Intent.Label) == "" {
		v.Add("nlp_insights.intent.label", "is required")
	}
	checkConfidence(v, "nlp_insights.intent.confidence", n.Intent.Confidence)
	checkLevel(v, "nlp_insights.intent.conditionality", n.Intent.Conditionality)
	if strings.TrimSpace(n.Sentiment.Label) == "" {
		v.Add("nlp_insights.sentiment.label", "is required")
	}
	checkConfidence(v, "nlp_insights.sentiment.confidence", n.Sentiment.Confidence)
	switch n.ObligationStrength {
	case "strong", "moderate", "weak":
	default:
		v.Add("nlp_insights.obligation_strength", "must be one of: strong, moderate, weak")
	}

	r := p.RiskAssessment
	if r.RiskScore < 0 || r.RiskScore > 100 {
		v.Add("risk_assessment.risk_score", "must be between 0 and 100")
	}
	checkLevel(v, "risk_assessment.fraud_likelihood", r.FraudLikelihood)
	checkConfidence(v, "risk_assessment.confidence", r.Confidence)

	if len(strings.TrimSpace(p.SummaryForRAG)) < minSummaryLength {
		v.Add("summary_for_rag", fmt.Sprintf("must be at least %d characters", minSummaryLength))
	}

	if v.Empty() {
		return nil
	}
	return v
}

func checkLevel(v *errs.ValidationError, field, value string) {
	if !levelValues[value] {
		v.Add(field, "must be one of: low, medium, high")
	}
}

func checkConfidence(v *errs.ValidationError, field string, c float64) {
	if c < 0.0 || c > 1.0 {
		v.Add(field, "must be between 0.0 and 1.0")
	}
}
