package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/infra/ai/prompt"
)

// fallbackExplanation is returned when the generation provider could not
// produce a valid structured output after its retry.
const fallbackExplanation = "Automated grounding was unavailable. This call has been flagged for " +
	"manual review as a precaution. A human assessor should evaluate the risk signals directly."

// FallbackAssessment is the deterministic, conservative result used when
// reasoning degrades. It always passes schema validation.
func FallbackAssessment() *domain.Assessment {
	return &domain.Assessment{
		Label:           domain.LabelHighRisk,
		Explanation:     fallbackExplanation,
		Action:          domain.ActionManualReview,
		Confidence:      0.0,
		RegulatoryFlags: []string{},
		MatchedPatterns: []string{},
		Fallback:        true,
	}
}

// reason runs the constrained generation step: invoke, parse, validate,
// one stricter retry, then fallback. It never returns an error — once
// the raw record is stored, reasoning failure must not fail the request.
func (s *Service) reason(ctx context.Context, groundingContext string, titles map[string]bool) *domain.Assessment {
	gen, err := s.generateOnce(ctx, prompt.GroundingSystem(), groundingContext)
	if err != nil {
		s.Log.WithError(err).Warn("generation unavailable, returning fallback assessment")
		return FallbackAssessment()
	}

	assessment, perr := parseAssessment(gen.Content, titles)
	if perr == nil {
		return assessment
	}
	s.Log.WithError(perr).Warn("generation output failed validation, retrying with strict restatement")

	gen, err = s.generateOnce(ctx, prompt.GroundingRetry(), groundingContext)
	if err != nil {
		return FallbackAssessment()
	}
	assessment, perr = parseAssessment(gen.Content, titles)
	if perr != nil {
		s.Log.WithError(perr).Warn("generation output invalid after retry, returning fallback assessment")
		return FallbackAssessment()
	}
	return assessment
}

// requiredKeys of the structured reasoning output.
var requiredKeys = []string{
	"grounded_assessment",
	"explanation",
	"recommended_action",
	"confidence",
	"regulatory_flags",
	"matched_patterns",
}

// parseAssessment coerces the untrusted generation output into a
// schema-valid Assessment. Unparsable or incomplete payloads are
// errors (the caller retries); recognizable-but-off values are coerced
// conservatively the way the contract defines: unknown label -> high_risk,
// unknown action -> manual_review, confidence clamped to [0,1], and
// matched_patterns filtered to titles actually present in the retrieved
// evidence so the output never cites documents it was not shown.
func parseAssessment(raw string, titles map[string]bool) (*domain.Assessment, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	for _, k := range requiredKeys {
		if _, ok := keys[k]; !ok {
			return nil, fmt.Errorf("response missing required key %q", k)
		}
	}

	var a domain.Assessment
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("response does not match the output schema: %w", err)
	}

	if !domain.ValidLabel(a.Label) {
		a.Label = domain.LabelHighRisk
	}
	if !domain.ValidAction(a.Action) {
		a.Action = domain.ActionManualReview
	}
	if a.Confidence < 0.0 {
		a.Confidence = 0.0
	}
	if a.Confidence > 1.0 {
		a.Confidence = 1.0
	}
	if a.RegulatoryFlags == nil {
		a.RegulatoryFlags = []string{}
	}

	matched := make([]string, 0, len(a.MatchedPatterns))
	for _, pat := range a.MatchedPatterns {
		if titles[pat] {
			matched = append(matched, pat)
		}
	}
	a.MatchedPatterns = matched

	return &a, nil
}
