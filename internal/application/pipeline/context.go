package pipeline

import (
	"fmt"
	"strings"

	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/knowledge"
)

// Retrieved holds one request's evidence, one slice per category, each
// already ranked by similarity descending.
type Retrieved struct {
	FraudPatterns  []knowledge.Result
	Compliance     []knowledge.Result
	RiskHeuristics []knowledge.Result
}

// Titles returns the set of document titles the reasoner was shown.
// matched_patterns in the output must stay a subset of this set.
func (r *Retrieved) Titles() map[string]bool {
	titles := make(map[string]bool)
	for _, list := range [][]knowledge.Result{r.FraudPatterns, r.Compliance, r.RiskHeuristics} {
		for _, res := range list {
			titles[res.Document.Title] = true
		}
	}
	return titles
}

// TotalDocs counts evidence across all categories.
func (r *Retrieved) TotalDocs() int {
	return len(r.FraudPatterns) + len(r.Compliance) + len(r.RiskHeuristics)
}

// BuildGroundingContext serializes the normalized signals and the
// retrieved evidence into one bounded text artifact. Section order is
// fixed (signals, then categories in priority order) so the output is
// stable across runs with the same inputs. When the artifact exceeds
// the character budget, the lowest-similarity item is dropped first
// within its category before any section disappears entirely; if the
// signal section alone still exceeds the budget after every document
// is gone, the artifact is cut at the budget as a last resort.
func BuildGroundingContext(p *domain.SignalPayload, r Retrieved, budget int) string {
	fraud := r.FraudPatterns
	comp := r.Compliance
	heur := r.RiskHeuristics

	text := renderContext(p, fraud, comp, heur)
	for budget > 0 && len(text) > budget {
		fraud, comp, heur = dropLowest(fraud, comp, heur)
		if fraud == nil && comp == nil && heur == nil {
			break
		}
		text = renderContext(p, fraud, comp, heur)
	}
	if budget > 0 && len(text) > budget {
		text = text[:budget]
	}
	return text
}

func renderContext(p *domain.SignalPayload, fraud, comp, heur []knowledge.Result) string {
	var sections []string
	sections = append(sections, renderSignals(p))
	sections = append(sections, renderCategory("MATCHED FRAUD PATTERNS", "No matching fraud patterns found.", fraud))
	sections = append(sections, renderCategory("COMPLIANCE GUIDANCE", "No matching compliance guidance found.", comp))
	sections = append(sections, renderCategory("RISK HEURISTICS", "No matching risk heuristics found.", heur))
	return strings.Join(sections, "\n\n")
}

func renderSignals(p *domain.SignalPayload) string {
	nlp := p.NLPInsights
	risk := p.RiskAssessment
	ctx := p.CallContext

	contradictions := "NO"
	if nlp.ContradictionsDetected {
		contradictions = "YES"
	}

	lines := []string{
		"=== CALL SIGNALS ===",
		"Summary: " + p.SummaryForRAG,
		"Call Language: " + ctx.CallLanguage,
		fmt.Sprintf("Call Quality: noise=%s, stability=%s, speech=%s",
			ctx.CallQuality.NoiseLevel, ctx.CallQuality.CallStability, ctx.CallQuality.SpeechNaturalness),
		fmt.Sprintf("Speaker Analysis: customer_only=%t, agent_influence=%t",
			p.SpeakerAnalysis.CustomerOnlyAnalysis, p.SpeakerAnalysis.AgentInfluenceDetected),
		fmt.Sprintf("Intent: %s (confidence: %.2f, conditionality: %s)",
			nlp.Intent.Label, nlp.Intent.Confidence, nlp.Intent.Conditionality),
		fmt.Sprintf("Sentiment: %s (confidence: %.2f)", nlp.Sentiment.Label, nlp.Sentiment.Confidence),
		"Obligation Strength: " + nlp.ObligationStrength,
		fmt.Sprintf("Entities: payment_commitment=%s, amount_mentioned=%s",
			stringOrNone(nlp.Entities.PaymentCommitment), floatOrNone(nlp.Entities.AmountMentioned)),
		"Contradictions Detected: " + contradictions,
		"Audio Flags: " + joinOrNone(p.RiskSignals.AudioTrustFlags),
		"Behavioral Flags: " + joinOrNone(p.RiskSignals.BehavioralFlags),
		fmt.Sprintf("Risk Score: %d | Fraud Likelihood: %s | Confidence: %.2f",
			risk.RiskScore, risk.FraudLikelihood, risk.Confidence),
	}
	return strings.Join(lines, "\n")
}

func renderCategory(header, emptyLine string, docs []knowledge.Result) string {
	if len(docs) == 0 {
		return "=== " + header + " ===\n" + emptyLine
	}
	lines := []string{"=== " + header + " ==="}
	for i, doc := range docs {
		lines = append(lines, fmt.Sprintf("[%d] (%.2f) %s", i+1, doc.Similarity, doc.Document.Title))
		lines = append(lines, "    "+doc.Document.Content)
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// dropLowest removes the single lowest-similarity item across the three
// category lists. Lists are sorted descending, so each list's candidate
// is its last element.
func dropLowest(fraud, comp, heur []knowledge.Result) ([]knowledge.Result, []knowledge.Result, []knowledge.Result) {
	lowest := -1.0
	pick := -1 // 0=fraud 1=comp 2=heur
	lists := [][]knowledge.Result{fraud, comp, heur}
	for i, list := range lists {
		if len(list) == 0 {
			continue
		}
		sim := list[len(list)-1].Similarity
		if pick == -1 || sim < lowest {
			lowest = sim
			pick = i
		}
	}
	if pick == -1 {
		return nil, nil, nil
	}
	lists[pick] = lists[pick][:len(lists[pick])-1]
	return lists[0], lists[1], lists[2]
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func stringOrNone(s *string) string {
	if s == nil {
		return "none"
	}
	return *s
}

func floatOrNone(f *float64) string {
	if f == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f", *f)
}
