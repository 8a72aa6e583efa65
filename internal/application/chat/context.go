package chat

import (
	"fmt"
	"strings"

	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/knowledge"
)

// buildChatContext assembles retrieved knowledge, matched calls, the
// capped conversation history, and the current question into one
// structured prompt, in that fixed section order.
func buildChatContext(question string, docs []knowledge.Result, matches []domain.CallMatch, history []Turn) string {
	var sections []string

	if len(docs) > 0 {
		lines := []string{"=== RETRIEVED KNOWLEDGE ==="}
		for i, doc := range docs {
			lines = append(lines, fmt.Sprintf("[%d] (%s, sim=%.2f) [%s] %s",
				i+1, doc.Document.Category, doc.Similarity, doc.Document.DocID, doc.Document.Title))
			lines = append(lines, "    "+doc.Document.Content)
			lines = append(lines, "")
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(matches) > 0 {
		lines := []string{"=== MATCHED CALL ANALYSES ==="}
		for i, m := range matches {
			rec := m.Record
			assessment := "pending"
			if rec.Assessment != nil {
				assessment = string(rec.Assessment.Label)
			}
			lookupTag := ""
			if m.DirectLookup {
				lookupTag = " [DIRECT LOOKUP]"
			}
			risk := rec.Payload.RiskAssessment
			lines = append(lines, fmt.Sprintf("[%d] %s | risk=%d | fraud=%s | assessment=%s | sim=%.2f%s",
				i+1, rec.ID, risk.RiskScore, risk.FraudLikelihood, assessment, m.Similarity, lookupTag))
			lines = append(lines, "    Summary: "+rec.Payload.SummaryForRAG)

			// Direct lookups carry richer detail than vector matches.
			if m.DirectLookup && rec.Assessment != nil {
				a := rec.Assessment
				lines = append(lines, "    Explanation: "+a.Explanation)
				lines = append(lines, "    Action: "+string(a.Action))
				lines = append(lines, fmt.Sprintf("    Confidence: %.2f", a.Confidence))
				if len(a.MatchedPatterns) > 0 {
					lines = append(lines, "    Matched Patterns: "+strings.Join(a.MatchedPatterns, ", "))
				}
				if len(a.RegulatoryFlags) > 0 {
					lines = append(lines, "    Regulatory Flags: "+strings.Join(a.RegulatoryFlags, ", "))
				}
			}
			lines = append(lines, "")
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(history) > 0 {
		lines := []string{"=== CONVERSATION HISTORY ==="}
		for _, turn := range history {
			role := strings.ToUpper(turn.Role[:1]) + turn.Role[1:]
			lines = append(lines, role+": "+turn.Content)
		}
		lines = append(lines, "")
		sections = append(sections, strings.Join(lines, "\n"))
	}

	sections = append(sections, "=== CURRENT QUESTION ===\n"+question)

	return strings.Join(sections, "\n\n")
}
