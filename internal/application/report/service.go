package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/errs"
)

// ObjectStore is the artifact sink for exported reports.
type ObjectStore interface {
	PutText(ctx context.Context, key, body string) (string, error)
}

// Service renders a call record as a plain-text risk report and uploads
// it to the object store.
type Service struct {
	Calls domain.Repository
	Store ObjectStore
	Log   *logrus.Logger
}

// Export fetches the call, renders the report, and uploads it under a
// deterministic key. Returns the stored object URL.
func (s *Service) Export(ctx context.Context, id domain.CallID) (string, error) {
	rec, err := s.Calls.Get(ctx, id)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("reports/%s.txt", rec.ID)
	url, err := s.Store.PutText(ctx, key, Render(rec))
	if err != nil {
		return "", &errs.DependencyError{Op: "report store", Err: err}
	}

	s.Log.WithFields(logrus.Fields{"call_id": rec.ID, "key": key}).Info("exported call report")
	return url, nil
}

// Render produces the plain-text report body for a call record.
func Render(rec *domain.CallRecord) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("CALL RISK REPORT")
	line("================")
	line("")
	line("Call ID:    %s", rec.ID)
	line("Timestamp:  %s", rec.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	line("Status:     %s", rec.Status)
	line("")

	risk := rec.Payload.RiskAssessment
	line("INPUT RISK SIGNALS")
	line("------------------")
	line("Risk Score:        %d", risk.RiskScore)
	line("Fraud Likelihood:  %s", risk.FraudLikelihood)
	line("Signal Confidence: %.2f", risk.Confidence)
	line("Audio Trust Flags: %s", joinOrNone(rec.Payload.RiskSignals.AudioTrustFlags))
	line("Behavioral Flags:  %s", joinOrNone(rec.Payload.RiskSignals.BehavioralFlags))
	line("")
	line("Summary: %s", rec.Payload.SummaryForRAG)
	line("")

	line("GROUNDED ASSESSMENT")
	line("-------------------")
	if a := rec.Assessment; a != nil {
		line("Label:             %s", a.Label)
		line("Recommended Action: %s", a.Action)
		line("Confidence:        %.2f", a.Confidence)
		if a.Fallback {
			line("Note:              produced by deterministic fallback")
		}
		line("")
		line("Explanation: %s", a.Explanation)
		line("")
		line("Matched Patterns:  %s", joinOrNone(a.MatchedPatterns))
		line("Regulatory Flags:  %s", joinOrNone(a.RegulatoryFlags))
	} else {
		line("Not yet assessed.")
	}

	return b.String()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
