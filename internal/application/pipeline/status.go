package pipeline

import (
	domain "github.com/voiceops-ai/callground/internal/domain/calls"
)

// actionStatus is the primary decision table mapping the recommended
// action to the initial lifecycle status.
var actionStatus = map[domain.Action]domain.Status{
	domain.ActionAutoClear:    domain.StatusResolved,
	domain.ActionFlagReview:   domain.StatusInReview,
	domain.ActionManualReview: domain.StatusInReview,
	domain.ActionEscalate:     domain.StatusEscalated,
}

// BucketPolicy maps a risk score to a status when no action mapping
// applies. Boundaries are configurable because planning documents
// disagree on them; defaults are 0–30 low, 31–50 medium, 51–100 high.
type BucketPolicy struct {
	LowMax    int `yaml:"low_max"`
	MediumMax int `yaml:"medium_max"`
}

// DefaultBucketPolicy returns the default score boundaries.
func DefaultBucketPolicy() BucketPolicy {
	return BucketPolicy{LowMax: 30, MediumMax: 50}
}

// StatusForScore buckets a risk score into an initial status.
func (p BucketPolicy) StatusForScore(score int) domain.Status {
	switch {
	case score <= p.LowMax:
		return domain.StatusResolved
	case score <= p.MediumMax:
		return domain.StatusInReview
	default:
		return domain.StatusEscalated
	}
}

// DeriveStatus derives the initial lifecycle status from an assessment.
// The action-based mapping takes precedence; the score-bucket policy is
// the explicit fallback for an action outside the decision table.
func DeriveStatus(a *domain.Assessment, riskScore int, policy BucketPolicy) domain.Status {
	if st, ok := actionStatus[a.Action]; ok {
		return st
	}
	return policy.StatusForScore(riskScore)
}
