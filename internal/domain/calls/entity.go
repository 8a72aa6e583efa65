package calls

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CallID is the unique identifier assigned at ingestion.
// Format: call_YYYY_MM_DD_<6-hex>, e.g. call_2026_02_09_a1b2c3
type CallID string

// NewCallID generates a date-scoped identifier with a random suffix.
func NewCallID(now time.Time) CallID {
	suffix := uuid.New().String()[:6]
	return CallID(fmt.Sprintf("call_%s_%s", now.UTC().Format("2006_01_02"), suffix))
}

// Status enum — lifecycle state of an analyzed call.
type Status string

const (
	StatusOpen      Status = "open"
	StatusInReview  Status = "in_review"
	StatusEscalated Status = "escalated"
	StatusResolved  Status = "resolved"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusInReview, StatusEscalated, StatusResolved:
		return true
	}
	return false
}

// AssessmentLabel enum
type AssessmentLabel string

const (
	LabelHighRisk   AssessmentLabel = "high_risk"
	LabelMediumRisk AssessmentLabel = "medium_risk"
	LabelLowRisk    AssessmentLabel = "low_risk"
)

func ValidLabel(l AssessmentLabel) bool {
	switch l {
	case LabelHighRisk, LabelMediumRisk, LabelLowRisk:
		return true
	}
	return false
}

// Action enum — recommended next step from grounding.
type Action string

const (
	ActionAutoClear    Action = "auto_clear"
	ActionFlagReview   Action = "flag_for_review"
	ActionManualReview Action = "manual_review"
	ActionEscalate     Action = "escalate_to_compliance"
)

func ValidAction(a Action) bool {
	switch a {
	case ActionAutoClear, ActionFlagReview, ActionManualReview, ActionEscalate:
		return true
	}
	return false
}

// ── Upstream signal payload ─────────────────────────────────────────
// Fixed JSON shape emitted by the NLP service. Validated once at
// ingestion and stored verbatim; never reinterpreted afterwards.

type CallQuality struct {
	NoiseLevel        string `json:"noise_level"`
	CallStability     string `json:"call_stability"`
	SpeechNaturalness string `json:"speech_naturalness"`
}

type CallContext struct {
	CallLanguage string      `json:"call_language"`
	CallQuality  CallQuality `json:"call_quality"`
}

type SpeakerAnalysis struct {
	CustomerOnlyAnalysis   bool `json:"customer_only_analysis"`
	AgentInfluenceDetected bool `json:"agent_influence_detected"`
}

type IntentInsight struct {
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
	Conditionality string  `json:"conditionality"`
}

type SentimentInsight struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type EntityMentions struct {
	PaymentCommitment *string  `json:"payment_commitment"`
	AmountMentioned   *float64 `json:"amount_mentioned"`
}

type NLPInsights struct {
	Intent                 IntentInsight    `json:"intent"`
	Sentiment              SentimentInsight `json:"sentiment"`
	ObligationStrength     string           `json:"obligation_strength"`
	Entities               EntityMentions   `json:"entities"`
	ContradictionsDetected bool             `json:"contradictions_detected"`
}

type RiskSignals struct {
	AudioTrustFlags []string `json:"audio_trust_flags"`
	BehavioralFlags []string `json:"behavioral_flags"`
}

type RiskAssessment struct {
	RiskScore       int     `json:"risk_score"`
	FraudLikelihood string  `json:"fraud_likelihood"`
	Confidence      float64 `json:"confidence"`
}

// SignalPayload is the full input bundle from the NLP service.
type SignalPayload struct {
	CallContext     CallContext     `json:"call_context"`
	SpeakerAnalysis SpeakerAnalysis `json:"speaker_analysis"`
	NLPInsights     NLPInsights     `json:"nlp_insights"`
	RiskSignals     RiskSignals     `json:"risk_signals"`
	RiskAssessment  RiskAssessment  `json:"risk_assessment"`
	SummaryForRAG   string          `json:"summary_for_rag"`
}

// Assessment is the grounded, schema-constrained judgment produced by
// the reasoning stage (generated or fallback).
type Assessment struct {
	Label           AssessmentLabel `json:"grounded_assessment"`
	Explanation     string          `json:"explanation"`
	Action          Action          `json:"recommended_action"`
	Confidence      float64         `json:"confidence"`
	RegulatoryFlags []string        `json:"regulatory_flags"`
	MatchedPatterns []string        `json:"matched_patterns"`
	Fallback        bool            `json:"fallback,omitempty"`
}

// Aggregate root: one analyzed call.
// Status and Assessment stay unset until the reasoning stage completes.
type CallRecord struct {
	ID               CallID        `json:"call_id"`
	Timestamp        time.Time     `json:"call_timestamp"`
	Payload          SignalPayload `json:"payload"`
	SummaryEmbedding []float32     `json:"-"`
	Assessment       *Assessment   `json:"assessment,omitempty"`
	Status           Status        `json:"status,omitempty"`
	AuditThreadID    string        `json:"audit_thread_id,omitempty"`
}

// CallMatch pairs a stored record with its retrieval score.
// Direct lookups carry similarity 1.0 and the DirectLookup marker.
type CallMatch struct {
	Record       *CallRecord
	Similarity   float64
	DirectLookup bool
}
