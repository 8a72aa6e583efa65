package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voiceops-ai/callground/internal/application"
	"github.com/voiceops-ai/callground/internal/application/retrieval"
	"github.com/voiceops-ai/callground/internal/domain/ai"
	"github.com/voiceops-ai/callground/internal/domain/audit"
	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/errs"
	"github.com/voiceops-ai/callground/internal/domain/knowledge"
)

const idInsertAttempts = 3

// Limits are the per-category retrieval result counts.
type Limits struct {
	FraudPatterns  int `yaml:"fraud_patterns"`
	Compliance     int `yaml:"compliance"`
	RiskHeuristics int `yaml:"risk_heuristics"`
}

// DefaultLimits mirrors the curated knowledge base proportions.
func DefaultLimits() Limits {
	return Limits{FraudPatterns: 3, Compliance: 2, RiskHeuristics: 2}
}

// Config tunes the analysis pipeline.
type Config struct {
	Limits             Limits
	CategoryTimeout    time.Duration
	ContextBudget      int
	Buckets            BucketPolicy
	AuditCreateTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Limits:             DefaultLimits(),
		CategoryTimeout:    5 * time.Second,
		ContextBudget:      12000,
		Buckets:            DefaultBucketPolicy(),
		AuditCreateTimeout: 2 * time.Second,
	}
}

// Service implements the analysis pipeline use-case.
// Safe for concurrent use: all fields are read-only after construction
// and request isolation comes from the unique identifier keying writes.
type Service struct {
	Calls     domain.Repository
	Knowledge knowledge.Store
	Embedder  ai.Embedder
	Generator ai.Generator
	Audit     audit.Trail // nil disables auditing
	Clock     application.Clock
	Log       *logrus.Logger
	Cfg       Config
}

// Result is the response of a completed analysis.
type Result struct {
	CallID        domain.CallID         `json:"call_id"`
	Timestamp     time.Time             `json:"call_timestamp"`
	InputRisk     domain.RiskAssessment `json:"input_risk_assessment"`
	Assessment    *domain.Assessment    `json:"rag_output"`
	Status        domain.Status         `json:"status"`
	AuditThreadID string                `json:"audit_thread_id,omitempty"`
}

// Analyze runs the full grounding pipeline for one signal bundle.
//
// Validation failures and pre-commit dependency failures return errors.
// Once the raw record is stored, every later failure degrades to a
// documented fallback so the record always reaches a terminal result.
func (s *Service) Analyze(ctx context.Context, payload *domain.SignalPayload) (*Result, error) {
	if err := domain.ValidatePayload(payload); err != nil {
		return nil, err
	}

	count, err := s.Knowledge.Count(ctx)
	if err != nil {
		return nil, &errs.DependencyError{Op: "knowledge store", Err: err}
	}
	if count == 0 {
		return nil, errs.ErrKnowledgeEmpty
	}

	now := s.Clock.Now().UTC()
	rec := &domain.CallRecord{Timestamp: now, Payload: *payload}

	// Commit point: once this insert succeeds the record is guaranteed
	// to reach a terminal result, possibly via fallback.
	for attempt := 0; attempt < idInsertAttempts; attempt++ {
		rec.ID = domain.NewCallID(now)
		err = s.Calls.Insert(ctx, rec)
		if err == nil || !errors.Is(err, errs.ErrDuplicateID) {
			break
		}
	}
	if err != nil {
		return nil, &errs.DependencyError{Op: "call store", Err: err}
	}
	log := s.Log.WithField("call_id", rec.ID)

	threadID := s.openAuditThread(rec.ID)
	if threadID != "" {
		if err := s.Calls.UpdateAuditThread(ctx, rec.ID, threadID); err != nil {
			log.WithError(err).Warn("failed to store audit thread reference")
		}
	}
	s.auditDispatch(threadID, "input_signals", marshalForAudit(payload))

	var embeddingVec []float32
	if vec, err := s.Embedder.Embed(ctx, payload.SummaryForRAG); err != nil {
		log.WithError(err).Warn("summary embedding unavailable, continuing without retrieval")
	} else {
		embeddingVec = vec
		if err := s.Calls.UpdateEmbedding(ctx, rec.ID, vec); err != nil {
			log.WithError(err).Warn("failed to store summary embedding")
		}
	}

	retrieved := s.retrieve(ctx, embeddingVec, log)
	groundingContext := BuildGroundingContext(payload, retrieved, s.Cfg.ContextBudget)
	s.auditDispatch(threadID, "grounding_context", groundingContext)

	assessment := s.reason(ctx, groundingContext, retrieved.Titles())
	status := DeriveStatus(assessment, payload.RiskAssessment.RiskScore, s.Cfg.Buckets)

	if err := s.persist(ctx, rec.ID, assessment, status); err != nil {
		// Post-commit store failure: respond with the computed result
		// anyway; the stored record can be repaired out of band.
		log.WithError(err).Error("failed to persist assessment")
	}
	s.auditDispatch(threadID, "rag_output", marshalForAudit(assessment))

	log.WithFields(logrus.Fields{
		"assessment": assessment.Label,
		"action":     assessment.Action,
		"status":     status,
		"fallback":   assessment.Fallback,
	}).Info("analysis complete")

	return &Result{
		CallID:        rec.ID,
		Timestamp:     now,
		InputRisk:     payload.RiskAssessment,
		Assessment:    assessment,
		Status:        status,
		AuditThreadID: threadID,
	}, nil
}

// retrieve fans out one similarity query per category and joins them.
// A nil embedding (embedding provider down) degrades every category to
// an empty result; downstream handles "no evidence" explicitly.
func (s *Service) retrieve(ctx context.Context, embedding []float32, log *logrus.Entry) Retrieved {
	if embedding == nil {
		return Retrieved{}
	}

	specs := []retrieval.CategorySpec{
		{Category: knowledge.CategoryFraudPattern, Limit: s.Cfg.Limits.FraudPatterns},
		{Category: knowledge.CategoryCompliance, Limit: s.Cfg.Limits.Compliance},
		{Category: knowledge.CategoryRiskHeuristic, Limit: s.Cfg.Limits.RiskHeuristics},
	}
	results := retrieval.FanOut(ctx, s.Knowledge, embedding, specs, s.Cfg.CategoryTimeout)

	for cat, res := range results {
		if res.TimedOut {
			log.WithField("category", cat).Warn("knowledge retrieval timed out, category degraded to empty")
		} else if res.Err != nil {
			log.WithField("category", cat).WithError(res.Err).Warn("knowledge retrieval failed, category degraded to empty")
		}
	}

	return Retrieved{
		FraudPatterns:  results[knowledge.CategoryFraudPattern].Results,
		Compliance:     results[knowledge.CategoryCompliance].Results,
		RiskHeuristics: results[knowledge.CategoryRiskHeuristic].Results,
	}
}

// persist writes the assessment and its derived status sequentially.
// Both writes are idempotent and keyed by the unique identifier.
func (s *Service) persist(ctx context.Context, id domain.CallID, a *domain.Assessment, status domain.Status) error {
	if err := s.Calls.UpdateAssessment(ctx, id, a); err != nil {
		return err
	}
	return s.Calls.UpdateStatus(ctx, id, status)
}

func (s *Service) generateOnce(ctx context.Context, system, user string) (*ai.Generation, error) {
	gen, err := s.Generator.Generate(ctx, system, user)
	if err != nil {
		s.Log.WithError(err).Warn("generation attempt failed, retrying once")
		gen, err = s.Generator.Generate(ctx, system, user)
	}
	if err != nil {
		return nil, &errs.DependencyError{Op: "generation", Err: err}
	}
	return gen, nil
}

// openAuditThread creates the audit thread with a short bounded timeout
// so the response can carry the reference. Failures leave the reference
// empty and never affect the request.
func (s *Service) openAuditThread(id domain.CallID) string {
	if s.Audit == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.Cfg.AuditCreateTimeout)
	defer cancel()
	threadID, err := s.Audit.CreateThread(ctx, string(id))
	if err != nil {
		s.Log.WithField("call_id", id).WithError(err).Warn("audit thread creation failed")
		return ""
	}
	return threadID
}

// auditDispatch appends to the audit thread on a detached goroutine.
// The side-channel never delays, alters, or fails the primary response.
func (s *Service) auditDispatch(threadID, label, content string) {
	if s.Audit == nil || threadID == "" {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.Log.WithField("label", label).Warnf("audit dispatch panicked: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.Audit.Append(ctx, threadID, label, content); err != nil {
			s.Log.WithField("label", label).WithError(err).Warn("audit append failed")
		}
	}()
}

func marshalForAudit(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
