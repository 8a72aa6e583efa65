package report

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/errs"
)

type fakeRepo struct {
	rec *domain.CallRecord
}

func (r *fakeRepo) Insert(ctx context.Context, rec *domain.CallRecord) error { return nil }

func (r *fakeRepo) Get(ctx context.Context, id domain.CallID) (*domain.CallRecord, error) {
	if r.rec == nil || r.rec.ID != id {
		return nil, errs.ErrNotFound
	}
	return r.rec, nil
}

func (r *fakeRepo) UpdateEmbedding(ctx context.Context, id domain.CallID, vec []float32) error {
	return nil
}

func (r *fakeRepo) UpdateAssessment(ctx context.Context, id domain.CallID, a *domain.Assessment) error {
	return nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id domain.CallID, status domain.Status) error {
	return nil
}

func (r *fakeRepo) UpdateAuditThread(ctx context.Context, id domain.CallID, threadID string) error {
	return nil
}

func (r *fakeRepo) Recent(ctx context.Context, limit int) ([]*domain.CallRecord, error) {
	return nil, nil
}

func (r *fakeRepo) SearchSummaries(ctx context.Context, embedding []float32, limit int) ([]domain.CallMatch, error) {
	return nil, nil
}

type fakeObjectStore struct {
	key  string
	body string
}

func (s *fakeObjectStore) PutText(ctx context.Context, key, body string) (string, error) {
	s.key = key
	s.body = body
	return "http://store.local/reports/" + key, nil
}

func assessedRecord() *domain.CallRecord {
	return &domain.CallRecord{
		ID:        "call_2026_02_09_a1b2c3",
		Timestamp: time.Date(2026, 2, 9, 12, 30, 0, 0, time.UTC),
		Payload: domain.SignalPayload{
			RiskAssessment: domain.RiskAssessment{RiskScore: 78, FraudLikelihood: "high", Confidence: 0.9},
			RiskSignals:    domain.RiskSignals{BehavioralFlags: []string{"urgency_pressure"}},
			SummaryForRAG:  "Caller demanded an urgent payment redirection to a new account.",
		},
		Assessment: &domain.Assessment{
			Label:           domain.LabelHighRisk,
			Explanation:     "Matches the urgent redirection fraud pattern.",
			Action:          domain.ActionEscalate,
			Confidence:      0.86,
			RegulatoryFlags: []string{"FDCPA 807"},
			MatchedPatterns: []string{"Urgent payment redirection"},
		},
		Status: domain.StatusEscalated,
	}
}

func TestRenderIncludesAssessment(t *testing.T) {
	out := Render(assessedRecord())

	assert.Contains(t, out, "Call ID:    call_2026_02_09_a1b2c3")
	assert.Contains(t, out, "Timestamp:  2026-02-09 12:30:00 UTC")
	assert.Contains(t, out, "Risk Score:        78")
	assert.Contains(t, out, "Behavioral Flags:  urgency_pressure")
	assert.Contains(t, out, "Label:             high_risk")
	assert.Contains(t, out, "Matched Patterns:  Urgent payment redirection")
	assert.NotContains(t, out, "deterministic fallback")
}

func TestRenderUnassessedRecord(t *testing.T) {
	rec := assessedRecord()
	rec.Assessment = nil

	out := Render(rec)
	assert.Contains(t, out, "Not yet assessed.")
}

func TestExportUploadsUnderDeterministicKey(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := &fakeObjectStore{}
	svc := &Service{Calls: &fakeRepo{rec: assessedRecord()}, Store: store, Log: log}

	url, err := svc.Export(context.Background(), "call_2026_02_09_a1b2c3")
	require.NoError(t, err)

	assert.Equal(t, "reports/call_2026_02_09_a1b2c3.txt", store.key)
	assert.Contains(t, store.body, "CALL RISK REPORT")
	assert.Contains(t, url, "call_2026_02_09_a1b2c3.txt")
}

func TestExportUnknownCall(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := &Service{Calls: &fakeRepo{}, Store: &fakeObjectStore{}, Log: log}

	_, err := svc.Export(context.Background(), "call_2026_01_01_ffffff")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
