package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceops-ai/callground/internal/domain/ai"
	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/errs"
	"github.com/voiceops-ai/callground/internal/domain/knowledge"
)

// ── fakes ───────────────────────────────────────────────────────────

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeRepo struct {
	mu          sync.Mutex
	records     map[domain.CallID]*domain.CallRecord
	insertFails int // leading Insert calls rejected with ErrDuplicateID
	inserts     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[domain.CallID]*domain.CallRecord{}}
}

func (r *fakeRepo) Insert(ctx context.Context, rec *domain.CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertFails > 0 {
		r.insertFails--
		return errs.ErrDuplicateID
	}
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, id domain.CallID) (*domain.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return rec, nil
}

func (r *fakeRepo) UpdateEmbedding(ctx context.Context, id domain.CallID, vec []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return errs.ErrNotFound
	}
	rec.SummaryEmbedding = vec
	return nil
}

func (r *fakeRepo) UpdateAssessment(ctx context.Context, id domain.CallID, a *domain.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return errs.ErrNotFound
	}
	rec.Assessment = a
	return nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id domain.CallID, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return errs.ErrNotFound
	}
	rec.Status = status
	return nil
}

func (r *fakeRepo) UpdateAuditThread(ctx context.Context, id domain.CallID, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return errs.ErrNotFound
	}
	rec.AuditThreadID = threadID
	return nil
}

func (r *fakeRepo) Recent(ctx context.Context, limit int) ([]*domain.CallRecord, error) {
	return nil, nil
}

func (r *fakeRepo) SearchSummaries(ctx context.Context, embedding []float32, limit int) ([]domain.CallMatch, error) {
	return nil, nil
}

type fakeStore struct {
	count   int
	docs    map[knowledge.Category][]knowledge.Result
	fail    bool
	queries int
	mu      sync.Mutex
}

func (s *fakeStore) Search(ctx context.Context, cat knowledge.Category, embedding []float32, limit int) ([]knowledge.Result, error) {
	s.mu.Lock()
	s.queries++
	s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store down")
	}
	return s.docs[cat], nil
}

func (s *fakeStore) Count(ctx context.Context) (int, error) { return s.count, nil }

func (s *fakeStore) Upsert(ctx context.Context, doc *knowledge.Document) error { return nil }

type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeGenerator struct {
	outputs []string // consumed in order; last repeats
	err     error
	calls   int
}

func (g *fakeGenerator) Generate(ctx context.Context, system, user string) (*ai.Generation, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	i := g.calls - 1
	if i >= len(g.outputs) {
		i = len(g.outputs) - 1
	}
	return &ai.Generation{Content: g.outputs[i], PromptTokens: 10, CompletionTokens: 20}, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testService(repo *fakeRepo, store *fakeStore, emb *fakeEmbedder, gen *fakeGenerator) *Service {
	return &Service{
		Calls:     repo,
		Knowledge: store,
		Embedder:  emb,
		Generator: gen,
		Clock:     fakeClock{now: time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)},
		Log:       quietLogger(),
		Cfg:       DefaultConfig(),
	}
}

func serviceTestPayload() *domain.SignalPayload {
	p := testPayload()
	p.RiskAssessment.RiskScore = 78
	p.RiskAssessment.FraudLikelihood = "high"
	return p
}

// ── tests ───────────────────────────────────────────────────────────

func TestAnalyzeRejectsInvalidPayloadBeforeAnyDependency(t *testing.T) {
	repo := newFakeRepo()
	emb := &fakeEmbedder{}
	gen := &fakeGenerator{outputs: []string{wellFormedOutput}}
	svc := testService(repo, &fakeStore{count: 5}, emb, gen)

	p := serviceTestPayload()
	p.SummaryForRAG = "short"

	_, err := svc.Analyze(context.Background(), p)

	var vErr *errs.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, repo.inserts)
	assert.Zero(t, emb.calls)
	assert.Zero(t, gen.calls)
}

func TestAnalyzeRejectsEmptyKnowledgeBase(t *testing.T) {
	repo := newFakeRepo()
	gen := &fakeGenerator{outputs: []string{wellFormedOutput}}
	svc := testService(repo, &fakeStore{count: 0}, &fakeEmbedder{}, gen)

	_, err := svc.Analyze(context.Background(), serviceTestPayload())

	require.ErrorIs(t, err, errs.ErrKnowledgeEmpty)
	assert.Zero(t, repo.inserts)
	assert.Zero(t, gen.calls)
}

func TestAnalyzeHappyPath(t *testing.T) {
	repo := newFakeRepo()
	store := &fakeStore{
		count: 5,
		docs: map[knowledge.Category][]knowledge.Result{
			knowledge.CategoryFraudPattern: {
				{Document: knowledge.Document{Title: "Payment promise without commitment specifics", Content: "c"}, Similarity: 0.8},
			},
		},
	}
	svc := testService(repo, store, &fakeEmbedder{}, &fakeGenerator{outputs: []string{wellFormedOutput}})

	res, err := svc.Analyze(context.Background(), serviceTestPayload())
	require.NoError(t, err)

	assert.Regexp(t, `^call_2026_02_09_[0-9a-f]{6}$`, string(res.CallID))
	assert.Equal(t, domain.LabelMediumRisk, res.Assessment.Label)
	assert.Equal(t, domain.StatusInReview, res.Status)
	assert.Equal(t, 78, res.InputRisk.RiskScore)

	stored, err := repo.Get(context.Background(), res.CallID)
	require.NoError(t, err)
	assert.Equal(t, res.Assessment, stored.Assessment)
	assert.Equal(t, domain.StatusInReview, stored.Status)
	assert.NotEmpty(t, stored.SummaryEmbedding)
}

func TestAnalyzeRegeneratesIDOnCollision(t *testing.T) {
	repo := newFakeRepo()
	repo.insertFails = 2
	svc := testService(repo, &fakeStore{count: 1}, &fakeEmbedder{}, &fakeGenerator{outputs: []string{wellFormedOutput}})

	res, err := svc.Analyze(context.Background(), serviceTestPayload())
	require.NoError(t, err)
	assert.Equal(t, 3, repo.inserts)
	assert.NotEmpty(t, res.CallID)
}

func TestAnalyzeGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newFakeRepo()
	repo.insertFails = 10
	svc := testService(repo, &fakeStore{count: 1}, &fakeEmbedder{}, &fakeGenerator{outputs: []string{wellFormedOutput}})

	_, err := svc.Analyze(context.Background(), serviceTestPayload())

	var dErr *errs.DependencyError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, 3, repo.inserts)
}

func TestAnalyzeContinuesWhenEmbeddingFails(t *testing.T) {
	repo := newFakeRepo()
	store := &fakeStore{count: 3}
	svc := testService(repo, store, &fakeEmbedder{err: errors.New("embedding down")}, &fakeGenerator{outputs: []string{wellFormedOutput}})

	res, err := svc.Analyze(context.Background(), serviceTestPayload())
	require.NoError(t, err)

	// retrieval degraded to empty, but reasoning still ran on signals alone
	assert.Zero(t, store.queries)
	assert.NotNil(t, res.Assessment)
	// matched_patterns must be empty: nothing was retrieved to cite
	assert.Empty(t, res.Assessment.MatchedPatterns)
}

func TestAnalyzeFallsBackAfterTwoInvalidGenerations(t *testing.T) {
	repo := newFakeRepo()
	gen := &fakeGenerator{outputs: []string{"not json", "still not json"}}
	svc := testService(repo, &fakeStore{count: 2}, &fakeEmbedder{}, gen)

	res, err := svc.Analyze(context.Background(), serviceTestPayload())
	require.NoError(t, err)

	assert.True(t, res.Assessment.Fallback)
	assert.Equal(t, domain.LabelHighRisk, res.Assessment.Label)
	assert.Equal(t, domain.ActionManualReview, res.Assessment.Action)
	assert.Equal(t, 0.0, res.Assessment.Confidence)
	assert.Equal(t, domain.StatusInReview, res.Status)
	assert.Equal(t, 2, gen.calls)

	stored, err := repo.Get(context.Background(), res.CallID)
	require.NoError(t, err)
	assert.True(t, stored.Assessment.Fallback)
}

func TestAnalyzeFallsBackWhenGeneratorUnavailable(t *testing.T) {
	repo := newFakeRepo()
	gen := &fakeGenerator{err: errors.New("provider down")}
	svc := testService(repo, &fakeStore{count: 2}, &fakeEmbedder{}, gen)

	res, err := svc.Analyze(context.Background(), serviceTestPayload())
	require.NoError(t, err)

	assert.True(t, res.Assessment.Fallback)
	// one call plus one transport retry
	assert.Equal(t, 2, gen.calls)
}

func TestAnalyzeDegradedStoreStillCompletes(t *testing.T) {
	repo := newFakeRepo()
	store := &fakeStore{count: 2, fail: true}
	svc := testService(repo, store, &fakeEmbedder{}, &fakeGenerator{outputs: []string{wellFormedOutput}})

	res, err := svc.Analyze(context.Background(), serviceTestPayload())
	require.NoError(t, err)
	assert.NotNil(t, res.Assessment)
	assert.Empty(t, res.Assessment.MatchedPatterns)
}
