package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceops-ai/callground/internal/domain/knowledge"
)

// scriptedStore answers each category differently: returning results,
// erroring, or blocking past the per-category timeout.
type scriptedStore struct {
	results map[knowledge.Category][]knowledge.Result
	fail    map[knowledge.Category]error
	slow    map[knowledge.Category]bool
}

func (s *scriptedStore) Search(ctx context.Context, cat knowledge.Category, embedding []float32, limit int) ([]knowledge.Result, error) {
	if s.slow[cat] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := s.fail[cat]; err != nil {
		return nil, err
	}
	return s.results[cat], nil
}

func (s *scriptedStore) Count(ctx context.Context) (int, error) { return 0, nil }

func (s *scriptedStore) Upsert(ctx context.Context, doc *knowledge.Document) error { return nil }

func TestFanOutJoinsAllCategories(t *testing.T) {
	store := &scriptedStore{
		results: map[knowledge.Category][]knowledge.Result{
			knowledge.CategoryFraudPattern: {{Similarity: 0.9}},
			knowledge.CategoryCompliance:   {{Similarity: 0.8}, {Similarity: 0.7}},
		},
	}
	specs := []CategorySpec{
		{Category: knowledge.CategoryFraudPattern, Limit: 3},
		{Category: knowledge.CategoryCompliance, Limit: 2},
		{Category: knowledge.CategoryRiskHeuristic, Limit: 2},
	}

	out := FanOut(context.Background(), store, []float32{0.1}, specs, time.Second)

	require.Len(t, out, 3)
	assert.Len(t, out[knowledge.CategoryFraudPattern].Results, 1)
	assert.Len(t, out[knowledge.CategoryCompliance].Results, 2)
	assert.Empty(t, out[knowledge.CategoryRiskHeuristic].Results)
	for _, res := range out {
		assert.False(t, res.TimedOut)
		assert.NoError(t, res.Err)
	}
}

func TestFanOutTimeoutDegradesOnlyThatCategory(t *testing.T) {
	store := &scriptedStore{
		results: map[knowledge.Category][]knowledge.Result{
			knowledge.CategoryCompliance: {{Similarity: 0.8}},
		},
		slow: map[knowledge.Category]bool{knowledge.CategoryFraudPattern: true},
	}
	specs := []CategorySpec{
		{Category: knowledge.CategoryFraudPattern, Limit: 3},
		{Category: knowledge.CategoryCompliance, Limit: 2},
	}

	out := FanOut(context.Background(), store, []float32{0.1}, specs, 20*time.Millisecond)

	assert.True(t, out[knowledge.CategoryFraudPattern].TimedOut)
	assert.Empty(t, out[knowledge.CategoryFraudPattern].Results)
	assert.False(t, out[knowledge.CategoryCompliance].TimedOut)
	assert.Len(t, out[knowledge.CategoryCompliance].Results, 1)
}

func TestFanOutStoreErrorIsReportedNotFatal(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := &scriptedStore{
		fail: map[knowledge.Category]error{knowledge.CategoryRiskHeuristic: storeErr},
	}
	specs := []CategorySpec{{Category: knowledge.CategoryRiskHeuristic, Limit: 2}}

	out := FanOut(context.Background(), store, []float32{0.1}, specs, time.Second)

	res := out[knowledge.CategoryRiskHeuristic]
	assert.ErrorIs(t, res.Err, storeErr)
	assert.False(t, res.TimedOut)
	assert.Empty(t, res.Results)
}
