package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voiceops-ai/callground/internal/application/retrieval"
	"github.com/voiceops-ai/callground/internal/domain/ai"
	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/errs"
	"github.com/voiceops-ai/callground/internal/domain/knowledge"
	"github.com/voiceops-ai/callground/internal/infra/ai/prompt"
)

const insufficientAnswer = "I don't have enough information in the knowledge base to answer that."

const unavailableAnswer = "I'm sorry, the knowledge assistant is temporarily unavailable. Please try again in a moment."

// Config tunes the question-answering engine.
type Config struct {
	CategoryTimeout time.Duration
	Model           string // reported in response metadata
}

// Service implements the question-answering use-case over the knowledge
// base and historical call records. Read-only after construction.
type Service struct {
	Knowledge knowledge.Store
	Calls     domain.Repository
	Embedder  ai.Embedder
	Generator ai.Generator
	Log       *logrus.Logger
	Cfg       Config
}

// Ask answers a free-text question grounded in the configured sources.
// It always returns either a grounded answer with cited sources or an
// explicit insufficient-information statement.
func (s *Service) Ask(ctx context.Context, req *Request) (*Response, error) {
	filters, err := req.validate()
	if err != nil {
		return nil, err
	}

	// An explicit call identifier in the question is an explicit source
	// request; the identifier matcher therefore applies even when the
	// calls source flag is off. Recency phrases require the flag.
	match, matched := DetectDirectLookup(req.Question)
	directCallID := matched && match.CallID != ""
	directRecency := matched && match.LastN > 0 && filters.searchCalls

	if filters.searchKnowledge {
		count, err := s.Knowledge.Count(ctx)
		if err != nil {
			return nil, &errs.DependencyError{Op: "knowledge store", Err: err}
		}
		if count == 0 {
			return nil, errs.ErrKnowledgeEmpty
		}
	}

	needEmbedding := filters.searchKnowledge || (filters.searchCalls && !matched)
	var embedding []float32
	if needEmbedding {
		embedding, err = s.Embedder.Embed(ctx, req.Question)
		if err != nil {
			return nil, err
		}
	}

	var docs []knowledge.Result
	if filters.searchKnowledge {
		docs = s.searchKnowledge(ctx, embedding, filters)
	}

	var matches []domain.CallMatch
	switch {
	case directCallID:
		rec, err := s.Calls.Get(ctx, match.CallID)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return nil, &errs.DependencyError{Op: "call store", Err: err}
		}
		if rec != nil {
			matches = []domain.CallMatch{{Record: rec, Similarity: 1.0, DirectLookup: true}}
		}
	case directRecency:
		recs, err := s.Calls.Recent(ctx, match.LastN)
		if err != nil {
			return nil, &errs.DependencyError{Op: "call store", Err: err}
		}
		for _, rec := range recs {
			matches = append(matches, domain.CallMatch{Record: rec, Similarity: 1.0, DirectLookup: true})
		}
	case filters.searchCalls:
		matches, err = s.Calls.SearchSummaries(ctx, embedding, filters.callsLimit)
		if err != nil {
			s.Log.WithError(err).Warn("call history search failed, continuing without call evidence")
			matches = nil
		}
	}

	sources := collectSources(docs, matches)
	history := truncateHistory(req.ConversationHistory)

	meta := Metadata{
		KnowledgeDocsSearched: len(docs),
		CallsSearched:         len(matches),
		Model:                 s.Cfg.Model,
	}

	// Refusal contract: with no evidence from any source there is
	// nothing to ground an answer in, so don't ask the model to invent one.
	if len(sources) == 0 {
		return &Response{Answer: insufficientAnswer, Sources: []Source{}, Metadata: meta}, nil
	}

	chatContext := buildChatContext(req.Question, docs, matches, history)
	answer, tokens := s.reason(ctx, chatContext)
	meta.TokensUsed = tokens

	return &Response{Answer: answer, Sources: sources, Metadata: meta}, nil
}

// searchKnowledge fans out per category and merges the evidence sets by
// similarity, capped at the requested limit. A degraded category simply
// contributes nothing.
func (s *Service) searchKnowledge(ctx context.Context, embedding []float32, filters resolvedFilters) []knowledge.Result {
	specs := make([]retrieval.CategorySpec, 0, len(filters.categories))
	for _, cat := range filters.categories {
		specs = append(specs, retrieval.CategorySpec{Category: cat, Limit: filters.knowledgeLimit})
	}
	results := retrieval.FanOut(ctx, s.Knowledge, embedding, specs, s.Cfg.CategoryTimeout)

	var docs []knowledge.Result
	for _, cat := range filters.categories {
		res := results[cat]
		if res.TimedOut || res.Err != nil {
			s.Log.WithField("category", cat).Warn("knowledge search degraded for category")
			continue
		}
		docs = append(docs, res.Results...)
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Similarity > docs[j].Similarity })
	if len(docs) > filters.knowledgeLimit {
		docs = docs[:filters.knowledgeLimit]
	}
	return docs
}

// reason runs the citation-constrained generation step with the same
// validation discipline as the grounding reasoner: one transport retry,
// one stricter reshape retry, then a deterministic fallback answer.
func (s *Service) reason(ctx context.Context, chatContext string) (string, int) {
	gen, err := s.generate(ctx, prompt.ChatSystem(), chatContext)
	if err != nil {
		s.Log.WithError(err).Warn("chat generation unavailable, returning fallback answer")
		return unavailableAnswer, 0
	}
	tokens := gen.PromptTokens + gen.CompletionTokens

	answer, ok := parseChatAnswer(gen.Content)
	if ok {
		return answer, tokens
	}
	s.Log.Warn("chat output failed validation, retrying with strict restatement")

	gen, err = s.generate(ctx, prompt.ChatRetry(), chatContext)
	if err != nil {
		return unavailableAnswer, tokens
	}
	tokens += gen.PromptTokens + gen.CompletionTokens
	if answer, ok = parseChatAnswer(gen.Content); ok {
		return answer, tokens
	}
	// Last resort: the raw text is still a grounded response to the
	// assembled context, just not shaped as our JSON contract.
	return gen.Content, tokens
}

func (s *Service) generate(ctx context.Context, system, user string) (*ai.Generation, error) {
	gen, err := s.Generator.Generate(ctx, system, user)
	if err != nil {
		s.Log.WithError(err).Warn("chat generation attempt failed, retrying once")
		gen, err = s.Generator.Generate(ctx, system, user)
	}
	return gen, err
}

func parseChatAnswer(raw string) (string, bool) {
	var out struct {
		Answer    string   `json:"answer"`
		SourceIDs []string `json:"source_ids"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", false
	}
	if out.Answer == "" {
		return "", false
	}
	return out.Answer, true
}

func collectSources(docs []knowledge.Result, matches []domain.CallMatch) []Source {
	sources := make([]Source, 0, len(docs)+len(matches))
	for _, doc := range docs {
		sources = append(sources, Source{
			Type:       "knowledge",
			DocID:      doc.Document.DocID,
			Category:   string(doc.Document.Category),
			Title:      doc.Document.Title,
			Similarity: doc.Similarity,
		})
	}
	for _, m := range matches {
		sources = append(sources, Source{
			Type:       "call",
			DocID:      string(m.Record.ID),
			Category:   "call_analysis",
			Title:      string(m.Record.ID),
			Similarity: m.Similarity,
		})
	}
	return sources
}
