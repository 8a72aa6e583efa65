package chat

import (
	"strings"

	"github.com/voiceops-ai/callground/internal/domain/errs"
	"github.com/voiceops-ai/callground/internal/domain/knowledge"
)

// HistoryCap is the fixed conversation window: only the most recent
// turns up to this cap are included in context, oldest dropped first.
const HistoryCap = 10

const minQuestionLength = 5

// Turn is one message of the caller-supplied conversation history.
// Ephemeral: never persisted by the service.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Filters controls which data sources a question searches.
// SearchKnowledge is a pointer so an omitted field defaults to true.
type Filters struct {
	SearchKnowledge *bool                `json:"search_knowledge"`
	SearchCalls     bool                 `json:"search_calls"`
	Categories      []knowledge.Category `json:"categories"`
	KnowledgeLimit  int                  `json:"knowledge_limit"`
	CallsLimit      int                  `json:"calls_limit"`
}

// Request is the chat endpoint input.
type Request struct {
	Question            string   `json:"question"`
	ConversationHistory []Turn   `json:"conversation_history"`
	Filters             *Filters `json:"filters"`
}

// Source is a single retrieved document or call cited in the answer.
type Source struct {
	Type       string  `json:"type"` // knowledge | call
	DocID      string  `json:"doc_id"`
	Category   string  `json:"category"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// Metadata describes how the answer was produced.
type Metadata struct {
	KnowledgeDocsSearched int    `json:"knowledge_docs_searched"`
	CallsSearched         int    `json:"calls_searched"`
	Model                 string `json:"model"`
	TokensUsed            int    `json:"tokens_used"`
}

// Response is the chat endpoint output.
type Response struct {
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
	Metadata Metadata `json:"metadata"`
}

// resolvedFilters is Filters with defaults applied and limits validated.
type resolvedFilters struct {
	searchKnowledge bool
	searchCalls     bool
	categories      []knowledge.Category
	knowledgeLimit  int
	callsLimit      int
}

const (
	defaultKnowledgeLimit = 5
	defaultCallsLimit     = 3
	maxSourceLimit        = 10
)

// validate checks the request and resolves filter defaults. It must not
// contact any external provider.
func (r *Request) validate() (resolvedFilters, error) {
	v := errs.NewValidationError()

	if len(strings.TrimSpace(r.Question)) < minQuestionLength {
		v.Add("question", "must be at least 5 characters")
	}

	rf := resolvedFilters{
		searchKnowledge: true,
		searchCalls:     false,
		categories:      knowledge.Categories,
		knowledgeLimit:  defaultKnowledgeLimit,
		callsLimit:      defaultCallsLimit,
	}

	if f := r.Filters; f != nil {
		if f.SearchKnowledge != nil {
			rf.searchKnowledge = *f.SearchKnowledge
		}
		rf.searchCalls = f.SearchCalls
		if len(f.Categories) > 0 {
			for _, c := range f.Categories {
				if !knowledge.ValidCategory(c) {
					v.Add("filters.categories", "unknown category: "+string(c))
				}
			}
			rf.categories = f.Categories
		}
		if f.KnowledgeLimit != 0 {
			if f.KnowledgeLimit < 1 || f.KnowledgeLimit > maxSourceLimit {
				v.Add("filters.knowledge_limit", "must be between 1 and 10")
			} else {
				rf.knowledgeLimit = f.KnowledgeLimit
			}
		}
		if f.CallsLimit != 0 {
			if f.CallsLimit < 1 || f.CallsLimit > maxSourceLimit {
				v.Add("filters.calls_limit", "must be between 1 and 10")
			} else {
				rf.callsLimit = f.CallsLimit
			}
		}
	}

	for _, t := range r.ConversationHistory {
		if t.Role != "user" && t.Role != "assistant" {
			v.Add("conversation_history.role", "must be one of: user, assistant")
			break
		}
	}

	if !v.Empty() {
		return resolvedFilters{}, v
	}
	return rf, nil
}

// truncateHistory keeps the most recent turns, dropping oldest first.
func truncateHistory(history []Turn) []Turn {
	if len(history) <= HistoryCap {
		return history
	}
	return history[len(history)-HistoryCap:]
}
