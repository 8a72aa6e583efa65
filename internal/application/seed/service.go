package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/voiceops-ai/callground/internal/domain/ai"
	"github.com/voiceops-ai/callground/internal/domain/knowledge"
)

// knowledgeFiles maps curated JSON files to their expected category.
var knowledgeFiles = []struct {
	Filename string
	Category knowledge.Category
}{
	{"fraud_patterns.json", knowledge.CategoryFraudPattern},
	{"compliance_rules.json", knowledge.CategoryCompliance},
	{"risk_heuristics.json", knowledge.CategoryRiskHeuristic},
}

// Service embeds and upserts curated knowledge documents.
// Run once before the pipeline is operational.
type Service struct {
	Knowledge knowledge.Store
	Embedder  ai.Embedder
	Log       *logrus.Logger
}

// Result summarizes a seeding run.
type Result struct {
	Seeded             bool                       `json:"seeded"`
	DocumentsProcessed int                        `json:"documents_processed"`
	ByCategory         map[knowledge.Category]int `json:"by_category"`
	TotalInDB          int                        `json:"total_in_db"`
	Errors             []string                   `json:"errors,omitempty"`
}

type seedDoc struct {
	DocID    string            `json:"doc_id"`
	Category string            `json:"category"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// SeedDir reads the curated JSON files from dir, embeds each document's
// content, and upserts it into the knowledge store. Per-document
// failures are collected, not fatal.
func (s *Service) SeedDir(ctx context.Context, dir string) (*Result, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("knowledge directory not found: %s", dir)
	}

	res := &Result{Seeded: true, ByCategory: make(map[knowledge.Category]int)}

	for _, kf := range knowledgeFiles {
		path := filepath.Join(dir, kf.Filename)
		data, err := os.ReadFile(path)
		if err != nil {
			s.Log.WithField("file", kf.Filename).Warn("knowledge file not found, skipping")
			res.Errors = append(res.Errors, "file not found: "+kf.Filename)
			continue
		}

		var docs []seedDoc
		if err := json.Unmarshal(data, &docs); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("invalid JSON in %s: %v", kf.Filename, err))
			continue
		}

		for _, d := range docs {
			category := kf.Category
			if d.Category != "" && knowledge.ValidCategory(knowledge.Category(d.Category)) {
				category = knowledge.Category(d.Category)
			}

			embedding, err := s.Embedder.Embed(ctx, d.Content)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("embedding failed for %s: %v", d.DocID, err))
				continue
			}

			doc := &knowledge.Document{
				DocID:     d.DocID,
				Category:  category,
				Title:     d.Title,
				Content:   d.Content,
				Embedding: embedding,
				Metadata:  d.Metadata,
			}
			if err := s.Knowledge.Upsert(ctx, doc); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("upsert failed for %s: %v", d.DocID, err))
				continue
			}

			s.Log.WithFields(logrus.Fields{"doc_id": d.DocID, "category": category}).Info("seeded knowledge document")
			res.ByCategory[kf.Category]++
			res.DocumentsProcessed++
		}
	}

	total, err := s.Knowledge.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting seeded documents: %w", err)
	}
	res.TotalInDB = total

	s.Log.WithFields(logrus.Fields{
		"processed": res.DocumentsProcessed,
		"total":     res.TotalInDB,
	}).Info("knowledge seeding complete")

	return res, nil
}
