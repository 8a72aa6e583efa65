package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/voiceops-ai/callground/internal/domain/knowledge"
)

// KnowledgeRepository stores embeddings as JSON arrays and ranks
// candidates in process. Adequate for the curated knowledge base, which
// stays small; the postgres backend does the ranking in the database.
type KnowledgeRepository struct {
	db *sql.DB
}

func NewKnowledgeRepository(db *sql.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// Search loads all documents of the category and ranks them by cosine
// similarity, insertion order breaking ties.
func (r *KnowledgeRepository) Search(ctx context.Context, category knowledge.Category, embedding []float32, limit int) ([]knowledge.Result, error) {
	if limit <= 0 {
		limit = 3
	}
	const q = `
SELECT doc_id, category, title, content, embedding, metadata
FROM knowledge_documents
WHERE category=? ORDER BY seq ASC;
`
	rows, err := r.db.QueryContext(ctx, q, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []knowledge.Result
	for rows.Next() {
		var doc knowledge.Document
		var embeddingJSON, metadata []byte
		if err := rows.Scan(&doc.DocID, &doc.Category, &doc.Title, &doc.Content, &embeddingJSON, &metadata); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(embeddingJSON, &doc.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshaling embedding for %s: %w", doc.DocID, err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for %s: %w", doc.DocID, err)
			}
		}
		out = append(out, knowledge.Result{Document: doc, Similarity: cosineSimilarity(embedding, doc.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Similarity = clampSimilarity(out[i].Similarity)
	}
	return out, nil
}

// Count returns the total number of knowledge documents.
func (r *KnowledgeRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_documents;`).Scan(&count)
	return count, err
}

// Upsert inserts or replaces a document keyed by doc_id.
func (r *KnowledgeRepository) Upsert(ctx context.Context, doc *knowledge.Document) error {
	const q = `
INSERT INTO knowledge_documents (doc_id, category, title, content, embedding, metadata)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 category=VALUES(category), title=VALUES(title), content=VALUES(content),
 embedding=VALUES(embedding), metadata=VALUES(metadata);
`
	embeddingJSON, err := json.Marshal(doc.Embedding)
	if err != nil {
		return fmt.Errorf("marshaling embedding: %w", err)
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q,
		doc.DocID, doc.Category, doc.Title, doc.Content, embeddingJSON, metadata,
	)
	return err
}
