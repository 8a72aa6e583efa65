package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/voiceops-ai/callground/internal/domain/knowledge"
)

type KnowledgeRepository struct {
	db *sql.DB
}

func NewKnowledgeRepository(db *sql.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// Search returns the top matches for one category, ranked by cosine
// similarity with seq as the deterministic tiebreaker.
func (r *KnowledgeRepository) Search(ctx context.Context, category knowledge.Category, embedding []float32, limit int) ([]knowledge.Result, error) {
	if limit <= 0 {
		limit = 3
	}
	const q = `
SELECT doc_id, category, title, content, metadata,
       1 - (embedding <=> $1::vector) AS similarity
FROM knowledge_documents
WHERE category=$2
ORDER BY embedding <=> $1::vector, seq ASC
LIMIT $3;`
	rows, err := r.db.QueryContext(ctx, q, encodeVector(embedding), category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []knowledge.Result
	for rows.Next() {
		var doc knowledge.Document
		var metadata []byte
		var similarity float64
		if err := rows.Scan(&doc.DocID, &doc.Category, &doc.Title, &doc.Content, &metadata, &similarity); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for %s: %w", doc.DocID, err)
			}
		}
		out = append(out, knowledge.Result{Document: doc, Similarity: clampSimilarity(similarity)})
	}
	return out, rows.Err()
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
VALUES ($1, $2, $3, $4, $5::vector, $6)
ON CONFLICT (doc_id) DO UPDATE SET
  category = EXCLUDED.category,
  title = EXCLUDED.title,
  content = EXCLUDED.content,
  embedding = EXCLUDED.embedding,
  metadata = EXCLUDED.metadata;`

	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q,
		doc.DocID, doc.Category, doc.Title, doc.Content,
		encodeVector(doc.Embedding), metadata,
	)
	return err
}
