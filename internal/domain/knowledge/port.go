package knowledge

import "context"

// Store port over the vector-capable knowledge base.
type Store interface {
	// Search ranks documents of one category by cosine similarity to
	// the query vector, descending, ties kept in insertion order. An
	// empty result is a valid, non-error outcome.
	Search(ctx context.Context, category Category, embedding []float32, limit int) ([]Result, error)
	// Count reports the number of seeded documents across all categories.
	Count(ctx context.Context) (int, error)
	// Upsert inserts or replaces a document. Used by seeding only.
	Upsert(ctx context.Context, doc *Document) error
}
