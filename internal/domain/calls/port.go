package calls

import "context"

// Repository port for call record persistence.
type Repository interface {
	// Insert stores a fresh record with assessment and status unset.
	// Returns errs.ErrDuplicateID on an identifier collision.
	Insert(ctx context.Context, rec *CallRecord) error
	Get(ctx context.Context, id CallID) (*CallRecord, error)
	UpdateEmbedding(ctx context.Context, id CallID, embedding []float32) error
	// UpdateAssessment is idempotent: re-writing the same value succeeds.
	UpdateAssessment(ctx context.Context, id CallID, a *Assessment) error
	// UpdateStatus moves the record through the closed status enum.
	// Returns errs.ErrNotFound when the identifier is unknown.
	UpdateStatus(ctx context.Context, id CallID, status Status) error
	// UpdateAuditThread attaches the external audit thread reference.
	UpdateAuditThread(ctx context.Context, id CallID, threadID string) error
	// Recent returns the most recently analyzed records, newest first.
	Recent(ctx context.Context, limit int) ([]*CallRecord, error)
	// SearchSummaries ranks records by similarity of their stored
	// summary embeddings to the query vector.
	SearchSummaries(ctx context.Context, embedding []float32, limit int) ([]CallMatch, error)
}
