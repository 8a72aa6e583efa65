package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/errs"
)

const uniqueViolation = "23505"

type CallRepository struct {
	db *sql.DB
}

func NewCallRepository(db *sql.DB) *CallRepository {
	return &CallRepository{db: db}
}

// Insert stores a new call record. A primary-key collision surfaces as
// ErrDuplicateID so the caller can regenerate the identifier.
func (r *CallRepository) Insert(ctx context.Context, rec *domain.CallRecord) error {
	const q = `
INSERT INTO call_records
  (id, created_at, payload, summary_embedding, assessment, status, audit_thread_id)
VALUES ($1, $2, $3, $4::vector, $5, $6, $7);`

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	assessment, err := marshalAssessment(rec.Assessment)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, q,
		rec.ID, rec.Timestamp, payload,
		nullableVector(rec.SummaryEmbedding),
		assessment,
		rec.Status, nullableString(rec.AuditThreadID),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return errs.ErrDuplicateID
	}
	return err
}

// Get fetches one call record by identifier.
func (r *CallRepository) Get(ctx context.Context, id domain.CallID) (*domain.CallRecord, error) {
	const q = `
SELECT id, created_at, payload, summary_embedding::text, assessment, status, audit_thread_id
FROM call_records
WHERE id=$1
LIMIT 1;`
	rec, err := scanCall(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return rec, err
}

// UpdateEmbedding attaches the summary embedding after the initial insert.
func (r *CallRepository) UpdateEmbedding(ctx context.Context, id domain.CallID, vec []float32) error {
	const q = `UPDATE call_records SET summary_embedding = $1::vector WHERE id = $2;`
	return r.exec(ctx, q, nullableVector(vec), id)
}

// UpdateAssessment persists the grounded assessment. Replaces any prior
// value, so retries are safe.
func (r *CallRepository) UpdateAssessment(ctx context.Context, id domain.CallID, a *domain.Assessment) error {
	const q = `UPDATE call_records SET assessment = $1 WHERE id = $2;`
	assessment, err := marshalAssessment(a)
	if err != nil {
		return err
	}
	return r.exec(ctx, q, assessment, id)
}

// UpdateStatus sets the workflow status for an existing record.
func (r *CallRepository) UpdateStatus(ctx context.Context, id domain.CallID, status domain.Status) error {
	const q = `UPDATE call_records SET status = $1 WHERE id = $2;`
	return r.exec(ctx, q, status, id)
}

// UpdateAuditThread attaches the external audit thread reference.
func (r *CallRepository) UpdateAuditThread(ctx context.Context, id domain.CallID, threadID string) error {
	const q = `UPDATE call_records SET audit_thread_id = $1 WHERE id = $2;`
	return r.exec(ctx, q, nullableString(threadID), id)
}

// Recent returns the newest records first.
func (r *CallRepository) Recent(ctx context.Context, limit int) ([]*domain.CallRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT id, created_at, payload, summary_embedding::text, assessment, status, audit_thread_id
FROM call_records
ORDER BY created_at DESC, id DESC
LIMIT $1;`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CallRecord
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SearchSummaries ranks records by cosine similarity of their summary
// embeddings. Records without an embedding are excluded.
func (r *CallRepository) SearchSummaries(ctx context.Context, embedding []float32, limit int) ([]domain.CallMatch, error) {
	if limit <= 0 {
		limit = 3
	}
	const q = `
SELECT id, created_at, payload, summary_embedding::text, assessment, status, audit_thread_id,
       1 - (summary_embedding <=> $1::vector) AS similarity
FROM call_records
WHERE summary_embedding IS NOT NULL
ORDER BY summary_embedding <=> $1::vector, id DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, encodeVector(embedding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CallMatch
	for rows.Next() {
		rec := &domain.CallRecord{}
		var payload []byte
		var embeddingText, assessment, auditThread sql.NullString
		var similarity float64
		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &payload, &embeddingText, &assessment, &rec.Status, &auditThread,
			&similarity,
		); err != nil {
			return nil, err
		}
		if err := hydrateCall(rec, payload, embeddingText, assessment, auditThread); err != nil {
			return nil, err
		}
		out = append(out, domain.CallMatch{Record: rec, Similarity: clampSimilarity(similarity)})
	}
	return out, rows.Err()
}

func (r *CallRepository) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*domain.CallRecord, error) {
	rec := &domain.CallRecord{}
	var payload []byte
	var embeddingText, assessment, auditThread sql.NullString
	if err := row.Scan(
		&rec.ID, &rec.Timestamp, &payload, &embeddingText, &assessment, &rec.Status, &auditThread,
	); err != nil {
		return nil, err
	}
	if err := hydrateCall(rec, payload, embeddingText, assessment, auditThread); err != nil {
		return nil, err
	}
	return rec, nil
}

func hydrateCall(rec *domain.CallRecord, payload []byte, embeddingText, assessment, auditThread sql.NullString) error {
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return fmt.Errorf("unmarshaling payload for %s: %w", rec.ID, err)
	}
	if embeddingText.Valid {
		vec, err := decodeVector(embeddingText.String)
		if err != nil {
			return fmt.Errorf("decoding embedding for %s: %w", rec.ID, err)
		}
		rec.SummaryEmbedding = vec
	}
	if assessment.Valid {
		rec.Assessment = &domain.Assessment{}
		if err := json.Unmarshal([]byte(assessment.String), rec.Assessment); err != nil {
			return fmt.Errorf("unmarshaling assessment for %s: %w", rec.ID, err)
		}
	}
	if auditThread.Valid {
		rec.AuditThreadID = auditThread.String
	}
	return nil
}

func nullableVector(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	return encodeVector(vec)
}

func marshalAssessment(a *domain.Assessment) (any, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshaling assessment: %w", err)
	}
	return data, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
