package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-sql-driver/mysql"

	domain "github.com/voiceops-ai/callground/internal/domain/calls"
	"github.com/voiceops-ai/callground/internal/domain/errs"
)

const duplicateEntry = 1062

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
VALUES (?,?,?,?,?,?,?);
`
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	assessment, err := marshalAssessment(rec.Assessment)
	if err != nil {
		return err
	}
	embedding, err := marshalEmbedding(rec.SummaryEmbedding)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, q,
		rec.ID, rec.Timestamp, payload, embedding, assessment,
		rec.Status, nullableString(rec.AuditThreadID),
	)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == duplicateEntry {
		return errs.ErrDuplicateID
	}
	return err
}

// Get fetches one call record by identifier.
func (r *CallRepository) Get(ctx context.Context, id domain.CallID) (*domain.CallRecord, error) {
	const q = `
SELECT id, created_at, payload, summary_embedding, assessment, status, audit_thread_id
FROM call_records
WHERE id=? LIMIT 1;
`
	rec, err := scanCall(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return rec, err
}

// UpdateEmbedding attaches the summary embedding after the initial insert.
func (r *CallRepository) UpdateEmbedding(ctx context.Context, id domain.CallID, vec []float32) error {
	embedding, err := marshalEmbedding(vec)
	if err != nil {
		return err
	}
	return r.exec(ctx, `UPDATE call_records SET summary_embedding = ? WHERE id = ?;`, embedding, id)
}

// UpdateAssessment persists the grounded assessment. Replaces any prior
// value, so retries are safe.
func (r *CallRepository) UpdateAssessment(ctx context.Context, id domain.CallID, a *domain.Assessment) error {
	assessment, err := marshalAssessment(a)
	if err != nil {
		return err
	}
	return r.exec(ctx, `UPDATE call_records SET assessment = ? WHERE id = ?;`, assessment, id)
}

// UpdateStatus sets the workflow status for an existing record.
func (r *CallRepository) UpdateStatus(ctx context.Context, id domain.CallID, status domain.Status) error {
	return r.exec(ctx, `UPDATE call_records SET status = ? WHERE id = ?;`, status, id)
}

// UpdateAuditThread attaches the external audit thread reference.
func (r *CallRepository) UpdateAuditThread(ctx context.Context, id domain.CallID, threadID string) error {
	return r.exec(ctx, `UPDATE call_records SET audit_thread_id = ? WHERE id = ?;`, nullableString(threadID), id)
}

// Recent returns the newest records first.
func (r *CallRepository) Recent(ctx context.Context, limit int) ([]*domain.CallRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT id, created_at, payload, summary_embedding, assessment, status, audit_thread_id
FROM call_records
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
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

// SearchSummaries loads embedded records and ranks them in process by
// cosine similarity. The postgres backend pushes this into the database;
// here the scan set stays bounded by the analysis volume.
func (r *CallRepository) SearchSummaries(ctx context.Context, embedding []float32, limit int) ([]domain.CallMatch, error) {
	if limit <= 0 {
		limit = 3
	}
	const q = `
SELECT id, created_at, payload, summary_embedding, assessment, status, audit_thread_id
FROM call_records
WHERE summary_embedding IS NOT NULL
ORDER BY created_at DESC, id DESC;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CallMatch
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.CallMatch{
			Record:     rec,
			Similarity: cosineSimilarity(embedding, rec.SummaryEmbedding),
		})
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
	var embeddingJSON, assessment, auditThread sql.NullString
	if err := row.Scan(
		&rec.ID, &rec.Timestamp, &payload, &embeddingJSON, &assessment, &rec.Status, &auditThread,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, fmt.Errorf("unmarshaling payload for %s: %w", rec.ID, err)
	}
	if embeddingJSON.Valid {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &rec.SummaryEmbedding); err != nil {
			return nil, fmt.Errorf("unmarshaling embedding for %s: %w", rec.ID, err)
		}
	}
	if assessment.Valid {
		rec.Assessment = &domain.Assessment{}
		if err := json.Unmarshal([]byte(assessment.String), rec.Assessment); err != nil {
			return nil, fmt.Errorf("unmarshaling assessment for %s: %w", rec.ID, err)
		}
	}
	if auditThread.Valid {
		rec.AuditThreadID = auditThread.String
	}
	return rec, nil
}

func marshalEmbedding(vec []float32) (any, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding: %w", err)
	}
	return data, nil
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
