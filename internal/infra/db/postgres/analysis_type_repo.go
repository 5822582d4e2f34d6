package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/questions"
)

type AnalysisTypeRepository struct{ db *sql.DB }

func NewAnalysisTypeRepository(db *sql.DB) *AnalysisTypeRepository {
	return &AnalysisTypeRepository{db: db}
}

func scanAnalysisType(sc interface{ Scan(...any) error }) (*domain.AnalysisType, error) {
	var (
		t   domain.AnalysisType
		raw []byte
	)
	if err := sc.Scan(&t.ID, &t.OwnerID, &t.Title, &raw, &t.CreatedAt); err != nil {
		return nil, err
	}
	schema, err := domain.DecodeSchema(raw)
	if err != nil {
		return nil, err
	}
	t.Questions = schema
	return &t, nil
}

func (r *AnalysisTypeRepository) List(ctx context.Context, owner string) ([]*domain.AnalysisType, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id::text, owner_id, title, questions, created_at
FROM analysis_types WHERE owner_id=$1 ORDER BY title ASC;`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.AnalysisType{}
	for rows.Next() {
		t, err := scanAnalysisType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *AnalysisTypeRepository) Get(ctx context.Context, owner, title string) (*domain.AnalysisType, error) {
	t, err := scanAnalysisType(r.db.QueryRowContext(ctx, `
SELECT id::text, owner_id, title, questions, created_at
FROM analysis_types WHERE owner_id=$1 AND title=$2 LIMIT 1;`, owner, title))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

// Replace upserts owner+title in a single statement
func (r *AnalysisTypeRepository) Replace(ctx context.Context, t *domain.AnalysisType) error {
	doc, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO analysis_types (id, owner_id, title, questions, created_at, updated_at)
VALUES ($1,$2,$3,$4::jsonb,$5,$6)
ON CONFLICT (owner_id, title) DO UPDATE SET
 questions = EXCLUDED.questions,
 updated_at = EXCLUDED.updated_at;`,
		t.ID, t.OwnerID, t.Title, string(doc), createdAt, now)
	return err
}

func (r *AnalysisTypeRepository) Delete(ctx context.Context, owner, title string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analysis_types WHERE owner_id=$1 AND title=$2;`, owner, title)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
