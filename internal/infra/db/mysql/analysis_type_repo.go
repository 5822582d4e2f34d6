package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/questions"
)

type AnalysisTypeRepository struct {
	db *sql.DB
}

func NewAnalysisTypeRepository(db *sql.DB) *AnalysisTypeRepository {
	return &AnalysisTypeRepository{db: db}
}

func scanAnalysisType(sc interface{ Scan(...any) error }) (*domain.AnalysisType, error) {
	var (
		t   domain.AnalysisType
		raw string
	)
	if err := sc.Scan(&t.ID, &t.OwnerID, &t.Title, &raw, &t.CreatedAt); err != nil {
		return nil, err
	}
	schema, err := domain.DecodeSchema([]byte(raw))
	if err != nil {
		return nil, err
	}
	t.Questions = schema
	return &t, nil
}

func (r *AnalysisTypeRepository) List(ctx context.Context, owner string) ([]*domain.AnalysisType, error) {
	const q = `
SELECT id, owner_id, title, questions, created_at
FROM analysis_types
WHERE owner_id=?
ORDER BY title ASC;`
	rows, err := r.db.QueryContext(ctx, q, owner)
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
	const q = `
SELECT id, owner_id, title, questions, created_at
FROM analysis_types
WHERE owner_id=? AND title=?
LIMIT 1;`
	t, err := scanAnalysisType(r.db.QueryRowContext(ctx, q, owner, title))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

// Replace updates the schema of owner+title or inserts it, in one transaction
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analysis_types WHERE owner_id=? AND title=?;`, t.OwnerID, t.Title,
	).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE analysis_types SET questions=?, updated_at=? WHERE owner_id=? AND title=?;`,
			string(doc), now, t.OwnerID, t.Title)
	} else {
		_, err = tx.ExecContext(ctx, `
INSERT INTO analysis_types (id, owner_id, title, questions, created_at, updated_at)
VALUES (?,?,?,?,?,?);`, t.ID, t.OwnerID, t.Title, string(doc), createdAt, now)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *AnalysisTypeRepository) Delete(ctx context.Context, owner, title string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analysis_types WHERE owner_id=? AND title=?;`, owner, title)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
