package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
)

type AuditRepository struct{ db *sql.DB }

func NewAuditRepository(db *sql.DB) *AuditRepository { return &AuditRepository{db: db} }

func (r *AuditRepository) ContactExists(ctx context.Context, contactID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM audits WHERE contact_id=$1);`, contactID).Scan(&ok)
	return ok, err
}

// CreateWithAnswers inserts the audit and its answers in one transaction
func (r *AuditRepository) CreateWithAnswers(ctx context.Context, a *domain.Audit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	// the unique index on contact_id decides races between concurrent saves
	res, err := tx.ExecContext(ctx, `
INSERT INTO audits (id, contact_id, call_date, analysis_type, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (contact_id) DO NOTHING;`,
		a.ID, a.ContactID, a.CallDate.Format(domain.CallDateLayout), a.AnalysisType, stringOrDash(a.CreatedBy), createdAt)
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicateContact
		}
		return fmt.Errorf("insert audit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicateContact
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO audit_answers (audit_id, ordinal, question_title, answer, description, sub_demand)
VALUES ($1,$2,$3,$4,$5,$6);`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, ans := range a.Answers {
		if _, err := stmt.ExecContext(ctx, a.ID, i, ans.QuestionTitle, ans.Answer, ans.Description, ans.SubDemand); err != nil {
			return fmt.Errorf("insert answer %q: %w", ans.QuestionTitle, err)
		}
	}
	return tx.Commit()
}

func (r *AuditRepository) ListAnswers(ctx context.Context, f domain.Filter) ([]domain.AnswerRow, error) {
	where, args := whereAudits(f, 0)
	if f.QuestionTitle != "" {
		args = append(args, f.QuestionTitle)
		cond := fmt.Sprintf("aa.question_title = $%d", len(args))
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}
	query := `
SELECT a.contact_id, a.call_date::text, a.analysis_type,
       aa.question_title, aa.answer, aa.sub_demand, aa.description
FROM audit_answers aa
JOIN audits a ON a.id = aa.audit_id` + where + `
ORDER BY a.call_date ASC, a.created_at ASC, a.id ASC, aa.ordinal ASC;`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.AnswerRow{}
	for rows.Next() {
		var (
			row      domain.AnswerRow
			callDate string
		)
		if err := rows.Scan(&row.ContactID, &callDate, &row.AnalysisType,
			&row.QuestionTitle, &row.Answer, &row.SubDemand, &row.Description); err != nil {
			return nil, err
		}
		if row.CallDate, err = parseCallDate(callDate); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *AuditRepository) Count(ctx context.Context, f domain.Filter) (int64, error) {
	where, args := whereAudits(f, 0)
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audits a"+where, args...).Scan(&n)
	return n, err
}
