package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) ContactExists(ctx context.Context, contactID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM audits WHERE contact_id=?;`
	var n int
	if err := r.db.QueryRowContext(ctx, q, contactID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateWithAnswers inserts the audit and its answers in one transaction
func (r *AuditRepository) CreateWithAnswers(ctx context.Context, a *domain.Audit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM audits WHERE contact_id=?;`, a.ContactID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrDuplicateContact
	}

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	const insAudit = `
INSERT INTO audits (id, contact_id, call_date, analysis_type, created_by, created_at)
VALUES (?,?,?,?,?,?);`
	if _, err := tx.ExecContext(ctx, insAudit,
		a.ID, a.ContactID, a.CallDate.Format(domain.CallDateLayout), a.AnalysisType, stringOrDash(a.CreatedBy), createdAt,
	); err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicateContact
		}
		return fmt.Errorf("insert audit: %w", err)
	}

	const insAnswer = `
INSERT INTO audit_answers (audit_id, ordinal, question_title, answer, description, sub_demand)
VALUES (?,?,?,?,?,?);`
	stmt, err := tx.PrepareContext(ctx, insAnswer)
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

// ListAnswers returns answers joined with their audit, oldest call first
func (r *AuditRepository) ListAnswers(ctx context.Context, f domain.Filter) ([]domain.AnswerRow, error) {
	where, args := whereAudits(f)
	if f.QuestionTitle != "" {
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += "aa.question_title = ?"
		args = append(args, f.QuestionTitle)
	}
	query := `
SELECT a.contact_id, CAST(a.call_date AS CHAR), a.analysis_type,
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

// Count audits matching the filter; QuestionTitle is ignored
func (r *AuditRepository) Count(ctx context.Context, f domain.Filter) (int64, error) {
	where, args := whereAudits(f)
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audits a"+where, args...).Scan(&n)
	return n, err
}
