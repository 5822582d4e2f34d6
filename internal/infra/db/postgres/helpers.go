package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
)

const uniqueViolation = "23505"

// Connect opens a PostgreSQL pool through lib/pq.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func isDuplicate(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func parseCallDate(s string) (time.Time, error) {
	if len(s) < len(audits.CallDateLayout) {
		return time.Time{}, fmt.Errorf("invalid call_date %q", s)
	}
	return time.Parse(audits.CallDateLayout, s[:len(audits.CallDateLayout)])
}

// whereAudits builds the audit filter on alias "a" with $n placeholders
// starting after offset.
func whereAudits(f audits.Filter, offset int) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, offset+len(args)))
	}
	if f.ByType() {
		add("a.analysis_type = $%d", f.AnalysisType)
	}
	if !f.From.IsZero() {
		add("a.call_date >= $%d", f.From.Format(audits.CallDateLayout))
	}
	if !f.To.IsZero() {
		add("a.call_date <= $%d", f.To.Format(audits.CallDateLayout))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
