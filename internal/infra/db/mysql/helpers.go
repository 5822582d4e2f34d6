package mysql

import (
	"errors"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

const (
	mysqlDuplicateEntry = 1062
	// SQLITE_CONSTRAINT_UNIQUE / SQLITE_CONSTRAINT_PRIMARYKEY, the same
	// repositories run on SQLite
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
)

// isDuplicate reports a unique key violation on either supported engine.
func isDuplicate(err error) bool {
	var me *driver.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		c := coded.Code()
		return c == sqliteConstraintUnique || c == sqliteConstraintPrimaryKey
	}
	return false
}

// parseCallDate reads a DATE column selected as text.
func parseCallDate(s string) (time.Time, error) {
	if len(s) < len(audits.CallDateLayout) {
		return time.Time{}, fmt.Errorf("invalid call_date %q", s)
	}
	return time.Parse(audits.CallDateLayout, s[:len(audits.CallDateLayout)])
}

// whereAudits builds the audit filter on alias "a".
func whereAudits(f audits.Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.ByType() {
		conds = append(conds, "a.analysis_type = ?")
		args = append(args, f.AnalysisType)
	}
	if !f.From.IsZero() {
		conds = append(conds, "a.call_date >= ?")
		args = append(args, f.From.Format(audits.CallDateLayout))
	}
	if !f.To.IsZero() {
		conds = append(conds, "a.call_date <= ?")
		args = append(args, f.To.Format(audits.CallDateLayout))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
