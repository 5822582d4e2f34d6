package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/transcript-auditor/internal/application"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/reports"
)

const defaultLinkExpiry = 15 * time.Minute

// Service answers dashboard and export queries. Reports are computed on
// demand from stored answers; nothing derived is persisted.
type Service struct {
	Audits     audits.Repository
	Exports    domain.ExportStore // optional
	Clock      application.Clock
	LinkExpiry time.Duration
}

func requireQuestion(f audits.Filter) error {
	if strings.TrimSpace(f.QuestionTitle) == "" {
		return audits.Required("question")
	}
	return nil
}

// Breakdown aggregates the answers of one question.
func (s *Service) Breakdown(ctx context.Context, f audits.Filter) (domain.Summary, error) {
	if err := requireQuestion(f); err != nil {
		return nil, err
	}
	rows, err := s.Audits.ListAnswers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return domain.Aggregate(domain.RowsOf(rows)), nil
}

type DashboardResult struct {
	TotalAudits int64               `json:"total_audits"`
	Question    string              `json:"question,omitempty"`
	Interval    domain.Interval     `json:"interval"`
	Breakdown   domain.Summary      `json:"breakdown"`
	Trend       []domain.TrendPoint `json:"trend"`
}

// Dashboard loads the audit total and, when a question is selected, its
// breakdown overall and per time bucket.
func (s *Service) Dashboard(ctx context.Context, f audits.Filter, iv domain.Interval) (DashboardResult, error) {
	res := DashboardResult{
		Question:  f.QuestionTitle,
		Interval:  iv,
		Breakdown: domain.Summary{},
		Trend:     []domain.TrendPoint{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		countFilter := f
		countFilter.QuestionTitle = ""
		n, err := s.Audits.Count(gctx, countFilter)
		if err != nil {
			return fmt.Errorf("count audits: %w", err)
		}
		res.TotalAudits = n
		return nil
	})

	var rows []audits.AnswerRow
	if strings.TrimSpace(f.QuestionTitle) != "" {
		g.Go(func() error {
			var err error
			rows, err = s.Audits.ListAnswers(gctx, f)
			if err != nil {
				return fmt.Errorf("list answers: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DashboardResult{}, err
	}

	if rows != nil {
		res.Breakdown = domain.Aggregate(domain.RowsOf(rows))
		res.Trend = domain.Trend(rows, iv)
	}
	return res, nil
}

// ExportAnswers streams the wide answers CSV.
func (s *Service) ExportAnswers(ctx context.Context, f audits.Filter, w io.Writer) error {
	rows, err := s.Audits.ListAnswers(ctx, f)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	return domain.WriteAnswersCSV(w, rows)
}

// ExportSummary streams the breakdown of one question as CSV.
func (s *Service) ExportSummary(ctx context.Context, f audits.Filter, w io.Writer) error {
	summary, err := s.Breakdown(ctx, f)
	if err != nil {
		return err
	}
	return domain.WriteSummaryCSV(w, f.QuestionTitle, summary)
}

type ExportResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PublishExport uploads the answers CSV to object storage and returns a
// presigned link to it.
func (s *Service) PublishExport(ctx context.Context, f audits.Filter) (ExportResult, error) {
	if s.Exports == nil {
		return ExportResult{}, domain.ErrExportDisabled
	}
	var buf bytes.Buffer
	if err := s.ExportAnswers(ctx, f, &buf); err != nil {
		return ExportResult{}, err
	}

	expiry := s.LinkExpiry
	if expiry <= 0 {
		expiry = defaultLinkExpiry
	}
	now := s.Clock.Now()
	key := fmt.Sprintf("exports/%s/%s.csv", now.Format("2006/01/02"), uuid.New().String())

	url, err := s.Exports.Put(ctx, key, "text/csv", &buf, int64(buf.Len()), expiry)
	if err != nil {
		return ExportResult{}, fmt.Errorf("upload export: %w", err)
	}
	return ExportResult{Key: key, URL: url, ExpiresAt: now.Add(expiry)}, nil
}
