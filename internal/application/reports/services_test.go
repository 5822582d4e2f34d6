package reports

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/transcript-auditor/internal/application"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/reports"
)

type fakeAudits struct {
	mu       sync.Mutex
	rows     []audits.AnswerRow
	count    int64
	countErr error
	filters  []audits.Filter
}

func (f *fakeAudits) ContactExists(ctx context.Context, id string) (bool, error) { return false, nil }

func (f *fakeAudits) CreateWithAnswers(ctx context.Context, a *audits.Audit) error { return nil }

func (f *fakeAudits) ListAnswers(ctx context.Context, flt audits.Filter) ([]audits.AnswerRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, flt)
	var out []audits.AnswerRow
	for _, r := range f.rows {
		if flt.QuestionTitle == "" || r.QuestionTitle == flt.QuestionTitle {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAudits) Count(ctx context.Context, flt audits.Filter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, flt)
	return f.count, f.countErr
}

type fakeStore struct {
	key, contentType string
	body             string
	expiry           time.Duration
}

func (s *fakeStore) Put(ctx context.Context, key, contentType string, r io.Reader, size int64, expiry time.Duration) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if int64(len(b)) != size {
		return "", errors.New("size mismatch")
	}
	s.key, s.contentType, s.body, s.expiry = key, contentType, string(b), expiry
	return "https://files.local/" + key + "?sig=x", nil
}

func date(s string) time.Time {
	t, _ := time.Parse(audits.CallDateLayout, s)
	return t
}

func sampleRows() []audits.AnswerRow {
	return []audits.AnswerRow{
		{ContactID: "c1", CallDate: date("2024-01-01"), QuestionTitle: "Root Cause", Answer: "Billing", SubDemand: "Late Fee"},
		{ContactID: "c2", CallDate: date("2024-01-09"), QuestionTitle: "Root Cause", Answer: "Billing", SubDemand: "Late Fee"},
		{ContactID: "c3", CallDate: date("2024-01-10"), QuestionTitle: "Root Cause", Answer: "Shipping"},
		{ContactID: "c3", CallDate: date("2024-01-10"), QuestionTitle: "Summary", Answer: "Late parcel"},
	}
}

var fixed = application.FixedClock(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

func TestBreakdown(t *testing.T) {
	svc := &Service{Audits: &fakeAudits{rows: sampleRows()}, Clock: fixed}

	got, err := svc.Breakdown(context.Background(), audits.Filter{QuestionTitle: "Root Cause"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Billing", got[0].Answer)
	assert.Equal(t, "66.7", got[0].Percent)

	_, err = svc.Breakdown(context.Background(), audits.Filter{})
	assert.EqualError(t, err, "question is required")
}

func TestDashboard(t *testing.T) {
	repo := &fakeAudits{rows: sampleRows(), count: 3}
	svc := &Service{Audits: repo, Clock: fixed}

	res, err := svc.Dashboard(context.Background(), audits.Filter{QuestionTitle: "Root Cause", AnalysisType: "QA"}, domain.Weekly)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalAudits)
	require.Len(t, res.Trend, 2)
	assert.Equal(t, "2024-01-01", res.Trend[0].Bucket)
	assert.Equal(t, "2024-01-08", res.Trend[1].Bucket)
	assert.Equal(t, 2, res.Trend[1].Total)

	for _, f := range repo.filters {
		assert.Equal(t, "QA", f.AnalysisType)
	}
}

func TestDashboardWithoutQuestion(t *testing.T) {
	svc := &Service{Audits: &fakeAudits{count: 7}, Clock: fixed}
	res, err := svc.Dashboard(context.Background(), audits.Filter{}, domain.Monthly)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.TotalAudits)
	assert.NotNil(t, res.Breakdown)
	assert.Empty(t, res.Trend)
}

func TestDashboardError(t *testing.T) {
	svc := &Service{Audits: &fakeAudits{countErr: errors.New("db down")}, Clock: fixed}
	_, err := svc.Dashboard(context.Background(), audits.Filter{QuestionTitle: "Root Cause"}, domain.Daily)
	assert.ErrorContains(t, err, "db down")
}

func TestExportSummary(t *testing.T) {
	svc := &Service{Audits: &fakeAudits{rows: sampleRows()}, Clock: fixed}
	var buf bytes.Buffer
	require.NoError(t, svc.ExportSummary(context.Background(), audits.Filter{QuestionTitle: "Root Cause"}, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "Root Cause,Count,Percent\nBilling,2,66.7%\n"))
}

func TestPublishExport(t *testing.T) {
	store := &fakeStore{}
	svc := &Service{Audits: &fakeAudits{rows: sampleRows()}, Exports: store, Clock: fixed}

	res, err := svc.PublishExport(context.Background(), audits.Filter{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Key, "exports/2024/02/01/"))
	assert.Equal(t, "https://files.local/"+res.Key+"?sig=x", res.URL)
	assert.Equal(t, time.Time(fixed).Add(15*time.Minute), res.ExpiresAt)
	assert.Equal(t, "text/csv", store.contentType)
	assert.Contains(t, store.body, "contact_id,call_date,Root Cause,Summary\n")
	assert.Contains(t, store.body, "c3,2024-01-10,Shipping,Late parcel\n")
}

func TestPublishExportDisabled(t *testing.T) {
	svc := &Service{Audits: &fakeAudits{}, Clock: fixed}
	_, err := svc.PublishExport(context.Background(), audits.Filter{})
	assert.ErrorIs(t, err, domain.ErrExportDisabled)
}
