package reports

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
)

// Interval enum for dashboard time buckets
type Interval string

const (
	Daily     Interval = "daily"
	Weekly    Interval = "weekly"
	Monthly   Interval = "monthly"
	Quarterly Interval = "quarterly"
	Yearly    Interval = "yearly"
)

// ParseInterval defaults to Weekly when s is empty.
func ParseInterval(s string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return Weekly, nil
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	case Quarterly:
		return Quarterly, nil
	case Yearly:
		return Yearly, nil
	}
	return "", fmt.Errorf("invalid interval: %s (allowed: daily, weekly, monthly, quarterly, yearly)", s)
}

// BucketLabel returns the bucket a call date falls in. Labels sort
// chronologically as strings within one interval.
func (iv Interval) BucketLabel(d time.Time) string {
	switch iv {
	case Daily:
		return d.Format("2006-01-02")
	case Monthly:
		return d.Format("2006-01")
	case Quarterly:
		return fmt.Sprintf("%d-Q%d", d.Year(), (int(d.Month())-1)/3+1)
	case Yearly:
		return d.Format("2006")
	default:
		// week commencing Monday
		offset := (int(d.Weekday()) + 6) % 7
		y, m, day := d.Date()
		return time.Date(y, m, day-offset, 0, 0, 0, 0, d.Location()).Format("2006-01-02")
	}
}

// TrendPoint is the breakdown of one time bucket.
type TrendPoint struct {
	Bucket  string  `json:"bucket"`
	Total   int     `json:"total"`
	Answers Summary `json:"answers"`
}

// Trend groups answer rows by time bucket and aggregates each bucket.
func Trend(rows []audits.AnswerRow, iv Interval) []TrendPoint {
	grouped := map[string][]Row{}
	for _, r := range rows {
		label := iv.BucketLabel(r.CallDate)
		grouped[label] = append(grouped[label], Row{Answer: r.Answer, SubDemand: r.SubDemand})
	}

	labels := make([]string, 0, len(grouped))
	for l := range grouped {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	out := make([]TrendPoint, 0, len(labels))
	for _, l := range labels {
		out = append(out, TrendPoint{Bucket: l, Total: len(grouped[l]), Answers: Aggregate(grouped[l])})
	}
	return out
}

// RowsOf projects joined answer rows onto aggregation rows.
func RowsOf(rows []audits.AnswerRow) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, Row{Answer: r.Answer, SubDemand: r.SubDemand})
	}
	return out
}
