package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// counters for the HTTP layer and the audit pipeline
var (
	requestsTotal      atomic.Uint64
	requestsInProgress atomic.Int64
	requestsSuccess    atomic.Uint64
	requestsFailed     atomic.Uint64

	analysesTotal    atomic.Uint64
	modelFailures    atomic.Uint64
	parseFailures    atomic.Uint64
	auditsSaved      atomic.Uint64
	exportsPublished atomic.Uint64

	startedAt = time.Now()
)

// IncrementAnalyses counts model invocations (analyze and relay)
func IncrementAnalyses() { analysesTotal.Add(1) }

// IncrementModelFailures counts gateway errors
func IncrementModelFailures() { modelFailures.Add(1) }

// IncrementParseFailures counts model outputs rejected by the parser
func IncrementParseFailures() { parseFailures.Add(1) }

func IncrementAuditsSaved() { auditsSaved.Add(1) }

func IncrementExportsPublished() { exportsPublished.Add(1) }

// Snapshot is the /metrics document.
type Snapshot struct {
	Requests struct {
		Total      uint64 `json:"total"`
		InProgress int64  `json:"in_progress"`
		Success    uint64 `json:"success"`
		Failed     uint64 `json:"failed"`
	} `json:"requests"`
	Audits struct {
		Analyses         uint64 `json:"analyses"`
		ModelFailures    uint64 `json:"model_failures"`
		ParseFailures    uint64 `json:"parse_failures"`
		Saved            uint64 `json:"saved"`
		ExportsPublished uint64 `json:"exports_published"`
	} `json:"audits"`
	Runtime struct {
		UptimeSeconds float64 `json:"uptime_seconds"`
		Goroutines    int     `json:"goroutines"`
		AllocBytes    uint64  `json:"alloc_bytes"`
		SysBytes      uint64  `json:"sys_bytes"`
		NumGC         uint32  `json:"num_gc"`
	} `json:"runtime"`
}

// GetMetrics returns current metrics
func GetMetrics() Snapshot {
	var s Snapshot
	s.Requests.Total = requestsTotal.Load()
	s.Requests.InProgress = requestsInProgress.Load()
	s.Requests.Success = requestsSuccess.Load()
	s.Requests.Failed = requestsFailed.Load()

	s.Audits.Analyses = analysesTotal.Load()
	s.Audits.ModelFailures = modelFailures.Load()
	s.Audits.ParseFailures = parseFailures.Load()
	s.Audits.Saved = auditsSaved.Load()
	s.Audits.ExportsPublished = exportsPublished.Load()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	s.Runtime.UptimeSeconds = time.Since(startedAt).Seconds()
	s.Runtime.Goroutines = runtime.NumGoroutine()
	s.Runtime.AllocBytes = m.Alloc
	s.Runtime.SysBytes = m.Sys
	s.Runtime.NumGC = m.NumGC
	return s
}

// MetricsMiddleware counts requests; 4xx and 5xx are failures
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsTotal.Add(1)
		requestsInProgress.Add(1)
		defer requestsInProgress.Add(-1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < 400 {
			requestsSuccess.Add(1)
		} else {
			requestsFailed.Add(1)
		}
	})
}

func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GetMetrics())
}
