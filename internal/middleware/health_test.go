package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	ok := CheckFunc(func(ctx context.Context) error { return nil })
	down := CheckFunc(func(ctx context.Context) error { return errors.New("bucket missing") })

	rec := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"database": ok})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"database": ok, "storage": down})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, CheckStatus{Status: "unhealthy", Message: "bucket missing"}, body.Checks["storage"])
	assert.Equal(t, "healthy", body.Checks["database"].Status)
}

func TestMetricsMiddlewareCounts(t *testing.T) {
	before := GetMetrics().Requests.Failed
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, before+1, GetMetrics().Requests.Failed)
	assert.Zero(t, GetMetrics().Requests.InProgress)
}

func TestAuditCounters(t *testing.T) {
	before := GetMetrics().Audits
	IncrementAnalyses()
	IncrementParseFailures()
	IncrementAuditsSaved()
	after := GetMetrics().Audits
	assert.Equal(t, before.Analyses+1, after.Analyses)
	assert.Equal(t, before.ParseFailures+1, after.ParseFailures)
	assert.Equal(t, before.Saved+1, after.Saved)
	assert.Equal(t, before.ModelFailures, after.ModelFailures)
}
