package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/transcript-auditor/internal/application"
	apptypes "github.com/bryanwahyu/transcript-auditor/internal/application/analysistypes"
	appaudits "github.com/bryanwahyu/transcript-auditor/internal/application/audits"
	appreports "github.com/bryanwahyu/transcript-auditor/internal/application/reports"
	appusers "github.com/bryanwahyu/transcript-auditor/internal/application/users"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/ai"
	"github.com/bryanwahyu/transcript-auditor/internal/infra/db/mysql"
	"github.com/bryanwahyu/transcript-auditor/internal/infra/db/sqlite"
	"github.com/bryanwahyu/transcript-auditor/internal/middleware"
)

type stubModel struct {
	out string
	err error
}

func (m *stubModel) Complete(ctx context.Context, prompt string) (string, error) {
	return m.out, m.err
}

const (
	aliceKey = "key-alice"
	adminKey = "key-admin"

	qaSchema = `[
  {"question_title":"Root Cause","type":"options","options":[{"label":"Billing","sub":["Late Fee"]},{"label":"Shipping","sub":[]}]},
  {"question_title":"Summary","type":"sentence","character_limit":80}
]`
)

func modelOutput(answer, sub string) string {
	return `{"questions":[{"title":"Root Cause","answer":"` + answer + `","sub_demand":"` + sub +
		`","description":"None"},{"title":"Summary","answer":"caller asked about a charge","sub_demand":"None","description":"None"}]}`
}

type harness struct {
	handler http.Handler
	model   *stubModel
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := application.FixedClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	typeRepo := mysql.NewAnalysisTypeRepository(db)
	auditRepo := mysql.NewAuditRepository(db)
	model := &stubModel{}

	h := NewRouter(Deps{
		Audits:  &appaudits.Service{Types: typeRepo, Repo: auditRepo, Model: model, Clock: clock},
		Types:   &apptypes.Service{Repo: typeRepo, Clock: clock},
		Reports: &appreports.Service{Audits: auditRepo, Clock: clock},
		Users:   &appusers.Service{Repo: mysql.NewUserRepository(db), Clock: clock, Cost: bcrypt.MinCost},
		APIKeys: map[string]string{"alice": aliceKey, "root": adminKey},
		Admins:  []string{"root"},
		Health:  map[string]middleware.HealthChecker{"database": &middleware.DatabaseHealthChecker{DB: db}},
	})
	return &harness{handler: h, model: model}
}

func (h *harness) do(t *testing.T, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestProbes(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/health", "/live", "/ready", "/metrics"} {
		rec := h.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/v1/analysis-types", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/v1/analysis-types", "wrong", "").Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/v1/admin/users", aliceKey, "").Code)
}

func TestAnalysisTypes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPut, "/v1/analysis-types/QA", aliceKey, qaSchema)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["saved"])

	rec = h.do(t, http.MethodPut, "/v1/analysis-types/QA", aliceKey, `{"questions":`+qaSchema+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["saved"])

	rec = h.do(t, http.MethodPut, "/v1/analysis-types/QA", aliceKey, `{"questions":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/analysis-types/QA", aliceKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "QA", decodeBody(t, rec)["title"])

	// analysis types are scoped to their owner
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/v1/analysis-types/QA", adminKey, "").Code)

	rec = h.do(t, http.MethodGet, "/v1/analysis-types/option-questions", aliceKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"analysis_type":"QA","question_title":"Root Cause"}]`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/v1/analysis-types/QA", aliceKey, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/v1/analysis-types/QA", aliceKey, "").Code)

	rec = h.do(t, http.MethodGet, "/v1/analysis-types", aliceKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAnalyzeSaveAndReport(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPut, "/v1/analysis-types/QA", aliceKey, qaSchema).Code)

	h.model.out = modelOutput("Billing", "Late Fee")
	rec := h.do(t, http.MethodPost, "/v1/analyses", aliceKey, `{"analysis_type":"QA","transcript":"Agent: hi"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, h.model.out, body["raw"])
	assert.NotNil(t, body["answer"])

	save := func(contact, date, out string) *httptest.ResponseRecorder {
		payload, _ := json.Marshal(map[string]string{
			"contact_id": contact, "call_date": date, "analysis_type": "QA", "output": out,
		})
		return h.do(t, http.MethodPost, "/v1/audits", aliceKey, string(payload))
	}
	require.Equal(t, http.StatusCreated, save("C-1", "2024-01-01", modelOutput("Billing", "Late Fee")).Code)
	require.Equal(t, http.StatusCreated, save("C-2", "2024-01-09", modelOutput("Billing", "Late Fee")).Code)
	require.Equal(t, http.StatusCreated, save("C-3", "2024-01-10", modelOutput("Shipping", "None")).Code)

	assert.Equal(t, http.StatusConflict, save("C-1", "2024-01-02", modelOutput("Billing", "None")).Code)
	assert.Equal(t, http.StatusBadRequest, save("C 4", "2024-01-02", modelOutput("Billing", "None")).Code)
	assert.Equal(t, http.StatusBadRequest, save("C-4", "Jan 2", modelOutput("Billing", "None")).Code)

	rec = save("C-5", "2024-01-02", "not json")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "not json", decodeBody(t, rec)["raw"])

	t.Run("breakdown", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/v1/reports/breakdown?analysis_type=QA&question=Root+Cause", aliceKey, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"question":"Root Cause","breakdown":[
			{"answer":"Billing","count":2,"percent":"66.7","sub":[{"label":"Late Fee","count":2,"percent":"100.0"}]},
			{"answer":"Shipping","count":1,"percent":"33.3","sub":[{"label":"None","count":1,"percent":"100.0"}]}
		]}`, rec.Body.String())

		assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/v1/reports/breakdown", aliceKey, "").Code)
		assert.Equal(t, http.StatusBadRequest,
			h.do(t, http.MethodGet, "/v1/reports/breakdown?question=x&from=2024-02-01&to=2024-01-01", aliceKey, "").Code)
	})

	t.Run("dashboard", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/v1/reports/dashboard?question=Root+Cause&interval=weekly", aliceKey, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, float64(3), body["total_audits"])
		assert.Len(t, body["trend"], 2)

		assert.Equal(t, http.StatusBadRequest,
			h.do(t, http.MethodGet, "/v1/reports/dashboard?interval=hourly", aliceKey, "").Code)
	})

	t.Run("csv exports", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/v1/reports/export/summary.csv?question=Root+Cause", aliceKey, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "Root Cause,Count,Percent\nBilling,2,66.7%\n"))

		rec = h.do(t, http.MethodGet, "/v1/reports/export/answers.csv?from=2024-01-05", aliceKey, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "answers.csv")
		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		assert.Equal(t, "contact_id,call_date,Root Cause,Summary", lines[0])
		assert.Len(t, lines, 3)
	})

	t.Run("publish without storage", func(t *testing.T) {
		assert.Equal(t, http.StatusServiceUnavailable, h.do(t, http.MethodPost, "/v1/reports/export", aliceKey, "").Code)
	})
}

func TestAnalyzeErrors(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPut, "/v1/analysis-types/QA", aliceKey, qaSchema).Code)
	const body = `{"analysis_type":"QA","transcript":"Agent: hi"}`

	h.model.out = "I cannot help with that"
	rec := h.do(t, http.MethodPost, "/v1/analyses", aliceKey, body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "I cannot help with that", decodeBody(t, rec)["raw"])

	h.model.out, h.model.err = "", ai.Failed("openai", ai.ErrQuotaExceeded)
	assert.Equal(t, http.StatusTooManyRequests, h.do(t, http.MethodPost, "/v1/analyses", aliceKey, body).Code)

	h.model.err = ai.Failed("openai", errors.New("connection reset"))
	rec = h.do(t, http.MethodPost, "/v1/analyses", aliceKey, body)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "request_failed", decodeBody(t, rec)["kind"])

	rec = h.do(t, http.MethodPost, "/v1/analyses", aliceKey, `{"analysis_type":"Sales","transcript":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/analyses", aliceKey, `{"analysis_type":"QA"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRelay(t *testing.T) {
	h := newHarness(t)

	h.model.out = "  {\"questions\":[]}  "
	rec := h.do(t, http.MethodPost, "/analyze", aliceKey, `{"transcript":"t","prompt":"p","contactId":"C-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"output":"{\"questions\":[]}"}`, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/analyze", aliceKey, `{"transcript":"t"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"output":"Missing or invalid transcript or prompt."}`, rec.Body.String())

	h.model.out = " "
	rec = h.do(t, http.MethodPost, "/analyze", aliceKey, `{"transcript":"t","prompt":"p"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	h.model.err = ai.Failed("relay", errors.New("boom"))
	rec = h.do(t, http.MethodPost, "/analyze", aliceKey, `{"transcript":"t","prompt":"p"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"output":"Something went wrong during AI processing."}`, rec.Body.String())
}

func TestRegistrationAndUsers(t *testing.T) {
	h := newHarness(t)
	creds := `{"email":"Agent@Example.com","password":"correct horse"}`

	rec := h.do(t, http.MethodGet, "/v1/registration", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"registration_open":false}`, rec.Body.String())

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/v1/register", "", creds).Code)

	rec = h.do(t, http.MethodPut, "/v1/admin/registration", adminKey, `{"registration_open":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decodeBody(t, rec)
	assert.Equal(t, "agent@example.com", user["email"])
	assert.NotContains(t, user, "password_hash")

	assert.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/v1/register", "", creds).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/v1/register", "", `{"email":"x@y.z","password":"short"}`).Code)

	t.Run("basic auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/analysis-types", nil)
		req.SetBasicAuth("agent@example.com", "correct horse")
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		req = httptest.NewRequest(http.MethodGet, "/v1/analysis-types", nil)
		req.SetBasicAuth("agent@example.com", "wrong password")
		rec = httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	rec = h.do(t, http.MethodPost, "/v1/admin/users", adminKey, `{"email":"lead@example.com","password":"longenough","admin":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["is_admin"])

	rec = h.do(t, http.MethodGet, "/v1/admin/users", adminKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestRateLimitedAnalyses(t *testing.T) {
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()

	limiter := middleware.NewRateLimiter(1, 1)
	defer limiter.Stop()

	typeRepo := mysql.NewAnalysisTypeRepository(db)
	h := &harness{model: &stubModel{out: "{}"}}
	h.handler = NewRouter(Deps{
		Audits:  &appaudits.Service{Types: typeRepo, Repo: mysql.NewAuditRepository(db), Model: h.model, Clock: application.SystemClock{}},
		Types:   &apptypes.Service{Repo: typeRepo, Clock: application.SystemClock{}},
		APIKeys: map[string]string{"alice": aliceKey},
		Limiter: limiter,
	})

	first := h.do(t, http.MethodPost, "/analyze", aliceKey, `{"transcript":"t","prompt":"p"}`)
	assert.Equal(t, http.StatusOK, first.Code)
	second := h.do(t, http.MethodPost, "/analyze", aliceKey, `{"transcript":"t","prompt":"p"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}
