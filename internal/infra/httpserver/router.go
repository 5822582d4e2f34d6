package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apptypes "github.com/bryanwahyu/transcript-auditor/internal/application/analysistypes"
	appaudits "github.com/bryanwahyu/transcript-auditor/internal/application/audits"
	appreports "github.com/bryanwahyu/transcript-auditor/internal/application/reports"
	appusers "github.com/bryanwahyu/transcript-auditor/internal/application/users"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/ai"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/questions"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/reports"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/users"
	"github.com/bryanwahyu/transcript-auditor/internal/middleware"
)

// maxBody caps request bodies; transcripts of long calls fit comfortably.
const maxBody = 2 << 20

// Deps is everything the router needs. Limiter and Health are optional.
type Deps struct {
	Audits  *appaudits.Service
	Types   *apptypes.Service
	Reports *appreports.Service
	Users   *appusers.Service

	Logger      *zap.Logger
	APIKeys     map[string]string
	Admins      []string
	CORSOrigins []string
	Limiter     *middleware.RateLimiter
	Health      map[string]middleware.HealthChecker
}

type Router struct {
	auditsSvc  *appaudits.Service
	typesSvc   *apptypes.Service
	reportsSvc *appreports.Service
	usersSvc   *appusers.Service
	log        *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{
		auditsSvc:  d.Audits,
		typesSvc:   d.Types,
		reportsSvc: d.Reports,
		usersSvc:   d.Users,
		log:        log,
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.LoggingMiddleware(log))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "Retry-After"},
		MaxAge:         300,
	}))

	// probes
	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	// public registration
	mux.Get("/v1/registration", r.wrap(r.handleRegistrationStatus))
	mux.Post("/v1/register", r.wrap(r.handleRegister))

	var passwords middleware.PasswordAuthenticator
	if d.Users != nil {
		passwords = d.Users
	}
	auth := middleware.Authenticate(d.APIKeys, d.Admins, passwords)
	limit := func(next http.Handler) http.Handler { return next }
	if d.Limiter != nil {
		limit = middleware.RateLimitMiddleware(d.Limiter)
	}

	mux.Group(func(pr chi.Router) {
		pr.Use(auth)

		pr.With(limit).Post("/analyze", r.handleRelay)

		pr.Route("/v1", func(v1 chi.Router) {
			v1.Route("/analysis-types", func(at chi.Router) {
				at.Get("/", r.wrap(r.handleListTypes))
				at.Get("/option-questions", r.wrap(r.handleOptionQuestions))
				at.Get("/{title}", r.wrap(r.handleGetType))
				at.Put("/{title}", r.wrap(r.handleSaveType))
				at.Delete("/{title}", r.wrap(r.handleDeleteType))
			})

			v1.With(limit).Post("/analyses", r.wrap(r.handleAnalyze))
			v1.Post("/audits", r.wrap(r.handleSaveAudit))

			v1.Route("/reports", func(rp chi.Router) {
				rp.Get("/breakdown", r.wrap(r.handleBreakdown))
				rp.Get("/dashboard", r.wrap(r.handleDashboard))
				rp.Get("/export/answers.csv", r.wrap(r.handleExportAnswers))
				rp.Get("/export/summary.csv", r.wrap(r.handleExportSummary))
				rp.Post("/export", r.wrap(r.handlePublishExport))
			})

			v1.Route("/admin", func(ad chi.Router) {
				ad.Use(middleware.RequireAdmin)
				ad.Get("/users", r.wrap(r.handleListUsers))
				ad.Post("/users", r.wrap(r.handleCreateUser))
				ad.Get("/registration", r.wrap(r.handleRegistrationStatus))
				ad.Put("/registration", r.wrap(r.handleSetRegistration))
			})
		})
	})

	return mux
}

//
// ==== ERROR HANDLING ====
//

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errorBody is the JSON shape of every non-2xx answer under /v1.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, body := r.mapError(err)
			if status >= 500 {
				r.log.Error("request failed",
					zap.String("path", req.URL.Path),
					zap.String("request_id", chimw.GetReqID(req.Context())),
					zap.Error(err))
			}
			writeJSON(w, status, body)
		}
	}
}

func (r *Router) mapError(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var ve *audits.ValidationError
	var pe *audits.ParseError
	var me *ai.ModelError
	switch {
	case errors.As(err, &ve):
		body.Field = ve.Field
		return http.StatusBadRequest, body
	case errors.Is(err, questions.ErrInvalidSchema):
		return http.StatusBadRequest, body
	case errors.As(err, &pe):
		body.Kind = string(pe.Kind)
		body.Raw = pe.Raw
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, questions.ErrNotFound), errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, audits.ErrDuplicateContact), errors.Is(err, users.ErrEmailTaken):
		return http.StatusConflict, body
	case errors.Is(err, users.ErrRegistrationClosed):
		return http.StatusForbidden, body
	case errors.Is(err, ai.ErrQuotaExceeded):
		return http.StatusTooManyRequests, body
	case errors.As(err, &me):
		body.Kind = me.Kind.String()
		return http.StatusBadGateway, body
	case errors.Is(err, reports.ErrExportDisabled):
		return http.StatusServiceUnavailable, body
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, body
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(req *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// filterFrom reads analysis_type, from, to and question query params.
func filterFrom(req *http.Request) (audits.Filter, error) {
	q := req.URL.Query()
	from, to, err := middleware.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		return audits.Filter{}, err
	}
	return audits.Filter{
		AnalysisType:  strings.TrimSpace(q.Get("analysis_type")),
		From:          from,
		To:            to,
		QuestionTitle: strings.TrimSpace(q.Get("question")),
	}, nil
}

func titleParam(req *http.Request) string {
	raw := chi.URLParam(req, "title")
	if t, err := url.PathUnescape(raw); err == nil {
		return t
	}
	return raw
}

//
// ==== RELAY ====
//

type relayResponse struct {
	Output string `json:"output"`
}

// POST /analyze
// Keeps the {transcript, prompt} -> {output} contract of the browser client,
// errors included.
func (r *Router) handleRelay(w http.ResponseWriter, req *http.Request) {
	var cmd appaudits.RelayCommand
	if err := json.NewDecoder(io.LimitReader(req.Body, maxBody)).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, relayResponse{Output: "Missing or invalid transcript or prompt."})
		return
	}

	middleware.IncrementAnalyses()
	out, err := r.auditsSvc.Relay(req.Context(), cmd)
	if err != nil {
		var ve *audits.ValidationError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, relayResponse{Output: "Missing or invalid transcript or prompt."})
		case errors.Is(err, ai.ErrEmptyResponse):
			middleware.IncrementModelFailures()
			writeJSON(w, http.StatusInternalServerError, relayResponse{Output: "No valid response from model."})
		default:
			middleware.IncrementModelFailures()
			r.log.Warn("relay failed",
				zap.String("contact_id", cmd.ContactID),
				zap.String("call_date", cmd.CallDate),
				zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, relayResponse{Output: "Something went wrong during AI processing."})
		}
		return
	}
	writeJSON(w, http.StatusOK, relayResponse{Output: out})
}

//
// ==== ANALYSIS TYPES ====
//

// GET /v1/analysis-types
func (r *Router) handleListTypes(w http.ResponseWriter, req *http.Request) error {
	list, err := r.typesSvc.List(req.Context(), middleware.OwnerFrom(req.Context()))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*questions.AnalysisType{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/analysis-types/option-questions
func (r *Router) handleOptionQuestions(w http.ResponseWriter, req *http.Request) error {
	list, err := r.typesSvc.OptionQuestions(req.Context(), middleware.OwnerFrom(req.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/analysis-types/{title}
func (r *Router) handleGetType(w http.ResponseWriter, req *http.Request) error {
	at, err := r.typesSvc.Get(req.Context(), middleware.OwnerFrom(req.Context()), titleParam(req))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, at)
	return nil
}

// PUT /v1/analysis-types/{title}
// Body: the question list, bare or as {"questions": [...]}.
func (r *Router) handleSaveType(w http.ResponseWriter, req *http.Request) error {
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	schema, err := questions.DecodeSchema(raw)
	if err != nil {
		return err
	}

	at, err := r.typesSvc.Save(req.Context(), middleware.OwnerFrom(req.Context()), titleParam(req), schema)
	if errors.Is(err, apptypes.ErrNoChanges) {
		writeJSON(w, http.StatusOK, map[string]any{"saved": false, "message": err.Error(), "analysis_type": at})
		return nil
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": true, "analysis_type": at})
	return nil
}

// DELETE /v1/analysis-types/{title}
func (r *Router) handleDeleteType(w http.ResponseWriter, req *http.Request) error {
	if err := r.typesSvc.Delete(req.Context(), middleware.OwnerFrom(req.Context()), titleParam(req)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

//
// ==== ANALYSES & AUDITS ====
//

// POST /v1/analyses
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var cmd appaudits.AnalyzeCommand
	if err := decode(req, &cmd); err != nil {
		return err
	}

	middleware.IncrementAnalyses()
	res, err := r.auditsSvc.Analyze(req.Context(), middleware.OwnerFrom(req.Context()), cmd)
	var pe *audits.ParseError
	var me *ai.ModelError
	switch {
	case errors.As(err, &pe):
		middleware.IncrementParseFailures()
	case errors.As(err, &me), errors.Is(err, ai.ErrQuotaExceeded):
		middleware.IncrementModelFailures()
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

// POST /v1/audits
func (r *Router) handleSaveAudit(w http.ResponseWriter, req *http.Request) error {
	var cmd appaudits.SaveCommand
	if err := decode(req, &cmd); err != nil {
		return err
	}
	cmd.ContactID = strings.TrimSpace(cmd.ContactID)
	if cmd.ContactID != "" {
		if err := middleware.ValidateContactID(cmd.ContactID); err != nil {
			return err
		}
	}

	a, err := r.auditsSvc.Save(req.Context(), middleware.OwnerFrom(req.Context()), cmd)
	if err != nil {
		return err
	}
	middleware.IncrementAuditsSaved()
	writeJSON(w, http.StatusCreated, a)
	return nil
}

//
// ==== REPORTS ====
//

// GET /v1/reports/breakdown?analysis_type=&from=&to=&question=
func (r *Router) handleBreakdown(w http.ResponseWriter, req *http.Request) error {
	f, err := filterFrom(req)
	if err != nil {
		return err
	}
	s, err := r.reportsSvc.Breakdown(req.Context(), f)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"question": f.QuestionTitle, "breakdown": s})
	return nil
}

// GET /v1/reports/dashboard?...&interval=weekly
func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) error {
	f, err := filterFrom(req)
	if err != nil {
		return err
	}
	iv, err := reports.ParseInterval(req.URL.Query().Get("interval"))
	if err != nil {
		return &audits.ValidationError{Field: "interval", Reason: err.Error()}
	}
	res, err := r.reportsSvc.Dashboard(req.Context(), f, iv)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func csvHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
}

// GET /v1/reports/export/answers.csv
func (r *Router) handleExportAnswers(w http.ResponseWriter, req *http.Request) error {
	f, err := filterFrom(req)
	if err != nil {
		return err
	}
	var buf strings.Builder
	if err := r.reportsSvc.ExportAnswers(req.Context(), f, &buf); err != nil {
		return err
	}
	csvHeaders(w, "answers.csv")
	_, err = io.WriteString(w, buf.String())
	return err
}

// GET /v1/reports/export/summary.csv?question=
func (r *Router) handleExportSummary(w http.ResponseWriter, req *http.Request) error {
	f, err := filterFrom(req)
	if err != nil {
		return err
	}
	var buf strings.Builder
	if err := r.reportsSvc.ExportSummary(req.Context(), f, &buf); err != nil {
		return err
	}
	csvHeaders(w, "summary.csv")
	_, err = io.WriteString(w, buf.String())
	return err
}

// POST /v1/reports/export?analysis_type=&from=&to=
func (r *Router) handlePublishExport(w http.ResponseWriter, req *http.Request) error {
	f, err := filterFrom(req)
	if err != nil {
		return err
	}
	res, err := r.reportsSvc.PublishExport(req.Context(), f)
	if err != nil {
		return err
	}
	middleware.IncrementExportsPublished()
	writeJSON(w, http.StatusCreated, res)
	return nil
}

//
// ==== USERS & REGISTRATION ====
//

type registrationBody struct {
	RegistrationOpen bool `json:"registration_open"`
}

// GET /v1/registration, GET /v1/admin/registration
func (r *Router) handleRegistrationStatus(w http.ResponseWriter, req *http.Request) error {
	open, err := r.usersSvc.RegistrationOpen(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, registrationBody{RegistrationOpen: open})
	return nil
}

// PUT /v1/admin/registration
func (r *Router) handleSetRegistration(w http.ResponseWriter, req *http.Request) error {
	var body registrationBody
	if err := decode(req, &body); err != nil {
		return err
	}
	if err := r.usersSvc.SetRegistrationOpen(req.Context(), body.RegistrationOpen); err != nil {
		return err
	}
	r.log.Info("registration toggled",
		zap.Bool("open", body.RegistrationOpen),
		zap.String("by", middleware.OwnerFrom(req.Context())))
	writeJSON(w, http.StatusOK, body)
	return nil
}

// POST /v1/register
func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) error {
	var c appusers.Credentials
	if err := decode(req, &c); err != nil {
		return err
	}
	u, err := r.usersSvc.Register(req.Context(), c)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, u)
	return nil
}

// GET /v1/admin/users
func (r *Router) handleListUsers(w http.ResponseWriter, req *http.Request) error {
	list, err := r.usersSvc.ListUsers(req.Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []users.User{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

type createUserBody struct {
	appusers.Credentials
	Admin bool `json:"admin"`
}

// POST /v1/admin/users
func (r *Router) handleCreateUser(w http.ResponseWriter, req *http.Request) error {
	var body createUserBody
	if err := decode(req, &body); err != nil {
		return err
	}
	u, err := r.usersSvc.CreateUser(req.Context(), body.Credentials, body.Admin)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, u)
	return nil
}
