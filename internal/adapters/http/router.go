package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/eteeap-applicant-client/internal/config"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/ports"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/usecase"
	"github.com/kirillkom/eteeap-applicant-client/internal/observability/metrics"
)

const (
	multipartOverheadBytes = 1 << 20
	backpressureWait       = 2 * time.Second
)

// Router exposes the applicant workflow over HTTP. The applicant id in the
// path is the acting identity; authentication happens in front of the gateway.
type Router struct {
	cfg      config.Config
	workflow ports.ApplicantWorkflow
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
	service  string
}

func NewRouter(cfg config.Config, workflow ports.ApplicantWorkflow, httpMetrics *metrics.HTTPServerMetrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = usecase.DefaultMaxUploadBytes
	}
	return &Router{
		cfg:      cfg,
		workflow: workflow,
		metrics:  httpMetrics,
		logger:   logger,
		service:  "api",
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("GET /v1/courses", rt.listCourses)
	mux.HandleFunc("GET /v1/applicants/{id}/track", rt.track)
	mux.HandleFunc("PUT /v1/applicants/{id}/preferences/{slot}", rt.selectCourse)
	mux.HandleFunc("PUT /v1/applicants/{id}/documents/{type}", rt.uploadDocument)
	mux.HandleFunc("POST /v1/applicants/{id}/submission", rt.submit)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := rt.workflow.ListCourses(r.Context())
	if err != nil {
		rt.fail(w, r, "list_courses", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

func (rt *Router) track(w http.ResponseWriter, r *http.Request) {
	view, err := rt.workflow.Track(r.Context(), sessionFor(r))
	if err != nil {
		rt.fail(w, r, "track", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) selectCourse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CourseID string `json:"courseId"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	prefs, err := rt.workflow.SelectCourse(r.Context(), sessionFor(r), slotIndex(r.PathValue("slot")), req.CourseID)
	rt.record("select_course", err)
	if err != nil {
		rt.fail(w, r, "select_course", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"preferences": prefs,
		"notice":      usecase.SuccessNotice(usecase.PreferenceSavedMessage),
	})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes+multipartOverheadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.fail(w, r, "upload_document", usecase.TooLargeError(rt.cfg.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	docType := domain.DocumentType(strings.ToUpper(strings.TrimSpace(r.PathValue("type"))))
	doc, err := rt.workflow.UploadOrReplace(r.Context(), sessionFor(r), docType, domain.Upload{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	})
	rt.record("upload_document", err)
	if err != nil {
		rt.fail(w, r, "upload_document", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(rt.service, string(docType), int64(len(content)))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"notice":   usecase.SuccessNotice(usecase.FilesUploadedMessage),
	})
}

func (rt *Router) submit(w http.ResponseWriter, r *http.Request) {
	result, err := rt.workflow.Submit(r.Context(), sessionFor(r))
	rt.record("submit", err)
	if err != nil {
		rt.fail(w, r, "submit", err)
		return
	}

	status := http.StatusCreated
	if result.Outcome == domain.OutcomeAlreadySubmitted {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"outcome":     result.Outcome,
		"application": result.Application,
		"notice":      usecase.SubmissionNotice(result),
	})
}

func (rt *Router) record(action string, err error) {
	if rt.metrics != nil {
		rt.metrics.RecordWorkflowAction(rt.service, action, outcomeLabel(err))
	}
}

func (rt *Router) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("workflow_action_failed",
			"request_id", requestIDFromContext(r.Context()),
			"action", action,
			"applicant_id", r.PathValue("id"),
			"error", err,
		)
	}
	notice := usecase.NoticeFor(err)
	writeJSON(w, status, map[string]any{
		"error":  notice.Message,
		"notice": notice,
	})
}

func sessionFor(r *http.Request) domain.Session {
	return domain.Session{
		Role:        domain.RoleApplicant,
		ApplicantID: strings.TrimSpace(r.PathValue("id")),
	}
}

// slotIndex accepts a one-based slot number or a priority name.
func slotIndex(raw string) int {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n - 1
	}
	for i, priority := range domain.PriorityOrders {
		if strings.EqualFold(raw, string(priority)) {
			return i
		}
	}
	return -1
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
