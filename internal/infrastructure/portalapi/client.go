package portalapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/resilience"
)

// CallObserver receives per-call measurements.
type CallObserver interface {
	ObserveCall(operation string, statusCode int, duration time.Duration)
}

type Options struct {
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	Resilience     resilience.Config
	Contract       *ContractChecker
	Metrics        CallObserver
	Logger         *slog.Logger
	UserAgent      string
	HTTPClient     *http.Client
	// ExecutorOptions are passed to the resilience executor, e.g. a breaker state observer.
	ExecutorOptions []resilience.Option
}

// Client talks to the admissions backend REST API and implements ports.PortalBackend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	contract   *ContractChecker
	metrics    CallObserver
	logger     *slog.Logger
	userAgent  string
}

func New(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("portal base url is empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}

	limit := rate.Inf
	if opts.RateLimitRPS > 0 {
		limit = rate.Limit(opts.RateLimitRPS)
	}
	burst := opts.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	executorOpts := append([]resilience.Option{resilience.WithLogger(logger)}, opts.ExecutorOptions...)
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		executor:   resilience.NewExecutor(opts.Resilience, executorOpts...),
		contract:   opts.Contract,
		metrics:    opts.Metrics,
		logger:     logger,
		userAgent:  opts.UserAgent,
	}, nil
}

func (c *Client) GetApplicant(ctx context.Context, applicantID string) (*domain.Applicant, error) {
	req, err := jsonCall("get_applicant", http.MethodGet, "/api/applicants/{id}", map[string]string{"id": applicantID}, nil)
	if err != nil {
		return nil, err
	}
	var wire wireApplicant
	if err := c.decode(ctx, req, &wire); err != nil {
		return nil, err
	}
	applicant := wire.toDomain()
	if applicant.ID == "" {
		applicant.ID = applicantID
	}
	applicant, err = checked(applicant)
	if err != nil {
		return nil, domain.WrapError(domain.ErrServer, req.operation, err)
	}
	return &applicant, nil
}

func (c *Client) ListCourses(ctx context.Context) ([]domain.Course, error) {
	req, err := jsonCall("list_courses", http.MethodGet, "/api/courses", nil, nil)
	if err != nil {
		return nil, err
	}
	var wire []wireCourse
	if err := c.decode(ctx, req, &wire); err != nil {
		return nil, err
	}
	courses := make([]domain.Course, 0, len(wire))
	for _, w := range wire {
		course, err := checked(w.toDomain())
		if err != nil {
			c.logger.Warn("portal_record_skipped", "operation", req.operation, "error", err)
			continue
		}
		courses = append(courses, course)
	}
	return courses, nil
}

func (c *Client) ListPreferences(ctx context.Context, applicantID string) ([]domain.CoursePreference, error) {
	req, err := jsonCall("list_preferences", http.MethodGet, "/api/preferences/applicant/{id}", map[string]string{"id": applicantID}, nil)
	if err != nil {
		return nil, err
	}
	var wire []wirePreference
	if err := c.decode(ctx, req, &wire); err != nil {
		return nil, err
	}
	prefs := make([]domain.CoursePreference, 0, len(wire))
	for _, w := range wire {
		pref := w.toDomain()
		if pref.ApplicantID == "" {
			pref.ApplicantID = applicantID
		}
		pref, err := checked(pref)
		if err != nil {
			c.logger.Warn("portal_record_skipped", "operation", req.operation, "error", err)
			continue
		}
		prefs = append(prefs, pref)
	}
	return prefs, nil
}

func (c *Client) CreatePreference(ctx context.Context, applicantID string, pref domain.CoursePreference) (*domain.CoursePreference, error) {
	payload := map[string]any{
		"course":        map[string]any{"courseId": idValue(pref.CourseID)},
		"priorityOrder": string(pref.Priority),
	}
	req, err := jsonCall("create_preference", http.MethodPost, "/api/preferences/applicant/{id}", map[string]string{"id": applicantID}, payload)
	if err != nil {
		return nil, err
	}
	return c.savePreference(ctx, req, pref)
}

func (c *Client) UpdatePreference(ctx context.Context, pref domain.CoursePreference) (*domain.CoursePreference, error) {
	payload := map[string]any{
		"preferenceId":  idValue(pref.ID),
		"applicant":     map[string]any{"applicantId": idValue(pref.ApplicantID)},
		"course":        map[string]any{"courseId": idValue(pref.CourseID)},
		"priorityOrder": string(pref.Priority),
		"status":        string(pref.Status),
	}
	req, err := jsonCall("update_preference", http.MethodPut, "/api/preferences/{preferenceId}", map[string]string{"preferenceId": pref.ID}, payload)
	if err != nil {
		return nil, err
	}
	return c.savePreference(ctx, req, pref)
}

// savePreference fills fields the backend left out of its echo from the request.
func (c *Client) savePreference(ctx context.Context, req call, sent domain.CoursePreference) (*domain.CoursePreference, error) {
	var wire wirePreference
	if err := c.decode(ctx, req, &wire); err != nil {
		return nil, err
	}
	saved := wire.toDomain()
	if saved.ID == "" {
		saved.ID = sent.ID
	}
	if saved.ApplicantID == "" {
		saved.ApplicantID = sent.ApplicantID
	}
	if saved.CourseID == "" {
		saved.CourseID = sent.CourseID
	}
	if saved.Priority == "" {
		saved.Priority = sent.Priority
	}
	if saved.Status == "" {
		saved.Status = sent.Status
	}
	saved, err := checked(saved)
	if err != nil {
		return nil, domain.WrapError(domain.ErrServer, req.operation, err)
	}
	return &saved, nil
}

func (c *Client) ListDocuments(ctx context.Context, applicantID string) ([]domain.Document, error) {
	req, err := jsonCall("list_documents", http.MethodGet, "/api/documents/applicant/{id}", map[string]string{"id": applicantID}, nil)
	if err != nil {
		return nil, err
	}
	var wire []wireDocument
	if err := c.decode(ctx, req, &wire); err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(wire))
	for _, w := range wire {
		doc := w.toDomain()
		if doc.ApplicantID == "" {
			doc.ApplicantID = applicantID
		}
		doc, err := checked(doc)
		if err != nil {
			c.logger.Warn("portal_record_skipped", "operation", req.operation, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Client) UploadDocument(ctx context.Context, applicantID string, docType domain.DocumentType, file domain.Upload) (*domain.Document, error) {
	body, contentType, err := multipartBody(map[string]string{
		"applicantId":  applicantID,
		"documentType": string(docType),
	}, formFile{field: "files", fileName: file.FileName, contentType: file.ContentType, content: file.Content})
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	req := call{
		operation:   "upload_document",
		method:      http.MethodPost,
		template:    "/api/documents/upload",
		body:        body,
		contentType: contentType,
	}
	doc, err := c.saveDocument(ctx, req)
	if err != nil {
		return nil, err
	}
	if doc.Type == "" {
		doc.Type = docType
	}
	if doc.ApplicantID == "" {
		doc.ApplicantID = applicantID
	}
	return doc, nil
}

func (c *Client) ReplaceDocument(ctx context.Context, documentID string, file domain.Upload) (*domain.Document, error) {
	body, contentType, err := multipartBody(nil, formFile{
		field: "files", fileName: file.FileName, contentType: file.ContentType, content: file.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("build replace form: %w", err)
	}
	req := call{
		operation:   "replace_document",
		method:      http.MethodPut,
		template:    "/api/documents/{documentId}",
		params:      map[string]string{"documentId": documentID},
		body:        body,
		contentType: contentType,
	}
	doc, err := c.saveDocument(ctx, req)
	if err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = documentID
	}
	return doc, nil
}

// saveDocument decodes an upload answer, which is a document or a list of them.
func (c *Client) saveDocument(ctx context.Context, req call) (*domain.Document, error) {
	raw, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	wire, err := decodeOneOrMany[wireDocument](raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrServer, req.operation, fmt.Errorf("decode response: %w", err))
	}
	if len(wire) == 0 {
		return nil, domain.WrapError(domain.ErrServer, req.operation, fmt.Errorf("empty response"))
	}
	doc := wire[0].toDomain()
	if id, ok := req.params["documentId"]; ok && doc.ID == "" {
		doc.ID = id
	}
	doc, err = checked(doc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrServer, req.operation, err)
	}
	return &doc, nil
}

func (c *Client) ListApplications(ctx context.Context, applicantID string) ([]domain.Application, error) {
	req, err := jsonCall("list_applications", http.MethodGet, "/api/applications/applicant/{id}", map[string]string{"id": applicantID}, nil)
	if err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	wire, err := decodeOneOrMany[wireApplication](raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrServer, req.operation, fmt.Errorf("decode response: %w", err))
	}
	apps := make([]domain.Application, 0, len(wire))
	for _, w := range wire {
		app := w.toDomain()
		if app.ApplicantID == "" {
			app.ApplicantID = applicantID
		}
		if _, err := checked(app); err != nil {
			// A record without an id still proves an application exists.
			c.logger.Warn("portal_record_incomplete", "operation", req.operation, "error", err)
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func (c *Client) CreateApplication(ctx context.Context, applicantID string, status domain.ApplicationStatus) (*domain.Application, error) {
	req, err := jsonCall("create_application", http.MethodPost, "/api/applications/applicant/{id}", map[string]string{"id": applicantID},
		map[string]any{"status": string(status)})
	if err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	app := domain.Application{ApplicantID: applicantID, Status: status}
	if len(strings.TrimSpace(string(raw))) > 0 {
		var wire wireApplication
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, domain.WrapError(domain.ErrServer, req.operation, fmt.Errorf("decode response: %w", err))
		}
		decoded := wire.toDomain()
		app.ID = decoded.ID
		app.SubmittedAt = decoded.SubmittedAt
		if decoded.Status != "" {
			app.Status = decoded.Status
		}
	}
	return &app, nil
}

func (c *Client) decode(ctx context.Context, req call, out any) error {
	raw, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.ErrServer, req.operation, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
