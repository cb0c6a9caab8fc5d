package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/ports"
)

type SubmissionState string

const (
	StateNoApplication  SubmissionState = "no_application"
	StateSubmitting     SubmissionState = "submitting"
	StateSubmitted      SubmissionState = "submitted"
	StateHasApplication SubmissionState = "has_application"
)

// DocumentChecker is the part of the document tracker the guard relies on.
type DocumentChecker interface {
	IsUploaded(docType domain.DocumentType) bool
	MandatoryType() (domain.DocumentType, bool)
	Catalog() domain.DocumentCatalog
}

// SubmissionGuard creates at most one application per applicant through a
// read-before-write existence check. Two clients racing past the check can
// still both create a record unless they share a SubmissionLock.
type SubmissionGuard struct {
	applicantID  string
	applications ports.ApplicationStore
	documents    DocumentChecker
	lock         ports.SubmissionLock
	events       ports.EventPublisher
	logger       *slog.Logger
	lifetime     context.Context

	mu          sync.Mutex
	state       SubmissionState
	application *domain.Application
	busy        inflight
}

type SubmissionGuardOptions struct {
	Lock   ports.SubmissionLock
	Events ports.EventPublisher
	Logger *slog.Logger
}

func NewSubmissionGuard(
	lifetime context.Context,
	applicantID string,
	applications ports.ApplicationStore,
	documents DocumentChecker,
	options SubmissionGuardOptions,
) *SubmissionGuard {
	if lifetime == nil {
		lifetime = context.Background()
	}
	events := options.Events
	if events == nil {
		events = noopPublisher{}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionGuard{
		applicantID:  applicantID,
		applications: applications,
		documents:    documents,
		lock:         options.Lock,
		events:       events,
		logger:       logger,
		lifetime:     lifetime,
		state:        StateNoApplication,
	}
}

func (g *SubmissionGuard) State() SubmissionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Submit runs the submit flow once. An existing application is reported as
// already submitted and nothing is created.
func (g *SubmissionGuard) Submit(ctx context.Context) (*domain.SubmissionResult, error) {
	if err := g.requireMandatoryDocument(); err != nil {
		return nil, err
	}

	done, err := g.busy.begin("submit")
	if err != nil {
		return nil, err
	}
	defer done()

	g.mu.Lock()
	switch g.state {
	case StateHasApplication, StateSubmitted:
		result := &domain.SubmissionResult{Outcome: domain.OutcomeAlreadySubmitted, Application: g.application}
		g.mu.Unlock()
		return result, nil
	}
	g.mu.Unlock()

	callCtx, cancel := bindLifetime(ctx, g.lifetime)
	defer cancel()

	release, err := g.acquireLock(callCtx)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := g.existingApplications(callCtx)
	if err != nil {
		g.logger.Error("application_check_failed", "applicant_id", g.applicantID, "error", err)
		return nil, err
	}
	if err := alive(g.lifetime); err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		app := existing[0]
		g.setState(StateHasApplication, &app)
		announce(ctx, g.events, g.logger, domain.EventApplicationAlreadySubmitted, g.applicantID, app.ID, nil)
		g.logger.Info("application_already_submitted", "applicant_id", g.applicantID, "application_id", app.ID)
		return &domain.SubmissionResult{Outcome: domain.OutcomeAlreadySubmitted, Application: &app}, nil
	}

	g.setState(StateSubmitting, nil)
	created, err := g.applications.CreateApplication(callCtx, g.applicantID, domain.ApplicationPending)
	if err == nil && created == nil {
		err = fmt.Errorf("empty response")
	}
	if err != nil {
		g.setState(StateNoApplication, nil)
		g.logger.Error("application_create_failed", "applicant_id", g.applicantID, "error", err)
		return nil, fmt.Errorf("create application: %w", err)
	}

	app := *created
	if app.ApplicantID == "" {
		app.ApplicantID = g.applicantID
	}
	if app.Status == "" {
		app.Status = domain.ApplicationPending
	}
	g.setState(StateSubmitted, &app)

	announce(ctx, g.events, g.logger, domain.EventApplicationSubmitted, g.applicantID, app.ID, map[string]string{
		"status": string(app.Status),
	})
	g.logger.Info("application_submitted", "applicant_id", g.applicantID, "application_id", app.ID)
	return &domain.SubmissionResult{Outcome: domain.OutcomeSubmitted, Application: &app}, nil
}

func (g *SubmissionGuard) requireMandatoryDocument() error {
	mandatory, ok := g.documents.MandatoryType()
	if !ok || g.documents.IsUploaded(mandatory) {
		return nil
	}
	return domain.Reject(domain.ErrMissingMandatoryDocument,
		"You must upload the %q before submitting your application.",
		g.documents.Catalog().Label(mandatory))
}

// existingApplications treats a not-found answer as "no application yet".
func (g *SubmissionGuard) existingApplications(ctx context.Context) ([]domain.Application, error) {
	apps, err := g.applications.ListApplications(ctx, g.applicantID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("check existing application: %w", err)
	}
	return apps, nil
}

func (g *SubmissionGuard) acquireLock(ctx context.Context) (func(), error) {
	if g.lock == nil {
		return func() {}, nil
	}
	release, acquired, err := g.lock.Acquire(ctx, g.applicantID)
	if err != nil {
		g.logger.Warn("submission_lock_unavailable", "applicant_id", g.applicantID, "error", err)
		return func() {}, nil
	}
	if !acquired {
		return nil, domain.Reject(domain.ErrBusy, "Your application is already being submitted. Please wait a moment and check its status.")
	}
	if release == nil {
		release = func() {}
	}
	return release, nil
}

func (g *SubmissionGuard) setState(state SubmissionState, app *domain.Application) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = state
	if app != nil {
		g.application = app
	}
}
