package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/ports"
)

// Dependencies wires the collaborators a Workspace needs.
type Dependencies struct {
	Backend        ports.PortalBackend
	Catalog        domain.DocumentCatalog
	MaxUploadBytes int64
	Inspector      ports.FileInspector
	Lock           ports.SubmissionLock
	Events         ports.EventPublisher
	Logger         *slog.Logger
}

// Workspace is one applicant's application screen: identity, course catalog,
// preferences, documents and the submit flow, bound to a single lifetime.
type Workspace struct {
	session  domain.Session
	backend  ports.PortalBackend
	logger   *slog.Logger
	lifetime context.Context
	close    context.CancelFunc

	Preferences *PreferenceSelector
	Documents   *DocumentTracker
	Submission  *SubmissionGuard

	mu        sync.Mutex
	applicant *domain.Applicant
	courses   []domain.Course
}

func NewWorkspace(deps Dependencies, session domain.Session) (*Workspace, error) {
	if !session.HasApplicant() {
		return nil, domain.WrapError(domain.ErrNoSession, "open workspace", fmt.Errorf("applicant id is empty"))
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("open workspace: backend is nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	applicantID := strings.TrimSpace(session.ApplicantID)

	lifetime, cancel := context.WithCancel(context.Background())
	documents := NewDocumentTracker(lifetime, applicantID, deps.Catalog, deps.Backend, DocumentTrackerOptions{
		MaxUploadBytes: deps.MaxUploadBytes,
		Inspector:      deps.Inspector,
		Events:         deps.Events,
		Logger:         logger,
	})

	return &Workspace{
		session:     session,
		backend:     deps.Backend,
		logger:      logger,
		lifetime:    lifetime,
		close:       cancel,
		Preferences: NewPreferenceSelector(lifetime, applicantID, deps.Backend, deps.Events, logger),
		Documents:   documents,
		Submission: NewSubmissionGuard(lifetime, applicantID, deps.Backend, documents, SubmissionGuardOptions{
			Lock:   deps.Lock,
			Events: deps.Events,
			Logger: logger,
		}),
	}, nil
}

// Close ends the workspace lifetime. In-flight calls are cancelled and their
// results are never applied.
func (w *Workspace) Close() {
	w.close()
}

func (w *Workspace) ApplicantID() string {
	return strings.TrimSpace(w.session.ApplicantID)
}

// Open loads identity, catalog, preferences and documents concurrently.
func (w *Workspace) Open(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.LoadApplicant(gctx) })
	g.Go(func() error { return w.LoadCourses(gctx) })
	g.Go(func() error { return w.Preferences.Load(gctx) })
	g.Go(func() error { return w.Documents.Load(gctx) })
	return g.Wait()
}

func (w *Workspace) LoadApplicant(ctx context.Context) error {
	callCtx, cancel := bindLifetime(ctx, w.lifetime)
	defer cancel()

	applicant, err := w.backend.GetApplicant(callCtx, w.ApplicantID())
	if err != nil {
		return fmt.Errorf("fetch applicant: %w", err)
	}
	if err := alive(w.lifetime); err != nil {
		return err
	}
	w.mu.Lock()
	w.applicant = applicant
	w.mu.Unlock()
	return nil
}

func (w *Workspace) LoadCourses(ctx context.Context) error {
	callCtx, cancel := bindLifetime(ctx, w.lifetime)
	defer cancel()

	courses, err := w.backend.ListCourses(callCtx)
	if err != nil {
		return fmt.Errorf("fetch courses: %w", err)
	}
	if err := alive(w.lifetime); err != nil {
		return err
	}
	w.mu.Lock()
	w.courses = courses
	w.mu.Unlock()
	return nil
}

func (w *Workspace) Applicant() (domain.Applicant, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.applicant == nil {
		return domain.Applicant{ID: w.ApplicantID()}, false
	}
	return *w.applicant, true
}

func (w *Workspace) Courses() []domain.Course {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.Course, len(w.courses))
	copy(out, w.courses)
	return out
}

func (w *Workspace) Course(courseID string) (domain.Course, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.courses {
		if c.ID == courseID {
			return c, true
		}
	}
	return domain.Course{}, false
}

// SelectCourse confirms the course selection dialog for a slot.
func (w *Workspace) SelectCourse(ctx context.Context, priorityIndex int, courseID string) ([]domain.CoursePreference, error) {
	course, ok := w.Course(strings.TrimSpace(courseID))
	if !ok {
		return nil, domain.Reject(domain.ErrInvalidInput, "Course %q is not in the course catalog.", courseID)
	}
	return w.Preferences.SelectCourse(ctx, priorityIndex, course)
}

// Track assembles the application tracking view from fresh backend state.
func (w *Workspace) Track(ctx context.Context) (*domain.TrackingView, error) {
	if err := w.Open(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := bindLifetime(ctx, w.lifetime)
	defer cancel()

	apps, err := w.backend.ListApplications(callCtx, w.ApplicantID())
	if err != nil && !domain.IsKind(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("fetch applications: %w", err)
	}
	if err := alive(w.lifetime); err != nil {
		return nil, err
	}

	applicant, _ := w.Applicant()
	view := &domain.TrackingView{
		Applicant: applicant,
		Status:    domain.ApplicationPending,
		Documents: w.Documents.Files(),
		Missing:   w.Documents.MissingRequired(),
	}
	if len(apps) > 0 {
		view.Submitted = true
		if apps[0].Status != "" {
			view.Status = apps[0].Status
		}
	}
	for _, pref := range w.Preferences.Preferences() {
		name := "Course not found"
		if course, ok := w.Course(pref.CourseID); ok {
			name = course.Name
		}
		view.Preferences = append(view.Preferences, domain.TrackedPreference{
			CoursePreference: pref,
			CourseName:       name,
			Label:            pref.Priority.Label(),
		})
	}
	return view, nil
}
