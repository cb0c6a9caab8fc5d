package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

// WorkflowService opens a fresh workspace per request so every operation
// starts from the backend's current state. Writes claim their controls in a
// guard shared by all requests for the same applicant before any state is
// loaded, so two requests cannot both pass a check made on the same snapshot.
type WorkflowService struct {
	deps   Dependencies
	logger *slog.Logger
	busy   inflight
}

func NewWorkflowService(deps Dependencies) *WorkflowService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowService{deps: deps, logger: logger}
}

func (s *WorkflowService) Open(ctx context.Context, session domain.Session) (*Workspace, error) {
	ws, err := NewWorkspace(s.deps, session)
	if err != nil {
		return nil, err
	}
	if err := ws.Open(ctx); err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

func (s *WorkflowService) ListCourses(ctx context.Context) ([]domain.Course, error) {
	courses, err := s.deps.Backend.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch courses: %w", err)
	}
	return courses, nil
}

func (s *WorkflowService) Track(ctx context.Context, session domain.Session) (*domain.TrackingView, error) {
	ws, err := NewWorkspace(s.deps, session)
	if err != nil {
		return nil, err
	}
	defer ws.Close()
	return ws.Track(ctx)
}

func (s *WorkflowService) SelectCourse(ctx context.Context, session domain.Session, priorityIndex int, courseID string) ([]domain.CoursePreference, error) {
	ws, err := NewWorkspace(s.deps, session)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	done, err := s.claim(ws,
		fmt.Sprintf("slot:%d", priorityIndex),
		"course:"+strings.TrimSpace(courseID),
	)
	if err != nil {
		return nil, err
	}
	defer done()

	if err := ws.LoadCourses(ctx); err != nil {
		return nil, err
	}
	if err := ws.Preferences.Load(ctx); err != nil {
		return nil, err
	}
	return ws.SelectCourse(ctx, priorityIndex, courseID)
}

func (s *WorkflowService) UploadOrReplace(ctx context.Context, session domain.Session, docType domain.DocumentType, file domain.Upload) (*domain.Document, error) {
	ws, err := NewWorkspace(s.deps, session)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	done, err := s.claim(ws, "type:"+string(docType))
	if err != nil {
		return nil, err
	}
	defer done()

	if err := ws.Documents.Load(ctx); err != nil {
		return nil, err
	}
	return ws.Documents.UploadOrReplace(ctx, docType, file)
}

func (s *WorkflowService) Submit(ctx context.Context, session domain.Session) (*domain.SubmissionResult, error) {
	ws, err := NewWorkspace(s.deps, session)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	done, err := s.claim(ws, "submit")
	if err != nil {
		return nil, err
	}
	defer done()

	if err := ws.Documents.Load(ctx); err != nil {
		return nil, err
	}
	return ws.Submission.Submit(ctx)
}

// claim reserves the named controls of one applicant across requests.
func (s *WorkflowService) claim(ws *Workspace, controls ...string) (func(), error) {
	keys := make([]string, len(controls))
	for i, control := range controls {
		keys[i] = ws.ApplicantID() + "/" + control
	}
	return s.busy.begin(keys...)
}

// Completeness summarizes required documents for each applicant in order.
func (s *WorkflowService) Completeness(ctx context.Context, applicantIDs []string) ([]domain.CompletenessRow, error) {
	rows := make([]domain.CompletenessRow, 0, len(applicantIDs))
	for _, id := range applicantIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		row, err := s.completenessFor(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("applicant %s: %w", id, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *WorkflowService) completenessFor(ctx context.Context, applicantID string) (domain.CompletenessRow, error) {
	ws, err := NewWorkspace(s.deps, domain.Session{Role: domain.RoleProgramAdmin, ApplicantID: applicantID})
	if err != nil {
		return domain.CompletenessRow{}, err
	}
	defer ws.Close()

	if err := ws.LoadApplicant(ctx); err != nil {
		return domain.CompletenessRow{}, err
	}
	if err := ws.Documents.Load(ctx); err != nil {
		return domain.CompletenessRow{}, err
	}

	applicant, _ := ws.Applicant()
	row := domain.CompletenessRow{
		ApplicantID:      applicantID,
		Name:             applicant.Name(),
		Email:            applicant.Email,
		Missing:          ws.Documents.MissingRequired(),
		MandatoryPresent: true,
	}
	catalog := ws.Documents.Catalog()
	row.Uploaded = len(catalog.Entries()) - len(row.Missing)
	if mandatory, ok := catalog.Mandatory(); ok {
		row.MandatoryPresent = ws.Documents.IsUploaded(mandatory)
	}
	return row, nil
}
