package ports

import (
	"context"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

// ApplicantWorkflow is the inbound contract for the applicant screens.
type ApplicantWorkflow interface {
	ListCourses(ctx context.Context) ([]domain.Course, error)
	Track(ctx context.Context, session domain.Session) (*domain.TrackingView, error)
	SelectCourse(ctx context.Context, session domain.Session, priorityIndex int, courseID string) ([]domain.CoursePreference, error)
	UploadOrReplace(ctx context.Context, session domain.Session, docType domain.DocumentType, file domain.Upload) (*domain.Document, error)
	Submit(ctx context.Context, session domain.Session) (*domain.SubmissionResult, error)
}

// CompletenessReporter builds the admin-facing required-document summary.
type CompletenessReporter interface {
	Completeness(ctx context.Context, applicantIDs []string) ([]domain.CompletenessRow, error)
}
