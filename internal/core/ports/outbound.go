package ports

import (
	"context"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

// ApplicantDirectory reads applicant identity.
type ApplicantDirectory interface {
	GetApplicant(ctx context.Context, applicantID string) (*domain.Applicant, error)
}

// CourseCatalog reads the immutable course reference data.
type CourseCatalog interface {
	ListCourses(ctx context.Context) ([]domain.Course, error)
}

// PreferenceStore persists course preferences.
type PreferenceStore interface {
	ListPreferences(ctx context.Context, applicantID string) ([]domain.CoursePreference, error)
	CreatePreference(ctx context.Context, applicantID string, pref domain.CoursePreference) (*domain.CoursePreference, error)
	UpdatePreference(ctx context.Context, pref domain.CoursePreference) (*domain.CoursePreference, error)
}

// DocumentStore uploads and lists applicant documents.
type DocumentStore interface {
	ListDocuments(ctx context.Context, applicantID string) ([]domain.Document, error)
	UploadDocument(ctx context.Context, applicantID string, docType domain.DocumentType, file domain.Upload) (*domain.Document, error)
	ReplaceDocument(ctx context.Context, documentID string, file domain.Upload) (*domain.Document, error)
}

// ApplicationStore reads and creates application records.
type ApplicationStore interface {
	ListApplications(ctx context.Context, applicantID string) ([]domain.Application, error)
	CreateApplication(ctx context.Context, applicantID string, status domain.ApplicationStatus) (*domain.Application, error)
}

// PortalBackend is the full REST surface of the admissions backend.
type PortalBackend interface {
	ApplicantDirectory
	CourseCatalog
	PreferenceStore
	DocumentStore
	ApplicationStore
}

// SessionStore remembers the acting identity across runs.
type SessionStore interface {
	Load(ctx context.Context) (domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	Clear(ctx context.Context) error
}

// SubmissionLock serializes submit attempts for one applicant across clients.
type SubmissionLock interface {
	Acquire(ctx context.Context, applicantID string) (release func(), acquired bool, err error)
}

// FileInspector checks an upload before it leaves the client.
type FileInspector interface {
	Inspect(ctx context.Context, file domain.Upload) (domain.FileInfo, error)
}

// EventPublisher announces confirmed workflow steps.
type EventPublisher interface {
	PublishWorkflowEvent(ctx context.Context, event domain.WorkflowEvent) error
}

// EventSubscriber delivers workflow events to a handler until ctx ends.
type EventSubscriber interface {
	SubscribeWorkflowEvents(ctx context.Context, handler func(context.Context, domain.WorkflowEvent) error) error
}

// EventJournal persists workflow events.
type EventJournal interface {
	Append(ctx context.Context, event domain.WorkflowEvent) error
}
