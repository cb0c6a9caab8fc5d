package domain

import "time"

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

type Application struct {
	ID          string            `json:"id" validate:"required"`
	ApplicantID string            `json:"applicant_id,omitempty"`
	Status      ApplicationStatus `json:"status"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
}

type SubmissionOutcome string

const (
	OutcomeSubmitted        SubmissionOutcome = "submitted"
	OutcomeAlreadySubmitted SubmissionOutcome = "already_submitted"
)

type SubmissionResult struct {
	Outcome     SubmissionOutcome `json:"outcome"`
	Application *Application      `json:"application,omitempty"`
}

// TrackedPreference is a preference joined with its course name.
type TrackedPreference struct {
	CoursePreference
	CourseName string `json:"course_name"`
	Label      string `json:"label"`
}

// TrackingView is the applicant-facing summary of one application.
type TrackingView struct {
	Applicant   Applicant           `json:"applicant"`
	Status      ApplicationStatus   `json:"status"`
	Submitted   bool                `json:"submitted"`
	Preferences []TrackedPreference `json:"preferences"`
	Documents   []Document          `json:"documents"`
	Missing     []DocumentTypeInfo  `json:"missing"`
}
