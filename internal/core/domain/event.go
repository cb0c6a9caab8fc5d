package domain

import "time"

type EventType string

const (
	EventPreferenceSelected          EventType = "preference.selected"
	EventDocumentUploaded            EventType = "document.uploaded"
	EventDocumentReplaced            EventType = "document.replaced"
	EventApplicationSubmitted        EventType = "application.submitted"
	EventApplicationAlreadySubmitted EventType = "application.already_submitted"
)

// WorkflowEvent records one confirmed workflow step.
type WorkflowEvent struct {
	ID          string            `json:"id"`
	Type        EventType         `json:"type"`
	ApplicantID string            `json:"applicant_id"`
	SubjectID   string            `json:"subject_id,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}
