package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/ports"
)

type noopPublisher struct{}

func (noopPublisher) PublishWorkflowEvent(context.Context, domain.WorkflowEvent) error { return nil }

// announce publishes a workflow event; delivery failures never fail the step.
func announce(
	ctx context.Context,
	events ports.EventPublisher,
	logger *slog.Logger,
	eventType domain.EventType,
	applicantID, subjectID string,
	attrs map[string]string,
) {
	if events == nil {
		return
	}
	event := domain.WorkflowEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		ApplicantID: applicantID,
		SubjectID:   subjectID,
		Attributes:  attrs,
		OccurredAt:  time.Now().UTC(),
	}
	if err := events.PublishWorkflowEvent(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("workflow_event_publish_failed",
			"event_type", string(eventType),
			"applicant_id", applicantID,
			"error", err,
		)
	}
}
