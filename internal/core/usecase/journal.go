package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/ports"
)

// JournalObserver receives one callback per recorded event.
type JournalObserver interface {
	StartEvent()
	FinishEvent(service, eventType string, duration time.Duration, err error)
	ObserveEventLag(service string, lag time.Duration)
}

type RecordEventUseCase struct {
	journal  ports.EventJournal
	observer JournalObserver
	service  string
	now      func() time.Time
}

func NewRecordEventUseCase(journal ports.EventJournal, observer JournalObserver, service string) *RecordEventUseCase {
	return &RecordEventUseCase{
		journal:  journal,
		observer: observer,
		service:  service,
		now:      time.Now,
	}
}

// Record appends one delivered workflow event to the journal.
func (uc *RecordEventUseCase) Record(ctx context.Context, event domain.WorkflowEvent) error {
	if event.ID == "" || event.Type == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record workflow event", fmt.Errorf("event id and type are required"))
	}

	started := uc.now()
	if uc.observer != nil {
		uc.observer.StartEvent()
		if !event.OccurredAt.IsZero() {
			uc.observer.ObserveEventLag(uc.service, started.Sub(event.OccurredAt))
		}
	}

	err := uc.journal.Append(ctx, event)
	if uc.observer != nil {
		uc.observer.FinishEvent(uc.service, string(event.Type), uc.now().Sub(started), err)
	}
	if err != nil {
		return fmt.Errorf("journal %s: %w", event.Type, err)
	}
	return nil
}
