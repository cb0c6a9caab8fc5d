package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

type lockFake struct {
	acquired bool
	err      error
	released int
}

func (l *lockFake) Acquire(context.Context, string) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if !l.acquired {
		return nil, false, nil
	}
	return func() { l.released++ }, true, nil
}

func newGuard(t *testing.T, backend *backendFake, options SubmissionGuardOptions) (*SubmissionGuard, *DocumentTracker) {
	t.Helper()
	tracker := newTracker(t, backend, DocumentTrackerOptions{})
	return NewSubmissionGuard(context.Background(), "7", backend, tracker, options), tracker
}

func withTOR(backend *backendFake) {
	backend.docs = append(backend.docs, domain.Document{
		ID: "d-tor", ApplicantID: "7", Type: domain.DocInformativeCopyOfTOR, FileName: "tor.pdf",
	})
}

func TestSubmitBlockedWithoutMandatoryDocument(t *testing.T) {
	backend := newBackendFake()
	guard, _ := newGuard(t, backend, SubmissionGuardOptions{})

	_, err := guard.Submit(context.Background())
	if !errors.Is(err, domain.ErrMissingMandatoryDocument) {
		t.Fatalf("expected ErrMissingMandatoryDocument, got %v", err)
	}
	want := `You must upload the "Informative Copy of TOR" before submitting your application.`
	if got := NoticeFor(err).Message; got != want {
		t.Fatalf("unexpected message %q", got)
	}
	if backend.count("list_applications") != 0 || backend.count("create_application") != 0 {
		t.Fatalf("expected no network calls, got %v", backend.calls)
	}
	if guard.State() != StateNoApplication {
		t.Fatalf("unexpected state %s", guard.State())
	}
}

func TestSubmitCreatesOnePendingApplication(t *testing.T) {
	backend := newBackendFake()
	withTOR(backend)
	events := &publisherFake{}
	guard, _ := newGuard(t, backend, SubmissionGuardOptions{Events: events})

	result, err := guard.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != domain.OutcomeSubmitted {
		t.Fatalf("expected submitted, got %s", result.Outcome)
	}
	if result.Application.Status != domain.ApplicationPending || result.Application.ApplicantID != "7" {
		t.Fatalf("unexpected application %+v", result.Application)
	}
	if guard.State() != StateSubmitted {
		t.Fatalf("unexpected state %s", guard.State())
	}
	if backend.count("list_applications") != 1 || backend.count("create_application") != 1 {
		t.Fatalf("expected one check and one create, got %v", backend.calls)
	}
	if got := events.types(); len(got) != 1 || got[0] != domain.EventApplicationSubmitted {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestSubmitReportsExistingApplication(t *testing.T) {
	backend := newBackendFake()
	withTOR(backend)
	backend.applications = []domain.Application{{ID: "a-old", ApplicantID: "7", Status: domain.ApplicationPending}}
	guard, _ := newGuard(t, backend, SubmissionGuardOptions{})

	result, err := guard.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != domain.OutcomeAlreadySubmitted || result.Application.ID != "a-old" {
		t.Fatalf("unexpected result %+v", result)
	}
	if backend.count("create_application") != 0 {
		t.Fatalf("expected no create call")
	}
	if guard.State() != StateHasApplication {
		t.Fatalf("unexpected state %s", guard.State())
	}
}

func TestSubmitTreatsNotFoundAsNoApplication(t *testing.T) {
	backend := newBackendFake()
	withTOR(backend)
	backend.listAppsErr = domain.WrapError(domain.ErrNotFound, "list applications", errors.New("404"))
	guard, _ := newGuard(t, backend, SubmissionGuardOptions{})

	result, err := guard.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != domain.OutcomeSubmitted || backend.count("create_application") != 1 {
		t.Fatalf("expected a created application, got %+v calls=%v", result, backend.calls)
	}
}

func TestSubmitAbortsWhenCheckFails(t *testing.T) {
	backend := newBackendFake()
	withTOR(backend)
	backend.listAppsErr = domain.WrapError(domain.ErrServer, "list applications", errors.New("500"))
	guard, _ := newGuard(t, backend, SubmissionGuardOptions{})

	if _, err := guard.Submit(context.Background()); !domain.IsKind(err, domain.ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
	if backend.count("create_application") != 0 {
		t.Fatalf("expected no create call")
	}
}

func TestSubmitFailureReturnsToNoApplication(t *testing.T) {
	backend := newBackendFake()
	withTOR(backend)
	backend.createErr = domain.WrapError(domain.ErrTemporary, "create application", errors.New("timeout"))
	guard, _ := newGuard(t, backend, SubmissionGuardOptions{})

	if _, err := guard.Submit(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if guard.State() != StateNoApplication {
		t.Fatalf("expected no_application after failure, got %s", guard.State())
	}

	backend.createErr = nil
	result, err := guard.Submit(context.Background())
	if err != nil || result.Outcome != domain.OutcomeSubmitted {
		t.Fatalf("expected retry to submit, got %+v, %v", result, err)
	}
}

func TestSubmitTwiceCreatesOneRecord(t *testing.T) {
	backend := newBackendFake()
	withTOR(backend)
	guard, _ := newGuard(t, backend, SubmissionGuardOptions{})

	if _, err := guard.Submit(context.Background()); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	result, err := guard.Submit(context.Background())
	if err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}
	if result.Outcome != domain.OutcomeAlreadySubmitted {
		t.Fatalf("expected already_submitted, got %s", result.Outcome)
	}
	if backend.count("create_application") != 1 || len(backend.applications) != 1 {
		t.Fatalf("expected exactly one application, got %d", len(backend.applications))
	}

	// A second screen for the same applicant sees the record through the check.
	other, _ := newGuard(t, backend, SubmissionGuardOptions{})
	result, err = other.Submit(context.Background())
	if err != nil || result.Outcome != domain.OutcomeAlreadySubmitted {
		t.Fatalf("expected already_submitted from a fresh guard, got %+v, %v", result, err)
	}
	if backend.count("create_application") != 1 {
		t.Fatalf("expected no extra create")
	}
}

func TestSubmitLockBehaviour(t *testing.T) {
	t.Run("held elsewhere", func(t *testing.T) {
		backend := newBackendFake()
		withTOR(backend)
		guard, _ := newGuard(t, backend, SubmissionGuardOptions{Lock: &lockFake{acquired: false}})

		_, err := guard.Submit(context.Background())
		if !errors.Is(err, domain.ErrBusy) {
			t.Fatalf("expected ErrBusy, got %v", err)
		}
		if backend.count("list_applications") != 0 {
			t.Fatalf("expected no check while lock is held elsewhere")
		}
	})

	t.Run("acquired and released", func(t *testing.T) {
		backend := newBackendFake()
		withTOR(backend)
		lock := &lockFake{acquired: true}
		guard, _ := newGuard(t, backend, SubmissionGuardOptions{Lock: lock})

		if _, err := guard.Submit(context.Background()); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if lock.released != 1 {
			t.Fatalf("expected lock released once, got %d", lock.released)
		}
	})

	t.Run("backend down", func(t *testing.T) {
		backend := newBackendFake()
		withTOR(backend)
		guard, _ := newGuard(t, backend, SubmissionGuardOptions{Lock: &lockFake{err: errors.New("dial tcp: refused")}})

		result, err := guard.Submit(context.Background())
		if err != nil || result.Outcome != domain.OutcomeSubmitted {
			t.Fatalf("expected submit to proceed without lock, got %+v, %v", result, err)
		}
	})
}

func TestSubmitOnlyRequiresMandatoryDocument(t *testing.T) {
	backend := newBackendFake()
	withTOR(backend)
	guard, tracker := newGuard(t, backend, SubmissionGuardOptions{})

	if len(tracker.MissingRequired()) == 0 {
		t.Fatalf("expected other document types to be missing")
	}
	if _, err := guard.Submit(context.Background()); err != nil {
		t.Fatalf("expected submit with only the mandatory document, got %v", err)
	}
}
