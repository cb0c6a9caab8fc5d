package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

func newSelector(t *testing.T, backend *backendFake) *PreferenceSelector {
	t.Helper()
	s := NewPreferenceSelector(context.Background(), "7", backend, nil, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

func assertUniquePreferences(t *testing.T, prefs []domain.CoursePreference) {
	t.Helper()
	slots := map[domain.PriorityOrder]bool{}
	courses := map[string]bool{}
	for _, p := range prefs {
		if slots[p.Priority] {
			t.Fatalf("duplicate priority %s in %+v", p.Priority, prefs)
		}
		if courses[p.CourseID] {
			t.Fatalf("duplicate course %s in %+v", p.CourseID, prefs)
		}
		slots[p.Priority] = true
		courses[p.CourseID] = true
	}
}

func TestSelectCourseCreatesThenUpdatesSlot(t *testing.T) {
	backend := newBackendFake()
	s := newSelector(t, backend)

	prefs, err := s.SelectCourse(context.Background(), 0, backend.courses[0])
	if err != nil {
		t.Fatalf("SelectCourse() error = %v", err)
	}
	if len(prefs) != 1 || prefs[0].Priority != domain.PriorityFirst || prefs[0].CourseID != "1" {
		t.Fatalf("unexpected preferences after create: %+v", prefs)
	}
	firstID := prefs[0].ID

	prefs, err = s.SelectCourse(context.Background(), 0, backend.courses[1])
	if err != nil {
		t.Fatalf("SelectCourse() update error = %v", err)
	}
	if len(prefs) != 1 {
		t.Fatalf("expected 1 preference, got %+v", prefs)
	}
	if prefs[0].ID != firstID {
		t.Fatalf("expected identity %s preserved, got %s", firstID, prefs[0].ID)
	}
	if prefs[0].CourseID != "2" || prefs[0].Status != domain.PreferencePending {
		t.Fatalf("unexpected updated preference: %+v", prefs[0])
	}
	if backend.count("create_preference") != 1 || backend.count("update_preference") != 1 {
		t.Fatalf("expected one create and one update, got %v", backend.calls)
	}
}

func TestSelectCourseRejectsCourseInAnotherSlot(t *testing.T) {
	backend := newBackendFake()
	s := newSelector(t, backend)
	courseX := backend.courses[0]

	if _, err := s.SelectCourse(context.Background(), 0, courseX); err != nil {
		t.Fatalf("SelectCourse(FIRST) error = %v", err)
	}
	writes := backend.count("create_preference") + backend.count("update_preference")

	_, err := s.SelectCourse(context.Background(), 1, courseX)
	if !errors.Is(err, domain.ErrDuplicateCourse) {
		t.Fatalf("expected ErrDuplicateCourse, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected validation kind, got %v", err)
	}
	if got := backend.count("create_preference") + backend.count("update_preference"); got != writes {
		t.Fatalf("expected no network write, writes went %d -> %d", writes, got)
	}

	prefs := s.Preferences()
	if len(prefs) != 1 || prefs[0].Priority != domain.PriorityFirst || prefs[0].CourseID != courseX.ID {
		t.Fatalf("expected X only at FIRST, got %+v", prefs)
	}
}

func TestSelectCourseSameSlotIsIdempotent(t *testing.T) {
	backend := newBackendFake()
	s := newSelector(t, backend)
	course := backend.courses[2]

	once, err := s.SelectCourse(context.Background(), 1, course)
	if err != nil {
		t.Fatalf("first SelectCourse() error = %v", err)
	}
	twice, err := s.SelectCourse(context.Background(), 1, course)
	if err != nil {
		t.Fatalf("second SelectCourse() error = %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("expected identical preferences, got %+v then %+v", once, twice)
	}
}

func TestSelectCourseSequenceKeepsSlotsAndCoursesUnique(t *testing.T) {
	backend := newBackendFake()
	s := newSelector(t, backend)

	steps := []struct {
		slot   int
		course int
	}{
		{0, 0}, {1, 1}, {2, 2}, {0, 1}, {1, 0}, {2, 0}, {1, 2}, {0, 0}, {2, 1},
	}
	for _, step := range steps {
		_, err := s.SelectCourse(context.Background(), step.slot, backend.courses[step.course])
		if err != nil && !errors.Is(err, domain.ErrDuplicateCourse) {
			t.Fatalf("SelectCourse(%d, %d) unexpected error = %v", step.slot, step.course, err)
		}
		assertUniquePreferences(t, s.Preferences())
	}
}

func TestSelectCourseRejectsInvalidSlot(t *testing.T) {
	backend := newBackendFake()
	s := newSelector(t, backend)

	for _, slot := range []int{-1, 3} {
		_, err := s.SelectCourse(context.Background(), slot, backend.courses[0])
		if !errors.Is(err, domain.ErrInvalidPriority) {
			t.Fatalf("slot %d: expected ErrInvalidPriority, got %v", slot, err)
		}
	}
	if backend.count("create_preference") != 0 {
		t.Fatalf("expected no writes")
	}
}

func TestSelectCourseFailureLeavesStateUntouched(t *testing.T) {
	backend := newBackendFake()
	s := newSelector(t, backend)
	if _, err := s.SelectCourse(context.Background(), 0, backend.courses[0]); err != nil {
		t.Fatalf("SelectCourse() error = %v", err)
	}
	before := s.Preferences()

	backend.writeErr = domain.WrapError(domain.ErrTemporary, "update preference", errors.New("timeout"))
	_, err := s.SelectCourse(context.Background(), 0, backend.courses[1])
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if !reflect.DeepEqual(before, s.Preferences()) {
		t.Fatalf("expected unchanged preferences, got %+v", s.Preferences())
	}
}

func TestSelectCourseRejectsConcurrentWriteToSameSlot(t *testing.T) {
	backend := newBackendFake()
	backend.block = make(chan struct{})
	s := newSelector(t, backend)

	done := make(chan error, 1)
	go func() {
		_, err := s.SelectCourse(context.Background(), 0, backend.courses[0])
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for backend.count("create_preference") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first write never started")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := s.SelectCourse(context.Background(), 0, backend.courses[1])
	if !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected ErrBusy for same slot, got %v", err)
	}

	close(backend.block)
	if err := <-done; err != nil {
		t.Fatalf("first SelectCourse() error = %v", err)
	}
}

func TestSelectCourseDiscardsResultAfterClose(t *testing.T) {
	backend := newBackendFake()
	backend.block = make(chan struct{})
	lifetime, closeScreen := context.WithCancel(context.Background())
	s := NewPreferenceSelector(lifetime, "7", backend, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.SelectCourse(context.Background(), 0, backend.courses[0])
		done <- err
	}()
	deadline := time.Now().Add(time.Second)
	for backend.count("create_preference") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("write never started")
		}
		time.Sleep(time.Millisecond)
	}

	closeScreen()
	if err := <-done; err == nil {
		t.Fatalf("expected error after close")
	}
	if len(s.Preferences()) != 0 {
		t.Fatalf("expected no state update after close, got %+v", s.Preferences())
	}
}

func TestLoadSortsPreferencesByPriority(t *testing.T) {
	backend := newBackendFake()
	backend.prefs = []domain.CoursePreference{
		{ID: "p3", CourseID: "3", Priority: domain.PriorityThird},
		{ID: "p1", CourseID: "1", Priority: domain.PriorityFirst},
		{ID: "p2", CourseID: "2", Priority: domain.PrioritySecond},
	}
	s := newSelector(t, backend)

	prefs := s.Preferences()
	for i, want := range domain.PriorityOrders {
		if prefs[i].Priority != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, prefs[i].Priority)
		}
	}
}

func TestSelectCoursePublishesEvent(t *testing.T) {
	backend := newBackendFake()
	events := &publisherFake{}
	s := NewPreferenceSelector(context.Background(), "7", backend, events, nil)

	if _, err := s.SelectCourse(context.Background(), 2, backend.courses[1]); err != nil {
		t.Fatalf("SelectCourse() error = %v", err)
	}
	got := events.types()
	if len(got) != 1 || got[0] != domain.EventPreferenceSelected {
		t.Fatalf("unexpected events: %v", got)
	}
}
