package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/ports"
)

// PreferenceSelector keeps up to three ranked course choices for one applicant.
// The local list only changes after the backend confirms a write.
type PreferenceSelector struct {
	applicantID string
	store       ports.PreferenceStore
	events      ports.EventPublisher
	logger      *slog.Logger
	lifetime    context.Context

	mu    sync.Mutex
	prefs []domain.CoursePreference
	busy  inflight
}

func NewPreferenceSelector(
	lifetime context.Context,
	applicantID string,
	store ports.PreferenceStore,
	events ports.EventPublisher,
	logger *slog.Logger,
) *PreferenceSelector {
	if lifetime == nil {
		lifetime = context.Background()
	}
	if events == nil {
		events = noopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceSelector{
		applicantID: applicantID,
		store:       store,
		events:      events,
		logger:      logger,
		lifetime:    lifetime,
	}
}

// Load replaces the local list with the backend's, sorted by priority.
// A missing preference collection is an empty one.
func (s *PreferenceSelector) Load(ctx context.Context) error {
	callCtx, cancel := bindLifetime(ctx, s.lifetime)
	defer cancel()

	prefs, err := s.store.ListPreferences(callCtx, s.applicantID)
	if err != nil && !domain.IsKind(err, domain.ErrNotFound) {
		return fmt.Errorf("fetch course preferences: %w", err)
	}
	if err := alive(s.lifetime); err != nil {
		return err
	}

	loaded := make([]domain.CoursePreference, 0, len(prefs))
	for _, pref := range prefs {
		if !pref.Priority.Valid() {
			s.logger.Warn("preference_unknown_priority", "applicant_id", s.applicantID, "priority", string(pref.Priority))
			continue
		}
		loaded = append(loaded, pref)
	}
	domain.SortPreferences(loaded)

	s.mu.Lock()
	s.prefs = loaded
	s.mu.Unlock()
	return nil
}

// Preferences returns a sorted copy of the confirmed preferences.
func (s *PreferenceSelector) Preferences() []domain.CoursePreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CoursePreference, len(s.prefs))
	copy(out, s.prefs)
	return out
}

// At returns the preference occupying priority, if any.
func (s *PreferenceSelector) At(priority domain.PriorityOrder) (domain.CoursePreference, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.atLocked(priority)
}

// SelectCourse places course at the zero-based priority slot.
// An occupied slot is updated in place; an empty one gets a new preference.
func (s *PreferenceSelector) SelectCourse(ctx context.Context, priorityIndex int, course domain.Course) ([]domain.CoursePreference, error) {
	priority, err := domain.PriorityForIndex(priorityIndex)
	if err != nil {
		return nil, domain.Reject(err, "Please choose the 1st, 2nd or 3rd course preference.")
	}
	if strings.TrimSpace(course.ID) == "" {
		return nil, domain.Reject(domain.ErrInvalidInput, "Please select a course.")
	}

	existing, done, err := s.reserve(priority, course)
	if err != nil {
		return nil, err
	}
	defer done()

	callCtx, cancel := bindLifetime(ctx, s.lifetime)
	defer cancel()

	saved, err := s.persist(callCtx, priority, course, existing)
	if err != nil {
		s.logger.Error("preference_save_failed",
			"applicant_id", s.applicantID,
			"priority", string(priority),
			"course_id", course.ID,
			"error", err,
		)
		return nil, err
	}
	if err := alive(s.lifetime); err != nil {
		return nil, err
	}

	s.mu.Lock()
	next := make([]domain.CoursePreference, 0, len(s.prefs)+1)
	for _, pref := range s.prefs {
		if pref.Priority != priority {
			next = append(next, pref)
		}
	}
	next = append(next, saved)
	domain.SortPreferences(next)
	s.prefs = next
	out := make([]domain.CoursePreference, len(next))
	copy(out, next)
	s.mu.Unlock()

	announce(ctx, s.events, s.logger, domain.EventPreferenceSelected, s.applicantID, saved.ID, map[string]string{
		"priority":  string(priority),
		"course_id": course.ID,
	})
	s.logger.Info("preference_saved",
		"applicant_id", s.applicantID,
		"priority", string(priority),
		"course_id", course.ID,
		"updated", existing != nil,
	)
	return out, nil
}

// reserve validates the selection against confirmed state and claims the
// slot and the course so no concurrent call can place the same course twice.
func (s *PreferenceSelector) reserve(priority domain.PriorityOrder, course domain.Course) (*domain.CoursePreference, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pref := range s.prefs {
		if pref.CourseID == course.ID && pref.Priority != priority {
			return nil, nil, domain.Reject(domain.ErrDuplicateCourse,
				"%s is already selected as your %s. Please choose a different course.",
				courseDisplayName(course), pref.Priority.Label())
		}
	}

	done, err := s.busy.begin("slot:"+string(priority), "course:"+course.ID)
	if err != nil {
		return nil, nil, err
	}

	current, ok := s.atLocked(priority)
	if !ok {
		return nil, done, nil
	}
	return &current, done, nil
}

func (s *PreferenceSelector) persist(
	ctx context.Context,
	priority domain.PriorityOrder,
	course domain.Course,
	existing *domain.CoursePreference,
) (domain.CoursePreference, error) {
	var (
		saved *domain.CoursePreference
		err   error
	)
	if existing != nil {
		status := existing.Status
		if status == "" {
			status = domain.PreferencePending
		}
		saved, err = s.store.UpdatePreference(ctx, domain.CoursePreference{
			ID:          existing.ID,
			ApplicantID: s.applicantID,
			CourseID:    course.ID,
			Priority:    priority,
			Status:      status,
		})
		if err != nil {
			return domain.CoursePreference{}, fmt.Errorf("update course preference: %w", err)
		}
	} else {
		saved, err = s.store.CreatePreference(ctx, s.applicantID, domain.CoursePreference{
			ApplicantID: s.applicantID,
			CourseID:    course.ID,
			Priority:    priority,
		})
		if err != nil {
			return domain.CoursePreference{}, fmt.Errorf("create course preference: %w", err)
		}
	}
	if saved == nil {
		return domain.CoursePreference{}, fmt.Errorf("save course preference: empty response")
	}

	out := *saved
	if out.ID == "" && existing != nil {
		out.ID = existing.ID
	}
	if out.ApplicantID == "" {
		out.ApplicantID = s.applicantID
	}
	if out.CourseID == "" {
		out.CourseID = course.ID
	}
	// The slot is owned locally; a backend echo with another rank would break uniqueness.
	out.Priority = priority
	return out, nil
}

func (s *PreferenceSelector) atLocked(priority domain.PriorityOrder) (domain.CoursePreference, bool) {
	for _, pref := range s.prefs {
		if pref.Priority == priority {
			return pref, true
		}
	}
	return domain.CoursePreference{}, false
}

func courseDisplayName(course domain.Course) string {
	if course.Name != "" {
		return course.Name
	}
	return "This course"
}
