package domain

import (
	"fmt"
	"sort"
)

type PriorityOrder string

const (
	PriorityFirst  PriorityOrder = "FIRST"
	PrioritySecond PriorityOrder = "SECOND"
	PriorityThird  PriorityOrder = "THIRD"
)

// PriorityOrders lists the preference slots in rank order.
var PriorityOrders = []PriorityOrder{PriorityFirst, PrioritySecond, PriorityThird}

// PriorityForIndex maps a zero-based slot index to its priority.
func PriorityForIndex(index int) (PriorityOrder, error) {
	if index < 0 || index >= len(PriorityOrders) {
		return "", fmt.Errorf("%w: %d", ErrInvalidPriority, index)
	}
	return PriorityOrders[index], nil
}

// Rank is the one-based position of p, or 0 when p is not a known slot.
func (p PriorityOrder) Rank() int {
	for i, known := range PriorityOrders {
		if known == p {
			return i + 1
		}
	}
	return 0
}

func (p PriorityOrder) Valid() bool {
	return p.Rank() > 0
}

// Label renders the slot as "1st Choice", "2nd Choice", ...
func (p PriorityOrder) Label() string {
	rank := p.Rank()
	if rank == 0 {
		return string(p)
	}
	return fmt.Sprintf("%d%s Choice", rank, ordinalSuffix(rank))
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

type PreferenceStatus string

const (
	PreferencePending  PreferenceStatus = "PENDING"
	PreferenceReviewed PreferenceStatus = "REVIEWED"
	PreferenceAccepted PreferenceStatus = "ACCEPTED"
	PreferenceRejected PreferenceStatus = "REJECTED"
)

type CoursePreference struct {
	ID          string           `json:"id,omitempty"`
	ApplicantID string           `json:"applicant_id"`
	CourseID    string           `json:"course_id" validate:"required"`
	Priority    PriorityOrder    `json:"priority_order" validate:"required,oneof=FIRST SECOND THIRD"`
	Status      PreferenceStatus `json:"status,omitempty"`
}

// SortPreferences orders prefs FIRST, SECOND, THIRD in place.
func SortPreferences(prefs []CoursePreference) {
	sort.SliceStable(prefs, func(i, j int) bool {
		return prefs[i].Priority.Rank() < prefs[j].Priority.Rank()
	})
}
