package dto

import (
	"github.com/noah-isme/formador-scheduler/internal/availability"
	"github.com/noah-isme/formador-scheduler/internal/models"
)

// AvailabilityQuery describes a proposed event. Start and End accept RFC3339 or a local
// "2006-01-02T15:04" wall clock, which is read in the configured timezone.
type AvailabilityQuery struct {
	InstructorIDs  []string `json:"instructorIds" validate:"required,min=1,max=50,unique,dive,required"`
	Start          string   `json:"start" validate:"required"`
	End            string   `json:"end" validate:"required"`
	LocationID     string   `json:"locationId" validate:"required"`
	ExcludeEventID string   `json:"excludeEventId" validate:"omitempty"`
}

// CheckAvailabilityRequest asks whether a proposed event may proceed.
type CheckAvailabilityRequest struct {
	AvailabilityQuery
}

// AvailabilityCheckResponse is the engine result enriched with advisories and the
// creation decision.
type AvailabilityCheckResponse struct {
	Result     availability.Result     `json:"result"`
	Advisories []availability.Advisory `json:"advisories"`
	CanCreate  bool                    `json:"canCreate"`
	Blocking   []availability.Conflict `json:"blocking,omitempty"`
	Window     availability.TimeWindow `json:"window"`
}

// CreateEventRequest creates a pending event request when no critical conflict exists.
type CreateEventRequest struct {
	AvailabilityQuery
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// CreateEventResponse returns the stored request and the check it passed.
type CreateEventResponse struct {
	Request *models.EventRequest       `json:"request"`
	Check   *AvailabilityCheckResponse `json:"check"`
}

// SuggestRequest asks for alternative slots for a rejected proposal.
type SuggestRequest struct {
	AvailabilityQuery
}

// SuggestResponse lists alternative slots in chronological order.
type SuggestResponse struct {
	Suggestions []availability.Suggestion `json:"suggestions"`
	// Partial is set when the search stopped at its deadline.
	Partial bool `json:"partial"`
	// Warnings carries records the loader had to skip while building the search snapshot.
	Warnings []availability.PartialEvaluationWarning `json:"warnings,omitempty"`
}

// MatrixRequest selects a month and, optionally, a subset of instructors.
type MatrixRequest struct {
	Year          int      `form:"year" validate:"required,min=2000,max=2100"`
	Month         int      `form:"month" validate:"required,min=1,max=12"`
	InstructorIDs []string `form:"instructorId" validate:"omitempty,max=200,dive,required"`
}
