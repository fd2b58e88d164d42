package models

import (
	"time"

	"github.com/lib/pq"
)

// EventRequest is a coordinator's request for a training event. Requests are created
// pending and only the approval workflow moves them on.
type EventRequest struct {
	ID               string         `db:"id" json:"id"`
	Title            string         `db:"title" json:"title"`
	Description      *string        `db:"description" json:"description,omitempty"`
	StartsAt         time.Time      `db:"starts_at" json:"starts_at"`
	EndsAt           time.Time      `db:"ends_at" json:"ends_at"`
	LocationID       string         `db:"location_id" json:"location_id"`
	InstructorIDs    pq.StringArray `db:"instructor_ids" json:"instructor_ids"`
	Status           string         `db:"status" json:"status"`
	AvailabilityCode string         `db:"availability_code" json:"availability_code"`
	ConflictCount    int            `db:"conflict_count" json:"conflict_count"`
	RequestedBy      string         `db:"requested_by" json:"requested_by"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}
