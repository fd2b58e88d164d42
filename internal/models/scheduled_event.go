package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/formador-scheduler/internal/availability"
)

// ScheduledEvent is a calendar event joined with its venue and instructor ids.
type ScheduledEvent struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	StartsAt      time.Time      `db:"starts_at" json:"starts_at"`
	EndsAt        time.Time      `db:"ends_at" json:"ends_at"`
	Status        string         `db:"status" json:"status"`
	LocationID    string         `db:"location_id" json:"location_id"`
	LocationName  string         `db:"location_name" json:"location_name"`
	LocationCity  string         `db:"location_city" json:"location_city"`
	InstructorIDs pq.StringArray `db:"instructor_ids" json:"instructor_ids"`
}

// Domain converts the row into the engine's view.
func (e ScheduledEvent) Domain() availability.ScheduledEvent {
	loc := Location{ID: e.LocationID, Name: e.LocationName, City: e.LocationCity}
	return availability.ScheduledEvent{
		ID:            e.ID,
		Title:         e.Title,
		InstructorIDs: append([]string(nil), e.InstructorIDs...),
		Window:        availability.TimeWindow{Start: e.StartsAt, End: e.EndsAt},
		Location:      loc.Domain(),
		Status:        availability.EventStatus(e.Status),
	}
}
