package models

import (
	"time"

	"github.com/noah-isme/formador-scheduler/internal/availability"
)

// Instructor is a formador row.
type Instructor struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Domain converts the row into the engine's view.
func (i Instructor) Domain() availability.Instructor {
	return availability.Instructor{ID: i.ID, Name: i.FullName, Email: i.Email}
}

// Location is a training venue.
type Location struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	City      string    `db:"city" json:"city"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Domain converts the row into the engine's view. Travel rules compare cities, so two
// venues in the same city share an identity.
func (l Location) Domain() availability.Location {
	if l.City != "" {
		return availability.Location{ID: "city:" + l.City, Name: l.City}
	}
	return availability.Location{ID: l.ID, Name: l.Name}
}
