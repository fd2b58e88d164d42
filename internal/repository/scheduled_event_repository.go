package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/formador-scheduler/internal/availability"
	"github.com/noah-isme/formador-scheduler/internal/models"
)

// ScheduledEventRepository reads the calendar of confirmed events.
type ScheduledEventRepository struct {
	db *sqlx.DB
}

// NewScheduledEventRepository constructs the repository.
func NewScheduledEventRepository(db *sqlx.DB) *ScheduledEventRepository {
	return &ScheduledEventRepository{db: db}
}

// ListConfirmedInRange returns confirmed events touching [from, to) that involve any of
// instructorIDs, each with its full instructor id set.
func (r *ScheduledEventRepository) ListConfirmedInRange(ctx context.Context, instructorIDs []string, from, to time.Time) ([]models.ScheduledEvent, error) {
	if len(instructorIDs) == 0 {
		return []models.ScheduledEvent{}, nil
	}
	const query = `SELECT e.id, e.title, e.starts_at, e.ends_at, e.status, e.location_id,
		COALESCE(l.name, '') AS location_name, COALESCE(l.city, '') AS location_city,
		ARRAY(SELECT sei.instructor_id FROM scheduled_event_instructors sei WHERE sei.event_id = e.id ORDER BY sei.instructor_id) AS instructor_ids
		FROM scheduled_events e
		LEFT JOIN locations l ON l.id = e.location_id
		WHERE e.status = $4
		  AND e.starts_at < $3 AND e.ends_at > $2
		  AND EXISTS (SELECT 1 FROM scheduled_event_instructors x WHERE x.event_id = e.id AND x.instructor_id = ANY($1))
		ORDER BY e.starts_at, e.id`
	var out []models.ScheduledEvent
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(instructorIDs), from.UTC(), to.UTC(), string(availability.StatusConfirmed)); err != nil {
		return nil, fmt.Errorf("list confirmed events: %w", err)
	}
	if out == nil {
		out = []models.ScheduledEvent{}
	}
	return out, nil
}
