package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/formador-scheduler/internal/availability"
	"github.com/noah-isme/formador-scheduler/internal/models"
)

// EventRequestRepository persists event requests.
type EventRequestRepository struct {
	db *sqlx.DB
}

// NewEventRequestRepository constructs the repository.
func NewEventRequestRepository(db *sqlx.DB) *EventRequestRepository {
	return &EventRequestRepository{db: db}
}

// CreatePending stores req with status pending, whatever status it carried. Approval is
// owned by a separate workflow and never happens here.
func (r *EventRequestRepository) CreatePending(ctx context.Context, req *models.EventRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.Status = string(availability.StatusPending)
	req.StartsAt = req.StartsAt.UTC()
	req.EndsAt = req.EndsAt.UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	const query = `INSERT INTO event_requests (id, title, description, starts_at, ends_at, location_id, instructor_ids,
		status, availability_code, conflict_count, requested_by, created_at, updated_at)
		VALUES (:id, :title, :description, :starts_at, :ends_at, :location_id, :instructor_ids,
		:status, :availability_code, :conflict_count, :requested_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create event request: %w", err)
	}
	return nil
}
