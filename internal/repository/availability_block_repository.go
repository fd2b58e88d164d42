package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/formador-scheduler/internal/models"
)

// AvailabilityBlockRepository reads declared unavailability.
type AvailabilityBlockRepository struct {
	db *sqlx.DB
}

// NewAvailabilityBlockRepository constructs the repository.
func NewAvailabilityBlockRepository(db *sqlx.DB) *AvailabilityBlockRepository {
	return &AvailabilityBlockRepository{db: db}
}

// ListForRange returns one-off blocks dated within [from, to] and every recurring block that
// started on or before to. Recurring rows still need expansion by the caller.
func (r *AvailabilityBlockRepository) ListForRange(ctx context.Context, instructorIDs []string, from, to time.Time) ([]models.AvailabilityBlock, error) {
	if len(instructorIDs) == 0 {
		return []models.AvailabilityBlock{}, nil
	}
	const query = `SELECT id, instructor_id, block_date, start_time::text AS start_time, end_time::text AS end_time,
		kind, reason, rrule, created_at
		FROM availability_blocks
		WHERE instructor_id = ANY($1)
		  AND ((rrule IS NULL AND block_date BETWEEN $2 AND $3) OR (rrule IS NOT NULL AND block_date <= $3))
		ORDER BY instructor_id, block_date, start_time, id`
	var out []models.AvailabilityBlock
	fromDate := from.Format("2006-01-02")
	toDate := to.Format("2006-01-02")
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(instructorIDs), fromDate, toDate); err != nil {
		return nil, fmt.Errorf("list availability blocks: %w", err)
	}
	if out == nil {
		out = []models.AvailabilityBlock{}
	}
	return out, nil
}
