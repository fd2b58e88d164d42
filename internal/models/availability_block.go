package models

import (
	"fmt"
	"time"

	"github.com/noah-isme/formador-scheduler/internal/availability"
)

// AvailabilityBlock is a declared unavailability row. block_date is a DATE and the clock
// columns are TIME WITHOUT TIME ZONE; rrule repeats the block from block_date onward.
type AvailabilityBlock struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	BlockDate    time.Time `db:"block_date" json:"block_date"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	Kind         string    `db:"kind" json:"kind"`
	Reason       *string   `db:"reason" json:"reason,omitempty"`
	RRule        *string   `db:"rrule" json:"rrule,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Domain converts the row into a recurring block template. Clock values that cannot be
// parsed are returned as errors so the caller can report them.
func (b AvailabilityBlock) Domain(zone *time.Location) (availability.RecurringBlock, error) {
	start, err := availability.ParseClock(b.StartTime)
	if err != nil {
		return availability.RecurringBlock{}, fmt.Errorf("block %s start: %w", b.ID, err)
	}
	end, err := availability.ParseClock(b.EndTime)
	if err != nil {
		return availability.RecurringBlock{}, fmt.Errorf("block %s end: %w", b.ID, err)
	}
	block := availability.AvailabilityBlock{
		ID:           b.ID,
		InstructorID: b.InstructorID,
		Date:         availability.StampWallClock(b.BlockDate, zone),
		StartTime:    start,
		EndTime:      end,
		Kind:         availability.BlockKind(b.Kind),
	}
	if b.Reason != nil {
		block.Reason = *b.Reason
	}
	tpl := availability.RecurringBlock{Block: block}
	if b.RRule != nil {
		tpl.RRule = *b.RRule
	}
	return tpl, nil
}
