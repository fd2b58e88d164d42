package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/formador-scheduler/internal/availability"
	"github.com/noah-isme/formador-scheduler/internal/models"
	appErrors "github.com/noah-isme/formador-scheduler/pkg/errors"
)

type instructorReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Instructor, error)
	ListActive(ctx context.Context) ([]models.Instructor, error)
}

type locationReader interface {
	FindByID(ctx context.Context, id string) (*models.Location, error)
}

type blockReader interface {
	ListForRange(ctx context.Context, instructorIDs []string, from, to time.Time) ([]models.AvailabilityBlock, error)
}

type eventReader interface {
	ListConfirmedInRange(ctx context.Context, instructorIDs []string, from, to time.Time) ([]models.ScheduledEvent, error)
}

// SnapshotLoader fetches everything the engine reads for a set of instructors and a date range.
type SnapshotLoader struct {
	instructors instructorReader
	locations   locationReader
	blocks      blockReader
	events      eventReader
	zone        *time.Location
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewSnapshotLoader constructs a SnapshotLoader reading dates in zone.
func NewSnapshotLoader(instructors instructorReader, locations locationReader, blocks blockReader, events eventReader, zone *time.Location, metrics *MetricsService, logger *zap.Logger) *SnapshotLoader {
	if zone == nil {
		zone = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotLoader{
		instructors: instructors,
		locations:   locations,
		blocks:      blocks,
		events:      events,
		zone:        zone,
		metrics:     metrics,
		logger:      logger,
	}
}

// Instructors resolves ids in request order. Unknown ids are a NOT_FOUND error listing them.
func (l *SnapshotLoader) Instructors(ctx context.Context, ids []string) ([]availability.Instructor, error) {
	start := time.Now()
	rows, err := l.instructors.ListByIDs(ctx, ids)
	l.metrics.ObserveDBQuery("instructors_by_ids", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructors")
	}
	byID := make(map[string]models.Instructor, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]availability.Instructor, 0, len(ids))
	var missing []string
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, row.Domain())
	}
	if len(missing) > 0 {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown instructors: %s", strings.Join(missing, ", "))),
			map[string]interface{}{"instructorIds": missing},
		)
	}
	return out, nil
}

// ActiveInstructors lists every active instructor.
func (l *SnapshotLoader) ActiveInstructors(ctx context.Context) ([]availability.Instructor, error) {
	start := time.Now()
	rows, err := l.instructors.ListActive(ctx)
	l.metrics.ObserveDBQuery("instructors_active", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructors")
	}
	out := make([]availability.Instructor, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Domain())
	}
	return out, nil
}

// Location resolves a venue into the engine's view.
func (l *SnapshotLoader) Location(ctx context.Context, id string) (availability.Location, error) {
	loc, err := l.locations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return availability.Location{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("location %s not found", id))
		}
		return availability.Location{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load location")
	}
	return loc.Domain(), nil
}

// Load returns the blocks and confirmed events of instructorIDs whose calendar date falls in
// [from, to] (dates in the loader zone). Recurring blocks are expanded over the range; rows
// that cannot be read are reported as warnings instead of failing the load.
func (l *SnapshotLoader) Load(ctx context.Context, instructorIDs []string, from, to time.Time) (availability.Snapshot, []availability.PartialEvaluationWarning, error) {
	firstDay := availability.DateOf(from, l.zone)
	lastDay := availability.DateOf(to, l.zone)

	start := time.Now()
	blockRows, err := l.blocks.ListForRange(ctx, instructorIDs, firstDay, lastDay)
	l.metrics.ObserveDBQuery("availability_blocks_range", time.Since(start))
	if err != nil {
		return availability.Snapshot{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability blocks")
	}

	start = time.Now()
	eventRows, err := l.events.ListConfirmedInRange(ctx, instructorIDs, firstDay, lastDay.AddDate(0, 0, 1))
	l.metrics.ObserveDBQuery("scheduled_events_range", time.Since(start))
	if err != nil {
		return availability.Snapshot{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduled events")
	}

	var warnings []availability.PartialEvaluationWarning
	templates := make([]availability.RecurringBlock, 0, len(blockRows))
	for _, row := range blockRows {
		tpl, err := row.Domain(l.zone)
		if err != nil {
			rule := availability.CodeTotalBlock
			if row.Kind == string(availability.BlockPartial) {
				rule = availability.CodePartialBlock
			}
			warnings = append(warnings, availability.PartialEvaluationWarning{
				InstructorID: row.InstructorID,
				Rule:         rule,
				RelatedID:    row.ID,
				Reason:       err.Error(),
			})
			continue
		}
		templates = append(templates, tpl)
	}
	blocks, expandWarnings := availability.ExpandBlocks(templates, firstDay, lastDay, l.zone)
	warnings = append(warnings, expandWarnings...)

	events := make([]availability.ScheduledEvent, 0, len(eventRows))
	for _, row := range eventRows {
		events = append(events, row.Domain())
	}

	if len(warnings) > 0 {
		l.logger.Warn("availability data partially unreadable", zap.Int("warnings", len(warnings)))
	}
	return availability.NewSnapshot(blocks, events), warnings, nil
}
