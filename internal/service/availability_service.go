package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/formador-scheduler/internal/availability"
	"github.com/noah-isme/formador-scheduler/internal/dto"
	"github.com/noah-isme/formador-scheduler/internal/models"
	"github.com/noah-isme/formador-scheduler/internal/repository"
	appErrors "github.com/noah-isme/formador-scheduler/pkg/errors"
)

type snapshotSource interface {
	Instructors(ctx context.Context, ids []string) ([]availability.Instructor, error)
	Location(ctx context.Context, id string) (availability.Location, error)
	Load(ctx context.Context, instructorIDs []string, from, to time.Time) (availability.Snapshot, []availability.PartialEvaluationWarning, error)
}

type eventRequestStore interface {
	CreatePending(ctx context.Context, req *models.EventRequest) error
}

type instructorLocker interface {
	Acquire(ctx context.Context, instructorIDs []string, ttl time.Duration) (*repository.InstructorLock, error)
	Release(ctx context.Context, lock *repository.InstructorLock) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// AvailabilityOptions bounds the slower operations.
type AvailabilityOptions struct {
	SuggestTimeout time.Duration
	LockTTL        time.Duration
}

// AvailabilityService validates proposed events, creates pending requests and searches for
// alternative slots.
type AvailabilityService struct {
	engine    *availability.Engine
	source    snapshotSource
	requests  eventRequestStore
	locks     instructorLocker
	audit     auditRecorder
	cache     cacheInvalidator
	metrics   *MetricsService
	clock     Clock
	validator *validator.Validate
	logger    *zap.Logger
	opts      AvailabilityOptions
}

// NewAvailabilityService constructs the service. audit and cache may be nil.
func NewAvailabilityService(
	engine *availability.Engine,
	source snapshotSource,
	requests eventRequestStore,
	locks instructorLocker,
	audit auditRecorder,
	cache cacheInvalidator,
	metrics *MetricsService,
	clock Clock,
	validate *validator.Validate,
	logger *zap.Logger,
	opts AvailabilityOptions,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if opts.SuggestTimeout <= 0 {
		opts.SuggestTimeout = 5 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	return &AvailabilityService{
		engine:    engine,
		source:    source,
		requests:  requests,
		locks:     locks,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		clock:     clock,
		validator: validate,
		logger:    logger,
		opts:      opts,
	}
}

// Check evaluates a proposed event and reports whether it may be created.
func (s *AvailabilityService) Check(ctx context.Context, req dto.CheckAvailabilityRequest) (*dto.AvailabilityCheckResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	start := time.Now()
	check, err := s.evaluate(ctx, req.AvailabilityQuery)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordDecision("check", string(check.Result.Code), check.CanCreate, time.Since(start))
	s.record(ctx, AuditEntry{
		Action:   models.AuditActionAvailabilityCheck,
		Resource: models.AuditResourceAvailability,
		Payload:  decisionOf(req.AvailabilityQuery, check, ""),
	})
	return check, nil
}

// CreateRequest stores a pending event request when the proposal carries no critical
// conflict. The instructors are locked for the duration of the check and insert.
func (s *AvailabilityService) CreateRequest(ctx context.Context, req dto.CreateEventRequest) (*dto.CreateEventResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event request payload")
	}
	start := time.Now()

	lock, err := s.locks.Acquire(ctx, req.InstructorIDs, s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, appErrors.ErrLockNotAcquired) {
			s.metrics.RecordLockContention()
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock instructors")
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lock); err != nil {
			s.logger.Warn("failed to release instructor lock", zap.Strings("instructor_ids", req.InstructorIDs), zap.Error(err))
		}
	}()

	check, err := s.evaluate(ctx, req.AvailabilityQuery)
	if err != nil {
		return nil, err
	}

	if !check.CanCreate {
		s.metrics.RecordDecision("create", string(check.Result.Code), false, time.Since(start))
		s.record(ctx, AuditEntry{
			Action:   models.AuditActionEventRequestRefused,
			Resource: models.AuditResourceEventRequest,
			Payload:  decisionOf(req.AvailabilityQuery, check, ""),
		})
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("event cannot be requested: %s", blockingSummary(check.Blocking))),
			check,
		)
	}

	row := &models.EventRequest{
		Title:            strings.TrimSpace(req.Title),
		StartsAt:         check.Window.Start,
		EndsAt:           check.Window.End,
		LocationID:       req.LocationID,
		InstructorIDs:    append([]string(nil), req.InstructorIDs...),
		AvailabilityCode: string(check.Result.Code),
		ConflictCount:    len(check.Result.Conflicts),
		RequestedBy:      ActorFromContext(ctx).UserID,
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		row.Description = &desc
	}
	if err := s.requests.CreatePending(ctx, row); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event request")
	}

	s.metrics.RecordDecision("create", string(check.Result.Code), true, time.Since(start))
	s.record(ctx, AuditEntry{
		Action:     models.AuditActionEventRequestCreate,
		Resource:   models.AuditResourceEventRequest,
		ResourceID: row.ID,
		Payload:    decisionOf(req.AvailabilityQuery, check, row.ID),
	})
	s.invalidateMonths(ctx, check.Window)

	return &dto.CreateEventResponse{Request: row, Check: check}, nil
}

// Suggest searches for alternative slots. Loading and searching share SuggestTimeout; slots found
// by the deadline are returned with Partial set.
func (s *AvailabilityService) Suggest(ctx context.Context, req dto.SuggestRequest) (*dto.SuggestResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid suggestion payload")
	}
	start := time.Now()
	cfg := s.engine.Config()

	request, err := s.buildRequest(ctx, req.AvailabilityQuery)
	if err != nil {
		return nil, err
	}
	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SuggestTimeout)
	defer cancel()

	from := availability.DateOf(request.Window.Start, cfg.Zone)
	to := from.AddDate(0, 0, cfg.DaysAhead+1)
	snap, warnings, err := s.source.Load(searchCtx, req.InstructorIDs, from.AddDate(0, 0, -1), to)
	if err != nil {
		if searchCtx.Err() != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "suggestion search timed out loading calendars")
		}
		return nil, err
	}

	suggestions, err := s.engine.SuggestAlternatives(searchCtx, request, snap)
	partial := false
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			partial = true
			s.logger.Warn("suggestion search hit its deadline", zap.Duration("timeout", s.opts.SuggestTimeout), zap.Int("found", len(suggestions)))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "suggestion search was cancelled")
		default:
			return nil, err
		}
	}

	s.metrics.ObserveEvaluation("suggest", time.Since(start))
	for _, suggestion := range suggestions {
		s.metrics.RecordSuggestion(string(suggestion.Confidence))
	}
	s.record(ctx, AuditEntry{
		Action:   models.AuditActionAvailabilitySuggest,
		Resource: models.AuditResourceAvailability,
		Payload: map[string]interface{}{
			"instructor_ids": req.InstructorIDs,
			"starts_at":      request.Window.Start.UTC(),
			"ends_at":        request.Window.End.UTC(),
			"location_id":    req.LocationID,
			"suggestions":    len(suggestions),
			"partial":        partial,
			"warnings":       len(warnings),
		},
	})

	if suggestions == nil {
		suggestions = []availability.Suggestion{}
	}
	if len(warnings) > 0 {
		s.logger.Warn("suggestion search ran on a partial snapshot", zap.Int("warnings", len(warnings)))
	}
	return &dto.SuggestResponse{Suggestions: suggestions, Partial: partial, Warnings: warnings}, nil
}

func (s *AvailabilityService) evaluate(ctx context.Context, query dto.AvailabilityQuery) (*dto.AvailabilityCheckResponse, error) {
	request, err := s.buildRequest(ctx, query)
	if err != nil {
		return nil, err
	}
	// One day either side keeps the previous and next evenings visible to the travel rule.
	snap, warnings, err := s.source.Load(ctx, query.InstructorIDs, request.Window.Start.AddDate(0, 0, -1), request.Window.End.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	result, err := s.engine.Evaluate(request, snap)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 {
		result.Warnings = append(warnings, result.Warnings...)
	}

	cfg := s.engine.Config()
	blocking := cfg.BlockingConflicts(result)
	advisories := s.engine.Advise(request.Window, s.clock.Now())
	if advisories == nil {
		advisories = []availability.Advisory{}
	}
	return &dto.AvailabilityCheckResponse{
		Result:     result,
		Advisories: advisories,
		CanCreate:  len(blocking) == 0,
		Blocking:   blocking,
		Window:     request.Window,
	}, nil
}

func (s *AvailabilityService) buildRequest(ctx context.Context, query dto.AvailabilityQuery) (availability.Request, error) {
	zone := s.engine.Config().Zone
	start, err := availability.ParseInZone(query.Start, zone)
	if err != nil {
		return availability.Request{}, err
	}
	end, err := availability.ParseInZone(query.End, zone)
	if err != nil {
		return availability.Request{}, err
	}
	window, err := availability.NewTimeWindow(start.In(zone), end.In(zone))
	if err != nil {
		return availability.Request{}, err
	}

	instructors, err := s.source.Instructors(ctx, query.InstructorIDs)
	if err != nil {
		return availability.Request{}, err
	}
	location, err := s.source.Location(ctx, query.LocationID)
	if err != nil {
		return availability.Request{}, err
	}
	return availability.Request{
		Instructors:    instructors,
		Window:         window,
		Location:       location,
		ExcludeEventID: query.ExcludeEventID,
	}, nil
}

func (s *AvailabilityService) record(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *AvailabilityService) invalidateMonths(ctx context.Context, window availability.TimeWindow) {
	if s.cache == nil {
		return
	}
	zone := s.engine.Config().Zone
	first := window.Start.In(zone)
	last := window.End.In(zone)
	patterns := []string{MatrixMonthPattern(first.Year(), first.Month())}
	if last.Year() != first.Year() || last.Month() != first.Month() {
		patterns = append(patterns, MatrixMonthPattern(last.Year(), last.Month()))
	}
	for _, pattern := range patterns {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate matrix cache", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func decisionOf(query dto.AvailabilityQuery, check *dto.AvailabilityCheckResponse, eventRequestID string) models.AvailabilityDecision {
	decision := models.AvailabilityDecision{
		InstructorIDs:  query.InstructorIDs,
		StartsAt:       check.Window.Start.UTC(),
		EndsAt:         check.Window.End.UTC(),
		LocationID:     query.LocationID,
		Code:           string(check.Result.Code),
		Available:      check.Result.Available,
		CanCreate:      check.CanCreate,
		ConflictCount:  len(check.Result.Conflicts),
		WarningCount:   len(check.Result.Warnings),
		EventRequestID: eventRequestID,
	}
	for _, advisory := range check.Advisories {
		decision.AdvisoryCodes = append(decision.AdvisoryCodes, string(advisory.Code))
	}
	return decision
}

func blockingSummary(conflicts []availability.Conflict) string {
	seen := make(map[availability.ConflictCode]bool)
	var parts []string
	for _, code := range availability.ConflictCodes {
		for _, c := range conflicts {
			if c.Code == code && !seen[code] {
				seen[code] = true
				parts = append(parts, fmt.Sprintf("%s (%s)", code, code.Label()))
			}
		}
	}
	return strings.Join(parts, ", ")
}
