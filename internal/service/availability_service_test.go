package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formador-scheduler/internal/availability"
	"github.com/noah-isme/formador-scheduler/internal/dto"
	"github.com/noah-isme/formador-scheduler/internal/models"
	"github.com/noah-isme/formador-scheduler/internal/repository"
	appErrors "github.com/noah-isme/formador-scheduler/pkg/errors"
)

var svcZone = time.FixedZone("WET", 0)

var (
	svcAna    = availability.Instructor{ID: "inst-ana", Name: "Ana Sousa"}
	svcBruno  = availability.Instructor{ID: "inst-bruno", Name: "Bruno Reis"}
	svcLisboa = availability.Location{ID: "city:Lisboa", Name: "Lisboa"}
)

func svcAt(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, svcZone)
}

type loadCall struct {
	ids      []string
	from, to time.Time
}

type snapshotSourceStub struct {
	instructors map[string]availability.Instructor
	location    availability.Location
	locationErr error
	blocks      []availability.AvailabilityBlock
	events      []availability.ScheduledEvent
	warnings    []availability.PartialEvaluationWarning
	loadDelay   time.Duration
	loadErr     error
	loads       []loadCall
}

func newSnapshotSourceStub() *snapshotSourceStub {
	return &snapshotSourceStub{
		instructors: map[string]availability.Instructor{svcAna.ID: svcAna, svcBruno.ID: svcBruno},
		location:    svcLisboa,
	}
}

func (s *snapshotSourceStub) Instructors(ctx context.Context, ids []string) ([]availability.Instructor, error) {
	out := make([]availability.Instructor, 0, len(ids))
	for _, id := range ids {
		instructor, ok := s.instructors[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown instructors: %s", id))
		}
		out = append(out, instructor)
	}
	return out, nil
}

func (s *snapshotSourceStub) ActiveInstructors(ctx context.Context) ([]availability.Instructor, error) {
	out := make([]availability.Instructor, 0, len(s.instructors))
	for _, instructor := range s.instructors {
		out = append(out, instructor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *snapshotSourceStub) Location(ctx context.Context, id string) (availability.Location, error) {
	if s.locationErr != nil {
		return availability.Location{}, s.locationErr
	}
	return s.location, nil
}

func (s *snapshotSourceStub) Load(ctx context.Context, ids []string, from, to time.Time) (availability.Snapshot, []availability.PartialEvaluationWarning, error) {
	if s.loadDelay > 0 {
		time.Sleep(s.loadDelay)
	}
	s.loads = append(s.loads, loadCall{ids: ids, from: from, to: to})
	if s.loadErr != nil {
		return availability.Snapshot{}, nil, s.loadErr
	}
	return availability.NewSnapshot(s.blocks, s.events), s.warnings, nil
}

type eventRequestStoreStub struct {
	created []*models.EventRequest
	err     error
}

func (s *eventRequestStoreStub) CreatePending(ctx context.Context, req *models.EventRequest) error {
	if s.err != nil {
		return s.err
	}
	req.ID = fmt.Sprintf("req-%d", len(s.created)+1)
	req.Status = string(availability.StatusPending)
	s.created = append(s.created, req)
	return nil
}

type lockerStub struct {
	acquireErr error
	acquired   [][]string
	released   int
}

func (s *lockerStub) Acquire(ctx context.Context, ids []string, ttl time.Duration) (*repository.InstructorLock, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	s.acquired = append(s.acquired, ids)
	return &repository.InstructorLock{Token: "token"}, nil
}

func (s *lockerStub) Release(ctx context.Context, lock *repository.InstructorLock) error {
	s.released++
	return nil
}

type auditRecorderStub struct {
	entries []AuditEntry
}

func (s *auditRecorderStub) Record(ctx context.Context, entry AuditEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

type invalidatorStub struct {
	patterns []string
}

func (s *invalidatorStub) Invalidate(ctx context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return nil
}

type availabilityFixture struct {
	svc      *AvailabilityService
	source   *snapshotSourceStub
	requests *eventRequestStoreStub
	locks    *lockerStub
	audit    *auditRecorderStub
	cache    *invalidatorStub
}

func newAvailabilityFixture(opts AvailabilityOptions) *availabilityFixture {
	f := &availabilityFixture{
		source:   newSnapshotSourceStub(),
		requests: &eventRequestStoreStub{},
		locks:    &lockerStub{},
		audit:    &auditRecorderStub{},
		cache:    &invalidatorStub{},
	}
	engine := availability.NewEngine(availability.DefaultConfig(svcZone))
	clock := NewFixedClock(time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC))
	f.svc = NewAvailabilityService(engine, f.source, f.requests, f.locks, f.audit, f.cache, NewMetricsService(), clock, nil, nil, opts)
	return f
}

func mondayQuery(ids ...string) dto.AvailabilityQuery {
	return dto.AvailabilityQuery{
		InstructorIDs: ids,
		Start:         "2025-03-10T09:00",
		End:           "2025-03-10T11:00",
		LocationID:    "loc-lisboa",
	}
}

func totalBlock(instructorID string, day int) availability.AvailabilityBlock {
	return availability.AvailabilityBlock{
		ID:           "blk-" + instructorID,
		InstructorID: instructorID,
		Date:         time.Date(2025, time.March, day, 0, 0, 0, 0, svcZone),
		StartTime:    availability.MustClock("08:00"),
		EndTime:      availability.MustClock("18:00"),
		Kind:         availability.BlockTotal,
	}
}

func TestAvailabilityCheckCleanSlot(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})

	check, err := f.svc.Check(context.Background(), dto.CheckAvailabilityRequest{AvailabilityQuery: mondayQuery(svcAna.ID, svcBruno.ID)})
	require.NoError(t, err)

	assert.True(t, check.Result.Available)
	assert.Equal(t, availability.ResultClear, check.Result.Code)
	assert.True(t, check.CanCreate)
	assert.Empty(t, check.Blocking)
	assert.NotNil(t, check.Advisories)
	assert.Empty(t, check.Advisories)
	assert.True(t, check.Window.Start.Equal(svcAt(10, 9, 0)))

	require.Len(t, f.source.loads, 1)
	assert.True(t, f.source.loads[0].from.Equal(svcAt(9, 9, 0)))
	assert.True(t, f.source.loads[0].to.Equal(svcAt(11, 11, 0)))

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionAvailabilityCheck, f.audit.entries[0].Action)
	decision, ok := f.audit.entries[0].Payload.(models.AvailabilityDecision)
	require.True(t, ok)
	assert.Equal(t, "E", decision.Code)
	assert.True(t, decision.CanCreate)
	assert.Equal(t, []string{svcAna.ID, svcBruno.ID}, decision.InstructorIDs)
}

func TestAvailabilityCheckTotalBlockIsBlocking(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	f.source.blocks = []availability.AvailabilityBlock{totalBlock(svcAna.ID, 10)}

	check, err := f.svc.Check(context.Background(), dto.CheckAvailabilityRequest{AvailabilityQuery: mondayQuery(svcAna.ID, svcBruno.ID)})
	require.NoError(t, err)

	assert.False(t, check.Result.Available)
	assert.Equal(t, availability.ResultFor(availability.CodeTotalBlock), check.Result.Code)
	assert.False(t, check.CanCreate)
	require.Len(t, check.Blocking, 1)
	assert.Equal(t, svcAna.ID, check.Blocking[0].Instructor.ID)
	assert.Equal(t, 1, check.Result.UnavailableCount())
}

func TestAvailabilityCheckMergesLoaderWarnings(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	f.source.warnings = []availability.PartialEvaluationWarning{{InstructorID: svcAna.ID, Rule: availability.CodeTotalBlock, RelatedID: "blk-bad", Reason: "bad clock"}}

	check, err := f.svc.Check(context.Background(), dto.CheckAvailabilityRequest{AvailabilityQuery: mondayQuery(svcAna.ID)})
	require.NoError(t, err)
	require.Len(t, check.Result.Warnings, 1)
	assert.Equal(t, "blk-bad", check.Result.Warnings[0].RelatedID)
}

func TestAvailabilityCheckShortNoticeAdvisory(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	query := mondayQuery(svcAna.ID)
	query.Start = "2025-03-01T18:00"
	query.End = "2025-03-01T19:00"

	check, err := f.svc.Check(context.Background(), dto.CheckAvailabilityRequest{AvailabilityQuery: query})
	require.NoError(t, err)

	codes := make([]availability.AdvisoryCode, 0, len(check.Advisories))
	for _, advisory := range check.Advisories {
		codes = append(codes, advisory.Code)
	}
	assert.Contains(t, codes, availability.AdvisoryShortNotice)
	assert.Contains(t, codes, availability.AdvisoryOutsideBusinessHours)
	assert.Contains(t, codes, availability.AdvisoryWeekend)
	assert.True(t, check.CanCreate, "advisories never block creation")
}

func TestAvailabilityCheckRejectsInvalidInput(t *testing.T) {
	cases := map[string]struct {
		query dto.AvailabilityQuery
		want  *appErrors.Error
	}{
		"no instructors": {query: mondayQuery(), want: appErrors.ErrValidation},
		"duplicate ids":  {query: mondayQuery(svcAna.ID, svcAna.ID), want: appErrors.ErrValidation},
		"end before start": {query: func() dto.AvailabilityQuery {
			q := mondayQuery(svcAna.ID)
			q.End = "2025-03-10T08:00"
			return q
		}(), want: appErrors.ErrInvalidRequest},
		"unparsable start": {query: func() dto.AvailabilityQuery {
			q := mondayQuery(svcAna.ID)
			q.Start = "tomorrow"
			return q
		}(), want: appErrors.ErrInvalidRequest},
		"unknown instructor": {query: mondayQuery("inst-ghost"), want: appErrors.ErrNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newAvailabilityFixture(AvailabilityOptions{})
			_, err := f.svc.Check(context.Background(), dto.CheckAvailabilityRequest{AvailabilityQuery: tc.query})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Empty(t, f.source.loads)
			assert.Empty(t, f.audit.entries)
		})
	}
}

func TestAvailabilityCheckWrapsLoadFailure(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	f.source.loadErr = appErrors.Wrap(errors.New("db down"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability blocks")

	_, err := f.svc.Check(context.Background(), dto.CheckAvailabilityRequest{AvailabilityQuery: mondayQuery(svcAna.ID)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestCreateRequestPersistsPending(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	ctx := WithActor(context.Background(), Actor{UserID: "coord-1", Role: models.RoleCoordinator, RequestID: "rid-1"})
	req := dto.CreateEventRequest{AvailabilityQuery: mondayQuery(svcAna.ID, svcBruno.ID), Title: "  Onboarding  ", Description: "Module 1"}

	resp, err := f.svc.CreateRequest(ctx, req)
	require.NoError(t, err)

	require.Len(t, f.requests.created, 1)
	row := f.requests.created[0]
	assert.Equal(t, "req-1", resp.Request.ID)
	assert.Equal(t, string(availability.StatusPending), row.Status)
	assert.Equal(t, "Onboarding", row.Title)
	require.NotNil(t, row.Description)
	assert.Equal(t, "Module 1", *row.Description)
	assert.Equal(t, "coord-1", row.RequestedBy)
	assert.Equal(t, "E", row.AvailabilityCode)
	assert.True(t, row.StartsAt.Equal(svcAt(10, 9, 0)))
	assert.True(t, resp.Check.CanCreate)

	require.Len(t, f.locks.acquired, 1)
	assert.Equal(t, 1, f.locks.released)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionEventRequestCreate, f.audit.entries[0].Action)
	assert.Equal(t, "req-1", f.audit.entries[0].ResourceID)

	assert.Equal(t, []string{"matrix:2025-03:*"}, f.cache.patterns)
}

func TestCreateRequestAllowsNonCriticalConflicts(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	f.source.blocks = []availability.AvailabilityBlock{{
		ID:           "blk-partial",
		InstructorID: svcAna.ID,
		Date:         time.Date(2025, time.March, 10, 0, 0, 0, 0, svcZone),
		StartTime:    availability.MustClock("09:30"),
		EndTime:      availability.MustClock("10:00"),
		Kind:         availability.BlockPartial,
	}}

	resp, err := f.svc.CreateRequest(context.Background(), dto.CreateEventRequest{AvailabilityQuery: mondayQuery(svcAna.ID), Title: "Workshop"})
	require.NoError(t, err)
	assert.Equal(t, "P", resp.Request.AvailabilityCode)
	assert.Equal(t, 1, resp.Request.ConflictCount)
	assert.False(t, resp.Check.Result.Available)
	assert.True(t, resp.Check.CanCreate)
}

func TestCreateRequestRefusesCriticalConflict(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	f.source.events = []availability.ScheduledEvent{{
		ID:            "evt-1",
		Title:         "Existing session",
		InstructorIDs: []string{svcBruno.ID},
		Window:        availability.TimeWindow{Start: svcAt(10, 10, 0), End: svcAt(10, 12, 0)},
		Location:      svcLisboa,
		Status:        availability.StatusConfirmed,
	}}

	_, err := f.svc.CreateRequest(context.Background(), dto.CreateEventRequest{AvailabilityQuery: mondayQuery(svcAna.ID, svcBruno.ID), Title: "Workshop"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	details, ok := appErr.Details.(*dto.AvailabilityCheckResponse)
	require.True(t, ok)
	assert.Equal(t, availability.ResultFor(availability.CodeOverlap), details.Result.Code)
	assert.Contains(t, appErr.Message, "X (overlapping event)")

	assert.Empty(t, f.requests.created)
	assert.Empty(t, f.cache.patterns)
	assert.Equal(t, 1, f.locks.released)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionEventRequestRefused, f.audit.entries[0].Action)
}

func TestCreateRequestLockContention(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	f.locks.acquireErr = appErrors.Clone(appErrors.ErrLockNotAcquired, "instructor inst-ana is being scheduled by another request")

	_, err := f.svc.CreateRequest(context.Background(), dto.CreateEventRequest{AvailabilityQuery: mondayQuery(svcAna.ID), Title: "Workshop"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrLockNotAcquired))
	assert.Empty(t, f.source.loads)
	assert.Zero(t, f.locks.released)
}

func TestCreateRequestStoreFailure(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	f.requests.err = errors.New("insert failed")

	_, err := f.svc.CreateRequest(context.Background(), dto.CreateEventRequest{AvailabilityQuery: mondayQuery(svcAna.ID), Title: "Workshop"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Equal(t, 1, f.locks.released)
	assert.Empty(t, f.audit.entries)
}

func TestSuggestSkipsBlockedDay(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	f.source.blocks = []availability.AvailabilityBlock{totalBlock(svcAna.ID, 10)}

	resp, err := f.svc.Suggest(context.Background(), dto.SuggestRequest{AvailabilityQuery: mondayQuery(svcAna.ID)})
	require.NoError(t, err)

	assert.False(t, resp.Partial)
	require.Len(t, resp.Suggestions, 10)
	first := resp.Suggestions[0]
	assert.True(t, first.Window.Start.Equal(svcAt(11, 8, 0)), "got %s", first.Window)
	assert.Equal(t, availability.ConfidenceHigh, first.Confidence)

	require.Len(t, f.source.loads, 1)
	assert.True(t, f.source.loads[0].from.Equal(time.Date(2025, time.March, 9, 0, 0, 0, 0, svcZone)))
	assert.True(t, f.source.loads[0].to.Equal(time.Date(2025, time.April, 10, 0, 0, 0, 0, svcZone)))

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionAvailabilitySuggest, f.audit.entries[0].Action)
}

func TestSuggestSurfacesLoaderWarnings(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	f.source.warnings = []availability.PartialEvaluationWarning{{InstructorID: svcAna.ID, Rule: availability.CodeTotalBlock, RelatedID: "blk-bad", Reason: "bad clock"}}

	resp, err := f.svc.Suggest(context.Background(), dto.SuggestRequest{AvailabilityQuery: mondayQuery(svcAna.ID)})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Suggestions)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, "blk-bad", resp.Warnings[0].RelatedID)
	require.Len(t, f.audit.entries, 1)
}

func TestSuggestReturnsPartialAtDeadline(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{SuggestTimeout: 10 * time.Millisecond})
	f.source.loadDelay = 50 * time.Millisecond

	resp, err := f.svc.Suggest(context.Background(), dto.SuggestRequest{AvailabilityQuery: mondayQuery(svcAna.ID)})
	require.NoError(t, err)
	assert.True(t, resp.Partial)
	assert.NotNil(t, resp.Suggestions)
	assert.Empty(t, resp.Suggestions)
}

func TestSuggestCancelledByCaller(t *testing.T) {
	f := newAvailabilityFixture(AvailabilityOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Suggest(ctx, dto.SuggestRequest{AvailabilityQuery: mondayQuery(svcAna.ID)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrTimeout))
}
