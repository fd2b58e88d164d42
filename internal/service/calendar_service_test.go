package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formador-scheduler/internal/availability"
	"github.com/noah-isme/formador-scheduler/internal/dto"
	appErrors "github.com/noah-isme/formador-scheduler/pkg/errors"
)

type matrixCacheStub struct {
	entries map[string]availability.MonthlyMatrix
	sets    []string
}

func (s *matrixCacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	matrix, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	*(dest.(*availability.MonthlyMatrix)) = matrix
	return true, nil
}

func (s *matrixCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.entries == nil {
		s.entries = make(map[string]availability.MonthlyMatrix)
	}
	s.entries[key] = *(value.(*availability.MonthlyMatrix))
	s.sets = append(s.sets, key)
	return nil
}

func newCalendarFixture(now time.Time) (*CalendarService, *snapshotSourceStub, *matrixCacheStub) {
	source := newSnapshotSourceStub()
	cache := &matrixCacheStub{}
	engine := availability.NewEngine(availability.DefaultConfig(svcZone))
	svc := NewCalendarService(engine, source, cache, time.Minute, NewMetricsService(), NewFixedClock(now), nil, nil)
	return svc, source, cache
}

func TestCalendarMatrixCachesResult(t *testing.T) {
	svc, source, cache := newCalendarFixture(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	source.blocks = []availability.AvailabilityBlock{totalBlock(svcAna.ID, 10)}
	req := dto.MatrixRequest{Year: 2025, Month: 3, InstructorIDs: []string{svcBruno.ID, svcAna.ID}}

	matrix, hit, err := svc.Matrix(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, matrix.Rows, 2)
	assert.Len(t, matrix.Days, 31)
	assert.Equal(t, svcBruno.ID, matrix.Rows[0].Instructor.ID)
	assert.Equal(t, availability.DayTotalBlock, matrix.Rows[1].Cells[9].Status)
	assert.Equal(t, 1, matrix.Legend[availability.DayTotalBlock])

	require.Len(t, source.loads, 1)
	assert.True(t, source.loads[0].from.Equal(time.Date(2025, time.March, 1, 0, 0, 0, 0, svcZone)))
	assert.True(t, source.loads[0].to.Equal(time.Date(2025, time.March, 31, 0, 0, 0, 0, svcZone)))
	require.Equal(t, []string{MatrixKey(2025, time.March, []string{svcAna.ID, svcBruno.ID})}, cache.sets)

	_, hit, err = svc.Matrix(context.Background(), dto.MatrixRequest{Year: 2025, Month: 3, InstructorIDs: []string{svcAna.ID, svcBruno.ID}})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, source.loads, 1, "second lookup is served from cache")
}

func TestCalendarMatrixDefaultsToActiveInstructors(t *testing.T) {
	svc, _, _ := newCalendarFixture(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))

	matrix, _, err := svc.Matrix(context.Background(), dto.MatrixRequest{Year: 2024, Month: 2})
	require.NoError(t, err)
	require.Len(t, matrix.Rows, 2)
	assert.Len(t, matrix.Days, 29)
	assert.Equal(t, 58, matrix.Legend[availability.DayAvailable])
}

func TestCalendarMatrixCarriesLoaderWarnings(t *testing.T) {
	svc, source, _ := newCalendarFixture(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	source.warnings = []availability.PartialEvaluationWarning{{InstructorID: svcAna.ID, Rule: availability.CodeOverlap, RelatedID: "evt-orphan", Reason: "event has no instructors"}}

	matrix, _, err := svc.Matrix(context.Background(), dto.MatrixRequest{Year: 2025, Month: 3, InstructorIDs: []string{svcAna.ID}})
	require.NoError(t, err)
	require.Len(t, matrix.Warnings, 1)
	assert.Equal(t, "evt-orphan", matrix.Warnings[0].RelatedID)
}

func TestCalendarMatrixValidatesMonth(t *testing.T) {
	svc, _, _ := newCalendarFixture(time.Now())

	_, _, err := svc.Matrix(context.Background(), dto.MatrixRequest{Year: 2025, Month: 13})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCalendarExportCSV(t *testing.T) {
	svc, source, _ := newCalendarFixture(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	source.blocks = []availability.AvailabilityBlock{totalBlock(svcAna.ID, 10)}

	file, err := svc.Export(context.Background(), dto.MatrixRequest{Year: 2025, Month: 3, InstructorIDs: []string{svcAna.ID}}, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "availability-2025-03.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	reader := csv.NewReader(bytes.NewReader(file.Data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), 2)
	assert.Equal(t, "Instructor", records[0][0])
	assert.Equal(t, "10 Mo", records[0][10])
	assert.Equal(t, "Ana Sousa", records[1][0])
	assert.Equal(t, "T", records[1][10])
	assert.Equal(t, "", records[1][11])
	assert.Contains(t, string(file.Data), "T: unavailable all day (1)")
}

func TestCalendarExportPDF(t *testing.T) {
	svc, _, _ := newCalendarFixture(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))

	file, err := svc.Export(context.Background(), dto.MatrixRequest{Year: 2025, Month: 3}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestCalendarExportRejectsUnknownFormat(t *testing.T) {
	svc, source, _ := newCalendarFixture(time.Now())

	_, err := svc.Export(context.Background(), dto.MatrixRequest{Year: 2025, Month: 3}, "xlsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidRequest))
	assert.Empty(t, source.loads)
}

func TestCalendarSuggestionsICS(t *testing.T) {
	svc, _, _ := newCalendarFixture(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	suggestions := []availability.Suggestion{
		{
			Window:     availability.TimeWindow{Start: svcAt(11, 8, 0), End: svcAt(11, 10, 0)},
			Confidence: availability.ConfidenceHigh,
			Code:       availability.ResultClear,
			Available:  []availability.Instructor{svcAna},
		},
		{
			Window:           availability.TimeWindow{Start: svcAt(11, 9, 0), End: svcAt(11, 11, 0)},
			Confidence:       availability.ConfidenceMedium,
			Code:             availability.ResultFor(availability.CodePartialBlock),
			UnavailableCount: 1,
			Available:        []availability.Instructor{svcBruno},
		},
	}

	file, err := svc.SuggestionsICS(context.Background(), mondayQuery(svcAna.ID, svcBruno.ID), suggestions)
	require.NoError(t, err)
	assert.Equal(t, "alternative-slots.ics", file.Filename)

	body := string(file.Data)
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "STATUS:TENTATIVE")
	assert.Contains(t, body, "LOCATION:Lisboa")
	assert.Contains(t, body, "DTSTART:20250311T080000Z")
}

func TestCalendarWarmNextMonth(t *testing.T) {
	svc, source, cache := newCalendarFixture(time.Date(2025, time.December, 20, 12, 0, 0, 0, time.UTC))

	require.NoError(t, svc.WarmNextMonth(context.Background()))
	assert.Equal(t, []string{"matrix:2026-01:all"}, cache.sets)
	require.Len(t, source.loads, 1)
	assert.ElementsMatch(t, []string{svcAna.ID, svcBruno.ID}, source.loads[0].ids)
}
