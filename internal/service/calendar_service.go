package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/formador-scheduler/internal/availability"
	"github.com/noah-isme/formador-scheduler/internal/dto"
	"github.com/noah-isme/formador-scheduler/pkg/export"
	appErrors "github.com/noah-isme/formador-scheduler/pkg/errors"
)

// Export formats supported by the monthly matrix.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type calendarSource interface {
	Instructors(ctx context.Context, ids []string) ([]availability.Instructor, error)
	ActiveInstructors(ctx context.Context) ([]availability.Instructor, error)
	Location(ctx context.Context, id string) (availability.Location, error)
	Load(ctx context.Context, instructorIDs []string, from, to time.Time) (availability.Snapshot, []availability.PartialEvaluationWarning, error)
}

type matrixCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CalendarService projects instructor calendars into monthly matrices and downloads.
type CalendarService struct {
	engine    *availability.Engine
	source    calendarSource
	cache     matrixCache
	cacheTTL  time.Duration
	metrics   *MetricsService
	clock     Clock
	validator *validator.Validate
	logger    *zap.Logger

	csv *export.CSVExporter
	pdf *export.PDFExporter
	ics *export.ICSExporter
}

// NewCalendarService constructs the service. cache may be nil.
func NewCalendarService(engine *availability.Engine, source calendarSource, cache matrixCache, cacheTTL time.Duration, metrics *MetricsService, clock Clock, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	return &CalendarService{
		engine:    engine,
		source:    source,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
		clock:     clock,
		validator: validate,
		logger:    logger,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(statusFill),
		ics:       export.NewICSExporter("-//formador-scheduler//availability//EN"),
	}
}

// Matrix returns the monthly matrix and whether it was served from cache.
func (s *CalendarService) Matrix(ctx context.Context, req dto.MatrixRequest) (*availability.MonthlyMatrix, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid matrix query")
	}
	month := time.Month(req.Month)
	key := MatrixKey(req.Year, month, req.InstructorIDs)
	if s.cache != nil {
		var cached availability.MonthlyMatrix
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	matrix, err := s.build(ctx, req.Year, month, req.InstructorIDs)
	if err != nil {
		return nil, false, err
	}
	s.store(ctx, key, matrix)
	return matrix, false, nil
}

// Export renders the monthly matrix as csv or pdf.
func (s *CalendarService) Export(ctx context.Context, req dto.MatrixRequest, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrInvalidRequest, fmt.Sprintf("unsupported export format %q", format))
	}
	matrix, _, err := s.Matrix(ctx, req)
	if err != nil {
		return nil, err
	}
	table := matrixTable(matrix, s.clock.Now())

	var (
		data        []byte
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		data, err = s.csv.Render(table)
		contentType = s.csv.ContentType()
	case ExportFormatPDF:
		data, err = s.pdf.Render(table)
		contentType = s.pdf.ContentType()
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render matrix export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("availability-%04d-%02d.%s", matrix.Year, int(matrix.Month), format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// SuggestionsICS renders alternative slots as tentative calendar entries.
func (s *CalendarService) SuggestionsICS(ctx context.Context, query dto.AvailabilityQuery, suggestions []availability.Suggestion) (*ExportFile, error) {
	location, err := s.source.Location(ctx, query.LocationID)
	if err != nil {
		return nil, err
	}
	entries := make([]export.CalendarEntry, 0, len(suggestions))
	for i, suggestion := range suggestions {
		names := make([]string, 0, len(suggestion.Available))
		for _, instructor := range suggestion.Available {
			names = append(names, instructor.Name)
		}
		description := fmt.Sprintf("Confidence: %s\nAvailable: %s", suggestion.Confidence, strings.Join(names, ", "))
		if suggestion.UnavailableCount > 0 {
			description += fmt.Sprintf("\nUnavailable instructors: %d (%s)", suggestion.UnavailableCount, suggestion.Code)
		}
		entries = append(entries, export.CalendarEntry{
			UID:         fmt.Sprintf("suggestion-%d-%d@formador-scheduler", suggestion.Window.Start.Unix(), i),
			Summary:     fmt.Sprintf("Alternative slot (%s)", suggestion.Confidence),
			Description: description,
			Location:    location.Name,
			Start:       suggestion.Window.Start,
			End:         suggestion.Window.End,
			Tentative:   true,
		})
	}
	data, err := s.ics.Render("Alternative slots", entries, s.clock.Now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render calendar")
	}
	return &ExportFile{Filename: "alternative-slots.ics", ContentType: s.ics.ContentType(), Data: data}, nil
}

// WarmNextMonth recomputes next month's matrix for every active instructor and refreshes the cache.
func (s *CalendarService) WarmNextMonth(ctx context.Context) error {
	zone := s.engine.Config().Zone
	now := s.clock.Now().In(zone)
	next := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, zone).AddDate(0, 1, 0)

	matrix, err := s.build(ctx, next.Year(), next.Month(), nil)
	if err != nil {
		return err
	}
	s.store(ctx, MatrixKey(next.Year(), next.Month(), nil), matrix)
	s.logger.Info("matrix cache warmed", zap.Int("year", next.Year()), zap.Int("month", int(next.Month())), zap.Int("instructors", len(matrix.Rows)))
	return nil
}

func (s *CalendarService) build(ctx context.Context, year int, month time.Month, ids []string) (*availability.MonthlyMatrix, error) {
	start := time.Now()
	var (
		instructors []availability.Instructor
		err         error
	)
	if len(ids) == 0 {
		instructors, err = s.source.ActiveInstructors(ctx)
	} else {
		instructors, err = s.source.Instructors(ctx, ids)
	}
	if err != nil {
		return nil, err
	}

	snap := availability.Snapshot{}
	var warnings []availability.PartialEvaluationWarning
	if len(instructors) > 0 {
		zone := s.engine.Config().Zone
		first := time.Date(year, month, 1, 0, 0, 0, 0, zone)
		last := first.AddDate(0, 1, -1)
		loadIDs := make([]string, 0, len(instructors))
		for _, instructor := range instructors {
			loadIDs = append(loadIDs, instructor.ID)
		}
		snap, warnings, err = s.source.Load(ctx, loadIDs, first, last)
		if err != nil {
			return nil, err
		}
	}

	matrix := s.engine.MonthlyMatrix(year, month, instructors, snap)
	if len(warnings) > 0 {
		matrix.Warnings = append(warnings, matrix.Warnings...)
	}
	if len(matrix.Warnings) > 0 {
		s.logger.Warn("matrix built from a partial snapshot", zap.Int("year", year), zap.Int("month", int(month)), zap.Int("warnings", len(matrix.Warnings)))
	}
	s.metrics.ObserveEvaluation("matrix", time.Since(start))
	return &matrix, nil
}

func (s *CalendarService) store(ctx context.Context, key string, matrix *availability.MonthlyMatrix) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, matrix, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache matrix", zap.String("key", key), zap.Error(err))
	}
}

func matrixTable(matrix *availability.MonthlyMatrix, generatedAt time.Time) export.Table {
	headers := make([]string, 0, len(matrix.Days)+1)
	headers = append(headers, "Instructor")
	for _, day := range matrix.Days {
		headers = append(headers, fmt.Sprintf("%02d %s", day.Day(), day.Weekday().String()[:2]))
	}
	rows := make([][]string, 0, len(matrix.Rows))
	for _, row := range matrix.Rows {
		cells := make([]string, 0, len(row.Cells)+1)
		cells = append(cells, row.Instructor.Name)
		for _, cell := range row.Cells {
			cells = append(cells, string(cell.Status))
		}
		rows = append(rows, cells)
	}
	footer := make([]string, 0, len(availability.DayStatuses)+1)
	for _, status := range availability.DayStatuses {
		footer = append(footer, fmt.Sprintf("%s: %s (%d)", statusSymbol(status), statusLabel(status), matrix.Legend[status]))
	}
	footer = append(footer, "Generated "+generatedAt.UTC().Format(time.RFC3339))
	return export.Table{
		Title:   fmt.Sprintf("Instructor availability %04d-%02d", matrix.Year, int(matrix.Month)),
		Headers: headers,
		Rows:    rows,
		Footer:  footer,
	}
}

func statusSymbol(status availability.DayStatus) string {
	if status == availability.DayAvailable {
		return "(blank)"
	}
	return string(status)
}

func statusLabel(status availability.DayStatus) string {
	switch status {
	case availability.DayTotalBlock:
		return "unavailable all day"
	case availability.DayPartialBlock:
		return "partially unavailable"
	case availability.DaySingleEvent:
		return "one event"
	case availability.DayMultipleEvents:
		return "several events"
	case availability.DayOverlapping:
		return "overlapping events"
	default:
		return "available"
	}
}

func statusFill(value string) (export.RGB, bool) {
	switch availability.DayStatus(value) {
	case availability.DayTotalBlock:
		return export.RGB{R: 231, G: 76, B: 60}, true
	case availability.DayPartialBlock:
		return export.RGB{R: 243, G: 156, B: 18}, true
	case availability.DayOverlapping:
		return export.RGB{R: 155, G: 89, B: 182}, true
	case availability.DayMultipleEvents:
		return export.RGB{R: 241, G: 196, B: 15}, true
	case availability.DaySingleEvent:
		return export.RGB{R: 52, G: 152, B: 219}, true
	default:
		return export.RGB{}, false
	}
}
