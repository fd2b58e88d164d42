package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formador-scheduler/internal/availability"
	"github.com/noah-isme/formador-scheduler/internal/dto"
	"github.com/noah-isme/formador-scheduler/internal/middleware"
	"github.com/noah-isme/formador-scheduler/internal/models"
	"github.com/noah-isme/formador-scheduler/internal/service"
	appErrors "github.com/noah-isme/formador-scheduler/pkg/errors"
)

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type availabilityServiceStub struct {
	checkResp   *dto.AvailabilityCheckResponse
	checkErr    error
	createResp  *dto.CreateEventResponse
	createErr   error
	suggestResp *dto.SuggestResponse
	suggestErr  error

	lastCheck   dto.CheckAvailabilityRequest
	lastCreate  dto.CreateEventRequest
	lastSuggest dto.SuggestRequest
}

func (s *availabilityServiceStub) Check(_ context.Context, req dto.CheckAvailabilityRequest) (*dto.AvailabilityCheckResponse, error) {
	s.lastCheck = req
	return s.checkResp, s.checkErr
}

func (s *availabilityServiceStub) CreateRequest(_ context.Context, req dto.CreateEventRequest) (*dto.CreateEventResponse, error) {
	s.lastCreate = req
	return s.createResp, s.createErr
}

func (s *availabilityServiceStub) Suggest(_ context.Context, req dto.SuggestRequest) (*dto.SuggestResponse, error) {
	s.lastSuggest = req
	return s.suggestResp, s.suggestErr
}

type rendererStub struct {
	calls int
}

func (s *rendererStub) SuggestionsICS(_ context.Context, _ dto.AvailabilityQuery, suggestions []availability.Suggestion) (*service.ExportFile, error) {
	s.calls++
	return &service.ExportFile{Filename: "alternative-slots.ics", ContentType: "text/calendar; charset=utf-8", Data: []byte("BEGIN:VCALENDAR")}, nil
}

type calendarServiceStub struct {
	matrix     *availability.MonthlyMatrix
	hit        bool
	err        error
	lastReq    dto.MatrixRequest
	lastFormat string
}

func (s *calendarServiceStub) Matrix(_ context.Context, req dto.MatrixRequest) (*availability.MonthlyMatrix, bool, error) {
	s.lastReq = req
	return s.matrix, s.hit, s.err
}

func (s *calendarServiceStub) Export(_ context.Context, req dto.MatrixRequest, format string) (*service.ExportFile, error) {
	s.lastReq = req
	s.lastFormat = format
	if s.err != nil {
		return nil, s.err
	}
	return &service.ExportFile{Filename: "availability-2025-03.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("Instructor\n")}, nil
}

const checkBody = `{"instructorIds":["inst-ana"],"start":"2025-03-10T09:00","end":"2025-03-10T11:00","locationId":"loc-lisboa"}`

func newJSONContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestAvailabilityHandlerCheck(t *testing.T) {
	stub := &availabilityServiceStub{checkResp: &dto.AvailabilityCheckResponse{
		Result:    availability.Result{Code: availability.ResultFor(availability.CodeTotalBlock)},
		CanCreate: false,
	}}
	handler := NewAvailabilityHandler(stub, nil)
	c, rec := newJSONContext(http.MethodPost, "/availability/check", checkBody)

	handler.Check(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"inst-ana"}, stub.lastCheck.InstructorIDs)
	assert.Equal(t, "loc-lisboa", stub.lastCheck.LocationID)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, false, envelope.Data["canCreate"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestAvailabilityHandlerCheckRejectsMalformedBody(t *testing.T) {
	stub := &availabilityServiceStub{}
	handler := NewAvailabilityHandler(stub, nil)
	c, rec := newJSONContext(http.MethodPost, "/availability/check", `{"instructorIds":`)

	handler.Check(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error["code"])
}

func TestAvailabilityHandlerCheckPropagatesNotFound(t *testing.T) {
	stub := &availabilityServiceStub{checkErr: appErrors.Clone(appErrors.ErrNotFound, "instructors not found")}
	handler := NewAvailabilityHandler(stub, nil)
	c, rec := newJSONContext(http.MethodPost, "/availability/check", checkBody)

	handler.Check(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAvailabilityHandlerCreateRequest(t *testing.T) {
	stub := &availabilityServiceStub{createResp: &dto.CreateEventResponse{
		Request: &models.EventRequest{ID: "req-1", Status: "pending"},
		Check:   &dto.AvailabilityCheckResponse{CanCreate: true},
	}}
	handler := NewAvailabilityHandler(stub, nil)
	body := strings.TrimSuffix(checkBody, "}") + `,"title":"Workshop"}`
	c, rec := newJSONContext(http.MethodPost, "/event-requests", body)

	handler.CreateRequest(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Workshop", stub.lastCreate.Title)
	envelope := decodeEnvelope(t, rec)
	request, ok := envelope.Data["request"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "req-1", request["id"])
}

func TestAvailabilityHandlerCreateRequestConflicts(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "blocking conflict", err: appErrors.Clone(appErrors.ErrConflict, "event cannot be requested"), status: http.StatusConflict},
		{name: "lock contention", err: appErrors.Clone(appErrors.ErrLockNotAcquired, "instructors are being booked"), status: http.StatusConflict},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewAvailabilityHandler(&availabilityServiceStub{createErr: tc.err}, nil)
			c, rec := newJSONContext(http.MethodPost, "/event-requests", checkBody)

			handler.CreateRequest(c)

			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestAvailabilityHandlerSuggestJSON(t *testing.T) {
	start := time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC)
	stub := &availabilityServiceStub{suggestResp: &dto.SuggestResponse{
		Suggestions: []availability.Suggestion{{
			Window:     availability.TimeWindow{Start: start, End: start.Add(2 * time.Hour)},
			Confidence: availability.ConfidenceHigh,
		}},
		Partial: true,
	}}
	handler := NewAvailabilityHandler(stub, &rendererStub{})
	c, rec := newJSONContext(http.MethodPost, "/availability/suggestions", checkBody)

	handler.Suggest(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Partial-Result"))
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["partial"])
	assert.Equal(t, float64(1), envelope.Meta["count"])
	assert.Len(t, envelope.Data["suggestions"], 1)
}

func TestAvailabilityHandlerSuggestICS(t *testing.T) {
	stub := &availabilityServiceStub{suggestResp: &dto.SuggestResponse{Suggestions: []availability.Suggestion{}}}
	renderer := &rendererStub{}
	handler := NewAvailabilityHandler(stub, renderer)
	c, rec := newJSONContext(http.MethodPost, "/availability/suggestions?format=ics", checkBody)

	handler.Suggest(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, renderer.calls)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "alternative-slots.ics")
	assert.Equal(t, "BEGIN:VCALENDAR", rec.Body.String())
}

func TestAvailabilityHandlerSuggestRejectsUnknownFormat(t *testing.T) {
	stub := &availabilityServiceStub{}
	handler := NewAvailabilityHandler(stub, nil)
	c, rec := newJSONContext(http.MethodPost, "/availability/suggestions?format=ics", checkBody)

	handler.Suggest(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newJSONContext(http.MethodPost, "/availability/suggestions?format=xml", checkBody)
	handler.Suggest(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.lastSuggest.InstructorIDs)
}

func TestAvailabilityHandlerSuggestTimeout(t *testing.T) {
	stub := &availabilityServiceStub{suggestErr: appErrors.Clone(appErrors.ErrTimeout, "suggestion search cancelled")}
	handler := NewAvailabilityHandler(stub, nil)
	c, rec := newJSONContext(http.MethodPost, "/availability/suggestions", checkBody)

	handler.Suggest(c)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestCalendarHandlerMatrixJSON(t *testing.T) {
	stub := &calendarServiceStub{
		matrix: &availability.MonthlyMatrix{Year: 2025, Month: time.March},
		hit:    true,
	}
	handler := NewCalendarHandler(stub)
	c, rec := newJSONContext(http.MethodGet, "/availability/matrix?year=2025&month=3&instructorId=inst-ana&instructorId=inst-bruno", "")
	middleware.WithResponseMeta()(c)

	handler.Matrix(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.MatrixRequest{Year: 2025, Month: 3, InstructorIDs: []string{"inst-ana", "inst-bruno"}}, stub.lastReq)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestCalendarHandlerMatrixExport(t *testing.T) {
	stub := &calendarServiceStub{}
	handler := NewCalendarHandler(stub)
	c, rec := newJSONContext(http.MethodGet, "/availability/matrix?year=2025&month=3&format=CSV", "")

	handler.Matrix(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", stub.lastFormat)
	assert.Equal(t, `attachment; filename="availability-2025-03.csv"`, rec.Header().Get("Content-Disposition"))
}

func TestCalendarHandlerMatrixRejectsBadQuery(t *testing.T) {
	handler := NewCalendarHandler(&calendarServiceStub{})
	c, rec := newJSONContext(http.MethodGet, "/availability/matrix?year=abc&month=3", "")

	handler.Matrix(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarHandlerMatrixExportError(t *testing.T) {
	stub := &calendarServiceStub{err: appErrors.Clone(appErrors.ErrInvalidRequest, "unsupported export format")}
	handler := NewCalendarHandler(stub)
	c, rec := newJSONContext(http.MethodGet, "/availability/matrix?year=2025&month=3&format=xlsx", "")

	handler.Matrix(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "xlsx", stub.lastFormat)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
	})
	c, rec := newJSONContext(http.MethodGet, "/ready", "")
	healthy.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	degraded := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	c, rec = newJSONContext(http.MethodGet, "/ready", "")
	degraded.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	handler := NewMetricsHandler(service.NewMetricsService(), nil)
	c, rec := newJSONContext(http.MethodGet, "/metrics", "")

	handler.Prometheus(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newJSONContext(http.MethodGet, "/metrics", "")
	NewMetricsHandler(nil, nil).Prometheus(c)
	// A bare test context never flushes the status; gin's engine does this after the handler returns.
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
