package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/formador-scheduler/internal/availability"
	"github.com/noah-isme/formador-scheduler/internal/dto"
	"github.com/noah-isme/formador-scheduler/internal/middleware"
	"github.com/noah-isme/formador-scheduler/internal/service"
	appErrors "github.com/noah-isme/formador-scheduler/pkg/errors"
	"github.com/noah-isme/formador-scheduler/pkg/response"
)

type availabilityService interface {
	Check(ctx context.Context, req dto.CheckAvailabilityRequest) (*dto.AvailabilityCheckResponse, error)
	CreateRequest(ctx context.Context, req dto.CreateEventRequest) (*dto.CreateEventResponse, error)
	Suggest(ctx context.Context, req dto.SuggestRequest) (*dto.SuggestResponse, error)
}

type suggestionRenderer interface {
	SuggestionsICS(ctx context.Context, query dto.AvailabilityQuery, suggestions []availability.Suggestion) (*service.ExportFile, error)
}

// AvailabilityHandler exposes conflict checks, event requests and alternative slots.
type AvailabilityHandler struct {
	service  availabilityService
	renderer suggestionRenderer
}

// NewAvailabilityHandler constructs the handler. renderer may be nil, which disables ics downloads.
func NewAvailabilityHandler(service availabilityService, renderer suggestionRenderer) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, renderer: renderer}
}

// Check godoc
// @Summary Check instructor availability for a proposed event
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body dto.CheckAvailabilityRequest true "Proposed event"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /availability/check [post]
func (h *AvailabilityHandler) Check(c *gin.Context) {
	var req dto.CheckAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	result, err := h.service.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// CreateRequest godoc
// @Summary Create a pending event request
// @Description Re-checks availability under an instructor lock and refuses requests with blocking conflicts.
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /event-requests [post]
func (h *AvailabilityHandler) CreateRequest(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	created, err := h.service.CreateRequest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created, middleware.ExtractMeta(c))
}

// Suggest godoc
// @Summary Suggest alternative slots
// @Tags Availability
// @Accept json
// @Produce json
// @Produce text/calendar
// @Param payload body dto.SuggestRequest true "Rejected proposal"
// @Param format query string false "Set to ics to download the slots as a calendar"
// @Success 200 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /availability/suggestions [post]
func (h *AvailabilityHandler) Suggest(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format != "" && format != "json" && format != "ics" {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidRequest, "format must be json or ics"))
		return
	}
	if format == "ics" && h.renderer == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidRequest, "calendar downloads are not enabled"))
		return
	}

	var req dto.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	result, err := h.service.Suggest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Partial {
		c.Header("X-Partial-Result", "true")
	}

	if format == "ics" {
		file, err := h.renderer.SuggestionsICS(c.Request.Context(), req.AvailabilityQuery, result.Suggestions)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, file.Filename, file.ContentType, file.Data)
		return
	}

	middleware.SetMeta(c, "partial", result.Partial)
	middleware.SetMeta(c, "count", len(result.Suggestions))
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}
