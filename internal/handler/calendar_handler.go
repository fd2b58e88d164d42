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

type calendarService interface {
	Matrix(ctx context.Context, req dto.MatrixRequest) (*availability.MonthlyMatrix, bool, error)
	Export(ctx context.Context, req dto.MatrixRequest, format string) (*service.ExportFile, error)
}

// CalendarHandler serves the monthly availability matrix.
type CalendarHandler struct {
	service calendarService
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(service calendarService) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// Matrix godoc
// @Summary Monthly availability matrix
// @Description Returns one row per instructor and one cell per day. Use format=csv or format=pdf to download.
// @Tags Calendar
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Param instructorId query []string false "Instructor IDs, defaults to every active instructor" collectionFormat(multi)
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /availability/matrix [get]
func (h *CalendarHandler) Matrix(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.MatrixRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year and month must be integers"))
		return
	}

	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	switch format {
	case "", "json":
		matrix, hit, err := h.service.Matrix(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		middleware.SetCacheHit(c, hit)
		response.JSON(c, http.StatusOK, matrix, middleware.ExtractMeta(c))
	default:
		file, err := h.service.Export(c.Request.Context(), req, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, file.Filename, file.ContentType, file.Data)
	}
}
