package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cee-allot-api/internal/dto"
	"github.com/noah-isme/cee-allot-api/internal/models"
	"github.com/noah-isme/cee-allot-api/internal/service"
	appErrors "github.com/noah-isme/cee-allot-api/pkg/errors"
	"github.com/noah-isme/cee-allot-api/pkg/response"
)

type allotmentService interface {
	StartRun(ctx context.Context, req dto.StartRunRequest, actorID string) (*dto.RunResponse, error)
	GetRun(ctx context.Context, id string) (*dto.RunResponse, error)
	ListRuns(ctx context.Context, query dto.RunListQuery) ([]dto.RunResponse, *models.Pagination, error)
	ListRecords(ctx context.Context, runID string, query dto.RecordListQuery) ([]dto.RecordResponse, *models.Pagination, error)
	DeleteRun(ctx context.Context, id string) error
}

type exportService interface {
	Export(ctx context.Context, runID string, format service.ExportFormat) (*service.ExportResult, error)
}

// AllotmentHandler exposes the seat allotment REST endpoints.
type AllotmentHandler struct {
	service allotmentService
	exports exportService
}

// NewAllotmentHandler constructs the handler.
func NewAllotmentHandler(svc allotmentService, exports exportService) *AllotmentHandler {
	return &AllotmentHandler{service: svc, exports: exports}
}

// StartRun godoc
// @Summary Start an allotment run
// @Description Queues a seat allotment run for a program and phase
// @Tags Allotment
// @Accept json
// @Produce json
// @Param payload body dto.StartRunRequest true "Run parameters"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /allotment/runs [post]
func (h *AllotmentHandler) StartRun(c *gin.Context) {
	var req dto.StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid run payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	run, err := h.service.StartRun(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, run, nil)
}

// GetRun godoc
// @Summary Get run status
// @Tags Allotment
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /allotment/runs/{id} [get]
func (h *AllotmentHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// ListRuns godoc
// @Summary List allotment runs
// @Tags Allotment
// @Produce json
// @Param program query string false "Program code"
// @Param phase query int false "Phase number"
// @Param status query string false "Run status"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /allotment/runs [get]
func (h *AllotmentHandler) ListRuns(c *gin.Context) {
	var query dto.RunListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	runs, pagination, err := h.service.ListRuns(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// ListRecords godoc
// @Summary List run records
// @Description Returns per-candidate outcomes of a run, paginated
// @Tags Allotment
// @Produce json
// @Param id path string true "Run ID"
// @Param status query string false "Record status"
// @Param college query string false "College code"
// @Param course query string false "Course code"
// @Param category query string false "Category code"
// @Param roll_no query int false "Roll number"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /allotment/runs/{id}/records [get]
func (h *AllotmentHandler) ListRecords(c *gin.Context) {
	var query dto.RecordListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	records, pagination, err := h.service.ListRecords(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Export godoc
// @Summary Export run results
// @Description Streams the full record set of a completed run as CSV or PDF
// @Tags Allotment
// @Produce octet-stream
// @Param id path string true "Run ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /allotment/runs/{id}/export [get]
func (h *AllotmentHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	result, err := h.exports.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

// DeleteRun godoc
// @Summary Delete a finished run
// @Description Removes a terminal run and its records
// @Tags Allotment
// @Param id path string true "Run ID"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /allotment/runs/{id} [delete]
func (h *AllotmentHandler) DeleteRun(c *gin.Context) {
	if err := h.service.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
