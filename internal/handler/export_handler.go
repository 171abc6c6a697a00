package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mnhs-portal/registrar-api/internal/service"
	"github.com/mnhs-portal/registrar-api/pkg/response"
)

type exportService interface {
	DocumentRequests(ctx context.Context, format service.ExportFormat, archived bool) (*service.ExportResult, error)
	Enrollments(ctx context.Context, format service.ExportFormat, schoolYear string) (*service.ExportResult, error)
}

// ExportHandler serves register exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// DocumentRequests godoc
// @Summary Export the document request register
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Param archived query bool false "Export the archived register"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /admin/exports/document-requests [get]
func (h *ExportHandler) DocumentRequests(c *gin.Context) {
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	archived := c.Query("archived") == "true"

	result, err := h.service.DocumentRequests(c.Request.Context(), format, archived)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeExport(c, result)
}

// Enrollments godoc
// @Summary Export the enrollment register
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Param school_year query string false "School year filter"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /admin/exports/enrollments [get]
func (h *ExportHandler) Enrollments(c *gin.Context) {
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))

	result, err := h.service.Enrollments(c.Request.Context(), format, strings.TrimSpace(c.Query("school_year")))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeExport(c, result)
}

func writeExport(c *gin.Context, result *service.ExportResult) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
