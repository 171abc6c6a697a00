package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mnhs-portal/registrar-api/internal/models"
	"github.com/mnhs-portal/registrar-api/internal/service"
	appErrors "github.com/mnhs-portal/registrar-api/pkg/errors"
	"github.com/mnhs-portal/registrar-api/pkg/response"
)

type documentRequestService interface {
	Create(ctx context.Context, userID string, input service.CreateDocumentRequestInput) (*models.DocumentRequest, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.DocumentRequest, error)
	ListMine(ctx context.Context, userID string, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error)
	ListLive(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error)
	ListArchived(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error)
	UpdateStatus(ctx context.Context, id, target, actor string) (*models.DocumentRequest, error)
	Archive(ctx context.Context, id, actor string) error
	Restore(ctx context.Context, id, actor string) error
	BulkArchiveCompleted(ctx context.Context, actor string) (int64, error)
}

type dashboardInvalidator interface {
	Invalidate(ctx context.Context)
}

// DocumentRequestHandler manages document request HTTP endpoints.
type DocumentRequestHandler struct {
	service   documentRequestService
	dashboard dashboardInvalidator
}

// NewDocumentRequestHandler constructs the handler.
func NewDocumentRequestHandler(service documentRequestService, dashboard dashboardInvalidator) *DocumentRequestHandler {
	return &DocumentRequestHandler{service: service, dashboard: dashboard}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// Create godoc
// @Summary Submit a document request
// @Tags Document Requests
// @Accept json
// @Produce json
// @Param payload body service.CreateDocumentRequestInput true "Request payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /document-requests [post]
func (h *DocumentRequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input service.CreateDocumentRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document request payload"))
		return
	}
	req, err := h.service.Create(c.Request.Context(), claims.UserID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.Created(c, req)
}

// ListMine godoc
// @Summary List the current student's document requests
// @Tags Document Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /document-requests/mine [get]
func (h *DocumentRequestHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, pageSize := pageParams(c)
	requests, total, err := h.service.ListMine(c.Request.Context(), claims.UserID, models.DocumentRequestFilter{
		Status:   models.RequestStatus(strings.ToUpper(c.Query("status"))),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, paginationMeta(page, pageSize, total))
}

// Get godoc
// @Summary Get one document request
// @Tags Document Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /document-requests/{id} [get]
func (h *DocumentRequestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// List godoc
// @Summary List live document requests
// @Tags Document Requests
// @Produce json
// @Param status query string false "Status filter"
// @Param search query string false "Search by document type or requester"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/document-requests [get]
func (h *DocumentRequestHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	requests, total, err := h.service.ListLive(c.Request.Context(), models.DocumentRequestFilter{
		Status:   models.RequestStatus(strings.ToUpper(c.Query("status"))),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, paginationMeta(page, pageSize, total))
}

// ListArchived godoc
// @Summary List archived document requests
// @Tags Document Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/document-requests/archived [get]
func (h *DocumentRequestHandler) ListArchived(c *gin.Context) {
	page, pageSize := pageParams(c)
	requests, total, err := h.service.ListArchived(c.Request.Context(), models.DocumentRequestFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, paginationMeta(page, pageSize, total))
}

// UpdateStatus godoc
// @Summary Update a document request status
// @Tags Document Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body updateStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/document-requests/{id}/status [put]
func (h *DocumentRequestHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status payload"))
		return
	}
	updated, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), strings.ToUpper(req.Status), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.JSON(c, http.StatusOK, updated, nil)
}

// Archive godoc
// @Summary Move a document request to the archive
// @Tags Document Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/document-requests/{id}/archive [post]
func (h *DocumentRequestHandler) Archive(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Archive(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.NoContent(c)
}

// Restore godoc
// @Summary Restore an archived document request
// @Tags Document Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/document-requests/{id}/restore [post]
func (h *DocumentRequestHandler) Restore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Restore(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.NoContent(c)
}

// BulkArchive godoc
// @Summary Archive every completed live request
// @Tags Document Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/document-requests/bulk-archive [post]
func (h *DocumentRequestHandler) BulkArchive(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	count, err := h.service.BulkArchiveCompleted(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.JSON(c, http.StatusOK, gin.H{"archived": count}, nil)
}

func (h *DocumentRequestHandler) invalidateDashboard(c *gin.Context) {
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
}
