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

type inquiryService interface {
	Create(ctx context.Context, userID string, input service.CreateInquiryInput) (*models.Inquiry, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.InquiryDetail, error)
	ListMine(ctx context.Context, userID string, filter models.InquiryFilter) ([]models.InquiryDetail, int, error)
	ListLive(ctx context.Context, filter models.InquiryFilter) ([]models.InquiryDetail, int, error)
	ListArchived(ctx context.Context, filter models.InquiryFilter) ([]models.InquiryDetail, int, error)
	UpdateStatus(ctx context.Context, id, target, actor string) (*models.Inquiry, error)
	Reply(ctx context.Context, id, repliedBy string, input service.ReplyInput) (*models.InquiryReply, error)
	Archive(ctx context.Context, id, actor string) error
	Restore(ctx context.Context, id, actor string) error
	Delete(ctx context.Context, id, actor string) error
}

// InquiryHandler manages inquiry HTTP endpoints.
type InquiryHandler struct {
	service   inquiryService
	dashboard dashboardInvalidator
}

// NewInquiryHandler constructs the handler.
func NewInquiryHandler(service inquiryService, dashboard dashboardInvalidator) *InquiryHandler {
	return &InquiryHandler{service: service, dashboard: dashboard}
}

// Create godoc
// @Summary Submit an inquiry
// @Tags Inquiries
// @Accept json
// @Produce json
// @Param payload body service.CreateInquiryInput true "Inquiry payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /inquiries [post]
func (h *InquiryHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input service.CreateInquiryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid inquiry payload"))
		return
	}
	inquiry, err := h.service.Create(c.Request.Context(), claims.UserID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.Created(c, inquiry)
}

// ListMine godoc
// @Summary List the current student's inquiries
// @Tags Inquiries
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /inquiries/mine [get]
func (h *InquiryHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, pageSize := pageParams(c)
	inquiries, total, err := h.service.ListMine(c.Request.Context(), claims.UserID, models.InquiryFilter{
		Status:   models.InquiryStatus(strings.ToUpper(c.Query("status"))),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inquiries, paginationMeta(page, pageSize, total))
}

// Get godoc
// @Summary Get one inquiry with its reply thread
// @Tags Inquiries
// @Produce json
// @Param id path string true "Inquiry ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /inquiries/{id} [get]
func (h *InquiryHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List live inquiries
// @Tags Inquiries
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/inquiries [get]
func (h *InquiryHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	inquiries, total, err := h.service.ListLive(c.Request.Context(), models.InquiryFilter{
		Status:   models.InquiryStatus(strings.ToUpper(c.Query("status"))),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inquiries, paginationMeta(page, pageSize, total))
}

// ListArchived godoc
// @Summary List archived inquiries
// @Tags Inquiries
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/inquiries/archived [get]
func (h *InquiryHandler) ListArchived(c *gin.Context) {
	page, pageSize := pageParams(c)
	inquiries, total, err := h.service.ListArchived(c.Request.Context(), models.InquiryFilter{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inquiries, paginationMeta(page, pageSize, total))
}

// UpdateStatus godoc
// @Summary Update an inquiry status
// @Tags Inquiries
// @Accept json
// @Produce json
// @Param id path string true "Inquiry ID"
// @Param payload body updateStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/inquiries/{id}/status [put]
func (h *InquiryHandler) UpdateStatus(c *gin.Context) {
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
	inquiry, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), strings.ToUpper(req.Status), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.JSON(c, http.StatusOK, inquiry, nil)
}

// Reply godoc
// @Summary Append a reply to an inquiry thread
// @Tags Inquiries
// @Accept json
// @Produce json
// @Param id path string true "Inquiry ID"
// @Param payload body service.ReplyInput true "Reply payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/inquiries/{id}/replies [post]
func (h *InquiryHandler) Reply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input service.ReplyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reply payload"))
		return
	}
	reply, err := h.service.Reply(c.Request.Context(), c.Param("id"), claims.UserID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reply)
}

// Archive godoc
// @Summary Move an inquiry to the archive
// @Tags Inquiries
// @Produce json
// @Param id path string true "Inquiry ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/inquiries/{id}/archive [post]
func (h *InquiryHandler) Archive(c *gin.Context) {
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
// @Summary Restore an archived inquiry
// @Tags Inquiries
// @Produce json
// @Param id path string true "Inquiry ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/inquiries/{id}/restore [post]
func (h *InquiryHandler) Restore(c *gin.Context) {
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

// Delete godoc
// @Summary Permanently delete an inquiry and its replies
// @Tags Inquiries
// @Produce json
// @Param id path string true "Inquiry ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/inquiries/{id} [delete]
func (h *InquiryHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.NoContent(c)
}

func (h *InquiryHandler) invalidateDashboard(c *gin.Context) {
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
}
