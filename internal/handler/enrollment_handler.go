package handler

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mnhs-portal/registrar-api/internal/models"
	"github.com/mnhs-portal/registrar-api/internal/service"
	appErrors "github.com/mnhs-portal/registrar-api/pkg/errors"
	"github.com/mnhs-portal/registrar-api/pkg/response"
	"github.com/mnhs-portal/registrar-api/pkg/storage"
)

type enrollmentService interface {
	Create(ctx context.Context, userID string, input service.CreateEnrollmentInput) (*models.Enrollment, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Enrollment, error)
	Track(ctx context.Context, enrollmentNo string) (*models.Enrollment, error)
	ListMine(ctx context.Context, userID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	Review(ctx context.Context, id, reviewerID string, input service.ReviewEnrollmentInput) (*models.Enrollment, error)
}

// EnrollmentUploadLimits bounds multipart uploads.
type EnrollmentUploadLimits struct {
	MaxFiles    int
	MaxFileSize int64
}

// EnrollmentHandler manages enrollment HTTP endpoints, including the
// supporting document uploads and signed downloads.
type EnrollmentHandler struct {
	service   enrollmentService
	storage   *storage.LocalStorage
	signer    *storage.SignedURLSigner
	dashboard dashboardInvalidator
	limits    EnrollmentUploadLimits
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service enrollmentService, store *storage.LocalStorage, signer *storage.SignedURLSigner, dashboard dashboardInvalidator, limits EnrollmentUploadLimits) *EnrollmentHandler {
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = 6
	}
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = 5 * 1024 * 1024
	}
	return &EnrollmentHandler{service: service, storage: store, signer: signer, dashboard: dashboard, limits: limits}
}

// Create godoc
// @Summary Submit an enrollment application
// @Tags Enrollments
// @Accept multipart/form-data
// @Produce json
// @Param first_name formData string true "First name"
// @Param last_name formData string true "Last name"
// @Param birth_date formData string true "Birth date"
// @Param gender formData string true "Gender"
// @Param email formData string true "Contact email"
// @Param applying_grade_level formData string true "Grade level applied for"
// @Param school_year formData string true "School year"
// @Param documents formData file false "Supporting documents (up to 6)"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	input := service.CreateEnrollmentInput{
		FirstName:          c.PostForm("first_name"),
		MiddleName:         c.PostForm("middle_name"),
		LastName:           c.PostForm("last_name"),
		BirthDate:          c.PostForm("birth_date"),
		Gender:             c.PostForm("gender"),
		Address:            c.PostForm("address"),
		ContactNumber:      c.PostForm("contact_number"),
		Email:              c.PostForm("email"),
		GuardianName:       c.PostForm("guardian_name"),
		GuardianContact:    c.PostForm("guardian_contact"),
		GuardianRelation:   c.PostForm("guardian_relation"),
		LastSchool:         c.PostForm("last_school"),
		LastGradeLevel:     c.PostForm("last_grade_level"),
		ApplyingGradeLevel: c.PostForm("applying_grade_level"),
		SchoolYear:         c.PostForm("school_year"),
	}

	form, err := c.MultipartForm()
	if err == nil && form != nil {
		paths, err := h.saveDocuments(form.File["documents"])
		if err != nil {
			response.Error(c, err)
			return
		}
		input.Documents = paths
	}

	userID := ""
	if claims := claimsFromContext(c); claims != nil {
		userID = claims.UserID
	}

	enrollment, err := h.service.Create(c.Request.Context(), userID, input)
	if err != nil {
		h.cleanupDocuments(input.Documents)
		response.Error(c, err)
		return
	}
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
	response.Created(c, enrollment)
}

// Track godoc
// @Summary Track an application by its public tracking number
// @Tags Enrollments
// @Produce json
// @Param enrollmentNo path string true "Tracking number"
// @Success 200 {object} response.Envelope
// @Router /enrollments/track/{enrollmentNo} [get]
func (h *EnrollmentHandler) Track(c *gin.Context) {
	enrollment, err := h.service.Track(c.Request.Context(), c.Param("enrollmentNo"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ListMine godoc
// @Summary List the current student's enrollment applications
// @Tags Enrollments
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/my [get]
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, pageSize := pageParams(c)
	enrollments, total, err := h.service.ListMine(c.Request.Context(), claims.UserID, models.EnrollmentFilter{
		Status:   models.EnrollmentStatus(strings.ToUpper(c.Query("status"))),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, paginationMeta(page, pageSize, total))
}

// Get godoc
// @Summary Get one enrollment application
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// List godoc
// @Summary List enrollment applications
// @Tags Enrollments
// @Produce json
// @Param status query string false "Status filter"
// @Param school_year query string false "School year filter"
// @Param search query string false "Search by name or tracking number"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	enrollments, total, err := h.service.List(c.Request.Context(), models.EnrollmentFilter{
		Status:     models.EnrollmentStatus(strings.ToUpper(c.Query("status"))),
		SchoolYear: strings.TrimSpace(c.Query("school_year")),
		Search:     strings.TrimSpace(c.Query("search")),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, paginationMeta(page, pageSize, total))
}

// Review godoc
// @Summary Record an admin decision on an application
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.ReviewEnrollmentInput true "Decision payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/enrollments/{id}/review [put]
func (h *EnrollmentHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input service.ReviewEnrollmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	input.Status = strings.ToUpper(input.Status)

	enrollment, err := h.service.Review(c.Request.Context(), c.Param("id"), claims.UserID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Documents godoc
// @Summary List signed download links for an application's documents
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/enrollments/{id}/documents [get]
func (h *EnrollmentHandler) Documents(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.signer == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "document downloads not configured"))
		return
	}

	type documentLink struct {
		Name      string `json:"name"`
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	links := make([]documentLink, 0, len(enrollment.Documents))
	for _, path := range enrollment.Documents {
		token, expiresAt, err := h.signer.Generate(enrollment.ID, path)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link"))
			return
		}
		links = append(links, documentLink{
			Name:      filepath.Base(path),
			Token:     token,
			ExpiresAt: expiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	response.JSON(c, http.StatusOK, links, nil)
}

// Download godoc
// @Summary Download one document via signed token
// @Tags Enrollments
// @Produce octet-stream
// @Param id path string true "Enrollment ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /admin/enrollments/{id}/documents/download [get]
func (h *EnrollmentHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if h.signer == nil || h.storage == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "document downloads not configured"))
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	recordID, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token"))
		return
	}
	if recordID != c.Param("id") {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token does not match this application"))
		return
	}

	file, err := h.storage.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "document not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat document"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(relPath)))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}

func (h *EnrollmentHandler) saveDocuments(files []*multipart.FileHeader) (models.DocumentList, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > h.limits.MaxFiles {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("at most %d documents may be attached", h.limits.MaxFiles))
	}
	if h.storage == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "document storage not configured")
	}

	var saved models.DocumentList
	for _, header := range files {
		if header.Size > h.limits.MaxFileSize {
			h.cleanupDocuments(saved)
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("document %s exceeds the size limit", header.Filename))
		}
		src, err := header.Open()
		if err != nil {
			h.cleanupDocuments(saved)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload")
		}
		name := fmt.Sprintf("enrollments/%s%s", uuid.NewString(), filepath.Ext(header.Filename))
		path, err := h.storage.SaveStream(name, src)
		src.Close() //nolint:errcheck
		if err != nil {
			h.cleanupDocuments(saved)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
		}
		saved = append(saved, path)
	}
	return saved, nil
}

func (h *EnrollmentHandler) cleanupDocuments(paths models.DocumentList) {
	if h.storage == nil {
		return
	}
	for _, path := range paths {
		_ = h.storage.Delete(path)
	}
}
