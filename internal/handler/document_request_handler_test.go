package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mnhs-portal/registrar-api/internal/middleware"
	"github.com/mnhs-portal/registrar-api/internal/models"
	"github.com/mnhs-portal/registrar-api/internal/service"
	appErrors "github.com/mnhs-portal/registrar-api/pkg/errors"
)

type fakeDocumentRequestSrv struct {
	created    *models.DocumentRequest
	createErr  error
	lastUser   string
	lastInput  service.CreateDocumentRequestInput
	updated    *models.DocumentRequest
	updateErr  error
	lastStatus string
	archiveErr error
	bulkCount  int64
}

func (f *fakeDocumentRequestSrv) Create(_ context.Context, userID string, input service.CreateDocumentRequestInput) (*models.DocumentRequest, error) {
	f.lastUser = userID
	f.lastInput = input
	return f.created, f.createErr
}

func (f *fakeDocumentRequestSrv) Get(_ context.Context, id string, _ *models.JWTClaims) (*models.DocumentRequest, error) {
	if f.created != nil && f.created.ID == id {
		return f.created, nil
	}
	return nil, appErrors.ErrNotFound
}

func (f *fakeDocumentRequestSrv) ListMine(context.Context, string, models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeDocumentRequestSrv) ListLive(context.Context, models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeDocumentRequestSrv) ListArchived(context.Context, models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeDocumentRequestSrv) UpdateStatus(_ context.Context, _, target, _ string) (*models.DocumentRequest, error) {
	f.lastStatus = target
	return f.updated, f.updateErr
}

func (f *fakeDocumentRequestSrv) Archive(context.Context, string, string) error {
	return f.archiveErr
}

func (f *fakeDocumentRequestSrv) Restore(context.Context, string, string) error {
	return nil
}

func (f *fakeDocumentRequestSrv) BulkArchiveCompleted(context.Context, string) (int64, error) {
	return f.bulkCount, nil
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) Invalidate(context.Context) {
	f.calls++
}

func authedContext(rec *httptest.ResponseRecorder, claims *models.JWTClaims) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c
}

func TestDocumentRequestHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDocumentRequestHandler(&fakeDocumentRequestSrv{}, nil)

	rec := httptest.NewRecorder()
	c := authedContext(rec, nil)
	c.Request = httptest.NewRequest(http.MethodPost, "/document-requests", strings.NewReader(`{}`))

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDocumentRequestHandlerCreateSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDocumentRequestSrv{created: &models.DocumentRequest{ID: "req-1", Status: models.RequestStatusPending}}
	dashboard := &fakeInvalidator{}
	handler := NewDocumentRequestHandler(srv, dashboard)

	body := `{"document_type":"Form 137","purpose":"college application","pickup_date":"2026-09-10","pickup_time":"09:00"}`
	rec := httptest.NewRecorder()
	c := authedContext(rec, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	c.Request = httptest.NewRequest(http.MethodPost, "/document-requests", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "student-1", srv.lastUser)
	assert.Equal(t, "Form 137", srv.lastInput.DocumentType)
	assert.Equal(t, 1, dashboard.calls)
}

func TestDocumentRequestHandlerCreateRejectsBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDocumentRequestHandler(&fakeDocumentRequestSrv{}, nil)

	rec := httptest.NewRecorder()
	c := authedContext(rec, &models.JWTClaims{UserID: "student-1"})
	c.Request = httptest.NewRequest(http.MethodPost, "/document-requests", strings.NewReader(`{not json`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentRequestHandlerUpdateStatusUppercases(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDocumentRequestSrv{updated: &models.DocumentRequest{ID: "req-1", Status: models.RequestStatusApproved}}
	handler := NewDocumentRequestHandler(srv, &fakeInvalidator{})

	rec := httptest.NewRecorder()
	c := authedContext(rec, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Request = httptest.NewRequest(http.MethodPut, "/admin/document-requests/req-1/status", strings.NewReader(`{"status":"approved"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "APPROVED", srv.lastStatus)
}

func TestDocumentRequestHandlerUpdateStatusPropagatesError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDocumentRequestSrv{updateErr: appErrors.ErrInvalidStatus}
	dashboard := &fakeInvalidator{}
	handler := NewDocumentRequestHandler(srv, dashboard)

	rec := httptest.NewRecorder()
	c := authedContext(rec, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Request = httptest.NewRequest(http.MethodPut, "/admin/document-requests/req-1/status", strings.NewReader(`{"status":"SHIPPED"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, dashboard.calls)
}

func TestDocumentRequestHandlerArchiveNoContent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dashboard := &fakeInvalidator{}
	handler := NewDocumentRequestHandler(&fakeDocumentRequestSrv{}, dashboard)

	rec := httptest.NewRecorder()
	c := authedContext(rec, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/admin/document-requests/req-1/archive", nil)

	handler.Archive(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, dashboard.calls)
}

func TestDocumentRequestHandlerBulkArchiveReturnsCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDocumentRequestHandler(&fakeDocumentRequestSrv{bulkCount: 7}, &fakeInvalidator{})

	rec := httptest.NewRecorder()
	c := authedContext(rec, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Request = httptest.NewRequest(http.MethodPost, "/admin/document-requests/bulk-archive", nil)

	handler.BulkArchive(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, float64(7), envelope.Data["archived"])
}
