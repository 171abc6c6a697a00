package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnhs-portal/registrar-api/internal/models"
	appErrors "github.com/mnhs-portal/registrar-api/pkg/errors"
)

type mockRequestRepo struct {
	requests     map[string]models.DocumentRequest
	created      *models.DocumentRequest
	archiveCalls int
	bulkCount    int64
}

func (m *mockRequestRepo) Create(ctx context.Context, req *models.DocumentRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]models.DocumentRequest)
	}
	if req.ID == "" {
		req.ID = "new-request"
	}
	m.requests[req.ID] = *req
	m.created = req
	return nil
}

func (m *mockRequestRepo) FindByID(ctx context.Context, id string) (*models.DocumentRequest, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestRepo) ListLive(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error) {
	var out []models.DocumentRequestDetail
	for _, r := range m.requests {
		if r.Archived {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		out = append(out, models.DocumentRequestDetail{DocumentRequest: r})
	}
	return out, len(out), nil
}

func (m *mockRequestRepo) ListArchived(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error) {
	var out []models.DocumentRequestDetail
	for _, r := range m.requests {
		if r.Archived {
			out = append(out, models.DocumentRequestDetail{DocumentRequest: r})
		}
	}
	return out, len(out), nil
}

func (m *mockRequestRepo) UpdateStatus(ctx context.Context, id string, status models.RequestStatus, updatedAt time.Time) error {
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = status
	m.requests[id] = r
	return nil
}

func (m *mockRequestRepo) Archive(ctx context.Context, id, actor string, archivedAt time.Time) (int64, error) {
	m.archiveCalls++
	r, ok := m.requests[id]
	if !ok || r.Archived {
		return 0, nil
	}
	r.Archived = true
	r.ArchivedAt = &archivedAt
	r.ArchivedBy = &actor
	m.requests[id] = r
	return 1, nil
}

func (m *mockRequestRepo) Restore(ctx context.Context, id string, updatedAt time.Time) error {
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Archived = false
	m.requests[id] = r
	return nil
}

func (m *mockRequestRepo) BulkArchiveCompleted(ctx context.Context, actor string, archivedAt time.Time) (int64, error) {
	var count int64
	for id, r := range m.requests {
		if r.Status == models.RequestStatusCompleted && !r.Archived {
			r.Archived = true
			r.ArchivedAt = &archivedAt
			r.ArchivedBy = &actor
			m.requests[id] = r
			count++
		}
	}
	m.bulkCount = count
	return count, nil
}

type mockAudit struct {
	entries []models.AuditLog
	fail    bool
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if m.fail {
		return errors.New("audit store unavailable")
	}
	m.entries = append(m.entries, *entry)
	return nil
}

const adminID = "b1f5c2ce-8a51-4f2a-9d35-5a4f0e2a9c11"

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: adminID, Role: models.RoleAdmin}
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func TestDocumentRequestCreateValidation(t *testing.T) {
	repo := &mockRequestRepo{}
	svc := NewDocumentRequestService(repo, &mockAudit{}, nil, nil)

	_, err := svc.Create(context.Background(), "user-1", CreateDocumentRequestInput{
		DocumentType: "FORM_137",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Nil(t, repo.created)
}

func TestDocumentRequestCreateDefaultsToPending(t *testing.T) {
	repo := &mockRequestRepo{}
	svc := NewDocumentRequestService(repo, &mockAudit{}, nil, nil)

	req, err := svc.Create(context.Background(), "user-1", CreateDocumentRequestInput{
		DocumentType: "SF10",
		Purpose:      "Transfer to another school",
		PickupDate:   "2026-09-15",
		PickupTime:   "14:00",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, "user-1", req.UserID)
}

func TestDocumentRequestGetEnforcesOwnership(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]models.DocumentRequest{
		"req-1": {ID: "req-1", UserID: "student-1"},
	}}
	svc := NewDocumentRequestService(repo, &mockAudit{}, nil, nil)

	_, err := svc.Get(context.Background(), "req-1", studentClaims("student-2"))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	req, err := svc.Get(context.Background(), "req-1", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "req-1", req.ID)
}

func TestDocumentRequestUpdateStatusRejectsUnknownValue(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]models.DocumentRequest{
		"req-1": {ID: "req-1", Status: models.RequestStatusPending},
	}}
	svc := NewDocumentRequestService(repo, &mockAudit{}, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "req-1", "ARCHIVED", adminID)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidStatus.Code, appErr.Code)
	assert.Equal(t, models.RequestStatusPending, repo.requests["req-1"].Status)
}

func TestDocumentRequestUpdateStatusRecordsAudit(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]models.DocumentRequest{
		"req-1": {ID: "req-1", Status: models.RequestStatusPending},
	}}
	audit := &mockAudit{}
	svc := NewDocumentRequestService(repo, audit, nil, nil)

	req, err := svc.UpdateStatus(context.Background(), "req-1", "APPROVED", adminID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, req.Status)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionStatusChange, audit.entries[0].Action)
}

func TestDocumentRequestArchiveTwiceIsNoOp(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]models.DocumentRequest{
		"req-1": {ID: "req-1", Status: models.RequestStatusCompleted},
	}}
	audit := &mockAudit{}
	svc := NewDocumentRequestService(repo, audit, nil, nil)

	require.NoError(t, svc.Archive(context.Background(), "req-1", adminID))
	firstArchivedAt := repo.requests["req-1"].ArchivedAt

	require.NoError(t, svc.Archive(context.Background(), "req-1", adminID))
	assert.Equal(t, firstArchivedAt, repo.requests["req-1"].ArchivedAt)
	// Only the first archive produces an audit entry.
	assert.Len(t, audit.entries, 1)
}

func TestDocumentRequestArchiveMissing(t *testing.T) {
	svc := NewDocumentRequestService(&mockRequestRepo{}, &mockAudit{}, nil, nil)

	err := svc.Archive(context.Background(), "missing", adminID)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBulkArchiveCompletedOnlyTouchesCompleted(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]models.DocumentRequest{
		"req-1": {ID: "req-1", Status: models.RequestStatusCompleted},
		"req-2": {ID: "req-2", Status: models.RequestStatusPending},
		"req-3": {ID: "req-3", Status: models.RequestStatusCompleted, Archived: true},
	}}
	svc := NewDocumentRequestService(repo, &mockAudit{}, nil, nil)

	count, err := svc.BulkArchiveCompleted(context.Background(), "system")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.True(t, repo.requests["req-1"].Archived)
	assert.False(t, repo.requests["req-2"].Archived)

	// Second run finds nothing new.
	count, err = svc.BulkArchiveCompleted(context.Background(), "system")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDocumentRequestAuditFailureDoesNotFailOperation(t *testing.T) {
	repo := &mockRequestRepo{requests: map[string]models.DocumentRequest{
		"req-1": {ID: "req-1", Status: models.RequestStatusPending},
	}}
	svc := NewDocumentRequestService(repo, &mockAudit{fail: true}, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "req-1", "APPROVED", adminID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, repo.requests["req-1"].Status)
}
