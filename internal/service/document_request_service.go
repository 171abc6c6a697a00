package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnhs-portal/registrar-api/internal/models"
	"github.com/mnhs-portal/registrar-api/internal/workflow"
	appErrors "github.com/mnhs-portal/registrar-api/pkg/errors"
)

type documentRequestRepository interface {
	Create(ctx context.Context, req *models.DocumentRequest) error
	FindByID(ctx context.Context, id string) (*models.DocumentRequest, error)
	ListLive(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error)
	ListArchived(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error)
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus, updatedAt time.Time) error
	Archive(ctx context.Context, id, actor string, archivedAt time.Time) (int64, error)
	Restore(ctx context.Context, id string, updatedAt time.Time) error
	BulkArchiveCompleted(ctx context.Context, actor string, archivedAt time.Time) (int64, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// CreateDocumentRequestInput is the payload for submitting a request.
type CreateDocumentRequestInput struct {
	DocumentType string `json:"document_type" validate:"required,max=100"`
	Purpose      string `json:"purpose" validate:"required,max=500"`
	PickupDate   string `json:"pickup_date" validate:"required"`
	PickupTime   string `json:"pickup_time" validate:"required"`
	Notes        string `json:"notes" validate:"max=1000"`
}

// DocumentRequestService implements the document request lifecycle:
// submission, review, and the live/archived split.
type DocumentRequestService struct {
	repo      documentRequestRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewDocumentRequestService constructs the service.
func NewDocumentRequestService(repo documentRequestRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *DocumentRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DocumentRequestService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// WithMetrics attaches the Prometheus instrumentation. A nil service is
// accepted and leaves the counters dormant.
func (s *DocumentRequestService) WithMetrics(metrics *MetricsService) *DocumentRequestService {
	s.metrics = metrics
	return s
}

// Create submits a new request on behalf of the authenticated student.
func (s *DocumentRequestService) Create(ctx context.Context, userID string, input CreateDocumentRequestInput) (*models.DocumentRequest, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document request payload")
	}

	req := &models.DocumentRequest{
		UserID:       userID,
		DocumentType: input.DocumentType,
		Purpose:      input.Purpose,
		PickupDate:   input.PickupDate,
		PickupTime:   input.PickupTime,
		Notes:        input.Notes,
		Status:       models.RequestStatusPending,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document request")
	}
	return req, nil
}

// Get returns one request. Students may only read their own.
func (s *DocumentRequestService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.DocumentRequest, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document request")
	}
	if claims.Role != models.RoleAdmin && req.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}
	return req, nil
}

// ListMine returns the authenticated student's live requests.
func (s *DocumentRequestService) ListMine(ctx context.Context, userID string, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error) {
	filter.UserID = userID
	return s.listLive(ctx, filter)
}

// ListLive returns live requests for the admin view.
func (s *DocumentRequestService) ListLive(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error) {
	return s.listLive(ctx, filter)
}

func (s *DocumentRequestService) listLive(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error) {
	requests, total, err := s.repo.ListLive(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list document requests")
	}
	return requests, total, nil
}

// ListArchived returns the archived view, newest archival first.
func (s *DocumentRequestService) ListArchived(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error) {
	requests, total, err := s.repo.ListArchived(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archived requests")
	}
	return requests, total, nil
}

// UpdateStatus validates the transition and writes the new status.
func (s *DocumentRequestService) UpdateStatus(ctx context.Context, id, target, actor string) (*models.DocumentRequest, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document request")
	}

	result, err := workflow.Transition(workflow.KindDocumentRequest, string(req.Status), target)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.RequestStatus(result.Target), now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}

	s.recordAudit(ctx, actor, models.AuditActionStatusChange, id, string(req.Status), result.Target)
	s.metrics.RecordStatusChange("document_request", result.Target)

	req.Status = models.RequestStatus(result.Target)
	req.UpdatedAt = now
	return req, nil
}

// Archive moves one request into the archived view. Archiving an already
// archived request succeeds without touching the original audit fields.
func (s *DocumentRequestService) Archive(ctx context.Context, id, actor string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document request")
	}

	affected, err := s.repo.Archive(ctx, id, actor, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive request")
	}
	if affected == 0 {
		s.logger.Debug("archive no-op, request already archived", zap.String("request_id", id))
		return nil
	}

	s.recordAudit(ctx, actor, models.AuditActionArchive, id, "", "")
	s.metrics.RecordArchived("document_request", affected)
	return nil
}

// Restore returns an archived request to the live view.
func (s *DocumentRequestService) Restore(ctx context.Context, id, actor string) error {
	if err := s.repo.Restore(ctx, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore request")
	}

	s.recordAudit(ctx, actor, models.AuditActionRestore, id, "", "")
	return nil
}

// BulkArchiveCompleted archives every completed live request and returns
// the count. Safe to run repeatedly: a second run archives nothing.
func (s *DocumentRequestService) BulkArchiveCompleted(ctx context.Context, actor string) (int64, error) {
	count, err := s.repo.BulkArchiveCompleted(ctx, actor, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk archive requests")
	}

	if count > 0 {
		s.recordAudit(ctx, actor, models.AuditActionBulkArchive, "", "", "")
		s.metrics.RecordArchived("document_request", count)
	}
	s.logger.Info("bulk archive completed requests", zap.Int64("archived", count), zap.String("actor", actor))
	return count, nil
}

func (s *DocumentRequestService) recordAudit(ctx context.Context, actor, action, resourceID, oldStatus, newStatus string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:   action,
		Resource: "document_request",
	}
	// Scheduled runs pass a free-text actor like "system" that cannot go
	// into the UUID user_id column.
	if _, err := uuid.Parse(actor); err == nil {
		entry.UserID = &actor
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if oldStatus != "" {
		entry.OldValues = []byte(`{"status":"` + oldStatus + `"}`)
	}
	if newStatus != "" {
		entry.NewValues = []byte(`{"status":"` + newStatus + `"}`)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
