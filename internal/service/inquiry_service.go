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

type inquiryRepository interface {
	Create(ctx context.Context, inquiry *models.Inquiry) error
	FindByID(ctx context.Context, id string) (*models.Inquiry, error)
	FindDetailByID(ctx context.Context, id string) (*models.InquiryDetail, error)
	ListLive(ctx context.Context, filter models.InquiryFilter) ([]models.InquiryDetail, int, error)
	ListArchived(ctx context.Context, filter models.InquiryFilter) ([]models.InquiryDetail, int, error)
	UpdateStatusTx(ctx context.Context, id string, status models.InquiryStatus, resolve bool, actor string, now time.Time) error
	Archive(ctx context.Context, id, actor string, archivedAt time.Time) (int64, error)
	Restore(ctx context.Context, id string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	AddReply(ctx context.Context, reply *models.InquiryReply) error
	ListReplies(ctx context.Context, inquiryID string) ([]models.InquiryReply, error)
}

type inquiryNotifier interface {
	NotifyInquiryReply(inquiry *models.InquiryDetail, reply *models.InquiryReply)
}

// CreateInquiryInput is the payload for submitting an inquiry.
type CreateInquiryInput struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=4000"`
}

// ReplyInput carries one admin reply to an inquiry thread.
type ReplyInput struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// InquiryService implements the inquiry lifecycle and its append-only
// reply thread.
type InquiryService struct {
	repo      inquiryRepository
	audit     auditRecorder
	notifier  inquiryNotifier
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewInquiryService constructs the service.
func NewInquiryService(repo inquiryRepository, audit auditRecorder, notifier inquiryNotifier, validate *validator.Validate, logger *zap.Logger) *InquiryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &InquiryService{repo: repo, audit: audit, notifier: notifier, validator: validate, logger: logger}
}

// WithMetrics attaches the Prometheus instrumentation.
func (s *InquiryService) WithMetrics(metrics *MetricsService) *InquiryService {
	s.metrics = metrics
	return s
}

// Create submits a new inquiry for the authenticated student.
func (s *InquiryService) Create(ctx context.Context, userID string, input CreateInquiryInput) (*models.Inquiry, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid inquiry payload")
	}

	inquiry := &models.Inquiry{
		UserID:  userID,
		Subject: input.Subject,
		Message: input.Message,
		Status:  models.InquiryStatusPending,
	}
	if err := s.repo.Create(ctx, inquiry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create inquiry")
	}
	return inquiry, nil
}

// Get returns one inquiry with its reply thread. Students may only read
// their own.
func (s *InquiryService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.InquiryDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inquiry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inquiry")
	}
	if claims.Role != models.RoleAdmin && detail.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "inquiry belongs to another student")
	}

	replies, err := s.repo.ListReplies(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load replies")
	}
	detail.Replies = replies
	return detail, nil
}

// ListMine returns the authenticated student's live inquiries.
func (s *InquiryService) ListMine(ctx context.Context, userID string, filter models.InquiryFilter) ([]models.InquiryDetail, int, error) {
	filter.UserID = userID
	return s.listLive(ctx, filter)
}

// ListLive returns live inquiries for the admin view.
func (s *InquiryService) ListLive(ctx context.Context, filter models.InquiryFilter) ([]models.InquiryDetail, int, error) {
	return s.listLive(ctx, filter)
}

func (s *InquiryService) listLive(ctx context.Context, filter models.InquiryFilter) ([]models.InquiryDetail, int, error) {
	inquiries, total, err := s.repo.ListLive(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inquiries")
	}
	return inquiries, total, nil
}

// ListArchived returns archived inquiries.
func (s *InquiryService) ListArchived(ctx context.Context, filter models.InquiryFilter) ([]models.InquiryDetail, int, error) {
	inquiries, total, err := s.repo.ListArchived(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archived inquiries")
	}
	return inquiries, total, nil
}

// UpdateStatus validates the transition and writes it. Moving to
// RESOLVED or CLOSED stamps the resolution time and archives the
// inquiry in the same transaction.
func (s *InquiryService) UpdateStatus(ctx context.Context, id, target, actor string) (*models.Inquiry, error) {
	inquiry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inquiry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inquiry")
	}

	result, err := workflow.Transition(workflow.KindInquiry, string(inquiry.Status), target)
	if err != nil {
		return nil, err
	}

	resolve := false
	for _, effect := range result.Effects {
		if effect == workflow.EffectSetResolved || effect == workflow.EffectArchive {
			resolve = true
		}
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatusTx(ctx, id, models.InquiryStatus(result.Target), resolve, actor, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inquiry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update inquiry status")
	}

	s.recordAudit(ctx, actor, models.AuditActionStatusChange, id)
	s.metrics.RecordStatusChange("inquiry", result.Target)
	if resolve {
		s.metrics.RecordArchived("inquiry", 1)
	}

	inquiry.Status = models.InquiryStatus(result.Target)
	inquiry.UpdatedAt = now
	if resolve {
		if inquiry.ResolvedAt == nil {
			inquiry.ResolvedAt = &now
			inquiry.ResolvedBy = &actor
		}
		inquiry.Archived = true
	}
	return inquiry, nil
}

// Reply appends one admin reply and notifies the sender. The thread is
// append-only: there is no edit or delete.
func (s *InquiryService) Reply(ctx context.Context, id, repliedBy string, input ReplyInput) (*models.InquiryReply, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reply payload")
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inquiry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inquiry")
	}

	reply := &models.InquiryReply{
		InquiryID: id,
		Message:   input.Message,
		RepliedBy: repliedBy,
	}
	if err := s.repo.AddReply(ctx, reply); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add reply")
	}

	if s.notifier != nil {
		s.notifier.NotifyInquiryReply(detail, reply)
	}
	s.recordAudit(ctx, repliedBy, models.AuditActionReply, id)

	return reply, nil
}

// Archive flags an inquiry as archived, backfilling the resolution time.
// Already archived inquiries are a no-op.
func (s *InquiryService) Archive(ctx context.Context, id, actor string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "inquiry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inquiry")
	}

	affected, err := s.repo.Archive(ctx, id, actor, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive inquiry")
	}
	if affected == 0 {
		s.logger.Debug("archive no-op, inquiry already archived", zap.String("inquiry_id", id))
		return nil
	}

	s.recordAudit(ctx, actor, models.AuditActionArchive, id)
	s.metrics.RecordArchived("inquiry", affected)
	return nil
}

// Restore returns an archived inquiry to the live view.
func (s *InquiryService) Restore(ctx context.Context, id, actor string) error {
	if err := s.repo.Restore(ctx, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "inquiry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore inquiry")
	}

	s.recordAudit(ctx, actor, models.AuditActionRestore, id)
	return nil
}

// Delete permanently removes an inquiry and its reply thread. This is
// the one hard delete in the portal; everything else archives.
func (s *InquiryService) Delete(ctx context.Context, id, actor string) error {
	inquiry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "inquiry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inquiry")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "inquiry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete inquiry")
	}

	s.recordAudit(ctx, actor, models.AuditActionDelete, id)
	s.logger.Info("inquiry deleted",
		zap.String("inquiry_id", id),
		zap.String("subject", inquiry.Subject),
		zap.String("actor", actor))
	return nil
}

func (s *InquiryService) recordAudit(ctx context.Context, actor, action, resourceID string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "inquiry",
		ResourceID: &resourceID,
	}
	if _, err := uuid.Parse(actor); err == nil {
		entry.UserID = &actor
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
