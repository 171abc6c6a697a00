package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mnhs-portal/registrar-api/internal/models"
	"github.com/mnhs-portal/registrar-api/internal/workflow"
	appErrors "github.com/mnhs-portal/registrar-api/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByEnrollmentNo(ctx context.Context, enrollmentNo string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, reviewedBy, notes string, reviewedAt time.Time) error
}

type enrollmentNotifier interface {
	NotifyEnrollmentDecision(enrollment *models.Enrollment)
}

// CreateEnrollmentInput is the payload for an enrollment application.
// Document paths are filled in by the handler after saving the uploads.
type CreateEnrollmentInput struct {
	FirstName          string `json:"first_name" validate:"required,max=100"`
	MiddleName         string `json:"middle_name" validate:"max=100"`
	LastName           string `json:"last_name" validate:"required,max=100"`
	BirthDate          string `json:"birth_date" validate:"required"`
	Gender             string `json:"gender" validate:"required,max=20"`
	Address            string `json:"address" validate:"max=500"`
	ContactNumber      string `json:"contact_number" validate:"max=30"`
	Email              string `json:"email" validate:"required,email"`
	GuardianName       string `json:"guardian_name" validate:"max=150"`
	GuardianContact    string `json:"guardian_contact" validate:"max=30"`
	GuardianRelation   string `json:"guardian_relation" validate:"max=50"`
	LastSchool         string `json:"last_school" validate:"max=200"`
	LastGradeLevel     string `json:"last_grade_level" validate:"max=50"`
	ApplyingGradeLevel string `json:"applying_grade_level" validate:"required,max=50"`
	SchoolYear         string `json:"school_year" validate:"required,max=20"`

	Documents models.DocumentList `json:"-"`
}

// ReviewEnrollmentInput carries an admin review decision.
type ReviewEnrollmentInput struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=1000"`
}

// EnrollmentService implements the enrollment application lifecycle.
type EnrollmentService struct {
	repo      enrollmentRepository
	audit     auditRecorder
	notifier  enrollmentNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(repo enrollmentRepository, audit auditRecorder, notifier enrollmentNotifier, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{repo: repo, audit: audit, notifier: notifier, validator: validate, logger: logger}
}

// Create submits an application. UserID may be empty: applications are
// accepted without an account.
func (s *EnrollmentService) Create(ctx context.Context, userID string, input CreateEnrollmentInput) (*models.Enrollment, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	enrollment := &models.Enrollment{
		EnrollmentNo:       generateEnrollmentNo(time.Now().UTC()),
		FirstName:          input.FirstName,
		MiddleName:         input.MiddleName,
		LastName:           input.LastName,
		BirthDate:          input.BirthDate,
		Gender:             input.Gender,
		Address:            input.Address,
		ContactNumber:      input.ContactNumber,
		Email:              input.Email,
		GuardianName:       input.GuardianName,
		GuardianContact:    input.GuardianContact,
		GuardianRelation:   input.GuardianRelation,
		LastSchool:         input.LastSchool,
		LastGradeLevel:     input.LastGradeLevel,
		ApplyingGradeLevel: input.ApplyingGradeLevel,
		SchoolYear:         input.SchoolYear,
		Documents:          input.Documents,
		Status:             models.EnrollmentStatusPending,
	}
	if userID != "" {
		enrollment.UserID = &userID
	}

	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// Get returns one enrollment. Students may only read their own.
func (s *EnrollmentService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if claims.Role != models.RoleAdmin {
		if enrollment.UserID == nil || *enrollment.UserID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another applicant")
		}
	}
	return enrollment, nil
}

// Track looks up an application by its public tracking number. The
// response is trimmed: only status and schedule fields, no guardian or
// contact details.
func (s *EnrollmentService) Track(ctx context.Context, enrollmentNo string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByEnrollmentNo(ctx, enrollmentNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	return &models.Enrollment{
		ID:                 enrollment.ID,
		EnrollmentNo:       enrollment.EnrollmentNo,
		FirstName:          enrollment.FirstName,
		LastName:           enrollment.LastName,
		ApplyingGradeLevel: enrollment.ApplyingGradeLevel,
		SchoolYear:         enrollment.SchoolYear,
		Status:             enrollment.Status,
		ReviewedAt:         enrollment.ReviewedAt,
		CreatedAt:          enrollment.CreatedAt,
		UpdatedAt:          enrollment.UpdatedAt,
	}, nil
}

// ListMine returns the authenticated student's own applications.
// Anonymous submissions have no owning user and never appear here;
// those are tracked by enrollment number instead.
func (s *EnrollmentService) ListMine(ctx context.Context, userID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	filter.UserID = userID
	return s.List(ctx, filter)
}

// List returns enrollments for the admin view.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// Review applies an admin decision. Approval and rejection notify the
// applicant by email; the notification is best effort and its failure
// never reverts the decision.
func (s *EnrollmentService) Review(ctx context.Context, id, reviewerID string, input ReviewEnrollmentInput) (*models.Enrollment, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	result, err := workflow.Transition(workflow.KindEnrollment, string(enrollment.Status), input.Status)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatus(result.Target), reviewerID, input.Notes, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	oldStatus := enrollment.Status
	enrollment.Status = models.EnrollmentStatus(result.Target)
	enrollment.ReviewedBy = &reviewerID
	enrollment.ReviewedAt = &now
	enrollment.ReviewNotes = input.Notes
	enrollment.UpdatedAt = now

	for _, effect := range result.Effects {
		if effect == workflow.EffectNotifyApplicant && s.notifier != nil {
			s.notifier.NotifyEnrollmentDecision(enrollment)
		}
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &reviewerID,
			Action:     models.AuditActionStatusChange,
			Resource:   "enrollment",
			ResourceID: &enrollment.ID,
			OldValues:  []byte(fmt.Sprintf(`{"status":%q}`, oldStatus)),
			NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, enrollment.Status)),
		}); err != nil {
			s.logger.Warn("failed to record review audit log", zap.Error(err))
		}
	}

	return enrollment, nil
}

// generateEnrollmentNo builds a tracking number like ENR-2026-482913.
// Uniqueness is enforced by the database; collisions within a year are
// vanishingly rare at this school's application volume.
func generateEnrollmentNo(now time.Time) string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("ENR-%d-%06d", now.Year(), now.UnixNano()%1_000_000)
	}
	n := binary.BigEndian.Uint32(buf[:]) % 1_000_000
	return fmt.Sprintf("ENR-%d-%06d", now.Year(), n)
}
