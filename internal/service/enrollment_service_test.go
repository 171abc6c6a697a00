package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnhs-portal/registrar-api/internal/models"
	appErrors "github.com/mnhs-portal/registrar-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	created     *models.Enrollment
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enrollment"
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindByEnrollmentNo(ctx context.Context, enrollmentNo string) (*models.Enrollment, error) {
	for _, e := range m.enrollments {
		if e.EnrollmentNo == enrollmentNo {
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if filter.UserID != "" && (e.UserID == nil || *e.UserID != filter.UserID) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, reviewedBy, notes string, reviewedAt time.Time) error {
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	e.ReviewedBy = &reviewedBy
	e.ReviewedAt = &reviewedAt
	e.ReviewNotes = notes
	m.enrollments[id] = e
	return nil
}

type mockNotifier struct {
	decisions []models.Enrollment
	replies   []models.InquiryReply
}

func (m *mockNotifier) NotifyEnrollmentDecision(enrollment *models.Enrollment) {
	m.decisions = append(m.decisions, *enrollment)
}

func (m *mockNotifier) NotifyInquiryReply(inquiry *models.InquiryDetail, reply *models.InquiryReply) {
	m.replies = append(m.replies, *reply)
}

func validEnrollmentInput() CreateEnrollmentInput {
	return CreateEnrollmentInput{
		FirstName:          "Maria",
		LastName:           "Santos",
		BirthDate:          "2012-03-14",
		Gender:             "F",
		Email:              "maria@example.com",
		ApplyingGradeLevel: "Grade 7",
		SchoolYear:         "2026-2027",
	}
}

func TestEnrollmentCreateAssignsTrackingNumber(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := NewEnrollmentService(repo, &mockAudit{}, &mockNotifier{}, nil, nil)

	enrollment, err := svc.Create(context.Background(), "", validEnrollmentInput())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enrollment.EnrollmentNo, "ENR-"), enrollment.EnrollmentNo)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Nil(t, enrollment.UserID)
}

func TestEnrollmentCreateLinksAccountWhenPresent(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := NewEnrollmentService(repo, &mockAudit{}, &mockNotifier{}, nil, nil)

	enrollment, err := svc.Create(context.Background(), "student-1", validEnrollmentInput())
	require.NoError(t, err)
	require.NotNil(t, enrollment.UserID)
	assert.Equal(t, "student-1", *enrollment.UserID)
}

func TestEnrollmentCreateValidation(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &mockAudit{}, &mockNotifier{}, nil, nil)

	input := validEnrollmentInput()
	input.Email = "not-an-email"
	_, err := svc.Create(context.Background(), "", input)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEnrollmentReviewApprovalNotifiesApplicant(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", EnrollmentNo: "ENR-2026-000001", Email: "maria@example.com", Status: models.EnrollmentStatusPending},
	}}
	notifier := &mockNotifier{}
	svc := NewEnrollmentService(repo, &mockAudit{}, notifier, nil, nil)

	enrollment, err := svc.Review(context.Background(), "enr-1", adminID, ReviewEnrollmentInput{Status: "APPROVED"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, enrollment.Status)
	require.Len(t, notifier.decisions, 1)
	assert.Equal(t, models.EnrollmentStatusApproved, notifier.decisions[0].Status)
}

func TestEnrollmentReviewBackToPendingDoesNotNotify(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", Status: models.EnrollmentStatusApproved},
	}}
	notifier := &mockNotifier{}
	svc := NewEnrollmentService(repo, &mockAudit{}, notifier, nil, nil)

	_, err := svc.Review(context.Background(), "enr-1", adminID, ReviewEnrollmentInput{Status: "PENDING"})
	require.NoError(t, err)
	assert.Empty(t, notifier.decisions)
}

func TestEnrollmentReviewRejectsUnknownStatus(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", Status: models.EnrollmentStatusPending},
	}}
	svc := NewEnrollmentService(repo, &mockAudit{}, &mockNotifier{}, nil, nil)

	_, err := svc.Review(context.Background(), "enr-1", adminID, ReviewEnrollmentInput{Status: "COMPLETED"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidStatus.Code, appErr.Code)
	assert.Equal(t, models.EnrollmentStatusPending, repo.enrollments["enr-1"].Status)
}

func TestEnrollmentTrackTrimsSensitiveFields(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {
			ID:            "enr-1",
			EnrollmentNo:  "ENR-2026-000001",
			FirstName:     "Maria",
			LastName:      "Santos",
			GuardianName:  "Jose Santos",
			ContactNumber: "09171234567",
			Email:         "maria@example.com",
			Status:        models.EnrollmentStatusPending,
		},
	}}
	svc := NewEnrollmentService(repo, &mockAudit{}, &mockNotifier{}, nil, nil)

	tracked, err := svc.Track(context.Background(), "ENR-2026-000001")
	require.NoError(t, err)
	assert.Equal(t, "ENR-2026-000001", tracked.EnrollmentNo)
	assert.Empty(t, tracked.GuardianName)
	assert.Empty(t, tracked.ContactNumber)
	assert.Empty(t, tracked.Email)
}

func TestEnrollmentListMineScopesToCaller(t *testing.T) {
	owner := "student-1"
	other := "student-2"
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", UserID: &owner, Status: models.EnrollmentStatusPending},
		"enr-2": {ID: "enr-2", UserID: &other, Status: models.EnrollmentStatusPending},
		"enr-3": {ID: "enr-3", Status: models.EnrollmentStatusPending}, // anonymous application
	}}
	svc := NewEnrollmentService(repo, &mockAudit{}, &mockNotifier{}, nil, nil)

	mine, total, err := svc.ListMine(context.Background(), "student-1", models.EnrollmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, mine, 1)
	assert.Equal(t, "enr-1", mine[0].ID)
}

func TestEnrollmentGetEnforcesOwnership(t *testing.T) {
	owner := "student-1"
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", UserID: &owner},
		"enr-2": {ID: "enr-2"},
	}}
	svc := NewEnrollmentService(repo, &mockAudit{}, &mockNotifier{}, nil, nil)

	_, err := svc.Get(context.Background(), "enr-1", studentClaims("student-2"))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// Anonymous applications are only visible to admins.
	_, err = svc.Get(context.Background(), "enr-2", studentClaims("student-1"))
	require.Error(t, err)

	_, err = svc.Get(context.Background(), "enr-2", adminClaims())
	require.NoError(t, err)
}

func TestGenerateEnrollmentNoFormat(t *testing.T) {
	no := generateEnrollmentNo(time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC))
	assert.Regexp(t, `^ENR-2026-\d{6}$`, no)
}
