package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/mnhs-portal/registrar-api/internal/models"
)

func TestEnrollmentCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{
		EnrollmentNo:       "ENR-2026-000123",
		FirstName:          "Maria",
		LastName:           "Santos",
		BirthDate:          "2012-03-14",
		Gender:             "F",
		ApplyingGradeLevel: "Grade 7",
		SchoolYear:         "2026-2027",
	}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	require.NotEmpty(t, enrollment.ID)
	require.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	require.NotNil(t, enrollment.Documents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	cols := []string{"id", "user_id", "enrollment_no", "first_name", "middle_name", "last_name", "birth_date", "gender",
		"address", "contact_number", "email", "guardian_name", "guardian_contact", "guardian_relation",
		"last_school", "last_grade_level", "applying_grade_level", "school_year", "documents", "status",
		"reviewed_by", "reviewed_at", "review_notes", "created_at", "updated_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("enr-1", nil, "ENR-2026-000123", "Maria", "", "Santos", "2012-03-14", "F",
			"", "", "maria@example.com", "", "", "",
			"", "", "Grade 7", "2026-2027", []byte(`[]`), "PENDING",
			nil, nil, "", time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, enrollment_no")).
		WithArgs(models.EnrollmentStatusPending, "2026-2027").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(models.EnrollmentStatusPending, "2026-2027").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		Status:     models.EnrollmentStatusPending,
		SchoolYear: "2026-2027",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, enrollments, 1)
	require.Equal(t, "ENR-2026-000123", enrollments[0].EnrollmentNo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentUpdateStatusRecordsReviewer(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments")).
		WithArgs("enr-1", models.EnrollmentStatusApproved, "registrar", sqlmock.AnyArg(), "All documents complete").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentStatusApproved,
		"registrar", "All documents complete", time.Now())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEnrollmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments")).
		WithArgs("missing", models.EnrollmentStatusRejected, "registrar", sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.EnrollmentStatusRejected, "registrar", "", time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
