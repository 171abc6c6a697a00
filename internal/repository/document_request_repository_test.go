package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/mnhs-portal/registrar-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDocumentRequestCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.DocumentRequest{
		UserID:       "user-1",
		DocumentType: "FORM_137",
		Purpose:      "College application",
		PickupDate:   "2026-09-01",
		PickupTime:   "10:00",
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID)
	require.Equal(t, models.RequestStatusPending, req.Status)
	require.False(t, req.Archived)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRequestListLiveExcludesArchived(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentRequestRepository(db)
	cols := []string{"id", "user_id", "document_type", "purpose", "pickup_date", "pickup_time", "notes", "status",
		"archived", "archived_at", "archived_by", "created_at", "updated_at", "requester_name", "requester_email"}
	rows := sqlmock.NewRows(cols).
		AddRow("req-1", "user-1", "SF9", "Transfer", "2026-09-01", "09:00", "", "PENDING",
			false, nil, nil, time.Now(), time.Now(), "Juan Dela Cruz", "juan@example.com")

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(d.archived, FALSE) = false")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	requests, total, err := repo.ListLive(context.Background(), models.DocumentRequestFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, requests, 1)
	require.Equal(t, "Juan Dela Cruz", requests[0].RequesterName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRequestArchiveIsIdempotent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentRequestRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET archived = TRUE")).
		WithArgs("req-1", sqlmock.AnyArg(), "registrar").
		WillReturnResult(sqlmock.NewResult(0, 1))
	affected, err := repo.Archive(context.Background(), "req-1", "registrar", now)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	// Second archive matches no rows: the guard keeps the original
	// archived_at and archived_by untouched.
	mock.ExpectExec(regexp.QuoteMeta("SET archived = TRUE")).
		WithArgs("req-1", sqlmock.AnyArg(), "registrar").
		WillReturnResult(sqlmock.NewResult(0, 0))
	affected, err = repo.Archive(context.Background(), "req-1", "registrar", now)
	require.NoError(t, err)
	require.Zero(t, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRequestRestoreKeepsAuditFields(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentRequestRepository(db)

	// The restore statement only clears the flag; archived_at and
	// archived_by are not in its SET list.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_requests SET archived = FALSE, updated_at = $2 WHERE id = $1")).
		WithArgs("req-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Restore(context.Background(), "req-1", time.Now()))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_requests SET archived = FALSE")).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Restore(context.Background(), "missing", time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkArchiveCompletedIsMonotonic(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE status = $3 AND COALESCE(archived, FALSE) = FALSE")).
		WithArgs(sqlmock.AnyArg(), "system", models.RequestStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 4))
	count, err := repo.BulkArchiveCompleted(context.Background(), "system", time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(4), count)

	// A repeat run right after finds nothing left to archive.
	mock.ExpectExec(regexp.QuoteMeta("WHERE status = $3 AND COALESCE(archived, FALSE) = FALSE")).
		WithArgs(sqlmock.AnyArg(), "system", models.RequestStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 0))
	count, err = repo.BulkArchiveCompleted(context.Background(), "system", time.Now())
	require.NoError(t, err)
	require.Zero(t, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRequestUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDocumentRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_requests SET status = $2")).
		WithArgs("missing", models.RequestStatusApproved, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.RequestStatusApproved, time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
