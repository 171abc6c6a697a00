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

func TestInquiryCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInquiryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inquiries")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	inquiry := &models.Inquiry{
		UserID:  "user-1",
		Subject: "Form 137 release",
		Message: "When can I pick it up?",
	}
	require.NoError(t, repo.Create(context.Background(), inquiry))
	require.NotEmpty(t, inquiry.ID)
	require.Equal(t, models.InquiryStatusPending, inquiry.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInquiryUpdateStatusTxResolvesAndArchivesTogether(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInquiryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inquiries SET status = $2")).
		WithArgs("inq-1", models.InquiryStatusResolved, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("resolved_at = COALESCE(resolved_at, $2)")).
		WithArgs("inq-1", sqlmock.AnyArg(), "registrar").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatusTx(context.Background(), "inq-1", models.InquiryStatusResolved, true, "registrar", time.Now())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInquiryUpdateStatusTxWithoutResolveSkipsArchive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInquiryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inquiries SET status = $2")).
		WithArgs("inq-1", models.InquiryStatusInProgress, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatusTx(context.Background(), "inq-1", models.InquiryStatusInProgress, false, "registrar", time.Now())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInquiryUpdateStatusTxMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInquiryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inquiries SET status = $2")).
		WithArgs("missing", models.InquiryStatusClosed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStatusTx(context.Background(), "missing", models.InquiryStatusClosed, true, "registrar", time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInquiryArchiveBackfillsResolvedAt(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInquiryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("resolved_at = COALESCE(resolved_at, $2)")).
		WithArgs("inq-1", sqlmock.AnyArg(), "registrar").
		WillReturnResult(sqlmock.NewResult(0, 1))
	affected, err := repo.Archive(context.Background(), "inq-1", "registrar", time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInquiryDeleteRemovesRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInquiryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inquiries WHERE id = $1")).
		WithArgs("inq-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "inq-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInquiryDeleteMissingReturnsNoRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInquiryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inquiries WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInquiryAddReplyAppendsOnly(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInquiryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inquiry_replies")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	reply := &models.InquiryReply{
		InquiryID: "inq-1",
		Message:   "Please bring a valid ID.",
		RepliedBy: "registrar",
	}
	require.NoError(t, repo.AddReply(context.Background(), reply))
	require.NotEmpty(t, reply.ID)
	require.False(t, reply.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInquiryListRepliesOldestFirst(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInquiryRepository(db)
	rows := sqlmock.NewRows([]string{"id", "inquiry_id", "message", "replied_by", "created_at"}).
		AddRow("rep-1", "inq-1", "First reply", "registrar", time.Now().Add(-time.Hour)).
		AddRow("rep-2", "inq-1", "Second reply", "registrar", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at ASC")).
		WithArgs("inq-1").
		WillReturnRows(rows)

	replies, err := repo.ListReplies(context.Background(), "inq-1")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	require.Equal(t, "rep-1", replies[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
