package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mnhs-portal/registrar-api/internal/models"
)

// InquiryRepository handles persistence of inquiries and their reply threads.
type InquiryRepository struct {
	db *sqlx.DB
}

// NewInquiryRepository constructs the repository.
func NewInquiryRepository(db *sqlx.DB) *InquiryRepository {
	return &InquiryRepository{db: db}
}

const inquiryColumns = `id, user_id, subject, message, status, resolved_at, resolved_by,
       archived, archived_at, archived_by, created_at, updated_at`

// Create persists a new inquiry.
func (r *InquiryRepository) Create(ctx context.Context, inquiry *models.Inquiry) error {
	if inquiry.ID == "" {
		inquiry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inquiry.CreatedAt = now
	inquiry.UpdatedAt = now
	if inquiry.Status == "" {
		inquiry.Status = models.InquiryStatusPending
	}
	const query = `INSERT INTO inquiries (id, user_id, subject, message, status, archived, created_at, updated_at)
	VALUES (:id, :user_id, :subject, :message, :status, :archived, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, inquiry); err != nil {
		return fmt.Errorf("create inquiry: %w", err)
	}
	return nil
}

// FindByID returns an inquiry by ID.
func (r *InquiryRepository) FindByID(ctx context.Context, id string) (*models.Inquiry, error) {
	query := fmt.Sprintf(`SELECT %s FROM inquiries WHERE id = $1`, inquiryColumns)
	var inquiry models.Inquiry
	if err := r.db.GetContext(ctx, &inquiry, query, id); err != nil {
		return nil, err
	}
	return &inquiry, nil
}

// FindDetailByID returns an inquiry with sender info. Replies are loaded
// separately by the service.
func (r *InquiryRepository) FindDetailByID(ctx context.Context, id string) (*models.InquiryDetail, error) {
	const query = `SELECT i.id, i.user_id, i.subject, i.message, i.status, i.resolved_at, i.resolved_by,
	       i.archived, i.archived_at, i.archived_by, i.created_at, i.updated_at,
	       COALESCE(u.full_name, '') AS sender_name, COALESCE(u.email, '') AS sender_email
	FROM inquiries i
	LEFT JOIN users u ON u.id = i.user_id
	WHERE i.id = $1`
	var detail models.InquiryDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListLive returns non-archived inquiries, newest first, with total count.
func (r *InquiryRepository) ListLive(ctx context.Context, filter models.InquiryFilter) ([]models.InquiryDetail, int, error) {
	return r.list(ctx, filter, false)
}

// ListArchived returns archived inquiries ordered by archival time.
func (r *InquiryRepository) ListArchived(ctx context.Context, filter models.InquiryFilter) ([]models.InquiryDetail, int, error) {
	return r.list(ctx, filter, true)
}

func (r *InquiryRepository) list(ctx context.Context, filter models.InquiryFilter, archived bool) ([]models.InquiryDetail, int, error) {
	base := `FROM inquiries i
	LEFT JOIN users u ON u.id = i.user_id`
	conditions := []string{fmt.Sprintf("COALESCE(i.archived, FALSE) = %t", archived)}
	var args []interface{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("i.user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)))
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	orderBy := "i.created_at DESC"
	if archived {
		orderBy = "i.archived_at DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT i.id, i.user_id, i.subject, i.message, i.status, i.resolved_at, i.resolved_by,
	       i.archived, i.archived_at, i.archived_by, i.created_at, i.updated_at,
	       COALESCE(u.full_name, '') AS sender_name, COALESCE(u.email, '') AS sender_email
	       %s ORDER BY %s LIMIT %d OFFSET %d`, base+clause, orderBy, size, offset)

	var inquiries []models.InquiryDetail
	if err := r.db.SelectContext(ctx, &inquiries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list inquiries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count inquiries: %w", err)
	}
	return inquiries, total, nil
}

// UpdateStatusTx writes the new status and, when resolve is set, backfills
// the resolution timestamp and archives the inquiry in the same
// transaction. A crash between the two writes can never leave a resolved
// inquiry un-archived.
func (r *InquiryRepository) UpdateStatusTx(ctx context.Context, id string, status models.InquiryStatus, resolve bool, actor string, now time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const statusQuery = `UPDATE inquiries SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := tx.ExecContext(ctx, statusQuery, id, status, now)
	if err != nil {
		return fmt.Errorf("update inquiry status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check inquiry status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if resolve {
		const resolveQuery = `UPDATE inquiries
		SET resolved_at = COALESCE(resolved_at, $2), resolved_by = COALESCE(resolved_by, $3),
		    archived = TRUE,
		    archived_at = COALESCE(archived_at, $2),
		    archived_by = COALESCE(archived_by, $3)
		WHERE id = $1`
		if _, err := tx.ExecContext(ctx, resolveQuery, id, now, actor); err != nil {
			return fmt.Errorf("resolve inquiry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status transaction: %w", err)
	}
	return nil
}

// Archive flags an inquiry as archived and backfills the resolution
// timestamp: an archived inquiry is considered handled even if nobody
// moved it to RESOLVED first. Zero affected rows means already archived.
func (r *InquiryRepository) Archive(ctx context.Context, id, actor string, archivedAt time.Time) (int64, error) {
	const query = `UPDATE inquiries
	SET archived = TRUE, archived_at = $2, archived_by = $3,
	    resolved_at = COALESCE(resolved_at, $2), updated_at = $2
	WHERE id = $1 AND COALESCE(archived, FALSE) = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, archivedAt, actor)
	if err != nil {
		return 0, fmt.Errorf("archive inquiry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check archive rows: %w", err)
	}
	return affected, nil
}

// Restore clears the archived flag, keeping the archival audit fields.
func (r *InquiryRepository) Restore(ctx context.Context, id string, updatedAt time.Time) error {
	const query = `UPDATE inquiries SET archived = FALSE, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, updatedAt)
	if err != nil {
		return fmt.Errorf("restore inquiry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check restore rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete permanently removes an inquiry; its reply thread goes with it
// through the ON DELETE CASCADE on inquiry_replies. Returns
// sql.ErrNoRows when the inquiry does not exist.
func (r *InquiryRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM inquiries WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete inquiry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddReply appends one reply to the thread. Replies are never updated
// or deleted.
func (r *InquiryRepository) AddReply(ctx context.Context, reply *models.InquiryReply) error {
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO inquiry_replies (id, inquiry_id, message, replied_by, created_at)
	VALUES (:id, :inquiry_id, :message, :replied_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reply); err != nil {
		return fmt.Errorf("add inquiry reply: %w", err)
	}
	return nil
}

// ListReplies returns the reply thread oldest first.
func (r *InquiryRepository) ListReplies(ctx context.Context, inquiryID string) ([]models.InquiryReply, error) {
	const query = `SELECT id, inquiry_id, message, replied_by, created_at
	FROM inquiry_replies WHERE inquiry_id = $1 ORDER BY created_at ASC`
	var replies []models.InquiryReply
	if err := r.db.SelectContext(ctx, &replies, query, inquiryID); err != nil {
		return nil, fmt.Errorf("list inquiry replies: %w", err)
	}
	return replies, nil
}

// CountByStatus aggregates live inquiries per status.
func (r *InquiryRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM inquiries
	WHERE COALESCE(archived, FALSE) = FALSE GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count inquiries by status: %w", err)
	}
	return counts, nil
}
