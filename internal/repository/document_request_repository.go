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

// DocumentRequestRepository handles persistence of document requests.
type DocumentRequestRepository struct {
	db *sqlx.DB
}

// NewDocumentRequestRepository constructs the repository.
func NewDocumentRequestRepository(db *sqlx.DB) *DocumentRequestRepository {
	return &DocumentRequestRepository{db: db}
}

const documentRequestColumns = `id, user_id, document_type, purpose, pickup_date, pickup_time, notes, status,
       archived, archived_at, archived_by, created_at, updated_at`

// Create persists a new document request.
func (r *DocumentRequestRepository) Create(ctx context.Context, req *models.DocumentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	const query = `INSERT INTO document_requests
	(id, user_id, document_type, purpose, pickup_date, pickup_time, notes, status, archived, archived_at, archived_by, created_at, updated_at)
	VALUES (:id, :user_id, :document_type, :purpose, :pickup_date, :pickup_time, :notes, :status, :archived, :archived_at, :archived_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create document request: %w", err)
	}
	return nil
}

// FindByID returns a document request by its ID.
func (r *DocumentRequestRepository) FindByID(ctx context.Context, id string) (*models.DocumentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_requests WHERE id = $1`, documentRequestColumns)
	var req models.DocumentRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListLive returns non-archived requests, newest first, with total count.
// Rows where archived was never set count as live.
func (r *DocumentRequestRepository) ListLive(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error) {
	return r.list(ctx, filter, false)
}

// ListArchived returns archived requests ordered by archival time.
func (r *DocumentRequestRepository) ListArchived(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error) {
	return r.list(ctx, filter, true)
}

func (r *DocumentRequestRepository) list(ctx context.Context, filter models.DocumentRequestFilter, archived bool) ([]models.DocumentRequestDetail, int, error) {
	base := `FROM document_requests d
	LEFT JOIN users u ON u.id = d.user_id`
	conditions := []string{fmt.Sprintf("COALESCE(d.archived, FALSE) = %t", archived)}
	var args []interface{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("d.user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(d.document_type) LIKE $%d OR LOWER(u.full_name) LIKE $%d)", len(args), len(args)))
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	orderBy := "d.created_at DESC"
	if archived {
		orderBy = "d.archived_at DESC"
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

	query := fmt.Sprintf(`SELECT d.id, d.user_id, d.document_type, d.purpose, d.pickup_date, d.pickup_time, d.notes, d.status,
	       d.archived, d.archived_at, d.archived_by, d.created_at, d.updated_at,
	       COALESCE(u.full_name, '') AS requester_name, COALESCE(u.email, '') AS requester_email
	       %s ORDER BY %s LIMIT %d OFFSET %d`, base+clause, orderBy, size, offset)

	var requests []models.DocumentRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list document requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count document requests: %w", err)
	}
	return requests, total, nil
}

// UpdateStatus writes the new status value. Returns sql.ErrNoRows when the
// request does not exist.
func (r *DocumentRequestRepository) UpdateStatus(ctx context.Context, id string, status models.RequestStatus, updatedAt time.Time) error {
	const query = `UPDATE document_requests SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, updatedAt)
	if err != nil {
		return fmt.Errorf("update document request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check status update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Archive flags a request as archived. Archiving an already archived row
// affects zero rows; callers treat that as a no-op success.
func (r *DocumentRequestRepository) Archive(ctx context.Context, id, actor string, archivedAt time.Time) (int64, error) {
	const query = `UPDATE document_requests
	SET archived = TRUE, archived_at = $2, archived_by = $3, updated_at = $2
	WHERE id = $1 AND COALESCE(archived, FALSE) = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, archivedAt, actor)
	if err != nil {
		return 0, fmt.Errorf("archive document request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check archive rows: %w", err)
	}
	return affected, nil
}

// Restore clears the archived flag. The archival audit trail
// (archived_at, archived_by) is deliberately retained.
func (r *DocumentRequestRepository) Restore(ctx context.Context, id string, updatedAt time.Time) error {
	const query = `UPDATE document_requests SET archived = FALSE, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, updatedAt)
	if err != nil {
		return fmt.Errorf("restore document request: %w", err)
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

// BulkArchiveCompleted archives every completed, still-live request in one
// statement and returns the affected count. The WHERE clause makes repeat
// runs monotonic: already archived rows are never counted again.
func (r *DocumentRequestRepository) BulkArchiveCompleted(ctx context.Context, actor string, archivedAt time.Time) (int64, error) {
	const query = `UPDATE document_requests
	SET archived = TRUE, archived_at = $1, archived_by = $2, updated_at = $1
	WHERE status = $3 AND COALESCE(archived, FALSE) = FALSE`
	res, err := r.db.ExecContext(ctx, query, archivedAt, actor, models.RequestStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("bulk archive completed requests: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check bulk archive rows: %w", err)
	}
	return affected, nil
}

// CountByStatus aggregates live requests per status.
func (r *DocumentRequestRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM document_requests
	WHERE COALESCE(archived, FALSE) = FALSE GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	return counts, nil
}

// CountArchived returns the number of archived requests.
func (r *DocumentRequestRepository) CountArchived(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM document_requests WHERE COALESCE(archived, FALSE) = TRUE`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count archived requests: %w", err)
	}
	return total, nil
}
