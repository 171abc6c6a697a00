package models

import "time"

// RequestStatus represents the lifecycle of a document request.
type RequestStatus string

// Possible document request statuses. Transitions are not ordered: an
// admin may move a COMPLETED request back to PENDING.
const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusApproved  RequestStatus = "APPROVED"
	RequestStatusRejected  RequestStatus = "REJECTED"
	RequestStatusCompleted RequestStatus = "COMPLETED"
)

// DocumentRequest is one student ask for an academic document
// (Form 137, Form 138, SF9, SF10, diploma, certificates).
// Pickup date and time are kept as free-form strings; the UI constrains
// them and the server does not validate the format.
type DocumentRequest struct {
	ID           string        `db:"id" json:"id"`
	UserID       string        `db:"user_id" json:"user_id"`
	DocumentType string        `db:"document_type" json:"document_type"`
	Purpose      string        `db:"purpose" json:"purpose"`
	PickupDate   string        `db:"pickup_date" json:"pickup_date"`
	PickupTime   string        `db:"pickup_time" json:"pickup_time"`
	Notes        string        `db:"notes" json:"notes"`
	Status       RequestStatus `db:"status" json:"status"`
	Archived     bool          `db:"archived" json:"archived"`
	ArchivedAt   *time.Time    `db:"archived_at" json:"archived_at,omitempty"`
	ArchivedBy   *string       `db:"archived_by" json:"archived_by,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// DocumentRequestDetail enriches a request with requester info for
// admin list views.
type DocumentRequestDetail struct {
	DocumentRequest
	RequesterName  string `db:"requester_name" json:"requester_name"`
	RequesterEmail string `db:"requester_email" json:"requester_email"`
}

// DocumentRequestFilter provides filters for listing requests.
type DocumentRequestFilter struct {
	UserID   string
	Status   RequestStatus
	Search   string
	Page     int
	PageSize int
}
