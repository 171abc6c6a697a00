package models

import "time"

// InquiryStatus represents the lifecycle of a support inquiry. One
// vocabulary is shared by the schema and every client; archival is a
// separate flag rather than a status value.
type InquiryStatus string

// Possible inquiry statuses.
const (
	InquiryStatusPending    InquiryStatus = "PENDING"
	InquiryStatusInProgress InquiryStatus = "IN_PROGRESS"
	InquiryStatusResolved   InquiryStatus = "RESOLVED"
	InquiryStatusClosed     InquiryStatus = "CLOSED"
)

// Inquiry is a student support message with an append-only reply thread.
// ResolvedBy and ArchivedBy are free-text actor identities, not user
// references: an action may be attributed to a role or office rather
// than a login.
type Inquiry struct {
	ID         string        `db:"id" json:"id"`
	UserID     string        `db:"user_id" json:"user_id"`
	Subject    string        `db:"subject" json:"subject"`
	Message    string        `db:"message" json:"message"`
	Status     InquiryStatus `db:"status" json:"status"`
	ResolvedAt *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy *string       `db:"resolved_by" json:"resolved_by,omitempty"`
	Archived   bool          `db:"archived" json:"archived"`
	ArchivedAt *time.Time    `db:"archived_at" json:"archived_at,omitempty"`
	ArchivedBy *string       `db:"archived_by" json:"archived_by,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// InquiryReply is one entry in an inquiry's reply thread.
type InquiryReply struct {
	ID        string    `db:"id" json:"id"`
	InquiryID string    `db:"inquiry_id" json:"inquiry_id"`
	Message   string    `db:"message" json:"message"`
	RepliedBy string    `db:"replied_by" json:"replied_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// InquiryDetail bundles an inquiry with its reply thread and sender info.
type InquiryDetail struct {
	Inquiry
	SenderName  string         `db:"sender_name" json:"sender_name"`
	SenderEmail string         `db:"sender_email" json:"sender_email"`
	Replies     []InquiryReply `db:"-" json:"replies"`
}

// InquiryFilter provides filters for listing inquiries.
type InquiryFilter struct {
	UserID   string
	Status   InquiryStatus
	Page     int
	PageSize int
}
