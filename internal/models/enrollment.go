package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment application.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending  EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejected EnrollmentStatus = "REJECTED"
)

// DocumentList stores uploaded file paths as a JSONB array column.
type DocumentList []string

// Value implements driver.Valuer.
func (d DocumentList) Value() (driver.Value, error) {
	if d == nil {
		d = DocumentList{}
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *DocumentList) Scan(src interface{}) error {
	if src == nil {
		*d = DocumentList{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("unsupported document list type %T", src)
	}
}

// Enrollment captures one enrollment application. UserID is optional:
// applications may be submitted without an account. EnrollmentNo is
// assigned at creation and never changes.
type Enrollment struct {
	ID                 string           `db:"id" json:"id"`
	UserID             *string          `db:"user_id" json:"user_id,omitempty"`
	EnrollmentNo       string           `db:"enrollment_no" json:"enrollment_no"`
	FirstName          string           `db:"first_name" json:"first_name"`
	MiddleName         string           `db:"middle_name" json:"middle_name"`
	LastName           string           `db:"last_name" json:"last_name"`
	BirthDate          string           `db:"birth_date" json:"birth_date"`
	Gender             string           `db:"gender" json:"gender"`
	Address            string           `db:"address" json:"address"`
	ContactNumber      string           `db:"contact_number" json:"contact_number"`
	Email              string           `db:"email" json:"email"`
	GuardianName       string           `db:"guardian_name" json:"guardian_name"`
	GuardianContact    string           `db:"guardian_contact" json:"guardian_contact"`
	GuardianRelation   string           `db:"guardian_relation" json:"guardian_relation"`
	LastSchool         string           `db:"last_school" json:"last_school"`
	LastGradeLevel     string           `db:"last_grade_level" json:"last_grade_level"`
	ApplyingGradeLevel string           `db:"applying_grade_level" json:"applying_grade_level"`
	SchoolYear         string           `db:"school_year" json:"school_year"`
	Documents          DocumentList     `db:"documents" json:"documents"`
	Status             EnrollmentStatus `db:"status" json:"status"`
	ReviewedBy         *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes        string           `db:"review_notes" json:"review_notes"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID     string
	Status     EnrollmentStatus
	SchoolYear string
	Search     string
	Page       int
	PageSize   int
}
