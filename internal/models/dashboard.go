package models

import "time"

// StatusCount pairs a status value with its record count.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

// DashboardSummary aggregates portal activity for the admin dashboard.
type DashboardSummary struct {
	DocumentRequests []StatusCount `json:"document_requests"`
	Enrollments      []StatusCount `json:"enrollments"`
	Inquiries        []StatusCount `json:"inquiries"`
	ArchivedRequests int           `json:"archived_requests"`
	GeneratedAt      time.Time     `json:"generated_at"`
}
