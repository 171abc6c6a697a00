package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mnhs-portal/registrar-api/internal/models"
	appErrors "github.com/mnhs-portal/registrar-api/pkg/errors"
	"github.com/mnhs-portal/registrar-api/pkg/export"
)

type exportRequestLister interface {
	ListLive(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error)
	ListArchived(ctx context.Context, filter models.DocumentRequestFilter) ([]models.DocumentRequestDetail, int, error)
}

type exportEnrollmentLister interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
}

// ExportFormat selects the output encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered bytes and response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders register exports for the registrar's office.
type ExportService struct {
	requests    exportRequestLister
	enrollments exportEnrollmentLister
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(requests exportRequestLister, enrollments exportEnrollmentLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		requests:    requests,
		enrollments: enrollments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

const exportPageSize = 100

// DocumentRequests exports the live or archived register.
func (s *ExportService) DocumentRequests(ctx context.Context, format ExportFormat, archived bool) (*ExportResult, error) {
	var all []models.DocumentRequestDetail
	for page := 1; ; page++ {
		filter := models.DocumentRequestFilter{Page: page, PageSize: exportPageSize}
		var batch []models.DocumentRequestDetail
		var err error
		if archived {
			batch, _, err = s.requests.ListArchived(ctx, filter)
		} else {
			batch, _, err = s.requests.ListLive(ctx, filter)
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requests for export")
		}
		all = append(all, batch...)
		if len(batch) < exportPageSize {
			break
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Requester", "Email", "Document", "Purpose", "Pickup Date", "Status", "Submitted"},
	}
	for _, req := range all {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Requester":   req.RequesterName,
			"Email":       req.RequesterEmail,
			"Document":    req.DocumentType,
			"Purpose":     req.Purpose,
			"Pickup Date": req.PickupDate,
			"Status":      string(req.Status),
			"Submitted":   req.CreatedAt.Format("2006-01-02"),
		})
	}

	name := "document-requests"
	if archived {
		name = "archived-document-requests"
	}
	return s.render(dataset, format, name, "Document Request Register")
}

// Enrollments exports the enrollment register.
func (s *ExportService) Enrollments(ctx context.Context, format ExportFormat, schoolYear string) (*ExportResult, error) {
	var all []models.Enrollment
	for page := 1; ; page++ {
		batch, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{
			SchoolYear: schoolYear,
			Page:       page,
			PageSize:   exportPageSize,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments for export")
		}
		all = append(all, batch...)
		if len(batch) < exportPageSize {
			break
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Tracking No", "Name", "Grade Level", "School Year", "Status", "Submitted"},
	}
	for _, e := range all {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Tracking No": e.EnrollmentNo,
			"Name":        strings.TrimSpace(e.LastName + ", " + e.FirstName),
			"Grade Level": e.ApplyingGradeLevel,
			"School Year": e.SchoolYear,
			"Status":      string(e.Status),
			"Submitted":   e.CreatedAt.Format("2006-01-02"),
		})
	}

	return s.render(dataset, format, "enrollments", "Enrollment Register")
}

func (s *ExportService) render(dataset export.Dataset, format ExportFormat, name, title string) (*ExportResult, error) {
	stamp := time.Now().UTC().Format("20060102")
	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("%s-%s.csv", name, stamp),
		}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("%s-%s.pdf", name, stamp),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
