package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/internal/models"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/export"
)

// Supported roster export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type studentLister interface {
	List(ctx context.Context) ([]models.Student, error)
}

type renderer interface {
	ContentType() string
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult is a rendered roster ready to be streamed to the client.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders the live student roster as CSV or PDF.
type ExportService struct {
	students  studentLister
	renderers map[string]renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(students studentLister, logger *zap.Logger, csv, pdf renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		students:  students,
		renderers: map[string]renderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		logger:    logger,
		now:       time.Now,
	}
}

// Export renders every student that has not been soft deleted.
func (s *ExportService) Export(ctx context.Context, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Describe(appErrors.ErrValidation, "Unsupported export format", "Format must be csv or pdf")
	}

	students, err := s.students.List(ctx)
	if err != nil {
		s.logger.Error("Error exporting students", zap.String("format", format), zap.Error(err))
		return nil, appErrors.WrapInternal(err, "Error exporting students", "")
	}

	payload, err := r.Render(rosterDataset(students))
	if err != nil {
		s.logger.Error("Error rendering student roster", zap.String("format", format), zap.Error(err))
		return nil, appErrors.WrapInternal(err, "Error exporting students", "")
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("students_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		ContentType: r.ContentType(),
		Payload:     payload,
	}, nil
}

func rosterDataset(students []models.Student) export.Dataset {
	rows := make([][]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, []string{
			strconv.FormatInt(st.ID, 10),
			st.Name,
			strconv.Itoa(st.RolNo),
			strconv.Itoa(st.Class),
			st.Medium,
			strconv.Itoa(st.Fees),
		})
	}
	return export.Dataset{
		Title:   "Student Roster",
		Headers: []string{"ID", "Name", "Roll No", "Class", "Medium", "Fees"},
		Rows:    rows,
	}
}
