package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cee-allot-api/internal/allot"
	"github.com/noah-isme/cee-allot-api/internal/models"
	appErrors "github.com/noah-isme/cee-allot-api/pkg/errors"
	"github.com/noah-isme/cee-allot-api/pkg/export"
)

// ExportFormat enumerates supported export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportRunStore interface {
	GetByID(ctx context.Context, id string) (*models.AllotmentRun, error)
}

type exportRecordStore interface {
	ListAll(ctx context.Context, runID string) ([]models.AllotmentRecord, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult carries a rendered export document.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders a completed run's record set as CSV or PDF.
type ExportService struct {
	runs    exportRunStore
	records exportRecordStore
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(runs exportRunStore, records exportRecordStore, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{runs: runs, records: records, csv: csv, pdf: pdf, logger: logger}
}

var exportHeaders = []string{"Roll No", "Rank", "Status", "Allot Code", "College", "Course", "Category", "Option No", "Reason"}

// Export renders the full record set of a completed run.
func (s *ExportService) Export(ctx context.Context, runID string, format ExportFormat) (*ExportResult, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
	}
	if run.Status != models.RunStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrRunNotFinished, "only completed runs can be exported")
	}

	records, err := s.records.ListAll(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load records")
	}

	dataset := buildRecordDataset(records)
	title := fmt.Sprintf("%s Phase %d Allotment", run.Program, run.Phase)

	var payload []byte
	var contentType string
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("allotment_%s_phase%d_%s.%s",
		strings.ToLower(run.Program), run.Phase,
		time.Now().UTC().Format("20060102_150405"), format)

	s.logger.Info("run exported",
		zap.String("run_id", runID),
		zap.String("format", string(format)),
		zap.Int("records", len(records)))

	return &ExportResult{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

func buildRecordDataset(records []models.AllotmentRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, map[string]string{
			"Roll No":    strconv.FormatInt(rec.RollNo, 10),
			"Rank":       strconv.Itoa(rec.Rank),
			"Status":     rec.Status,
			"Allot Code": rec.AllotCode,
			"College":    rec.College,
			"Course":     rec.Course,
			"Category":   rec.Category,
			"Option No":  formatOpNo(rec.OpNo),
			"Reason":     rec.Reason,
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

// formatOpNo renders the option number column. Retained incumbents
// without a recorded option number carry the sentinel, which prints as
// RETAINED rather than a fake preference.
func formatOpNo(opNo int) string {
	switch {
	case opNo <= 0:
		return ""
	case opNo >= allot.NoOpNo:
		return "RETAINED"
	}
	return strconv.Itoa(opNo)
}
