package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/repository"
)

const (
	DocumentsSheet = "Documents"
	JobsSheet      = "Jobs"
)

// Service writes XLSX workbooks of documents and jobs.
type Service struct {
	docs   repository.DocumentRepository
	jobs   repository.JobRepository
	logger *slog.Logger
}

func NewService(docs repository.DocumentRepository, jobs repository.JobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, jobs: jobs, logger: logger}
}

var documentHeaders = []string{
	"Location", "Path", "Filename", "Status", "Tags", "Company",
	"Invoice Number", "Date", "Size (bytes)", "Modified", "Updated",
}

// WriteDocuments writes every document of loc ("" for all) to w.
func (s *Service) WriteDocuments(ctx context.Context, w io.Writer, loc constants.Location) (int, error) {
	start := time.Now()
	docs, err := s.docs.List(ctx, loc)
	if err != nil {
		return 0, fmt.Errorf("query documents: %w", err)
	}

	f, err := newWorkbook(DocumentsSheet, documentHeaders)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	for i, d := range docs {
		writeRow(f, DocumentsSheet, i+2, []any{
			string(d.Location),
			d.RelPath,
			d.Filename,
			string(d.Status),
			strings.Join(d.Tags.Slice(), ", "),
			d.ExtractedCompany,
			d.ExtractedInvoiceNumber,
			d.ExtractedDate,
			d.SizeBytes,
			formatTime(time.Unix(0, d.MTime)),
			formatTime(d.UpdatedAt),
		})
	}

	_ = f.SetColWidth(DocumentsSheet, "A", "A", 10)
	_ = f.SetColWidth(DocumentsSheet, "B", "B", 60)
	_ = f.SetColWidth(DocumentsSheet, "C", "C", 36)
	_ = f.SetColWidth(DocumentsSheet, "D", "D", 10)
	_ = f.SetColWidth(DocumentsSheet, "E", "H", 22)
	_ = f.SetColWidth(DocumentsSheet, "I", "K", 20)

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.documents.ok",
		"location", string(loc),
		"rows", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return len(docs), nil
}

var jobHeaders = []string{
	"Created", "Source", "Status", "Original Name", "Input Path", "Method",
	"Folder", "Destination", "Company", "Invoice Number", "Date", "Message",
}

// WriteJobs writes the most recent jobs to w, newest first.
func (s *Service) WriteJobs(ctx context.Context, w io.Writer, limit int) (int, error) {
	start := time.Now()
	jobs, err := s.jobs.ListRecent(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("query jobs: %w", err)
	}

	f, err := newWorkbook(JobsSheet, jobHeaders)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	for i, j := range jobs {
		writeRow(f, JobsSheet, i+2, []any{
			formatTime(j.CreatedAt),
			string(j.Source),
			string(j.Status),
			j.OriginalName,
			j.InputPath,
			j.Method,
			j.DocFolder,
			j.DestPath,
			j.ExtractedCompany,
			j.ExtractedInvoiceNumber,
			j.ExtractedDate,
			truncate(j.Message, 200),
		})
	}

	_ = f.SetColWidth(JobsSheet, "A", "A", 20)
	_ = f.SetColWidth(JobsSheet, "B", "C", 10)
	_ = f.SetColWidth(JobsSheet, "D", "D", 32)
	_ = f.SetColWidth(JobsSheet, "E", "E", 48)
	_ = f.SetColWidth(JobsSheet, "H", "H", 60)
	_ = f.SetColWidth(JobsSheet, "L", "L", 60)

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.jobs.ok",
		"rows", len(jobs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return len(jobs), nil
}

// newWorkbook returns a workbook whose only sheet is named sheet, with a
// bold, frozen header row.
func newWorkbook(sheet string, headers []string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheet, "A1", last, bold)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() || t.Unix() == 0 {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
