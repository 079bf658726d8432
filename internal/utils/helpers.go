package utils

import (
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docrouter/internal/entity"
)

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func idOrEmpty(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// JobMap flattens a job into JSON-compatible values.
func JobMap(j *entity.Job) map[string]any {
	return map[string]any{
		"id":                       j.ID.String(),
		"source":                   string(j.Source),
		"input_path":               j.InputPath,
		"original_name":            j.OriginalName,
		"status":                   string(j.Status),
		"message":                  j.Message,
		"method":                   j.Method,
		"template_id":              idOrEmpty(j.TemplateID),
		"doc_folder":               j.DocFolder,
		"dest_path":                j.DestPath,
		"extracted_company":        j.ExtractedCompany,
		"extracted_invoice_number": j.ExtractedInvoiceNumber,
		"extracted_date":           j.ExtractedDate,
		"created_at":               FormatTime(j.CreatedAt),
	}
}

// DocumentMap flattens a document into JSON-compatible values, without its OCR text.
func DocumentMap(d *entity.Document) map[string]any {
	tags := make([]any, 0, d.Tags.Len())
	for _, t := range d.Tags.Slice() {
		tags = append(tags, t)
	}
	return map[string]any{
		"id":                       d.ID.String(),
		"location":                 string(d.Location),
		"rel_path":                 d.RelPath,
		"filename":                 d.Filename,
		"status":                   string(d.Status),
		"tags":                     tags,
		"template_id":              idOrEmpty(d.TemplateID),
		"extracted_company":        d.ExtractedCompany,
		"extracted_invoice_number": d.ExtractedInvoiceNumber,
		"extracted_date":           d.ExtractedDate,
		"size_bytes":               float64(d.SizeBytes),
		"updated_at":               FormatTime(d.UpdatedAt),
	}
}

func ToPBJob(j *entity.Job) (*structpb.Struct, error) {
	return structpb.NewStruct(JobMap(j))
}

func ToPBJobs(jobs []*entity.Job) (*structpb.ListValue, error) {
	items := make([]any, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, JobMap(j))
	}
	return structpb.NewList(items)
}
