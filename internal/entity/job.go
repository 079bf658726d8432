package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrouter/constants"
)

// Job records one processing attempt. Rows are append-only.
type Job struct {
	ID                     uuid.UUID           `json:"id"`
	Source                 constants.Source    `json:"source"`
	InputPath              string              `json:"input_path"`
	OriginalName           string              `json:"original_name"`
	Status                 constants.JobStatus `json:"status"`
	Message                string              `json:"message"`
	Method                 string              `json:"method,omitempty"`
	TemplateID             *uuid.UUID          `json:"template_id,omitempty"`
	DocFolder              string              `json:"doc_folder,omitempty"`
	DestPath               string              `json:"dest_path,omitempty"`
	ExtractedCompany       string              `json:"extracted_company,omitempty"`
	ExtractedInvoiceNumber string              `json:"extracted_invoice_number,omitempty"`
	ExtractedDate          string              `json:"extracted_date,omitempty"` // YYYY-MM-DD
	CreatedAt              time.Time           `json:"created_at"`
}

func (j *Job) OK() bool { return j != nil && j.Status == constants.JobStatusOK }
