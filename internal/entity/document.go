package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrouter/constants"
)

// MaxOCRTextLen caps the text stored on a document row, in characters.
const MaxOCRTextLen = 200_000

// Document is one file resident in the library or quarantine tree,
// identified by (Location, RelPath).
type Document struct {
	ID                     uuid.UUID                `json:"id"`
	Location               constants.Location       `json:"location"`
	AbsPath                string                   `json:"abs_path"`
	RelPath                string                   `json:"rel_path"`
	Filename               string                   `json:"filename"`
	Ext                    string                   `json:"ext"`
	Status                 constants.DocumentStatus `json:"status"`
	Tags                   TagSet                   `json:"tags"`
	TemplateID             *uuid.UUID               `json:"template_id,omitempty"`
	OCRText                string                   `json:"ocr_text,omitempty"`
	ExtractedCompany       string                   `json:"extracted_company,omitempty"`
	ExtractedInvoiceNumber string                   `json:"extracted_invoice_number,omitempty"`
	ExtractedDate          string                   `json:"extracted_date,omitempty"`
	SizeBytes              int64                    `json:"size_bytes"`
	MTime                  int64                    `json:"mtime"` // unix nanoseconds
	CreatedAt              time.Time                `json:"created_at"`
	UpdatedAt              time.Time                `json:"updated_at"`
}

// TruncateText cuts s to at most MaxOCRTextLen characters.
func TruncateText(s string) string {
	if len(s) <= MaxOCRTextLen {
		return s
	}
	r := []rune(s)
	if len(r) <= MaxOCRTextLen {
		return s
	}
	return string(r[:MaxOCRTextLen])
}

// FileStat is the filesystem view the indexer reconciles against.
type FileStat struct {
	Location  constants.Location
	AbsPath   string
	RelPath   string
	Filename  string
	Ext       string
	SizeBytes int64
	MTime     int64
}
