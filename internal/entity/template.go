package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrouter/constants"
)

// Defaults applied when a template leaves a routing field empty.
const (
	DefaultDocType            = "Document"
	DefaultDocFolder          = "Inbox"
	DefaultOutputPathTemplate = "{doc_folder}/{company}/{date:%Y}"
	DefaultFilenameTemplate   = "{company}_{invoice_number}_{date:%Y-%m-%d}"
)

// Template is a named classification, extraction and routing rule.
type Template struct {
	ID                 uuid.UUID           `json:"id"`
	Name               string              `json:"name"`
	Enabled            bool                `json:"enabled"`
	DocType            string              `json:"doc_type"`
	DocFolder          string              `json:"doc_folder"`
	Tags               TagSet              `json:"tags"`
	MatchMode          constants.MatchMode `json:"match_mode"`
	MatchPatterns      StringList          `json:"match_patterns"`
	CompanyRegex       string              `json:"company_regex,omitempty"`
	InvoiceNumberRegex string              `json:"invoice_number_regex,omitempty"`
	DateRegex          string              `json:"date_regex,omitempty"`
	OutputPathTemplate string              `json:"output_path_template"`
	FilenameTemplate   string              `json:"filename_template"`
	CreatedAt          time.Time           `json:"created_at"`
}

// ApplyDefaults fills empty routing fields.
func (t *Template) ApplyDefaults() {
	if t.DocType == "" {
		t.DocType = DefaultDocType
	}
	if t.DocFolder == "" {
		t.DocFolder = DefaultDocFolder
	}
	if t.MatchMode == "" {
		t.MatchMode = constants.MatchAll
	}
	if t.OutputPathTemplate == "" {
		t.OutputPathTemplate = DefaultOutputPathTemplate
	}
	if t.FilenameTemplate == "" {
		t.FilenameTemplate = DefaultFilenameTemplate
	}
}
