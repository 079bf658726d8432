package templating

import (
	"testing"

	"github.com/joseph-ayodele/docrouter/internal/entity"
)

func TestFirstGroup(t *testing.T) {
	text := "ACME Corp\nInvoice No: INV-42 \nDate: 05/03/2024"
	tests := []struct {
		pattern string
		want    string
	}{
		{`invoice no:\s*(\S+)`, "INV-42"},
		{`^acme corp`, "ACME Corp"},
		{`missing:(\w+)`, ""},
		{`(`, ""},
		{``, ""},
		{`(x)?invoice`, ""},
	}
	for _, tt := range tests {
		if got := FirstGroup(tt.pattern, text); got != tt.want {
			t.Errorf("FirstGroup(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in       string
		dayFirst bool
		want     string
	}{
		{"05/03/2024", true, "2024-03-05"},
		{"05/03/2024", false, "2024-05-03"},
		{"2024-03-05", true, "2024-03-05"},
		{"2024-03-05", false, "2024-03-05"},
		{"Invoice date: 2024-03-05 (due in 30 days)", true, "2024-03-05"},
		{"issued 05.03.2024 in Berlin", true, "2024-03-05"},
		{"not a date", true, ""},
		{"", true, ""},
	}
	for _, tt := range tests {
		got := ParseDate(tt.in, tt.dayFirst)
		s := ""
		if got != nil {
			s = got.Format("2006-01-02")
		}
		if s != tt.want {
			t.Errorf("ParseDate(%q, dayFirst=%v) = %q, want %q", tt.in, tt.dayFirst, s, tt.want)
		}
	}
}

func TestExtractFields(t *testing.T) {
	tp := &entity.Template{
		DocType:            "Invoice",
		DocFolder:          "Invoices",
		CompanyRegex:       `^(?:from|seller):\s*(.+)$`,
		InvoiceNumberRegex: `invoice\s*(?:no|number|#)[:.]?\s*([A-Z0-9-]+)`,
		DateRegex:          `date[:]?\s*([0-9./-]+)`,
	}
	text := "From: Acme Co\nInvoice number: INV-42\nDate: 05/03/2024\n"
	f := ExtractFields(tp, text, true)
	if f.Company != "Acme Co" {
		t.Errorf("Company = %q", f.Company)
	}
	if f.InvoiceNumber != "INV-42" {
		t.Errorf("InvoiceNumber = %q", f.InvoiceNumber)
	}
	if f.ISODate() != "2024-03-05" {
		t.Errorf("Date = %q", f.ISODate())
	}
	if f.DocType != "Invoice" || f.DocFolder != "Invoices" {
		t.Errorf("DocType/DocFolder = %q/%q", f.DocType, f.DocFolder)
	}
}

func TestExtractFieldsDefaults(t *testing.T) {
	f := ExtractFields(&entity.Template{DateRegex: `date: (\S+)`}, "date: someday", true)
	if f.Date != nil {
		t.Errorf("unparsable date should be nil, got %v", f.Date)
	}
	if f.DocType != entity.DefaultDocType || f.DocFolder != entity.DefaultDocFolder {
		t.Errorf("defaults = %q/%q", f.DocType, f.DocFolder)
	}
	if f.Company != "" || f.InvoiceNumber != "" {
		t.Error("expected empty company and invoice number")
	}
}
