// Package seed populates a fresh store with the runtime setting keys and
// the initial routing templates.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/entity"
	"github.com/joseph-ayodele/docrouter/internal/repository"
)

type templateSpec struct {
	Name               string   `yaml:"name"`
	Enabled            *bool    `yaml:"enabled"`
	DocType            string   `yaml:"doc_type"`
	DocFolder          string   `yaml:"doc_folder"`
	Tags               []string `yaml:"tags"`
	MatchMode          string   `yaml:"match_mode"`
	MatchPatterns      []string `yaml:"match_patterns"`
	CompanyRegex       string   `yaml:"company_regex"`
	InvoiceNumberRegex string   `yaml:"invoice_number_regex"`
	DateRegex          string   `yaml:"date_regex"`
	OutputPathTemplate string   `yaml:"output_path_template"`
	FilenameTemplate   string   `yaml:"filename_template"`
}

type templatesFile struct {
	Templates []templateSpec `yaml:"templates"`
}

func (s templateSpec) toEntity() *entity.Template {
	enabled := true
	if s.Enabled != nil {
		enabled = *s.Enabled
	}
	mode, _ := constants.CanonicalizeMatchMode(s.MatchMode)
	if s.MatchMode == "" {
		mode = constants.MatchAll
	}
	return &entity.Template{
		Name:               s.Name,
		Enabled:            enabled,
		DocType:            s.DocType,
		DocFolder:          s.DocFolder,
		Tags:               entity.NewTagSet(s.Tags...),
		MatchMode:          mode,
		MatchPatterns:      entity.StringList(s.MatchPatterns),
		CompanyRegex:       s.CompanyRegex,
		InvoiceNumberRegex: s.InvoiceNumberRegex,
		DateRegex:          s.DateRegex,
		OutputPathTemplate: s.OutputPathTemplate,
		FilenameTemplate:   s.FilenameTemplate,
	}
}

// LoadTemplatesFile reads and validates a YAML templates file.
func LoadTemplatesFile(path string) ([]*entity.Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}
	return ParseTemplates(b)
}

// ParseTemplates validates YAML bytes against the templates schema and
// converts them to templates.
func ParseTemplates(b []byte) ([]*entity.Template, error) {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, common.NewAppError("VALIDATION_ERROR", "parse templates file", errors.Join(common.ErrValidation, err))
	}
	// round-trip through JSON so the validator sees JSON value types
	jb, err := json.Marshal(raw)
	if err != nil {
		return nil, common.NewAppError("VALIDATION_ERROR", "templates file is not JSON compatible", errors.Join(common.ErrValidation, err))
	}
	var generic any
	if err := json.Unmarshal(jb, &generic); err != nil {
		return nil, err
	}
	if err := validateAgainstSchema(templatesFileSchema(), generic); err != nil {
		return nil, common.NewAppError("VALIDATION_ERROR", "invalid templates file", errors.Join(common.ErrValidation, err))
	}

	var f templatesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, common.NewAppError("VALIDATION_ERROR", "decode templates file", errors.Join(common.ErrValidation, err))
	}
	out := make([]*entity.Template, 0, len(f.Templates))
	for _, s := range f.Templates {
		out = append(out, s.toEntity())
	}
	return out, nil
}

// DefaultInvoiceTemplate is inserted into an empty store when no templates
// file is configured.
func DefaultInvoiceTemplate() *entity.Template {
	return &entity.Template{
		Name:      "Default Invoice",
		Enabled:   true,
		DocType:   "Invoice",
		DocFolder: "Invoices",
		MatchMode: constants.MatchAny,
		MatchPatterns: entity.StringList{
			`\binvoice\b`,
			`\bfactu(?:ur|ra)\b`,
			`\brechnung\b`,
		},
		CompanyRegex:       `^(?:seller|vendor|company|from|leverancier)\s*[:\-]\s*(.+)$`,
		InvoiceNumberRegex: `(?:invoice|factu(?:ur|ra)|rekening)\s*(?:no|number|nr|nummer)?\.?\s*[:\-]?\s*([A-Z0-9\-\/]+)`,
		DateRegex:          `(?:date|datum)\s*[:\-]?\s*([0-9]{4}[-/][0-9]{1,2}[-/][0-9]{1,2}|[0-9]{1,2}[-/][0-9]{1,2}[-/][0-9]{2,4})`,
		OutputPathTemplate: entity.DefaultOutputPathTemplate,
		FilenameTemplate:   entity.DefaultFilenameTemplate,
	}
}

// Result summarizes one seeding run.
type Result struct {
	Created  []string
	Existing []string
}

type Seeder struct {
	templates repository.TemplateRepository
	appConfig repository.AppConfigRepository
	logger    *slog.Logger
}

func NewSeeder(templates repository.TemplateRepository, appConfig repository.AppConfigRepository, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{templates: templates, appConfig: appConfig, logger: logger}
}

// Run seeds the setting keys, then the templates from templatesFile when
// set. Without a file the default invoice template is added to an empty store.
// Existing templates are never modified.
func (s *Seeder) Run(ctx context.Context, templatesFile string) (Result, error) {
	var res Result
	if err := s.appConfig.SeedDefaults(ctx, common.OverrideKeys); err != nil {
		return res, fmt.Errorf("seed app config: %w", err)
	}

	var want []*entity.Template
	if templatesFile != "" {
		ts, err := LoadTemplatesFile(templatesFile)
		if err != nil {
			return res, err
		}
		want = ts
	} else {
		n, err := s.templates.Count(ctx)
		if err != nil {
			return res, err
		}
		if n > 0 {
			return res, nil
		}
		want = []*entity.Template{DefaultInvoiceTemplate()}
	}

	for _, t := range want {
		_, err := s.templates.GetByName(ctx, t.Name)
		switch {
		case err == nil:
			res.Existing = append(res.Existing, t.Name)
			continue
		case !errors.Is(err, common.ErrNotFound):
			return res, err
		}
		if _, err := s.templates.Create(ctx, t); err != nil {
			return res, fmt.Errorf("create template %q: %w", t.Name, err)
		}
		s.logger.Info("seeded template", "name", t.Name, "doc_folder", t.DocFolder)
		res.Created = append(res.Created, t.Name)
	}
	return res, nil
}
