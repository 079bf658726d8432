package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	TableTemplates = "templates"
	TableJobs      = "jobs"
	TableDocuments = "documents"
	TableAppConfig = "app_config"
)

// long text columns are unbounded on every backend
var textType = map[string]string{dialect.Postgres: "text", dialect.SQLite: "text"}

var (
	templatesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "name", Type: field.TypeString},
		{Name: "enabled", Type: field.TypeBool, Default: true},
		{Name: "doc_type", Type: field.TypeString, Default: ""},
		{Name: "doc_folder", Type: field.TypeString, Default: ""},
		{Name: "tags", Type: field.TypeString, SchemaType: textType},
		{Name: "match_mode", Type: field.TypeString, Default: "all"},
		{Name: "match_patterns", Type: field.TypeString, SchemaType: textType},
		{Name: "company_regex", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "invoice_number_regex", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "date_regex", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "output_path_template", Type: field.TypeString},
		{Name: "filename_template", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
	}
	TemplatesTable = &schema.Table{
		Name:       TableTemplates,
		Columns:    templatesColumns,
		PrimaryKey: []*schema.Column{templatesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "templates_name", Unique: true, Columns: []*schema.Column{templatesColumns[1]}},
			{Name: "templates_enabled_created_at", Columns: []*schema.Column{templatesColumns[2], templatesColumns[13]}},
		},
	}

	jobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "source", Type: field.TypeString},
		{Name: "input_path", Type: field.TypeString, SchemaType: textType},
		{Name: "original_name", Type: field.TypeString, SchemaType: textType},
		{Name: "status", Type: field.TypeString},
		{Name: "message", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "method", Type: field.TypeString, Default: ""},
		{Name: "template_id", Type: field.TypeString, Size: 36, Nullable: true},
		{Name: "doc_folder", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "dest_path", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "extracted_company", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "extracted_invoice_number", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "extracted_date", Type: field.TypeString, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
	}
	JobsTable = &schema.Table{
		Name:       TableJobs,
		Columns:    jobsColumns,
		PrimaryKey: []*schema.Column{jobsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "jobs_created_at", Columns: []*schema.Column{jobsColumns[13]}},
		},
	}

	documentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "location", Type: field.TypeString},
		{Name: "abs_path", Type: field.TypeString, SchemaType: textType},
		{Name: "rel_path", Type: field.TypeString, SchemaType: textType},
		{Name: "filename", Type: field.TypeString, SchemaType: textType},
		{Name: "ext", Type: field.TypeString, Default: ""},
		{Name: "status", Type: field.TypeString},
		{Name: "tags", Type: field.TypeString, SchemaType: textType},
		{Name: "template_id", Type: field.TypeString, Size: 36, Nullable: true},
		{Name: "ocr_text", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "extracted_company", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "extracted_invoice_number", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "extracted_date", Type: field.TypeString, Default: ""},
		{Name: "size_bytes", Type: field.TypeInt64, Default: 0},
		{Name: "mtime", Type: field.TypeInt64, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	DocumentsTable = &schema.Table{
		Name:       TableDocuments,
		Columns:    documentsColumns,
		PrimaryKey: []*schema.Column{documentsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "documents_location_rel_path", Unique: true, Columns: []*schema.Column{documentsColumns[1], documentsColumns[3]}},
		},
	}

	appConfigColumns = []*schema.Column{
		{Name: "key", Type: field.TypeString},
		{Name: "value", Type: field.TypeString, SchemaType: textType, Default: ""},
		{Name: "updated_at", Type: field.TypeTime},
	}
	AppConfigTable = &schema.Table{
		Name:       TableAppConfig,
		Columns:    appConfigColumns,
		PrimaryKey: []*schema.Column{appConfigColumns[0]},
	}

	// Tables holds every table of the store, in creation order.
	Tables = []*schema.Table{TemplatesTable, JobsTable, DocumentsTable, AppConfigTable}
)

// Migrate creates missing tables, columns and indexes.
func (d *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(d.Driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
