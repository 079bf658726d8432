package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/entity"
)

type TemplateRepository interface {
	// ListEnabled returns enabled templates ordered by creation time, then id.
	ListEnabled(ctx context.Context) ([]*entity.Template, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Template, error)
	GetByName(ctx context.Context, name string) (*entity.Template, error)
	Create(ctx context.Context, t *entity.Template) (*entity.Template, error)
	Count(ctx context.Context) (int, error)
}

type templateRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewTemplateRepository(db *DB, logger *slog.Logger) TemplateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &templateRepo{db: db, logger: logger}
}

var templateColumns = []string{
	"id", "name", "enabled", "doc_type", "doc_folder", "tags", "match_mode",
	"match_patterns", "company_regex", "invoice_number_regex", "date_regex",
	"output_path_template", "filename_template", "created_at",
}

func (r *templateRepo) ListEnabled(ctx context.Context) ([]*entity.Template, error) {
	b := r.db.builder()
	q, args := b.Select(templateColumns...).
		From(b.Table(TableTemplates)).
		Where(entsql.EQ("enabled", true)).
		OrderBy(entsql.Asc("created_at"), entsql.Asc("id")).
		Query()
	out, err := r.list(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list enabled templates", "error", err)
		return nil, dbError("list templates", err)
	}
	return out, nil
}

func (r *templateRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Template, error) {
	return r.getBy(ctx, "id", id.String())
}

func (r *templateRepo) GetByName(ctx context.Context, name string) (*entity.Template, error) {
	return r.getBy(ctx, "name", name)
}

func (r *templateRepo) getBy(ctx context.Context, col string, v any) (*entity.Template, error) {
	b := r.db.builder()
	q, args := b.Select(templateColumns...).
		From(b.Table(TableTemplates)).
		Where(entsql.EQ(col, v)).
		Limit(1).
		Query()
	out, err := r.list(ctx, q, args)
	if err != nil {
		return nil, dbError("get template", err)
	}
	if len(out) == 0 {
		return nil, common.ErrNotFound
	}
	return out[0], nil
}

// Create inserts t after applying defaults. A zero id is replaced with a
// fresh UUIDv7.
func (r *templateRepo) Create(ctx context.Context, t *entity.Template) (*entity.Template, error) {
	if t == nil {
		return nil, common.ErrInvalidInput
	}
	row := *t
	row.ApplyDefaults()
	v := common.NewValidator().
		Field("name", row.Name, common.Required, common.MaxLength(200))
	mode, ok := constants.CanonicalizeMatchMode(string(row.MatchMode))
	if !ok {
		v.Field("match_mode", string(row.MatchMode), common.OneOf(constants.MatchModesAsStringSlice()...))
	}
	if err := v.Error(); err != nil {
		return nil, common.NewAppError("VALIDATION_ERROR", "invalid template", err)
	}
	row.MatchMode = mode
	if row.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		row.ID = id
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	q, args := r.db.builder().Insert(TableTemplates).
		Columns(templateColumns...).
		Values(
			row.ID.String(), row.Name, row.Enabled, row.DocType, row.DocFolder, row.Tags,
			string(row.MatchMode), row.MatchPatterns, row.CompanyRegex, row.InvoiceNumberRegex,
			row.DateRegex, row.OutputPathTemplate, row.FilenameTemplate, row.CreatedAt,
		).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create template", "name", row.Name, "error", err)
		return nil, dbError("create template", err)
	}
	r.logger.Info("template created", "template_id", row.ID, "name", row.Name)
	return &row, nil
}

func (r *templateRepo) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, TableTemplates)
}

func (r *templateRepo) list(ctx context.Context, q string, args []any) ([]*entity.Template, error) {
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Template
	for rows.Next() {
		var (
			t    entity.Template
			id   string
			mode string
		)
		if err := rows.Scan(
			&id, &t.Name, &t.Enabled, &t.DocType, &t.DocFolder, &t.Tags, &mode,
			&t.MatchPatterns, &t.CompanyRegex, &t.InvoiceNumberRegex, &t.DateRegex,
			&t.OutputPathTemplate, &t.FilenameTemplate, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, errors.Join(common.ErrDatabase, err)
		}
		t.ID = parsed
		t.MatchMode = constants.MatchMode(mode)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func count(ctx context.Context, db *DB, table string) (int, error) {
	b := db.builder()
	q, args := b.Select(entsql.Count("*")).From(b.Table(table)).Query()
	rows, err := db.query(ctx, q, args)
	if err != nil {
		return 0, dbError("count "+table, err)
	}
	defer rows.Close()
	n := 0
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, dbError("count "+table, err)
		}
	}
	return n, rows.Err()
}

func nullableID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func scanNullableID(v uuid.NullUUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := v.UUID
	return &id
}
