package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/entity"
)

// UpsertResult tells what UpsertStat did to the row.
type UpsertResult int

const (
	UpsertUnchanged UpsertResult = iota
	UpsertInserted
	UpsertUpdated
)

func (u UpsertResult) String() string {
	switch u {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// DocumentRepository keeps one row per (location, rel_path).
type DocumentRepository interface {
	// Save inserts d or replaces every field of the row with the same key,
	// keeping its id and created_at.
	Save(ctx context.Context, d *entity.Document) (*entity.Document, error)
	// UpsertStat inserts an indexed row for an unknown file, or refreshes
	// path and stat fields when size or mtime changed.
	UpsertStat(ctx context.Context, st entity.FileStat) (UpsertResult, error)
	GetByKey(ctx context.Context, loc constants.Location, relPath string) (*entity.Document, error)
	// List returns documents of loc ordered by rel_path; an empty loc lists all.
	List(ctx context.Context, loc constants.Location) ([]*entity.Document, error)
	Count(ctx context.Context) (int, error)
}

type documentRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

var documentColumns = []string{
	"id", "location", "abs_path", "rel_path", "filename", "ext", "status", "tags",
	"template_id", "ocr_text", "extracted_company", "extracted_invoice_number",
	"extracted_date", "size_bytes", "mtime", "created_at", "updated_at",
}

// replaced on conflict; id and created_at belong to the first insert
var documentMutableColumns = []string{
	"abs_path", "filename", "ext", "status", "tags", "template_id", "ocr_text",
	"extracted_company", "extracted_invoice_number", "extracted_date",
	"size_bytes", "mtime", "updated_at",
}

func (r *documentRepo) Save(ctx context.Context, d *entity.Document) (*entity.Document, error) {
	if d == nil || d.Location == "" || d.RelPath == "" {
		return nil, common.ErrInvalidInput
	}
	row := *d
	if row.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		row.ID = id
	}
	now := r.now()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	row.OCRText = entity.TruncateText(row.OCRText)

	q, args := r.db.builder().Insert(TableDocuments).
		Columns(documentColumns...).
		Values(
			row.ID.String(), string(row.Location), row.AbsPath, row.RelPath, row.Filename,
			row.Ext, string(row.Status), row.Tags, nullableID(row.TemplateID), row.OCRText,
			row.ExtractedCompany, row.ExtractedInvoiceNumber, row.ExtractedDate,
			row.SizeBytes, row.MTime, row.CreatedAt, row.UpdatedAt,
		).
		OnConflict(
			entsql.ConflictColumns("location", "rel_path"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				for _, c := range documentMutableColumns {
					u.SetExcluded(c)
				}
			}),
		).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("document save failed", "location", row.Location, "rel_path", row.RelPath, "error", err)
		return nil, dbError("save document", err)
	}

	stored, err := r.GetByKey(ctx, row.Location, row.RelPath)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("document saved", "document_id", stored.ID, "location", stored.Location, "rel_path", stored.RelPath, "status", stored.Status)
	return stored, nil
}

func (r *documentRepo) UpsertStat(ctx context.Context, st entity.FileStat) (UpsertResult, error) {
	if st.Location == "" || st.RelPath == "" {
		return UpsertUnchanged, common.ErrInvalidInput
	}
	id, err := uuid.NewV7()
	if err != nil {
		return UpsertUnchanged, err
	}
	now := r.now()
	b := r.db.builder()

	q, args := b.Insert(TableDocuments).
		Columns(documentColumns...).
		Values(
			id.String(), string(st.Location), st.AbsPath, st.RelPath, st.Filename,
			st.Ext, string(constants.DocumentStatusIndexed), entity.TagSet{}, nil, "",
			"", "", "", st.SizeBytes, st.MTime, now, now,
		).
		OnConflict(entsql.ConflictColumns("location", "rel_path"), entsql.DoNothing()).
		Query()
	res, err := r.db.exec(ctx, q, args)
	if err != nil {
		return UpsertUnchanged, dbError("index document", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return UpsertInserted, nil
	}

	q, args = b.Update(TableDocuments).
		Set("abs_path", st.AbsPath).
		Set("filename", st.Filename).
		Set("ext", st.Ext).
		Set("size_bytes", st.SizeBytes).
		Set("mtime", st.MTime).
		Set("updated_at", now).
		Where(entsql.And(
			entsql.EQ("location", string(st.Location)),
			entsql.EQ("rel_path", st.RelPath),
			entsql.Or(
				entsql.NEQ("size_bytes", st.SizeBytes),
				entsql.NEQ("mtime", st.MTime),
			),
		)).
		Query()
	res, err = r.db.exec(ctx, q, args)
	if err != nil {
		return UpsertUnchanged, dbError("refresh document", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return UpsertUpdated, nil
	}
	return UpsertUnchanged, nil
}

func (r *documentRepo) GetByKey(ctx context.Context, loc constants.Location, relPath string) (*entity.Document, error) {
	b := r.db.builder()
	q, args := b.Select(documentColumns...).
		From(b.Table(TableDocuments)).
		Where(entsql.And(
			entsql.EQ("location", string(loc)),
			entsql.EQ("rel_path", relPath),
		)).
		Limit(1).
		Query()
	out, err := r.list(ctx, q, args)
	if err != nil {
		return nil, dbError("get document", err)
	}
	if len(out) == 0 {
		return nil, common.ErrNotFound
	}
	return out[0], nil
}

func (r *documentRepo) List(ctx context.Context, loc constants.Location) ([]*entity.Document, error) {
	b := r.db.builder()
	sel := b.Select(documentColumns...).From(b.Table(TableDocuments))
	if loc != "" {
		sel = sel.Where(entsql.EQ("location", string(loc)))
	}
	q, args := sel.OrderBy(entsql.Asc("location"), entsql.Asc("rel_path")).Query()
	out, err := r.list(ctx, q, args)
	if err != nil {
		return nil, dbError("list documents", err)
	}
	return out, nil
}

func (r *documentRepo) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, TableDocuments)
}

func (r *documentRepo) list(ctx context.Context, q string, args []any) ([]*entity.Document, error) {
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		var (
			d                entity.Document
			tmpl             uuid.NullUUID
			location, status string
		)
		if err := rows.Scan(
			&d.ID, &location, &d.AbsPath, &d.RelPath, &d.Filename, &d.Ext, &status, &d.Tags,
			&tmpl, &d.OCRText, &d.ExtractedCompany, &d.ExtractedInvoiceNumber,
			&d.ExtractedDate, &d.SizeBytes, &d.MTime, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		d.Location = constants.Location(location)
		d.Status = constants.DocumentStatus(status)
		d.TemplateID = scanNullableID(tmpl)
		out = append(out, &d)
	}
	return out, rows.Err()
}
