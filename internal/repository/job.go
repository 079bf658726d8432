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

// JobRepository stores processing attempts. Rows are never updated.
type JobRepository interface {
	Insert(ctx context.Context, j *entity.Job) (*entity.Job, error)
	// ListRecent returns up to limit jobs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*entity.Job, error)
	Count(ctx context.Context) (int, error)
}

type jobRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewJobRepository(db *DB, logger *slog.Logger) JobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobRepo{db: db, logger: logger}
}

var jobColumns = []string{
	"id", "source", "input_path", "original_name", "status", "message", "method",
	"template_id", "doc_folder", "dest_path", "extracted_company",
	"extracted_invoice_number", "extracted_date", "created_at",
}

func (r *jobRepo) Insert(ctx context.Context, j *entity.Job) (*entity.Job, error) {
	if j == nil {
		return nil, common.ErrInvalidInput
	}
	row := *j
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

	q, args := r.db.builder().Insert(TableJobs).
		Columns(jobColumns...).
		Values(
			row.ID.String(), string(row.Source), row.InputPath, row.OriginalName,
			string(row.Status), row.Message, row.Method, nullableID(row.TemplateID),
			row.DocFolder, row.DestPath, row.ExtractedCompany,
			row.ExtractedInvoiceNumber, row.ExtractedDate, row.CreatedAt,
		).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("job insert failed", "input_path", row.InputPath, "status", row.Status, "error", err)
		return nil, dbError("insert job", err)
	}
	r.logger.Debug("job recorded", "job_id", row.ID, "status", row.Status)
	return &row, nil
}

func (r *jobRepo) ListRecent(ctx context.Context, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	b := r.db.builder()
	q, args := b.Select(jobColumns...).
		From(b.Table(TableJobs)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(limit).
		Query()
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		return nil, dbError("list jobs", err)
	}
	defer rows.Close()

	var out []*entity.Job
	for rows.Next() {
		var (
			j                      entity.Job
			id                     uuid.UUID
			tmpl                   uuid.NullUUID
			source, status, method string
		)
		if err := rows.Scan(
			&id, &source, &j.InputPath, &j.OriginalName, &status, &j.Message, &method,
			&tmpl, &j.DocFolder, &j.DestPath, &j.ExtractedCompany,
			&j.ExtractedInvoiceNumber, &j.ExtractedDate, &j.CreatedAt,
		); err != nil {
			return nil, dbError("list jobs", err)
		}
		j.ID = id
		j.Source = constants.Source(source)
		j.Status = constants.JobStatus(status)
		j.Method = method
		j.TemplateID = scanNullableID(tmpl)
		out = append(out, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list jobs", err)
	}
	return out, nil
}

func (r *jobRepo) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, TableJobs)
}
