package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/entity"
	"github.com/joseph-ayodele/docrouter/internal/extract"
	"github.com/joseph-ayodele/docrouter/internal/repository"
	"github.com/joseph-ayodele/docrouter/internal/storage"
	"github.com/joseph-ayodele/docrouter/internal/templating"
)

// Mover relocates a file without overwriting, returning the final path.
type Mover interface {
	Move(src, dest string) (string, error)
}

// ConfigSource hands out the current configuration snapshot.
type ConfigSource interface {
	Current() *common.Config
}

// Processor routes a single file: extract text, match a template, extract
// fields, move the file into the library, and record the outcome.
type Processor struct {
	Templates repository.TemplateRepository
	Jobs      repository.JobRepository
	Documents repository.DocumentRepository
	Extractor extract.TextExtractor
	Mover     Mover
	Config    ConfigSource
	Logger    *slog.Logger
}

func NewProcessor(
	templates repository.TemplateRepository,
	jobs repository.JobRepository,
	docs repository.DocumentRepository,
	tx extract.TextExtractor,
	mover Mover,
	cfg ConfigSource,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Templates: templates,
		Jobs:      jobs,
		Documents: docs,
		Extractor: tx,
		Mover:     mover,
		Config:    cfg,
		Logger:    logger,
	}
}

// Process runs the pipeline for path and persists exactly one Job row.
// The returned error is non-nil only when that row could not be written;
// pipeline failures, panics included, are reported through the job status.
func (p *Processor) Process(ctx context.Context, path string, source constants.Source) (saved *entity.Job, err error) {
	name := filepath.Base(path)
	job := &entity.Job{
		Source:       source,
		InputPath:    path,
		OriginalName: name,
		Status:       constants.JobStatusFailed,
	}
	ext := constants.NormalizeExt(filepath.Ext(name))
	logger := p.Logger.With("path", path, "source", source)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("processing panicked", "panic", r)
			job.Status = constants.JobStatusFailed
			job.Message = fmt.Sprint("panic: ", r)
			job.DestPath = ""
			saved, err = p.record(ctx, logger, job)
		}
	}()

	if !constants.IsSupportedExt(ext) {
		job.Status = constants.JobStatusSkipped
		job.Message = fmt.Sprintf("%v: %q", common.ErrUnsupportedType, filepath.Ext(name))
		return p.record(ctx, logger, job)
	}

	res, err := p.Extractor.Extract(ctx, path)
	if err != nil {
		job.Message = err.Error()
		return p.record(ctx, logger, job)
	}
	job.Method = res.Method

	if err := p.route(ctx, logger, job, path, ext, source, res); err != nil {
		if errors.Is(err, common.ErrNoTemplateMatch) {
			job.Status = constants.JobStatusSkipped
		} else {
			job.Status = constants.JobStatusFailed
		}
		job.Message = err.Error()
	}
	return p.record(ctx, logger, job)
}

// route fills job on success. The file is untouched unless it returns nil.
func (p *Processor) route(
	ctx context.Context,
	logger *slog.Logger,
	job *entity.Job,
	path, ext string,
	source constants.Source,
	res extract.TextExtractionResult,
) error {
	cfg := p.Config.Current()

	templates, err := p.Templates.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	tmpl, score, ok := templating.Match(templates, res.Text)
	if !ok {
		return fmt.Errorf("%w (method=%s)", common.ErrNoTemplateMatch, res.Method)
	}
	logger.Debug("template matched", "template_id", tmpl.ID, "template", tmpl.Name, "score", score)

	fields := templating.ExtractFields(tmpl, res.Text, cfg.DayFirst())
	stem := strings.TrimSuffix(job.OriginalName, filepath.Ext(job.OriginalName))
	folder, name := templating.FormatPath(tmpl, fields, stem, ext)
	if source == constants.SourceIngest {
		if sub := IngestSubdir(cfg.Paths.IngestDir, path); sub != "" {
			folder = folder + "/" + sub
		}
	}

	dest := filepath.Join(cfg.Paths.LibraryDir, filepath.FromSlash(folder), name+"."+ext)
	final, err := p.Mover.Move(path, dest)
	if err != nil {
		return err
	}

	job.Status = constants.JobStatusOK
	job.Message = fmt.Sprintf("processed via template %q (method=%s)", tmpl.Name, res.Method)
	id := tmpl.ID
	job.TemplateID = &id
	job.DocFolder = fields.DocFolder
	job.DestPath = final
	job.ExtractedCompany = fields.Company
	job.ExtractedInvoiceNumber = fields.InvoiceNumber
	job.ExtractedDate = fields.ISODate()

	p.saveDocument(ctx, logger, cfg.Paths.LibraryDir, final, job, templating.DocumentTags(tmpl, fields.Company), res.Text)
	return nil
}

// saveDocument records the routed file. The move already happened, so a
// failure here is logged and left for the indexer to reconcile.
func (p *Processor) saveDocument(ctx context.Context, logger *slog.Logger, root, final string, job *entity.Job, tags entity.TagSet, text string) {
	doc, err := DocumentFor(root, final, constants.LocationLibrary)
	if err != nil {
		logger.Warn("could not describe routed file", "dest", final, "error", err)
		return
	}
	doc.Status = constants.DocumentStatusOK
	doc.Tags = tags
	doc.TemplateID = job.TemplateID
	doc.OCRText = text
	doc.ExtractedCompany = job.ExtractedCompany
	doc.ExtractedInvoiceNumber = job.ExtractedInvoiceNumber
	doc.ExtractedDate = job.ExtractedDate
	if _, err := p.Documents.Save(ctx, doc); err != nil {
		logger.Error("failed to save document", "dest", final, "error", err)
	}
}

func (p *Processor) record(ctx context.Context, logger *slog.Logger, job *entity.Job) (*entity.Job, error) {
	saved, err := p.Jobs.Insert(ctx, job)
	if err != nil {
		logger.Error("failed to record job", "status", job.Status, "error", err)
		return job, fmt.Errorf("record job: %w", err)
	}
	switch saved.Status {
	case constants.JobStatusOK:
		logger.Info("file routed", "job_id", saved.ID, "dest", saved.DestPath, "method", saved.Method)
	case constants.JobStatusSkipped:
		logger.Info("file skipped", "job_id", saved.ID, "message", saved.Message)
	default:
		logger.Warn("file processing failed", "job_id", saved.ID, "message", saved.Message)
	}
	return saved, nil
}

// IngestSubdir returns the '/'-separated parent folder of path relative to
// root, or "" when path sits directly in root or outside it.
func IngestSubdir(root, path string) string {
	if root == "" {
		return ""
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(absRoot, filepath.Dir(absPath))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return storage.SafeRelPath(filepath.ToSlash(rel))
}

// DocumentFor stats path and fills the identity and stat fields of a
// Document located under root.
func DocumentFor(root, path string, loc constants.Location) (*entity.Document, error) {
	st, err := FileStatFor(root, path, loc)
	if err != nil {
		return nil, err
	}
	return &entity.Document{
		Location:  st.Location,
		AbsPath:   st.AbsPath,
		RelPath:   st.RelPath,
		Filename:  st.Filename,
		Ext:       st.Ext,
		SizeBytes: st.SizeBytes,
		MTime:     st.MTime,
	}, nil
}

// FileStatFor builds the indexer's view of path under root.
func FileStatFor(root, path string, loc constants.Location) (entity.FileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return entity.FileStat{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return entity.FileStat{}, err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return entity.FileStat{}, err
	}
	rel, err := filepath.Rel(absRoot, abs)
	if err != nil {
		return entity.FileStat{}, err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return entity.FileStat{}, fmt.Errorf("%s is outside %s", path, root)
	}
	return entity.FileStat{
		Location:  loc,
		AbsPath:   abs,
		RelPath:   filepath.ToSlash(rel),
		Filename:  info.Name(),
		Ext:       constants.NormalizeExt(filepath.Ext(info.Name())),
		SizeBytes: info.Size(),
		MTime:     info.ModTime().UnixNano(),
	}, nil
}
