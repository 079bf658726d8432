package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/async"
	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/entity"
	"github.com/joseph-ayodele/docrouter/internal/pipeline"
	"github.com/joseph-ayodele/docrouter/internal/repository"
	"github.com/joseph-ayodele/docrouter/internal/storage"
)

// Quarantine tags recorded on rejected files.
const (
	TagFailed    = "failed"
	TagUnmatched = "unmatched"
)

type ServiceConfig struct {
	IngestDir string
	FailedDir string
	// Settler delays processing until a file stops growing. Nil disables the wait.
	Settler *Settler
}

// Stats are the consumer's counters since start.
type Stats struct {
	Events           int64 `json:"events"`
	Duplicates       int64 `json:"duplicates"`
	Processed        int64 `json:"processed"`
	OK               int64 `json:"ok"`
	Skipped          int64 `json:"skipped"`
	Failed           int64 `json:"failed"`
	Quarantined      int64 `json:"quarantined"`
	QuarantineErrors int64 `json:"quarantine_errors"`
}

// Service consumes arrival events: it deduplicates them, waits for files
// to settle, hands them to the pipeline and quarantines rejects.
type Service struct {
	cfg    ServiceConfig
	submit Submitter
	mover  pipeline.Mover
	docs   repository.DocumentRepository
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}

	events, duplicates, processed atomic.Int64
	ok, skipped, failed           atomic.Int64
	quarantined, quarantineErrs   atomic.Int64
}

func NewService(cfg ServiceConfig, submit Submitter, mover pipeline.Mover, docs repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		submit: submit,
		mover:  mover,
		docs:   docs,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Run handles paths one at a time until events closes or ctx ends.
func (s *Service) Run(ctx context.Context, events <-chan string) error {
	s.logger.Info("ingest consumer started", "ingest_dir", s.cfg.IngestDir)
	defer s.logger.Info("ingest consumer stopped")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-events:
			if !ok {
				return nil
			}
			s.events.Add(1)
			s.Handle(ctx, path)
		}
	}
}

// Handle processes one arrival. It reports false when the path was
// ignored: already seen, not a regular file, or gone before it settled.
func (s *Service) Handle(ctx context.Context, path string) (IngestionResult, bool) {
	res := IngestionResult{SourcePath: path}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}

	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return res, false
	}
	if !s.markSeen(abs) {
		s.duplicates.Add(1)
		return res, false
	}

	logger := s.logger.With("path", abs)
	if s.cfg.Settler != nil {
		outcome, err := s.cfg.Settler.Wait(ctx, abs)
		if err != nil {
			return res, false
		}
		switch outcome {
		case Vanished:
			logger.Debug("file vanished before it settled")
			return res, false
		case Exhausted:
			logger.Warn("file still changing after settle budget; processing anyway")
		}
	}

	job, err := s.submit.Submit(ctx, abs, constants.SourceIngest)
	if err != nil && (errors.Is(err, async.ErrQueueClosed) || ctx.Err() != nil) {
		// shutting down: leave the file for the next start
		s.forget(abs)
		return res, false
	}
	s.processed.Add(1)
	if err != nil {
		logger.Error("processing failed", "error", err)
		res.Err = err.Error()
		job = &entity.Job{Source: constants.SourceIngest, InputPath: abs, Status: constants.JobStatusFailed, Message: err.Error()}
	}
	if job.ID != uuid.Nil {
		res.JobID = job.ID.String()
	}
	res.Status = job.Status
	res.Message = job.Message
	res.DestPath = job.DestPath

	switch job.Status {
	case constants.JobStatusOK:
		s.ok.Add(1)
		return res, true
	case constants.JobStatusSkipped:
		s.skipped.Add(1)
	default:
		s.failed.Add(1)
	}

	dest, err := s.Quarantine(ctx, abs, job)
	if err != nil {
		s.quarantineErrs.Add(1)
		logger.Error("quarantine failed; leaving file in place", "error", err)
		if res.Err == "" {
			res.Err = err.Error()
		}
		return res, true
	}
	s.quarantined.Add(1)
	res.Quarantined = dest
	return res, true
}

// Quarantine moves a rejected file to the failed tree, keeping its
// sub-folder under the drop directory, and records a failed-location
// Document. Errors are *common.QuarantineError.
func (s *Service) Quarantine(ctx context.Context, path string, job *entity.Job) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", &common.QuarantineError{Path: path, Cause: err}
	}
	destDir := s.cfg.FailedDir
	if sub := pipeline.IngestSubdir(s.cfg.IngestDir, path); sub != "" {
		destDir = filepath.Join(destDir, filepath.FromSlash(sub))
	}
	dest := filepath.Join(destDir, storage.SafeFilename(filepath.Base(path)))

	final, err := s.mover.Move(path, dest)
	if err != nil {
		return "", &common.QuarantineError{Path: path, Cause: err}
	}

	doc, err := pipeline.DocumentFor(s.cfg.FailedDir, final, constants.LocationFailed)
	if err != nil {
		s.logger.Warn("could not describe quarantined file", "dest", final, "error", err)
		return final, nil
	}
	tag := TagFailed
	status := constants.DocumentStatusFailed
	if job.Status == constants.JobStatusSkipped {
		tag = TagUnmatched
		status = constants.DocumentStatusSkipped
	}
	doc.Status = status
	doc.Tags = entity.NewTagSet(tag)
	doc.TemplateID = job.TemplateID
	if _, err := s.docs.Save(ctx, doc); err != nil {
		s.logger.Error("failed to record quarantined document", "dest", final, "error", err)
	}
	s.logger.Info("file quarantined", "dest", final, "status", job.Status)
	return final, nil
}

func (s *Service) markSeen(abs string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[abs]; ok {
		return false
	}
	s.seen[abs] = struct{}{}
	return true
}

func (s *Service) forget(abs string) {
	s.mu.Lock()
	delete(s.seen, abs)
	s.mu.Unlock()
}

func (s *Service) Stats() Stats {
	return Stats{
		Events:           s.events.Load(),
		Duplicates:       s.duplicates.Load(),
		Processed:        s.processed.Load(),
		OK:               s.ok.Load(),
		Skipped:          s.skipped.Load(),
		Failed:           s.failed.Load(),
		Quarantined:      s.quarantined.Load(),
		QuarantineErrors: s.quarantineErrs.Load(),
	}
}
