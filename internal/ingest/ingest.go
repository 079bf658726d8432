package ingest

import (
	"context"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/entity"
)

// Submitter runs a file through the routing pipeline. async.Queue and
// pipeline.Processor both satisfy it.
type Submitter interface {
	Submit(ctx context.Context, path string, source constants.Source) (*entity.Job, error)
}

// SubmitterFunc adapts a plain function to Submitter.
type SubmitterFunc func(ctx context.Context, path string, source constants.Source) (*entity.Job, error)

func (f SubmitterFunc) Submit(ctx context.Context, path string, source constants.Source) (*entity.Job, error) {
	return f(ctx, path, source)
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath  string
	JobID       string
	Status      constants.JobStatus
	Message     string
	DestPath    string
	Quarantined string
	Err         string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned uint32
	OK      uint32
	Skipped uint32
	Failed  uint32
}
