package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/async"
	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/ingest"
	"github.com/joseph-ayodele/docrouter/internal/repository"
	"github.com/joseph-ayodele/docrouter/internal/storage"
	"github.com/joseph-ayodele/docrouter/internal/utils"
)

const (
	defaultRecentJobs = 50
	maxRecentJobs     = 1000
)

type IngestionService struct {
	submit ingest.Submitter
	jobs   repository.JobRepository
	tmpDir string
	logger *slog.Logger
	now    func() time.Time
}

func NewIngestionService(submit ingest.Submitter, jobs repository.JobRepository, tmpDir string, logger *slog.Logger) *IngestionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionService{submit: submit, jobs: jobs, tmpDir: tmpDir, logger: logger, now: time.Now}
}

// Upload stores the bytes in a fresh folder under the temp root, keeping
// the client's file name, and processes them with source "upload". The name
// comes from the x-filename metadata.
func (s *IngestionService) Upload(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	name := uploadName(ctx)
	if name == "" {
		return nil, common.InvalidArgumentErrorf("%s metadata is required", FilenameMetadataKey)
	}
	if len(in.GetValue()) == 0 {
		return nil, common.InvalidArgumentError("file content is empty")
	}

	dir := filepath.Join(s.tmpDir, fmt.Sprintf("upload_%d", s.now().UnixNano()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("create upload dir failed", "dir", dir, "error", err)
		return nil, common.InternalError("storage unavailable")
	}
	path := filepath.Join(dir, storage.SafeFilename(name))
	if err := os.WriteFile(path, in.GetValue(), 0o644); err != nil {
		s.logger.Error("write upload failed", "path", path, "error", err)
		return nil, common.InternalError("write upload failed")
	}
	s.logger.Info("upload received", "path", path, "bytes", len(in.GetValue()))

	job, err := s.submit.Submit(ctx, path, constants.SourceUpload)
	// only succeeds once the file has been routed away
	_ = os.Remove(dir)
	if err != nil {
		s.logger.Error("upload processing failed", "path", path, "error", err)
		switch {
		case errors.Is(err, async.ErrQueueClosed):
			return nil, common.UnavailableError("shutting down")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, status.FromContextError(err).Err()
		}
		return nil, common.InternalErrorf("process upload: %v", err)
	}
	out, err := utils.ToPBJob(job)
	if err != nil {
		return nil, common.InternalErrorf("encode job: %v", err)
	}
	return out, nil
}

// RecentJobs lists the newest jobs; a non-positive count means 50.
func (s *IngestionService) RecentJobs(ctx context.Context, in *wrapperspb.Int32Value) (*structpb.ListValue, error) {
	limit := int(in.GetValue())
	if limit <= 0 {
		limit = defaultRecentJobs
	}
	if limit > maxRecentJobs {
		limit = maxRecentJobs
	}
	jobs, err := s.jobs.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("list jobs failed", "error", err)
		return nil, common.InternalError("list jobs failed")
	}
	out, err := utils.ToPBJobs(jobs)
	if err != nil {
		return nil, common.InternalErrorf("encode jobs: %v", err)
	}
	return out, nil
}

func uploadName(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(FilenameMetadataKey)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(filepath.Base(strings.ReplaceAll(vals[0], `\`, "/")))
}
