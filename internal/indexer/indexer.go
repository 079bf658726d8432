// Package indexer reconciles Document rows with the files present in the
// library and quarantine trees.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/pipeline"
	"github.com/joseph-ayodele/docrouter/internal/repository"
)

// DefaultFolderDepth bounds Folders when no depth is given.
const DefaultFolderDepth = 4

// PassResult counts what one sweep did.
type PassResult struct {
	Scanned   int `json:"scanned"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
}

// Stats are point-in-time counters.
type Stats struct {
	Passes        int64     `json:"passes"`
	SkippedPasses int64     `json:"skipped_passes"`
	FailedPasses  int64     `json:"failed_passes"`
	Inserted      int64     `json:"inserted"`
	Updated       int64     `json:"updated"`
	FileErrors    int64     `json:"file_errors"`
	LastPass      time.Time `json:"last_pass"`
}

type Indexer struct {
	docs   repository.DocumentRepository
	cfg    pipeline.ConfigSource
	logger *slog.Logger

	sleep func(context.Context, time.Duration) error

	passes, skipped, failedPasses atomic.Int64
	inserted, updated, fileErrs   atomic.Int64
	lastPass                      atomic.Int64
}

func New(docs repository.DocumentRepository, cfg pipeline.ConfigSource, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{docs: docs, cfg: cfg, logger: logger, sleep: sleepCtx}
}

// RunOnce sweeps both trees. Rows are inserted or refreshed, never deleted.
// Per-file failures are counted and logged; only ctx cancellation aborts.
func (ix *Indexer) RunOnce(ctx context.Context) (PassResult, error) {
	cfg := ix.cfg.Current()
	var res PassResult
	roots := []struct {
		loc  constants.Location
		root string
	}{
		{constants.LocationLibrary, cfg.Paths.LibraryDir},
		{constants.LocationFailed, cfg.Paths.FailedDir},
	}
	for _, r := range roots {
		if err := ix.sweep(ctx, r.loc, r.root, &res); err != nil {
			return res, err
		}
	}

	ix.inserted.Add(int64(res.Inserted))
	ix.updated.Add(int64(res.Updated))
	ix.fileErrs.Add(int64(res.Errors))
	ix.lastPass.Store(time.Now().UnixNano())
	ix.logger.Debug("index pass done",
		"scanned", res.Scanned, "inserted", res.Inserted, "updated", res.Updated, "errors", res.Errors)
	return res, nil
}

func (ix *Indexer) sweep(ctx context.Context, loc constants.Location, root string, res *PassResult) error {
	if root == "" {
		return nil
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create %s root: %w", loc, err)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			res.Errors++
			ix.logger.Warn("index walk error", "path", path, "error", walkErr)
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !constants.IsSupportedExt(filepath.Ext(path)) {
			return nil
		}
		res.Scanned++

		st, err := pipeline.FileStatFor(root, path, loc)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				res.Errors++
				ix.logger.Warn("index stat failed", "path", path, "error", err)
			}
			return nil
		}
		outcome, err := ix.docs.UpsertStat(ctx, st)
		if err != nil {
			res.Errors++
			ix.logger.Error("index upsert failed", "location", loc, "rel_path", st.RelPath, "error", err)
			return nil
		}
		switch outcome {
		case repository.UpsertInserted:
			res.Inserted++
		case repository.UpsertUpdated:
			res.Updated++
		default:
			res.Unchanged++
		}
		return nil
	})
}

// Run sweeps on the live scan interval until ctx ends. A failing or
// panicking pass never stops the loop.
func (ix *Indexer) Run(ctx context.Context) {
	ix.logger.Info("indexer started")
	defer ix.logger.Info("indexer stopped")
	for {
		cfg := ix.cfg.Current()
		if cfg.Scan.Enabled {
			ix.pass(ctx)
		} else {
			ix.skipped.Add(1)
			ix.logger.Debug("index pass skipped: scanning disabled")
		}
		if err := ix.sleep(ctx, cfg.ScanInterval()); err != nil {
			return
		}
	}
}

func (ix *Indexer) pass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			ix.failedPasses.Add(1)
			ix.logger.Error("index pass panicked", "panic", r)
		}
	}()
	ix.passes.Add(1)
	if _, err := ix.RunOnce(ctx); err != nil && ctx.Err() == nil {
		ix.failedPasses.Add(1)
		ix.logger.Error("index pass failed", "error", err)
	}
}

func (ix *Indexer) Stats() Stats {
	s := Stats{
		Passes:        ix.passes.Load(),
		SkippedPasses: ix.skipped.Load(),
		FailedPasses:  ix.failedPasses.Load(),
		Inserted:      ix.inserted.Load(),
		Updated:       ix.updated.Load(),
		FileErrors:    ix.fileErrs.Load(),
	}
	if ns := ix.lastPass.Load(); ns > 0 {
		s.LastPass = time.Unix(0, ns).UTC()
	}
	return s
}

// Folders lists the directories under root up to maxDepth levels deep as
// '/'-separated relative paths, shallower paths first, then
// case-insensitively by name. A missing root yields an empty list.
func Folders(root string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultFolderDepth
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return []string{}, nil
	}
	out := []string{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		depth := strings.Count(rel, "/") + 1
		if depth > maxDepth {
			return filepath.SkipDir
		}
		out = append(out, rel)
		if depth == maxDepth {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := strings.Count(out[i], "/"), strings.Count(out[j], "/")
		if di != dj {
			return di < dj
		}
		li, lj := strings.ToLower(out[i]), strings.ToLower(out[j])
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
