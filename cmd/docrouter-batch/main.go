package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/export"
	"github.com/joseph-ayodele/docrouter/internal/extract"
	"github.com/joseph-ayodele/docrouter/internal/indexer"
	"github.com/joseph-ayodele/docrouter/internal/ingest"
	"github.com/joseph-ayodele/docrouter/internal/ocr"
	"github.com/joseph-ayodele/docrouter/internal/pipeline"
	repo "github.com/joseph-ayodele/docrouter/internal/repository"
	"github.com/joseph-ayodele/docrouter/internal/seed"
	"github.com/joseph-ayodele/docrouter/internal/server"
	"github.com/joseph-ayodele/docrouter/internal/storage"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// applyFlags makes --dir the ingest root for the whole run, so routed and
// quarantined files keep the same sub-folders.
func applyFlags(cfg *common.Config, inmem bool, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	cfg.Paths.IngestDir = abs
	if inmem {
		cfg.Database.DSN = ":memory:"
	}
	return nil
}

func main() {
	var (
		inmem = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir   = flag.String("dir", "", "directory whose files are routed once (required)")
		index = flag.Bool("index", false, "run one library index pass afterwards")
		out   = flag.String("export", "", "write a documents XLSX to this path")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if err := applyFlags(cfg, *inmem, *dir); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirs(); err != nil {
		logger.Error("failed to create directories", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer server.CloseDB(db, logger)

	templatesRepo := repo.NewTemplateRepository(db, logger)
	jobsRepo := repo.NewJobRepository(db, logger)
	docsRepo := repo.NewDocumentRepository(db, logger)
	appCfgRepo := repo.NewAppConfigRepository(db, logger)

	if _, err := seed.NewSeeder(templatesRepo, appCfgRepo, logger).Run(ctx, cfg.TemplatesFile); err != nil {
		logger.Error("failed to seed templates", "error", err)
		os.Exit(1)
	}
	holder := common.NewHolder(cfg, appCfgRepo.All, logger)
	if err := holder.Reload(ctx); err != nil {
		logger.Warn("using base configuration", "error", err)
	}

	extractor := ocr.NewExtractor(ocr.Config{
		TesseractLang: cfg.OCR.TesseractLang,
		MinTextChars:  cfg.OCR.MinTextChars,
		DPI:           cfg.OCR.DPI,
		HeicConverter: cfg.OCR.HeicConverter,
		TessdataDir:   cfg.OCR.TessdataDir,
	}, logger)
	relocator := storage.NewRelocator(logger)
	proc := pipeline.NewProcessor(templatesRepo, jobsRepo, docsRepo,
		extract.NewOCRAdapter(extractor, logger), relocator, holder, logger)

	svc := ingest.NewService(ingest.ServiceConfig{
		IngestDir: cfg.Paths.IngestDir,
		FailedDir: cfg.Paths.FailedDir,
	}, ingest.SubmitterFunc(proc.Process), relocator, docsRepo, logger)

	results, stats, err := svc.IngestDirectory(ctx, cfg.Paths.IngestDir)
	if err != nil {
		logger.Error("directory ingest failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	for _, r := range results {
		if r.Err != "" || r.Status != constants.JobStatusOK {
			logger.Warn("file not routed", "path", r.SourcePath, "status", r.Status, "message", r.Message, "quarantined", r.Quarantined, "error", r.Err)
		}
	}
	logger.Info("batch complete",
		"scanned", stats.Scanned,
		"ok", stats.OK,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)

	if *index {
		res, err := indexer.New(docsRepo, holder, logger).RunOnce(ctx)
		if err != nil {
			logger.Error("index pass failed", "error", err)
			os.Exit(1)
		}
		logger.Info("index pass complete", "scanned", res.Scanned, "inserted", res.Inserted, "updated", res.Updated)
	}

	if *out != "" {
		if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
			logger.Error("failed to create export directory", "error", err)
			os.Exit(1)
		}
		f, err := os.Create(*out)
		if err != nil {
			logger.Error("failed to create export file", "path", *out, "error", err)
			os.Exit(1)
		}
		n, err := export.NewService(docsRepo, jobsRepo, logger).WriteDocuments(ctx, f, "")
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			logger.Error("export failed", "path", *out, "error", err)
			os.Exit(1)
		}
		logger.Info("export written", "path", *out, "rows", n)
	}
}
