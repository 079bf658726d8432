package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/docrouter/internal/async"
	"github.com/joseph-ayodele/docrouter/internal/common"
	"github.com/joseph-ayodele/docrouter/internal/export"
	"github.com/joseph-ayodele/docrouter/internal/extract"
	"github.com/joseph-ayodele/docrouter/internal/httpapi"
	"github.com/joseph-ayodele/docrouter/internal/indexer"
	"github.com/joseph-ayodele/docrouter/internal/ingest"
	"github.com/joseph-ayodele/docrouter/internal/ocr"
	"github.com/joseph-ayodele/docrouter/internal/pipeline"
	repo "github.com/joseph-ayodele/docrouter/internal/repository"
	"github.com/joseph-ayodele/docrouter/internal/seed"
	"github.com/joseph-ayodele/docrouter/internal/server"
	"github.com/joseph-ayodele/docrouter/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "docrouterd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer server.CloseDB(db, logger)
	if err := server.PingDB(ctx, db, logger, 5*time.Second); err != nil {
		return err
	}

	templatesRepo := repo.NewTemplateRepository(db, logger)
	jobsRepo := repo.NewJobRepository(db, logger)
	docsRepo := repo.NewDocumentRepository(db, logger)
	appCfgRepo := repo.NewAppConfigRepository(db, logger)

	if _, err := seed.NewSeeder(templatesRepo, appCfgRepo, logger).Run(ctx, cfg.TemplatesFile); err != nil {
		return fmt.Errorf("seed: %w", err)
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
		Live: func() ocr.Tunables {
			c := holder.Current()
			return ocr.Tunables{TesseractLang: c.OCR.TesseractLang, MinTextChars: c.OCR.MinTextChars}
		},
	}, logger)
	relocator := storage.NewRelocator(logger)
	processor := pipeline.NewProcessor(templatesRepo, jobsRepo, docsRepo,
		extract.NewOCRAdapter(extractor, logger), relocator, holder, logger)

	queue := async.NewQueue(processor, logger,
		async.WithQueueSize(512),
		async.WithProcessTimeout(cfg.Ingest.ProcessTimeout),
	)

	ingestSvc := ingest.NewService(ingest.ServiceConfig{
		IngestDir: cfg.Paths.IngestDir,
		FailedDir: cfg.Paths.FailedDir,
		Settler:   ingest.NewSettler(cfg.Ingest.SettleInterval, cfg.Ingest.SettleAttempts),
	}, queue, relocator, docsRepo, logger)
	ix := indexer.New(docsRepo, holder, logger)

	grpcServer, healthServer := server.NewGRPCServer(
		server.NewIngestionService(queue, jobsRepo, cfg.Paths.TmpDir, logger), logger)
	api := httpapi.New(httpapi.Deps{
		DB:        db,
		Config:    holder,
		Reloader:  holder,
		Documents: docsRepo,
		Export:    export.NewService(docsRepo, jobsRepo, logger),
		Stats: func() map[string]any {
			return map[string]any{
				"ingest":  ingestSvc.Stats(),
				"indexer": ix.Stats(),
				"queue":   queue.Stats(),
			}
		},
		Logger: logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	events, watchErrs, err := ingest.StartWatcher(gctx, ingest.WatchConfig{
		Roots:       []string{cfg.Paths.IngestDir},
		InitialScan: cfg.Ingest.InitialScan,
		Logger:      logger,
	})
	if err != nil {
		_ = lis.Close()
		return fmt.Errorf("start watcher: %w", err)
	}

	g.Go(func() error {
		err := ingestSvc.Run(gctx, events)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		// already logged by the watcher
		for range watchErrs {
		}
		return nil
	})
	g.Go(func() error {
		ix.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		queue.Shutdown(shutdownCtx)
		return nil
	})

	logger.Info("docrouterd started",
		"ingest_dir", cfg.Paths.IngestDir,
		"library_dir", cfg.Paths.LibraryDir,
		"failed_dir", cfg.Paths.FailedDir,
	)
	return g.Wait()
}
