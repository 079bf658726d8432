package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/docrouter/internal/common"
	repo "github.com/joseph-ayodele/docrouter/internal/repository"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("database: postgres=%v", repo.IsPostgresDSN(cfg.Database.DSN))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        1,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, nil)
	if err != nil {
		log.Fatalf("opening DB: %v", err)
	}
	defer db.Close(nil)

	if err := db.HealthCheck(ctx, time.Second, nil); err != nil {
		log.Fatalf("DB health: FAIL (%v)", err)
	}
	log.Println("DB health: OK")

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	templates, err := repo.NewTemplateRepository(db, nil).ListEnabled(ctx)
	if err != nil {
		log.Fatalf("listing templates: %v", err)
	}
	log.Printf("enabled templates: %d", len(templates))
	for _, t := range templates {
		log.Printf("- %s -> %s (%s, %d patterns)", t.Name, t.DocFolder, t.MatchMode, len(t.MatchPatterns))
	}

	jobs, err := repo.NewJobRepository(db, nil).Count(ctx)
	if err != nil {
		log.Fatalf("counting jobs: %v", err)
	}
	docs, err := repo.NewDocumentRepository(db, nil).Count(ctx)
	if err != nil {
		log.Fatalf("counting documents: %v", err)
	}
	log.Printf("jobs: %d, documents: %d", jobs, docs)
}
