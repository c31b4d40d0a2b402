package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/attendance-ledger/internal/repository"
	"github.com/noah-isme/attendance-ledger/internal/service"
	"github.com/noah-isme/attendance-ledger/pkg/config"
	"github.com/noah-isme/attendance-ledger/pkg/database"
	"github.com/noah-isme/attendance-ledger/pkg/logger"
)

func main() {
	var (
		sourcesFlag string
		batchSize   int
		dryRun      bool
		parallel    bool
	)
	flag.StringVar(&sourcesFlag, "sources", "", "comma separated source types to migrate (default: all)")
	flag.IntVar(&batchSize, "batch-size", 0, "legacy rows loaded per batch (default from config)")
	flag.BoolVar(&dryRun, "dry-run", false, "report what would happen without writing")
	flag.BoolVar(&parallel, "parallel", false, "migrate sources concurrently")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logr.Sugar().Infow("metrics listener starting", "addr", addr)
			if err := http.ListenAndServe(addr, metrics.Handler()); err != nil {
				logr.Sugar().Warnw("metrics listener stopped", "error", err)
			}
		}()
	}

	store := repository.NewMigrationRepository(db)
	sources := []service.LegacySource{
		repository.NewSourceARepository(db),
		repository.NewSourceBRepository(db),
		repository.NewSourceCRepository(db),
	}
	engine := service.NewMigrationService(sources, store, service.DefaultStatusTable(), validator.New(), logr, metrics)

	if batchSize <= 0 {
		batchSize = cfg.Migration.BatchSize
	}
	opts := service.MigrateOptions{
		Sources:   splitSources(sourcesFlag),
		BatchSize: batchSize,
		DryRun:    dryRun,
		Parallel:  parallel || cfg.Migration.Parallel,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logr.Sugar().Infow("migration starting", "sources", opts.Sources, "batch_size", opts.BatchSize, "dry_run", opts.DryRun, "parallel", opts.Parallel)
	report, err := engine.Migrate(ctx, opts)
	if report != nil {
		for source, sr := range report.Sources {
			logr.Sugar().Infow("source report",
				"source", source,
				"total", sr.Total,
				"migrated", sr.Migrated,
				"skipped", sr.Skipped,
				"failures", len(sr.Failures),
			)
			for _, failure := range sr.Failures {
				logr.Sugar().Warnw("row failure", "source", source, "row_id", failure.RowID, "error", failure.Error)
			}
		}
	}
	if err != nil {
		logr.Sugar().Errorw("migration finished with errors", "error", err)
		os.Exit(1)
	}
	logr.Sugar().Infow("migration finished", "dry_run", dryRun)
}

func splitSources(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	sources := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			sources = append(sources, trimmed)
		}
	}
	return sources
}
