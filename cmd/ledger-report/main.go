package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/attendance-ledger/internal/repository"
	"github.com/noah-isme/attendance-ledger/internal/service"
	"github.com/noah-isme/attendance-ledger/pkg/config"
	"github.com/noah-isme/attendance-ledger/pkg/database"
	"github.com/noah-isme/attendance-ledger/pkg/export"
	"github.com/noah-isme/attendance-ledger/pkg/logger"
)

func main() {
	var (
		studentID  string
		classID    string
		activityID string
		month      int
		year       int
		outPath    string
	)
	flag.StringVar(&studentID, "student", "", "student id for a single bulletin (omit for a class consolidated table)")
	flag.StringVar(&classID, "class", "", "class id")
	flag.StringVar(&activityID, "activity", "", "activity id (optional, scopes the attendance policy)")
	flag.IntVar(&month, "month", 0, "report month (1-12)")
	flag.IntVar(&year, "year", 0, "report year")
	flag.StringVar(&outPath, "out", "", "output file (default: stdout)")
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

	svc := service.NewAggregationService(
		repository.NewLedgerRepository(db),
		repository.NewConfigRepository(db),
		cfg.Reports.DefaultMinimumPercentage,
		validator.New(),
		logr,
		nil,
	)

	ctx := context.Background()
	var dataset export.Dataset
	switch {
	case studentID != "":
		bulletin, err := svc.StudentBulletin(ctx, service.BulletinRequest{
			StudentID:  studentID,
			ClassID:    classID,
			ActivityID: activityID,
			Month:      month,
			Year:       year,
		})
		if err != nil {
			logr.Sugar().Fatalw("failed to build bulletin", "error", err)
		}
		dataset = svc.BulletinDataset(bulletin)
	case classID != "":
		table, err := svc.ClassConsolidated(ctx, service.ConsolidatedRequest{
			ClassID:    classID,
			ActivityID: activityID,
			Month:      month,
			Year:       year,
		})
		if err != nil {
			logr.Sugar().Fatalw("failed to build consolidated table", "error", err)
		}
		dataset = svc.ConsolidatedDataset(table)
	default:
		logr.Sugar().Fatalw("either -student or -class is required")
	}

	out := os.Stdout
	if outPath != "" {
		file, err := os.Create(outPath)
		if err != nil {
			logr.Sugar().Fatalw("failed to create output file", "path", outPath, "error", err)
		}
		defer file.Close()
		out = file
	}
	if err := export.NewCSVExporter().Write(out, dataset); err != nil {
		logr.Sugar().Fatalw("failed to write csv", "error", err)
	}
}
