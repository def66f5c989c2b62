package main

import (
	"context"
	"flag"
	"os"
	"time"

	detstore "pathfinder/internal/detection/store"
	"pathfinder/internal/digest"
	"pathfinder/internal/notify"
	"pathfinder/internal/notify/controlroom"
	"pathfinder/internal/platform/config"
	"pathfinder/internal/platform/logger"
	"pathfinder/internal/platform/postgres"
	"pathfinder/internal/report"
)

// main runs one digest and report pass and exits, intended for cron or a
// scheduled job. The web service handles ingestion; this binary only drains
// pending digests and renders the month-end report.
func main() {
	monthLabel := flag.String("month", "", "month label to report on, e.g. 2026-07 (default: previous month)")
	skipDigest := flag.Bool("skip-digest", false, "skip the digest pass")
	skipReport := flag.Bool("skip-report", false, "skip the report pass")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.New()

	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	detections := detstore.NewPostgresDetectionStore(db)

	if !*skipDigest {
		notifier := notify.NewControlRoomNotifier(controlroom.New(cfg.ControlRoom), cfg.ControlRoom, log)
		if err := digest.New(detections, notifier, log).Run(ctx); err != nil {
			log.Error("digest pass failed", "error", err)
			os.Exit(1)
		}
	}

	if !*skipReport {
		label := *monthLabel
		if label == "" {
			now := time.Now()
			first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
			label = first.AddDate(0, -1, 0).Format("2006-01")
		}
		result, err := report.NewBuilder(detections, cfg.ReportDir, log).Generate(ctx, label)
		if err != nil {
			log.Error("report pass failed", "error", err, "month", label)
			os.Exit(1)
		}
		log.Info("report pass complete",
			"month", result.MonthLabel,
			"records", result.RecordCount,
			"csv", result.CSVPath,
			"html", result.HTMLPath,
		)
	}

	log.Info("worker completed")
}
