package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	"fareboard/internal/amqp"
	"fareboard/internal/cli"
	"fareboard/internal/config"
	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/sheets"
	gsheet "fareboard/internal/sheets/google"
	"fareboard/internal/sheets/memory"
	"fareboard/internal/worker"
)

func main() {
	var (
		backfill        = flag.String("backfill", "", "comma-separated owners whose stored records are copied before consuming")
		backfillOnly    = flag.Bool("backfill-only", false, "exit after the backfill instead of consuming events")
		writesPerMinute = flag.Int("writes-per-minute", 50, "spreadsheet write budget; 0 disables pacing")
		dryRun          = flag.Bool("dry-run", false, "mirror into memory instead of Google Sheets")
	)
	flag.Parse()

	checks := []func(*config.Config) error{}
	if !*dryRun {
		checks = append(checks, (*config.Config).ValidateMirror)
	}
	cfg, logger := cli.Bootstrap(checks...)
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting fareboard-mirror", "dry_run", *dryRun)

	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	defer func() {
		stop()
		<-done
	}()

	var mirror sheets.Mirror
	var dry *memory.Store
	if *dryRun {
		dry = memory.New()
		mirror = dry
		defer func() {
			logger.Info("Dry run finished", "journeys", len(dry.Journeys()), "expenses", len(dry.Expenses()))
		}()
	} else {
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			JourneysSheet:   cfg.GoogleJourneysSheet,
			ExpensesSheet:   cfg.GoogleExpensesSheet,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		mirror = client
	}
	if err := mirror.EnsureHeaders(ctx); err != nil {
		logger.Error("Failed to prepare spreadsheet headers", log.FieldError, err)
		os.Exit(1)
	}

	w := worker.NewMirrorWorker(mirror, *writesPerMinute, logger)

	if owners := parseOwners(*backfill); len(owners) > 0 {
		store := cli.OpenStore(ctx, logger, cfg)
		res, err := w.Backfill(ctx, store.Store, owners)
		_ = store.Close()
		if err != nil {
			logger.Error("Backfill failed", log.FieldError, err)
			os.Exit(1)
		}
		if res.Errors > 0 {
			logger.Warn("Backfill skipped rows", "errors", res.Errors)
		}
	}
	if *backfillOnly {
		return
	}

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required to consume record events")
		os.Exit(1)
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.ConsumeRecordEvents(ctx, w.HandleRecordEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Record event consumption failed", log.FieldError, err)
	}
}

func parseOwners(s string) []core.OwnerID {
	var owners []core.OwnerID
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			owners = append(owners, core.OwnerID(part))
		}
	}
	return owners
}
