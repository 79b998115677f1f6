// Command fareboard-report prints the revenue and expense summary of one
// owner for a date range, optionally writing it as a PDF as well.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"fareboard/internal/backend"
	"fareboard/internal/cli"
	"fareboard/internal/config"
	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/records"
	"fareboard/internal/report"
)

type options struct {
	start       core.Date
	end         core.Date
	granularity core.Granularity
	owner       core.OwnerID
	pdfPath     string
}

func parseFlags(args []string, defaultOwner core.OwnerID, today core.Date) (options, error) {
	fs := flag.NewFlagSet("fareboard-report", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		start = fs.String("start", "", "first day, YYYY-MM-DD (default: first day of the end month)")
		end   = fs.String("end", "", "last day, YYYY-MM-DD (default: today)")
		gran  = fs.String("granularity", "trip", "revenue grouping: trip, weekly or monthly")
		owner = fs.String("owner", string(defaultOwner), "owner to report on")
		pdf   = fs.String("pdf", "", "also write the report to this PDF file")
	)
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{end: today, owner: core.OwnerID(*owner), pdfPath: *pdf}
	var err error
	if *end != "" {
		if opts.end, err = core.ParseDate(*end); err != nil {
			return options{}, fmt.Errorf("-end: %w", err)
		}
	}
	opts.start = core.NewDate(opts.end.Year(), int(opts.end.Month()), 1)
	if *start != "" {
		if opts.start, err = core.ParseDate(*start); err != nil {
			return options{}, fmt.Errorf("-start: %w", err)
		}
	}
	if opts.start.After(opts.end.Time) {
		return options{}, fmt.Errorf("-start %s is after -end %s", opts.start, opts.end)
	}
	if opts.granularity, err = core.ParseGranularity(*gran); err != nil {
		return options{}, fmt.Errorf("-granularity: %w", err)
	}
	if err := opts.owner.Validate(); err != nil {
		return options{}, fmt.Errorf("-owner: %w", err)
	}
	return opts, nil
}

// run builds the summary from reader and writes it to out, and to a PDF
// file when requested.
func run(ctx context.Context, reader records.Reader, opts options, out io.Writer, logger *log.Logger) error {
	svc := report.NewService(reader, logger)
	sum, err := svc.BuildSummary(ctx, opts.owner, opts.start, opts.end, opts.granularity)
	if err != nil {
		return err
	}
	if err := report.WriteText(out, sum); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if sum.Performance == nil {
		fmt.Fprintln(out, "No journeys in range.")
	}
	if opts.pdfPath == "" {
		return nil
	}

	f, err := os.Create(opts.pdfPath)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	if err := report.RenderPDF(f, sum); err != nil {
		f.Close()
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close pdf: %w", err)
	}
	logger.Info("PDF written", "path", opts.pdfPath)
	return nil
}

func main() {
	cli.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logCfg := log.DefaultConfig()
	logCfg.Output = os.Stderr
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logCfg.Level = lvl
	}
	logger := log.New(logCfg)

	opts, err := parseFlags(os.Args[1:], cfg.Owner(), core.Today())
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "fareboard-report:", err)
		os.Exit(2)
	}

	ctx := context.Background()
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).Create(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to open record store", log.FieldError, err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(ctx, store.Store, opts, os.Stdout, logger); err != nil {
		logger.Error("Report failed", log.FieldError, err)
		store.Close()
		os.Exit(1)
	}
}
