package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/insightdelivered/electricity-bill-converter/internal/api"
	"github.com/insightdelivered/electricity-bill-converter/internal/config"
	"github.com/insightdelivered/electricity-bill-converter/internal/logging"
	"github.com/insightdelivered/electricity-bill-converter/internal/models"
	"github.com/insightdelivered/electricity-bill-converter/internal/publish"
	"github.com/insightdelivered/electricity-bill-converter/internal/service"
	"github.com/insightdelivered/electricity-bill-converter/internal/store"
	"github.com/insightdelivered/electricity-bill-converter/internal/writer"
)

const version = api.Version

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always happens.
func run() int {
	// CLI flags
	configFlag := flag.String("config", "./configs", "Directory holding config.yaml")
	outputFlag := flag.String("output", "", "Output file path; all bills go into this one file (defaults to one file per input)")
	formatFlag := flag.String("format", "csv", "Output format: csv or xlsx")
	headerFlag := flag.Bool("header", true, "Include summary metadata rows above the bill table")
	passwordFlag := flag.String("password", "", "Password for encrypted bill PDFs")
	saveFlag := flag.Bool("save", false, "Store parsed bills in the configured database")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API instead of converting files")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Electricity Bill PDF Converter
by Insight Delivered (QEA AutoLens)

Reads electricity bill PDFs and recovers the account number, amount,
billing period, units consumed and meter reading of each bill.

Usage:
  electricity-bill-converter [flags] <bill.pdf> [bill2.pdf ...]
  electricity-bill-converter -serve [-config dir]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Convert one bill to CSV (writes march.csv)
  electricity-bill-converter march.pdf

  # A year of bills in one workbook
  electricity-bill-converter -format=xlsx -output=2018.xlsx jan.pdf feb.pdf mar.pdf

  # Parse and store in the database from configs/config.yaml
  electricity-bill-converter -save -config=./configs march.pdf

  # Run the API
  electricity-bill-converter -serve
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("electricity-bill-converter v%s\n", version)
		return 0
	}

	if *helpFlag || (!*serveFlag && flag.NArg() == 0) {
		flag.Usage()
		return 0
	}

	format := strings.ToLower(*formatFlag)
	if format != "csv" && format != "xlsx" {
		fmt.Fprintf(os.Stderr, "Unknown format %q. Supported: csv, xlsx\n", *formatFlag)
		return 1
	}

	cfg, err := config.LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serveFlag {
		if err := serve(ctx, cfg, logger); err != nil {
			logger.Error("server failed", zap.Error(err))
			return 1
		}
		return 0
	}

	var svc *service.Service
	if *saveFlag {
		st, pub, err := openBackends(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer st.Close()
		defer pub.Close()
		svc = service.New(st, pub, cfg.Parser.Workers, logger)
	} else {
		svc = service.New(nil, nil, cfg.Parser.Workers, logger)
	}

	opts := convertOptions{
		output:   *outputFlag,
		format:   format,
		header:   *headerFlag,
		password: *passwordFlag,
		save:     *saveFlag,
	}
	if err := convert(ctx, svc, flag.Args(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type convertOptions struct {
	output   string
	format   string
	header   bool
	password string
	save     bool
}

// convert parses every input file, writes the results and optionally stores
// them. It fails if any file could not be parsed.
func convert(ctx context.Context, svc *service.Service, inputs []string, opts convertOptions) error {
	uploads := make([]service.Upload, 0, len(inputs))
	for _, path := range inputs {
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
			return fmt.Errorf("expected .pdf file, got %q", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("input file not readable: %w", err)
		}
		uploads = append(uploads, service.Upload{Filename: path, Data: data, Password: opts.password})
	}

	fmt.Printf("Processing %d file(s)\n", len(uploads))
	results := svc.ParseBatch(ctx, uploads)

	var (
		combined []models.Bill
		failed   int
	)
	for _, r := range results {
		fmt.Printf("%s:\n", r.Filename)
		if r.Err != nil {
			failed++
			fmt.Printf("  Failed: %v\n", r.Err)
			continue
		}
		b := r.Bill
		fmt.Printf("  Account number: %s\n", b.AccountNumber)
		fmt.Printf("  Bill date: %s (period %s to %s)\n", b.BillDate, b.BillDateRangeStart, b.BillDateRangeEnd)
		fmt.Printf("  Amount: $%s\n", b.BillAmount.StringFixed(2))
		fmt.Printf("  Units: %s kWh (%s per day)\n", b.TotalUnitsConsumed, b.UnitsPerDay.Round(models.UnitsPerDayPlaces))
		fmt.Printf("  Meter reading: %s", b.MeterReading)
		if b.IsEstimated {
			fmt.Print(" (estimated)")
		}
		fmt.Println()

		bill := models.Bill{ParsedBill: *b}
		if opts.save {
			saved, err := svc.SaveBill(ctx, *b, r.Filename)
			if err != nil {
				failed++
				fmt.Printf("  Not saved: %v\n", err)
			} else {
				bill = *saved
				fmt.Printf("  Saved as %s\n", saved.ID)
			}
		}

		if opts.output != "" {
			combined = append(combined, bill)
			continue
		}
		out := strings.TrimSuffix(r.Filename, filepath.Ext(r.Filename)) + "." + opts.format
		if err := write(out, opts, &writer.Export{Source: r.Filename, Bills: []models.Bill{bill}}); err != nil {
			return err
		}
		fmt.Printf("  Output: %s\n", out)
	}

	if opts.output != "" && len(combined) > 0 {
		if err := write(opts.output, opts, &writer.Export{Bills: combined}); err != nil {
			return err
		}
		fmt.Printf("Output: %s (%d bill(s))\n", opts.output, len(combined))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
	}
	fmt.Println("Done.")
	return nil
}

func write(path string, opts convertOptions, e *writer.Export) error {
	var err error
	if opts.format == "xlsx" {
		err = (&writer.XLSXWriter{IncludeHeader: opts.header}).WriteToFile(path, e)
	} else {
		err = (&writer.CSVWriter{IncludeHeader: opts.header}).WriteToFile(path, e)
	}
	if err != nil {
		return fmt.Errorf("%s write failed: %w", strings.ToUpper(opts.format), err)
	}
	return nil
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.Store, publish.Publisher, error) {
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return nil, nil, err
	}
	st.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	pub, err := publish.New(cfg.Kafka, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, pub, nil
}

// serve runs the API until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, pub, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	defer pub.Close()

	svc := service.New(st, pub, cfg.Parser.Workers, logger)
	app := api.NewApp(cfg.Server, api.NewHandler(svc, logger))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.Addr()))
		errCh <- app.Listen(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.IdleTimeout+5*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx, app); err != nil {
		logger.Error("Error during HTTP server shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
	return nil
}
