package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/engine"
	"github.com/IshaanNene/NewsHarvest/internal/fetcher"
	"github.com/IshaanNene/NewsHarvest/internal/observability"
	"github.com/IshaanNene/NewsHarvest/internal/pipeline"
	"github.com/IshaanNene/NewsHarvest/internal/report"
	"github.com/IshaanNene/NewsHarvest/internal/source"
	"github.com/IshaanNene/NewsHarvest/internal/storage"
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

var (
	outputDir  string
	outputType string
	noBrowser  bool
	logLevel   string
	reportPath string
)

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run every enabled source and write the records",
		Long: `Run the government, news, search and social sources in order and write
one output file. Ctrl-C stops the run early; records gathered so far are
still written.`,
		Args: cobra.NoArgs,
		RunE: runCrawl,
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "output format: csv, json, jsonl")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "never start the headless browser")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&reportPath, "report", "", "write a Markdown run summary to this file")

	return cmd
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	applyCLIOverrides(cfg)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	runID := uuid.NewString()
	logger := setupLogger(cfg.Logging).With("run_id", runID)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		srv, err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		if err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		} else {
			defer srv.Shutdown(context.Background())
		}
	}

	pacer := fetcher.NewPacer()
	pacer.SetMetrics(metrics)

	httpClient, err := fetcher.NewHTTPClient(cfg, logger, fetcher.WithPacer(pacer), fetcher.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer httpClient.Close()

	eng, err := engine.New(cfg, logger, httpClient)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	eng.SetPacer(pacer)
	eng.SetMetrics(metrics)
	eng.SetPipeline(pipeline.Default(cfg, eng.Window(), logger))
	if cfg.Browser.Enabled {
		eng.SetRenderer(fetcher.NewBrowserClient(cfg, logger,
			fetcher.WithBrowserPacer(pacer),
			fetcher.WithBrowserMetrics(metrics),
		))
	}

	registry, err := source.DefaultRegistry(cfg)
	if err != nil {
		return fmt.Errorf("build sources: %w", err)
	}

	logger.Info("starting crawl",
		"keywords", len(cfg.Crawl.Keywords),
		"window", cfg.Crawl.Window.Start+".."+cfg.Crawl.Window.End,
		"sources", registry.Len(),
		"browser", cfg.Browser.Enabled,
		"format", cfg.Output.Format,
	)

	start := time.Now()
	records, runErr := eng.Run(ctx, registry.All())
	interrupted := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	if runErr != nil && !interrupted {
		return fmt.Errorf("crawl: %w", runErr)
	}

	outPath := storage.OutputPath(cfg.Output.Dir, cfg.Output.File, cfg.Output.Format)
	if err := writeRecords(cfg, outPath, records, logger); err != nil {
		return err
	}

	summary := report.Summary{
		RunID:       runID,
		Window:      cfg.Crawl.Window,
		Started:     start,
		Duration:    time.Since(start),
		OutputPath:  outPath,
		Degraded:    eng.Degraded(),
		Interrupted: interrupted,
		BySource:    eng.Stats().BySource(),
		Records:     records,
	}
	if cfg.Output.Report != "" {
		if err := writeReport(cfg.Output.Report, summary); err != nil {
			logger.Error("report not written", "path", cfg.Output.Report, "error", err)
		}
	}

	printSummary(summary, eng.Stats().Snapshot())
	return nil
}

func writeRecords(cfg *config.Config, path string, records []types.NewsRecord, logger *slog.Logger) error {
	store, err := storage.NewFileStorage(cfg.Output.Format, path, cfg.Output.Header, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	if err := store.Store(records); err != nil {
		store.Close()
		return fmt.Errorf("store records: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}

func writeReport(path string, s report.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteMarkdown(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(s report.Summary, stats map[string]any) {
	status := "complete"
	if s.Interrupted {
		status = "interrupted (partial results)"
	}
	fmt.Printf("\n✅ Crawl %s in %s\n", status, s.Duration.Round(time.Millisecond))
	fmt.Printf("   Window:     %s .. %s\n", s.Window.Start, s.Window.End)
	fmt.Printf("   Candidates: %v seen, %v filtered, %v duplicate, %v fetch failed\n",
		stats["candidates"], stats["filtered"], stats["duplicates"], stats["fetch_failed"])
	fmt.Printf("   Records:    %d\n", len(s.Records))
	for _, d := range s.Distribution() {
		fmt.Printf("     %-16s %d\n", d.Source, d.Count)
	}
	fmt.Printf("   Output:     %s\n", s.OutputPath)
	if s.Degraded {
		fmt.Println("\n💡 No browser was available; rendered sources were fetched over plain HTTP.")
		fmt.Println("   Install Chromium or set browser.bin to improve search results.")
	}
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if outputType != "" {
		cfg.Output.Format = strings.ToLower(outputType)
	}
	if noBrowser {
		cfg.Browser.Enabled = false
	}
	if logLevel != "" {
		cfg.Logging.Level = strings.ToLower(logLevel)
	}
	if reportPath != "" {
		cfg.Output.Report = reportPath
	}
}
