package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/notify"
	"github.com/aluiziolira/go-price-tracker/parser"
	"github.com/aluiziolira/go-price-tracker/pipeline"
	"github.com/aluiziolira/go-price-tracker/pricing"
	"github.com/aluiziolira/go-price-tracker/scraper"
	"github.com/aluiziolira/go-price-tracker/store"
	"github.com/aluiziolira/go-price-tracker/tracker"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	defaultCfg := config.DefaultConfig()
	parallelDefault := defaultCfg.Parallelism
	if value, ok, err := config.EnvInt("SCRAPER_PARALLEL"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PARALLEL: %v\n", err)
		os.Exit(1)
	} else if ok {
		parallelDefault = value
	}
	thresholdDefault := defaultCfg.NotifyThreshold
	if value, ok, err := config.EnvInt("TRACKER_THRESHOLD"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid TRACKER_THRESHOLD: %v\n", err)
		os.Exit(1)
	} else if ok {
		thresholdDefault = value
	}
	timeoutDefault := defaultCfg.Timeout
	if value, ok, err := config.EnvDuration("SCRAPER_TIMEOUT"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_TIMEOUT: %v\n", err)
		os.Exit(1)
	} else if ok {
		timeoutDefault = value
	}
	robotsDefault := defaultCfg.RespectRobotsTxt
	if value, ok, err := config.EnvBool("SCRAPER_RESPECT_ROBOTS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_RESPECT_ROBOTS: %v\n", err)
		os.Exit(1)
	} else if ok {
		robotsDefault = value
	}
	outputDefault := envOr("SCRAPER_OUTPUT", defaultCfg.OutputFile)
	formatDefault := envOr("SCRAPER_FORMAT", defaultCfg.OutputFormat)
	metricsDefault := envOr("SCRAPER_METRICS_ADDR", defaultCfg.MetricsAddr)
	userAgentDefault := envOr("SCRAPER_USER_AGENT", defaultCfg.UserAgent)
	dbDefault := envOr("TRACKER_DB", defaultCfg.DatabasePath)
	pricingDefault := envOr("TRACKER_PRICING_FILE", defaultCfg.PricingFile)
	currencyDefault := envOr("TRACKER_DEFAULT_CURRENCY", defaultCfg.DefaultCurrency)

	parallelism := flag.Int("parallel", parallelDefault, "Number of concurrent requests")
	delayMs := flag.Int("delay", int(defaultCfg.Delay/time.Millisecond), "Delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", int(defaultCfg.RandomDelay/time.Millisecond), "Random jitter added to delay (milliseconds)")
	timeout := flag.Duration("timeout", timeoutDefault, "Request timeout")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per URL")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	respectRobots := flag.Bool("respect-robots", robotsDefault, "Respect robots.txt directives")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", formatDefault, "Output format: csv, json, dual, or none")
	userAgent := flag.String("user-agent", userAgentDefault, "User-Agent header sent with requests")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	urlsFile := flag.String("urls-file", "", "File with one product URL per line")
	dbPath := flag.String("db", dbDefault, "SQLite database for price history and notifications")
	pricingFile := flag.String("pricing", pricingDefault, "YAML file overriding the pricing rules")
	threshold := flag.Int("threshold", thresholdDefault, "Discount percentage that triggers a notification")
	currency := flag.String("currency", currencyDefault, "Currency symbol used when a page shows none")
	subscribe := flag.String("subscribe", "", "Email to subscribe to every scraped product (requires -db)")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] URL...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	urls, err := collectURLs(flag.Args(), *urlsFile)
	if err != nil {
		slog.Error("reading product urls", slog.Any("error", err))
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	cfg.URLs = urls
	cfg.Parallelism = *parallelism
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
	cfg.Timeout = *timeout
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.RespectRobotsTxt = *respectRobots
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.UserAgent = *userAgent
	cfg.Verbose = *verbose
	cfg.MetricsAddr = *metricsAddr
	cfg.DatabasePath = *dbPath
	cfg.PricingFile = *pricingFile
	cfg.NotifyThreshold = *threshold
	cfg.DefaultCurrency = *currency
	cfg.Subscribe = strings.TrimSpace(*subscribe)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	rules := pricing.DefaultRules()
	if cfg.PricingFile != "" {
		loaded, err := pricing.LoadRules(cfg.PricingFile)
		if err != nil {
			return err
		}
		rules = loaded
	}
	engine, err := pricing.NewEngine(rules)
	if err != nil {
		return err
	}
	extractor := parser.NewExtractor(engine)
	extractor.Defaults.Currency = cfg.DefaultCurrency

	slog.Info("starting scrape",
		slog.Int("urls", len(cfg.URLs)),
		slog.Int("workers", cfg.Parallelism),
		slog.String("exchange", fmt.Sprintf("%s->%s@%s", rules.SourceCurrency, rules.TargetCurrency, rules.ExchangeRate)),
		slog.Bool("tracking", cfg.DatabasePath != ""),
	)

	s, err := scraper.NewScraper(cfg, extractor)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	writer := pipeline.NewMultiWriter()
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	fileWriter, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	writer.Add(fileWriter)

	var (
		db       *store.SQLite
		track    *tracker.Tracker
		trackOut *tracker.Writer
	)
	if cfg.DatabasePath != "" {
		db, err = store.Open(ctx, cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()

		classifier := notify.Classifier{ThresholdPercent: cfg.NotifyThreshold}
		track = tracker.New(db, notify.LogDispatcher{Logger: slog.Default()}, classifier)
		trackOut = tracker.NewWriter(context.WithoutCancel(ctx), track)
		writer.Add(trackOut)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := s.Run(ctx, p)
	if err != nil {
		p.Close()
		return fmt.Errorf("scraping failed: %w", err)
	}

	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown failed: %w", err)
	}

	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	if cfg.Subscribe != "" {
		subscribeAll(context.WithoutCancel(ctx), track, cfg.URLs, cfg.Subscribe)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	metrics := p.GetMetrics()
	duration := time.Since(startTime)
	totalItems := int64(0)
	if processed, ok := metrics["processed_products"].(int64); ok {
		totalItems = processed
	}
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(totalItems) / duration.Seconds()
	}

	printSummary(result, duration, itemsPerSec, cfg, metrics, trackOut)
	return nil
}

func collectURLs(args []string, urlsFile string) ([]string, error) {
	urls := append([]string(nil), args...)
	if urlsFile == "" {
		return urls, nil
	}
	f, err := os.Open(urlsFile)
	if err != nil {
		return nil, fmt.Errorf("open urls file: %w", err)
	}
	defer f.Close()

	fromFile, err := config.ReadURLs(f)
	if err != nil {
		return nil, err
	}
	return append(urls, fromFile...), nil
}

func subscribeAll(ctx context.Context, t *tracker.Tracker, urls []string, email string) {
	for _, u := range urls {
		added, err := t.Subscribe(ctx, u, email)
		if err != nil {
			slog.Warn("subscribe failed", slog.String("url", u), slog.Any("error", err))
			continue
		}
		if added {
			slog.Info("subscribed", slog.String("url", u), slog.String("email", email))
		}
	}
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonFilename)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.ScraperResult, duration time.Duration, itemsPerSec float64, cfg *config.Config, metrics map[string]interface{}, trackOut *tracker.Writer) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	totalItems := int64(0)
	if processed, ok := metrics["processed_products"].(int64); ok {
		totalItems = processed
	}

	fmt.Printf("  Products:      %d\n", totalItems)
	if missing, ok := metrics["missing_price"].(int64); ok && missing > 0 {
		fmt.Printf("  Missing price: %d\n", missing)
	}
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Unparseable:   %d\n", result.ExtractionFailures)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	if trackOut != nil {
		fmt.Printf("  Tracked:       %d\n", trackOut.Tracked())
		if raised := trackOut.Raised(); len(raised) > 0 {
			fmt.Printf("  Notifications: %v\n", raised)
		}
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Items/sec:     %.2f\n", itemsPerSec)
	if cfg.OutputFormat != "none" {
		fmt.Printf("  Output file:   %s\n", cfg.OutputFile)
	}
	if cfg.DatabasePath != "" {
		fmt.Printf("  Database:      %s\n", cfg.DatabasePath)
	}
	fmt.Println(separator)
}

func envOr(key, fallback string) string {
	if value, ok := config.EnvString(key); ok {
		return value
	}
	return fallback
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
