package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aluiziolira/go-scrape-listings/cache"
	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
	"github.com/aluiziolira/go-scrape-listings/scraper"
	"github.com/aluiziolira/go-scrape-listings/storage"
)

func main() {
	envFile, _ := config.EnvString("LISTINGS_ENV_FILE")
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("scrape failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	defaults := config.DefaultConfig()

	return &cli.App{
		Name:  "scraper",
		Usage: "crawl area pages and collect PG/hotel listings with photos",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-url", Usage: "site root that area pages hang off", EnvVars: []string{"LISTINGS_BASE_URL"}},
			&cli.StringFlag{Name: "areas", Usage: "comma separated area slugs", EnvVars: []string{"LISTINGS_AREAS"}},
			&cli.StringFlag{Name: "areas-file", Usage: "file with one area slug per line", EnvVars: []string{"LISTINGS_AREAS_FILE"}},
			&cli.IntFlag{Name: "workers", Value: defaults.Workers, Usage: "areas crawled concurrently", EnvVars: []string{"LISTINGS_WORKERS"}},
			&cli.DurationFlag{Name: "delay", Value: defaults.Delay, Usage: "interval between area requests", EnvVars: []string{"LISTINGS_DELAY"}},
			&cli.DurationFlag{Name: "page-delay", Value: defaults.PageDelay, Usage: "interval between detail and probe requests", EnvVars: []string{"LISTINGS_PAGE_DELAY"}},
			&cli.DurationFlag{Name: "random-delay", Value: defaults.RandomDelay, Usage: "random jitter added per request", EnvVars: []string{"LISTINGS_RANDOM_DELAY"}},
			&cli.DurationFlag{Name: "timeout", Value: defaults.Timeout, Usage: "per request timeout", EnvVars: []string{"LISTINGS_TIMEOUT"}},
			&cli.IntFlag{Name: "max-retries", Value: defaults.MaxRetries, Usage: "retries for transient area failures", EnvVars: []string{"LISTINGS_MAX_RETRIES"}},
			&cli.DurationFlag{Name: "retry-backoff", Value: defaults.RetryBackoff, Usage: "initial retry backoff", EnvVars: []string{"LISTINGS_RETRY_BACKOFF"}},
			&cli.DurationFlag{Name: "retry-backoff-max", Value: defaults.RetryBackoffMax, Usage: "maximum retry backoff", EnvVars: []string{"LISTINGS_RETRY_BACKOFF_MAX"}},
			&cli.StringFlag{Name: "output", Value: defaults.OutputFile, Usage: "export file path", EnvVars: []string{"LISTINGS_OUTPUT"}},
			&cli.StringFlag{Name: "format", Value: defaults.OutputFormat, Usage: "export format: csv, json, dual, or none", EnvVars: []string{"LISTINGS_FORMAT"}},
			&cli.StringFlag{Name: "user-agent", Value: defaults.UserAgent, Usage: "User-Agent header", EnvVars: []string{"LISTINGS_USER_AGENT"}},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging", EnvVars: []string{"LISTINGS_VERBOSE"}},
			&cli.BoolFlag{Name: "respect-robots", Usage: "respect robots.txt directives", EnvVars: []string{"LISTINGS_RESPECT_ROBOTS"}},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Prometheus metrics listen address (e.g. :9090)", EnvVars: []string{"LISTINGS_METRICS_ADDR"}},
			&cli.StringFlag{Name: "log-file", Usage: "also write JSON logs to this rotated file", EnvVars: []string{"LISTINGS_LOG_FILE"}},
			&cli.StringFlag{Name: "profile", Usage: "YAML site profile overriding the built-in markers and selectors", EnvVars: []string{"LISTINGS_PROFILE"}},
			&cli.StringFlag{Name: "store", Value: defaults.StoreDSN, Usage: "memory, sqlite://path or postgres://dsn", EnvVars: []string{"LISTINGS_STORE"}},
			&cli.IntFlag{Name: "page-cache-size", Value: defaults.PageCacheSize, Usage: "in-process image page cache entries", EnvVars: []string{"LISTINGS_PAGE_CACHE_SIZE"}},
			&cli.StringFlag{Name: "redis-addr", Usage: "share the image page cache through Redis", EnvVars: []string{"LISTINGS_REDIS_ADDR"}},
			&cli.StringFlag{Name: "redis-password", EnvVars: []string{"LISTINGS_REDIS_PASSWORD"}},
			&cli.IntFlag{Name: "redis-db", EnvVars: []string{"LISTINGS_REDIS_DB"}},
			&cli.DurationFlag{Name: "cache-ttl", Value: defaults.CacheTTL, Usage: "Redis entry lifetime", EnvVars: []string{"LISTINGS_CACHE_TTL"}},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}

	logger, closeLog := newLogger(cfg.Verbose, cfg.LogFile)
	defer closeLog()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := c.Context
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	slog.Info("starting crawl",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("areas", len(cfg.Areas)),
		slog.Int("workers", cfg.Workers),
		slog.String("store", storeKind(cfg.StoreDSN)),
	)

	sink, err := storage.Open(ctx, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			slog.Error("close store", slog.Any("error", err))
		}
	}()

	pageCache, err := newPageCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer pageCache.Close()

	crawler, err := scraper.NewCrawler(cfg, sink, pageCache)
	if err != nil {
		return err
	}

	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("create writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	metricsServer := startMetricsServer(cfg.MetricsAddr, crawler.Metrics)

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Workers)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, runErr := crawler.Run(ctx, p)

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if runErr != nil {
		if result != nil {
			printSummary(result, time.Since(startTime), cfg, p.GetMetrics())
		}
		return fmt.Errorf("crawl interrupted: %w", runErr)
	}
	metrics := p.GetMetrics()
	if err := validateOutput(cfg.OutputFormat, writer, metrics); err != nil {
		return err
	}

	printSummary(result, time.Since(startTime), cfg, metrics)
	return nil
}

// validateOutput checks the export file once something was exported. A run
// that found no listings leaves an empty file and only logs a warning.
func validateOutput(format string, writer pipeline.OutputWriter, metrics map[string]interface{}) error {
	if format == "none" {
		return nil
	}
	if exported, _ := metrics["exported_listings"].(int64); exported == 0 {
		slog.Warn("no listings exported", slog.String("format", format))
		return nil
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}
	return nil
}

func buildConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = strings.TrimSpace(c.String("base-url"))
	cfg.Workers = c.Int("workers")
	cfg.Delay = c.Duration("delay")
	cfg.PageDelay = c.Duration("page-delay")
	cfg.RandomDelay = c.Duration("random-delay")
	cfg.Timeout = c.Duration("timeout")
	cfg.MaxRetries = c.Int("max-retries")
	cfg.RetryBackoff = c.Duration("retry-backoff")
	cfg.RetryBackoffMax = c.Duration("retry-backoff-max")
	cfg.OutputFile = c.String("output")
	cfg.OutputFormat = strings.ToLower(c.String("format"))
	cfg.UserAgent = c.String("user-agent")
	cfg.Verbose = c.Bool("verbose")
	cfg.RespectRobotsTxt = c.Bool("respect-robots")
	cfg.MetricsAddr = c.String("metrics-addr")
	cfg.LogFile = c.String("log-file")
	cfg.StoreDSN = c.String("store")
	cfg.PageCacheSize = c.Int("page-cache-size")
	cfg.RedisAddr = c.String("redis-addr")
	cfg.RedisPassword = c.String("redis-password")
	cfg.RedisDB = c.Int("redis-db")
	cfg.CacheTTL = c.Duration("cache-ttl")

	cfg.Areas = config.ParseAreas(c.String("areas"))
	if path := c.String("areas-file"); path != "" {
		fromFile, err := config.LoadAreasFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Areas = append(cfg.Areas, fromFile...)
	}

	cfg.ProfileFile = c.String("profile")
	profile, err := config.LoadProfile(cfg.ProfileFile)
	if err != nil {
		return nil, err
	}
	cfg.Profile = profile

	if err := applyPipelineTuning(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyPipelineTuning reads the export pipeline sizes, which have no flags.
func applyPipelineTuning(cfg *config.Config) error {
	for key, dst := range map[string]*int{
		"LISTINGS_PIPELINE_BUFFER": &cfg.PipelineBufferSize,
		"LISTINGS_BATCH_SIZE":      &cfg.BatchSize,
		"LISTINGS_DEDUPE_MAX_SIZE": &cfg.DedupeMaxSize,
	} {
		value, ok, err := config.EnvInt(key)
		if err != nil {
			return fmt.Errorf("invalid %w", err)
		}
		if ok {
			*dst = value
		}
	}
	return nil
}

func newPageCache(ctx context.Context, cfg *config.Config) (cache.PageCache, error) {
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("connect page cache: %w", err)
		}
		slog.Info("page cache enabled", slog.String("backend", "redis"), slog.String("addr", cfg.RedisAddr))
		return rc, nil
	}
	return cache.NewLRU(cfg.PageCacheSize)
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func storeKind(dsn string) string {
	if i := strings.Index(dsn, "://"); i > 0 {
		return dsn[:i]
	}
	return dsn
}

func printSummary(result *models.CrawlResult, duration time.Duration, cfg *config.Config, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")

	stats := result.Stats
	fmt.Printf("  Areas:         %d processed, %d failed\n", stats.AreasProcessed, stats.AreasFailed)
	fmt.Printf("  Candidates:    %d (%d duplicates)\n", stats.Candidates, stats.Duplicates)
	fmt.Printf("  Listings:      %d\n", len(result.Listings))
	fmt.Printf("  Saved:         %d\n", stats.Saved)
	fmt.Printf("  Skipped:       %d\n", stats.Skipped)
	fmt.Printf("  Errors:        %d\n", stats.Errors)
	fmt.Printf("  Requests:      %d (%d retries)\n", result.RequestCount, result.RetryCount)
	if len(result.FailedAreas) > 0 {
		fmt.Printf("  Failed areas:  %v\n", result.FailedAreas)
	}
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}

	if exported, ok := metrics["exported_listings"].(int64); ok && cfg.OutputFormat != "none" {
		fmt.Printf("  Exported:      %d\n", exported)
	}
	if rejected, ok := metrics["rejected"].(map[string]int); ok && len(rejected) > 0 {
		fmt.Printf("  Rejected:      %v\n", rejected)
	}

	perSec := 0.0
	if duration.Seconds() > 0 {
		perSec = float64(len(result.Listings)) / duration.Seconds()
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Listings/sec:  %.2f\n", perSec)
	if cfg.OutputFormat != "none" {
		fmt.Printf("  Output file:   %s\n", cfg.OutputFile)
	}
	fmt.Println(separator)
}

// newLogger logs to stdout, and when logFile is set also to a rotated JSON
// file. The returned func flushes and closes the file.
func newLogger(verbose bool, logFile string) (*slog.Logger, func()) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	opts := &slog.HandlerOptions{Level: level}

	if logFile == "" {
		return slog.New(consoleHandler(os.Stdout, opts)), func() {}
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "create log directory: %v\n", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    5,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = fanoutHandler{consoleHandler(os.Stdout, opts), slog.NewJSONHandler(rotator, opts)}
	} else {
		handler = slog.NewJSONHandler(io.MultiWriter(os.Stdout, rotator), opts)
	}
	return slog.New(handler), func() { _ = rotator.Close() }
}

func consoleHandler(w *os.File, opts *slog.HandlerOptions) slog.Handler {
	if isTerminal(w) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// fanoutHandler sends each record to every handler that accepts its level.
type fanoutHandler []slog.Handler

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, inner := range h {
		if inner.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, inner := range h {
		if inner.Enabled(ctx, r.Level) {
			errs = append(errs, inner.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, inner := range h {
		out[i] = inner.WithAttrs(attrs)
	}
	return out
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, inner := range h {
		out[i] = inner.WithGroup(name)
	}
	return out
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
