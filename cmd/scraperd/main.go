// Package main wires together the opportunity scraper daemon: the scraping
// engine, the batch runner, and the monitoring HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/proletto/opportunity-engine/internal/alert"
	"github.com/proletto/opportunity-engine/internal/api"
	"github.com/proletto/opportunity-engine/internal/clock/system"
	"github.com/proletto/opportunity-engine/internal/config"
	collyfetcher "github.com/proletto/opportunity-engine/internal/fetcher/colly"
	"github.com/proletto/opportunity-engine/internal/fetcher/headless"
	md5hash "github.com/proletto/opportunity-engine/internal/hash/md5"
	"github.com/proletto/opportunity-engine/internal/logging"
	"github.com/proletto/opportunity-engine/internal/policy/ratelimit"
	"github.com/proletto/opportunity-engine/internal/runner"
	"github.com/proletto/opportunity-engine/internal/scraper"
	"github.com/proletto/opportunity-engine/internal/storage/memory"
	"github.com/proletto/opportunity-engine/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("scraperd exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clock := system.New()
	hasher := md5hash.New()

	var sink scraper.AlertSink
	if cfg.Alert.SlackToken != "" {
		sink = alert.NewSlackSink(cfg.Alert.SlackToken, cfg.Alert.SlackChannel)
	} else {
		sink = alert.NewLogSink(logging.ForComponent(logger, "alerts"))
	}

	registry := scraper.NewRegistry(scraper.RegistryConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Cooldown(),
	}, clock, sink, logging.ForComponent(logger, "breaker"))

	var cache *scraper.Cache
	if cfg.Cache.Enabled {
		cache = scraper.NewCache(cfg.CacheTTL(), clock, hasher, logging.ForComponent(logger, "cache"))
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		BackoffBase: time.Duration(cfg.HTTP.BackoffBaseMs) * time.Millisecond,
	}, logging.ForComponent(logger, "fetcher"))

	extractor := scraper.NewExtractor(scraper.ExtractorConfig{
		MinTitleLength: cfg.Extract.MinTitleLength,
		MinTextLength:  cfg.Extract.MinTextLength,
	}, clock, logging.ForComponent(logger, "extractor"))

	verifier := scraper.NewVerifier(cfg.Extract.MaxDescription, hasher, logging.ForComponent(logger, "verifier"))

	engine := scraper.NewEngine(scraper.EngineConfig{
		FetchTimeout: cfg.FetchTimeout(),
		MaxRetries:   cfg.HTTP.MaxRetries,
		URLBudget:    cfg.URLBudget(),
	}, fetcher, headless.NewNoop(), cache, registry, extractor, verifier, clock, logging.ForComponent(logger, "engine"))

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Runner.DomainRPS})
	batch := runner.New(engine, store, limiter, runner.Config{
		Delay:    cfg.RunDelay(),
		UseCache: cfg.Cache.Enabled,
	}, logging.ForComponent(logger, "runner"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(registry, logging.ForComponent(logger, "api")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("monitoring server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	runLoopDone := make(chan error, 1)
	go func() {
		runLoopDone <- runLoop(ctx, cfg, batch, logger)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-runLoopDone:
	case runErr = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
	return runErr
}

// runLoop executes one batch immediately, then repeats on the configured
// interval until the context finishes.
func runLoop(ctx context.Context, cfg config.Config, batch *runner.Runner, logger *zap.Logger) error {
	if cfg.Runner.SitesFile == "" {
		logger.Warn("no sites file configured, serving monitoring endpoints only")
		<-ctx.Done()
		return nil
	}
	sites, err := runner.LoadSites(cfg.Runner.SitesFile)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.RunInterval())
	defer ticker.Stop()

	for {
		summary, err := batch.Run(ctx, sites)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("batch run failed", zap.Error(err))
		} else {
			logger.Info("batch summary",
				zap.String("run_id", summary.RunID),
				zap.Int("scraped", summary.Scraped),
				zap.Int("records", summary.Records),
				zap.Int("saved", summary.Saved),
				zap.Int("circuit_skips", summary.CircuitSkips))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func buildStore(ctx context.Context, cfg config.Config) (scraper.Store, func(), error) {
	if cfg.DB.DSN == "" {
		return memory.NewOpportunityStore(), func() {}, nil
	}
	store, err := postgres.NewOpportunityStore(ctx, postgres.OpportunityStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
