// Package runner drives sequential batch scrapes over a configured site
// list. One site's failure never aborts the rest of the batch.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/proletto/opportunity-engine/internal/policy/ratelimit"
	"github.com/proletto/opportunity-engine/internal/scraper"
)

// Site is one entry in the scrape list: a target URL plus the keyword
// vocabulary relevant to its category.
type Site struct {
	URL      string   `json:"url"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category,omitempty"`
}

// Scraper is the engine surface the runner consumes.
type Scraper interface {
	Scrape(ctx context.Context, url string, keywords []string, opts scraper.ScrapeOptions) ([]scraper.Opportunity, error)
}

// Config controls batch pacing.
type Config struct {
	// Delay is the pause between consecutive sites.
	Delay time.Duration
	// UseCache forwards to the engine's per-call cache toggle.
	UseCache bool
	// TryHeadless forwards to the engine's headless fallback toggle.
	TryHeadless bool
}

// Summary reports the outcome of one batch run.
type Summary struct {
	RunID        string
	Sites        int
	Scraped      int
	Records      int
	Saved        int
	CircuitSkips int
}

// Runner executes batches.
type Runner struct {
	engine  Scraper
	store   scraper.Store
	limiter *ratelimit.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Runner. store and limiter may be nil.
func New(engine Scraper, store scraper.Store, limiter *ratelimit.Limiter, cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		engine:  engine,
		store:   store,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run scrapes every site in order and returns a batch summary. A circuit-
// open signal skips that site for this cycle; any other per-site failure
// is logged and the loop moves on.
func (r *Runner) Run(ctx context.Context, sites []Site) (Summary, error) {
	summary := Summary{RunID: uuid.NewString(), Sites: len(sites)}
	log := r.logger.With(zap.String("run_id", summary.RunID))
	log.Info("starting batch run", zap.Int("sites", len(sites)))

	opts := scraper.ScrapeOptions{UseCache: r.cfg.UseCache, TryHeadless: r.cfg.TryHeadless}

	for i, site := range sites {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("batch interrupted: %w", err)
		}
		if i > 0 {
			if err := sleepCtx(ctx, r.cfg.Delay); err != nil {
				return summary, fmt.Errorf("batch interrupted: %w", err)
			}
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx, site.URL); err != nil {
				return summary, fmt.Errorf("batch interrupted: %w", err)
			}
		}

		records, err := r.engine.Scrape(ctx, site.URL, site.Keywords, opts)
		if err != nil {
			if errors.Is(err, scraper.ErrCircuitOpen) {
				summary.CircuitSkips++
				log.Warn("skipping site, circuit open", zap.String("url", site.URL))
				continue
			}
			// The engine only propagates circuit-open signals, but guard
			// against future error kinds rather than killing the batch.
			log.Error("scrape failed", zap.String("url", site.URL), zap.Error(err))
			continue
		}

		summary.Scraped++
		summary.Records += len(records)

		if r.store != nil && len(records) > 0 {
			saved, err := r.store.SaveOpportunities(ctx, records)
			summary.Saved += saved
			if err != nil {
				log.Error("persist failed", zap.String("url", site.URL), zap.Error(err))
			}
		}
	}

	log.Info("batch run complete",
		zap.Int("scraped", summary.Scraped),
		zap.Int("records", summary.Records),
		zap.Int("circuit_skips", summary.CircuitSkips))
	return summary, nil
}

// LoadSites reads a JSON site list from disk.
func LoadSites(path string) ([]Site, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	var sites []Site
	if err := json.Unmarshal(data, &sites); err != nil {
		return nil, fmt.Errorf("parse sites file: %w", err)
	}
	return sites, nil
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
