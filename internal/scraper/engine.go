package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultURLBudget is the overall wall-clock budget for one URL across all
// retries and backoff sleeps. The per-attempt timeout alone lets a slow
// site pin a batch for minutes; the budget caps the worst case.
const DefaultURLBudget = 2 * time.Minute

// EngineConfig tunes the scrape pipeline.
type EngineConfig struct {
	// FetchTimeout is the initial per-attempt socket timeout.
	FetchTimeout time.Duration
	// MaxRetries bounds retry attempts inside the fetch layer.
	MaxRetries int
	// URLBudget bounds the whole fetch sequence for one URL. Zero disables it.
	URLBudget time.Duration
}

// Engine is the single entry point of the scraping core. It wires the
// response cache, the per-domain circuit breaker, the fetch layer, the
// extraction engine, and record verification into one pipeline.
type Engine struct {
	cfg       EngineConfig
	fetcher   Fetcher
	headless  Fetcher
	cache     *Cache
	registry  *Registry
	extractor *Extractor
	verifier  *Verifier
	clock     Clock
	logger    *zap.Logger
}

// NewEngine constructs an Engine. headless may be nil when no fallback
// fetcher is wired.
func NewEngine(
	cfg EngineConfig,
	fetcher Fetcher,
	headless Fetcher,
	cache *Cache,
	registry *Registry,
	extractor *Extractor,
	verifier *Verifier,
	clock Clock,
	logger *zap.Logger,
) *Engine {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		headless:  headless,
		cache:     cache,
		registry:  registry,
		extractor: extractor,
		verifier:  verifier,
		clock:     clock,
		logger:    logger,
	}
}

// Registry exposes the site health registry for monitoring surfaces.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Scrape fetches url and returns the verified opportunity records found on
// it, in document order. Ordinary fetch and parse failures yield an empty
// result and a nil error so one broken site never aborts a batch; the only
// error that escapes is a CircuitOpenError, which callers should treat as
// "skip this URL for this cycle".
func (e *Engine) Scrape(ctx context.Context, url string, keywords []string, opts ScrapeOptions) ([]Opportunity, error) {
	domain := Domain(url)
	e.logger.Info("scraping opportunities", zap.String("url", url), zap.String("domain", domain))

	if opts.UseCache && e.cache != nil {
		if hit, body := e.cache.Check(url); hit {
			TotalCacheHits.Inc()
			e.logger.Debug("serving from cache", zap.String("url", url))
			return e.process(body, keywords, url), nil
		}
		TotalCacheMisses.Inc()
	}

	if err := e.registry.Acquire(domain); err != nil {
		e.logger.Warn("circuit breaker blocked request",
			zap.String("domain", domain), zap.Error(err))
		return nil, err
	}

	if e.cfg.URLBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.URLBudget)
		defer cancel()
	}

	start := e.clock.Now()
	result, err := e.fetch(ctx, url, opts)
	if err != nil {
		TotalFetchErrors.Inc()
		e.registry.RecordFailure(ctx, domain)
		e.logger.Warn("all fetch attempts failed", zap.String("url", url), zap.Error(err))
		return nil, nil
	}
	e.registry.RecordSuccess(domain, e.clock.Now().Sub(start))

	if opts.UseCache && e.cache != nil {
		e.cache.Update(url, result.Body)
	}

	records := e.process(result.Body, keywords, url)
	TotalScrapes.Inc()
	TotalOpportunities.Add(float64(len(records)))
	e.logger.Info("scrape complete",
		zap.String("url", url),
		zap.Int("records", len(records)),
		zap.Int("attempts", result.Attempts))
	return records, nil
}

func (e *Engine) fetch(ctx context.Context, url string, opts ScrapeOptions) (FetchResult, error) {
	req := FetchRequest{
		URL:        url,
		Timeout:    e.cfg.FetchTimeout,
		VerifySSL:  true,
		MaxRetries: e.cfg.MaxRetries,
	}
	result, err := e.fetcher.Fetch(ctx, req)
	if err == nil {
		return result, nil
	}
	if opts.TryHeadless && e.headless != nil {
		e.logger.Info("standard fetch failed, trying headless fallback", zap.String("url", url))
		if hr, herr := e.headless.Fetch(ctx, req); herr == nil {
			return hr, nil
		}
	}
	return FetchResult{}, err
}

// process runs extraction and verification; a broken page yields zero
// records, never an error.
func (e *Engine) process(body []byte, keywords []string, sourceURL string) []Opportunity {
	records, err := e.extractor.Extract(body, keywords, sourceURL)
	if err != nil {
		e.logger.Warn("extraction failed", zap.String("url", sourceURL), zap.Error(err))
		return nil
	}
	return e.verifier.Verify(records)
}
