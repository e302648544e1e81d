package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalScrapes tracks the number of scrape calls that completed the full pipeline.
	TotalScrapes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_scrapes_total",
		Help: "The total number of scrape calls that ran the full pipeline.",
	})
	// TotalFetchErrors tracks fetches that definitively failed after retries.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_fetch_errors_total",
		Help: "The total number of fetches that failed after all retries.",
	})
	// TotalRateLimitHits tracks HTTP 429 responses seen by the fetch layer.
	TotalRateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_rate_limit_hits_total",
		Help: "The total number of times a site rate-limited the scraper.",
	})
	// TotalCircuitOpens tracks closed-to-open breaker transitions.
	TotalCircuitOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_circuit_opens_total",
		Help: "The total number of times a domain circuit breaker opened.",
	})
	// TotalCacheHits tracks responses served from the in-memory cache.
	TotalCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_cache_hits_total",
		Help: "The total number of responses served from cache.",
	})
	// TotalCacheMisses tracks cache lookups that required a network fetch.
	TotalCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_cache_misses_total",
		Help: "The total number of cache lookups that missed.",
	})
	// TotalOpportunities tracks verified records returned to callers.
	TotalOpportunities = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_opportunities_total",
		Help: "The total number of verified opportunity records produced.",
	})
)
