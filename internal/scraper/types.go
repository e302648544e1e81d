// Package scraper implements the resilient scraping core: a circuit-broken
// fetch pipeline, a short-lived response cache, heuristic opportunity
// extraction from arbitrary third-party HTML, and record verification.
package scraper

import (
	"net/http"
	"time"
)

// Opportunity is the normalized unit of scraped data returned to callers.
type Opportunity struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Deadline    string `json:"deadline"`
	Source      string `json:"source"`
	ScrapedAt   string `json:"scraped_date"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// FetchRequest captures everything needed to fetch a single URL.
type FetchRequest struct {
	URL        string
	Timeout    time.Duration
	VerifySSL  bool
	Headers    http.Header
	MaxRetries int
}

// FetchResult is the outcome of a successful fetch.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Attempts   int
}

// HealthSnapshot is a caller-safe copy of one domain's health record.
type HealthSnapshot struct {
	Domain       string     `json:"domain"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	CircuitOpen  bool       `json:"circuit_open"`
	HalfOpen     bool       `json:"half_open"`
	OpenUntil    *time.Time `json:"open_until,omitempty"`
	LastAttempt  *time.Time `json:"last_attempt,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	AvgLatency   float64    `json:"avg_latency_seconds"`
}

// ScrapeOptions tunes a single Scrape call.
type ScrapeOptions struct {
	UseCache    bool
	TryHeadless bool
}

// DefaultScrapeOptions mirrors the behavior callers almost always want.
func DefaultScrapeOptions() ScrapeOptions {
	return ScrapeOptions{UseCache: true}
}
