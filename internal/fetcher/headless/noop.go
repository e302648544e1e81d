// Package headless reserves the extension point for a browser-rendering
// fallback fetcher. Only the no-op implementation ships; deployments that
// need JavaScript-heavy sites plug in their own scraper.Fetcher.
package headless

import (
	"context"
	"errors"

	"github.com/proletto/opportunity-engine/internal/scraper"
)

// ErrNotEnabled is returned by the no-op fetcher for every request.
var ErrNotEnabled = errors.New("headless fetching not enabled")

// NoopFetcher satisfies scraper.Fetcher without doing any work.
type NoopFetcher struct{}

// NewNoop returns the no-op headless fetcher.
func NewNoop() *NoopFetcher {
	return &NoopFetcher{}
}

// Fetch always fails with ErrNotEnabled.
func (NoopFetcher) Fetch(_ context.Context, request scraper.FetchRequest) (scraper.FetchResult, error) {
	return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonConnection, Err: ErrNotEnabled}
}
