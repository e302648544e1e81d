package scraper

import (
	"context"
	"time"
)

// Fetcher fetches a single URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResult, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Hasher computes digests for cache keys and record fingerprints.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// AlertSink receives operational alerts, e.g. circuit-open transitions.
// Implementations must be safe for concurrent use; delivery failures are
// reported through the returned error and never abort a scrape.
type AlertSink interface {
	Alert(ctx context.Context, message string, level AlertLevel) error
}

// AlertLevel is the severity attached to an alert.
type AlertLevel string

// Alert severity levels.
const (
	AlertInfo    AlertLevel = "info"
	AlertWarning AlertLevel = "warning"
	AlertError   AlertLevel = "error"
)

// Store persists verified opportunity records. Persistence is a caller
// concern; the engine itself never writes to a Store.
type Store interface {
	SaveOpportunities(ctx context.Context, records []Opportunity) (int, error)
}
