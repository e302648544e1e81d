package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry default tuning, matching long-observed production behavior.
const (
	DefaultFailureThreshold = 3
	DefaultCooldown         = 30 * time.Minute
)

// siteHealth is the mutable per-domain record guarded by Registry.mu.
type siteHealth struct {
	successCount int
	failureCount int
	circuitOpen  bool
	halfOpen     bool
	openUntil    *time.Time
	lastAttempt  *time.Time
	lastSuccess  *time.Time
	avgLatency   float64
}

// RegistryConfig tunes the per-domain circuit breakers.
type RegistryConfig struct {
	// FailureThreshold is the number of consecutive failures that opens a circuit.
	FailureThreshold int
	// Cooldown is how long an open circuit blocks requests before allowing
	// a half-open trial.
	Cooldown time.Duration
}

// Registry tracks health metrics for every domain the engine has fetched
// and enforces a circuit breaker per domain. One coarse mutex guards the
// whole map; check-open-state and record-outcome never interleave with
// other goroutines' writes, so at most one half-open trial is ever in
// flight for a domain.
type Registry struct {
	mu     sync.Mutex
	sites  map[string]*siteHealth
	cfg    RegistryConfig
	clock  Clock
	alerts AlertSink
	logger *zap.Logger
}

// NewRegistry constructs a Registry. alerts may be nil when no sink is wired.
func NewRegistry(cfg RegistryConfig, clock Clock, alerts AlertSink, logger *zap.Logger) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sites:  make(map[string]*siteHealth),
		cfg:    cfg,
		clock:  clock,
		alerts: alerts,
		logger: logger,
	}
}

// ensureLocked returns the health record for domain, creating it lazily.
// Callers must hold r.mu.
func (r *Registry) ensureLocked(domain string) *siteHealth {
	h, ok := r.sites[domain]
	if !ok {
		h = &siteHealth{}
		r.sites[domain] = h
	}
	return h
}

// Acquire asks the breaker for permission to fetch from domain. It returns
// a CircuitOpenError when the circuit is open and the cooldown has not
// elapsed, or when another half-open trial is already in flight. The open
// state is evaluated lazily here; nothing flips it in the background.
func (r *Registry) Acquire(domain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.ensureLocked(domain)
	now := r.clock.Now()

	if h.circuitOpen {
		if h.halfOpen {
			// A trial request is already testing recovery.
			return r.openErrLocked(domain, h)
		}
		if h.openUntil != nil && now.After(*h.openUntil) {
			h.halfOpen = true
			h.lastAttempt = &now
			r.logger.Info("circuit half-open, allowing trial request",
				zap.String("domain", domain))
			return nil
		}
		return r.openErrLocked(domain, h)
	}

	h.lastAttempt = &now
	return nil
}

func (r *Registry) openErrLocked(domain string, h *siteHealth) error {
	err := &CircuitOpenError{Domain: domain}
	if h.openUntil != nil {
		err.OpenUntil = *h.openUntil
	}
	return err
}

// RecordSuccess reports a successful fetch and folds its latency into the
// running average: new_avg = (old_avg*n + latest) / (n+1) with n the prior
// success count. A single success fully heals the breaker.
func (r *Registry) RecordSuccess(domain string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.ensureLocked(domain)
	now := r.clock.Now()

	seconds := latency.Seconds()
	if h.successCount > 0 {
		n := float64(h.successCount)
		h.avgLatency = (h.avgLatency*n + seconds) / (n + 1)
	} else {
		h.avgLatency = seconds
	}

	h.successCount++
	h.failureCount = 0
	h.lastSuccess = &now
	h.circuitOpen = false
	h.halfOpen = false
	h.openUntil = nil
}

// RecordFailure reports a failed fetch. Crossing the failure threshold
// opens the circuit and emits a single alert; a failed half-open trial
// re-opens the circuit for another full cooldown without alerting again.
func (r *Registry) RecordFailure(ctx context.Context, domain string) {
	r.mu.Lock()
	h := r.ensureLocked(domain)
	now := r.clock.Now()

	var opened bool
	var openUntil time.Time
	var failures int

	if h.halfOpen {
		// Trial failed: extend the outage for another cooldown.
		h.halfOpen = false
		h.failureCount++
		until := now.Add(r.cfg.Cooldown)
		h.openUntil = &until
	} else {
		h.failureCount++
		if h.failureCount >= r.cfg.FailureThreshold && !h.circuitOpen {
			until := now.Add(r.cfg.Cooldown)
			h.circuitOpen = true
			h.openUntil = &until
			opened = true
			openUntil = until
			failures = h.failureCount
		}
	}
	r.mu.Unlock()

	if !opened {
		return
	}

	TotalCircuitOpens.Inc()
	r.logger.Warn("circuit opened",
		zap.String("domain", domain),
		zap.Int("failures", failures),
		zap.Time("open_until", openUntil))

	if r.alerts == nil {
		return
	}
	msg := fmt.Sprintf("Circuit breaker tripped for %s. Site failed %d times. Circuit will remain open until %s.",
		domain, failures, openUntil.Format(time.RFC3339))
	if err := r.alerts.Alert(ctx, msg, AlertError); err != nil {
		r.logger.Error("alert delivery failed", zap.String("domain", domain), zap.Error(err))
	}
}

// Do runs fn as a breaker-scoped unit of work: acquire, run, record the
// outcome. fn returns the latency of the work on success.
func (r *Registry) Do(ctx context.Context, domain string, fn func(context.Context) (time.Duration, error)) error {
	if err := r.Acquire(domain); err != nil {
		return err
	}
	latency, err := fn(ctx)
	if err != nil {
		r.RecordFailure(ctx, domain)
		return err
	}
	r.RecordSuccess(domain, latency)
	return nil
}
