package scraper

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const healthTimeFormat = "2006-01-02 15:04:05"

// Snapshot returns a deep copy of every domain's health record, safe for
// concurrent callers to inspect without holding the registry lock.
func (r *Registry) Snapshot() map[string]HealthSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]HealthSnapshot, len(r.sites))
	for domain, h := range r.sites {
		out[domain] = HealthSnapshot{
			Domain:       domain,
			SuccessCount: h.successCount,
			FailureCount: h.failureCount,
			CircuitOpen:  h.circuitOpen,
			HalfOpen:     h.halfOpen,
			OpenUntil:    copyTime(h.openUntil),
			LastAttempt:  copyTime(h.lastAttempt),
			LastSuccess:  copyTime(h.lastSuccess),
			AvgLatency:   h.avgLatency,
		}
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Report renders the health registry as CSV for export and alerting
// tooling: domain, counters, circuit status, timestamps, success rate.
func (r *Registry) Report() string {
	metrics := r.Snapshot()
	if len(metrics) == 0 {
		return "No site health metrics available yet."
	}

	domains := make([]string, 0, len(metrics))
	for domain := range metrics {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	lines := []string{"domain,success_count,failure_count,circuit_status,last_attempt,last_success,success_rate"}
	for _, domain := range domains {
		m := metrics[domain]
		total := m.SuccessCount + m.FailureCount
		rate := "0%"
		if total > 0 {
			rate = fmt.Sprintf("%.1f%%", float64(m.SuccessCount)/float64(total)*100)
		}
		lines = append(lines, fmt.Sprintf("%s,%d,%d,%s,%s,%s,%s",
			domain,
			m.SuccessCount,
			m.FailureCount,
			circuitStatus(m),
			formatHealthTime(m.LastAttempt),
			formatHealthTime(m.LastSuccess),
			rate,
		))
	}
	return strings.Join(lines, "\n")
}

func circuitStatus(m HealthSnapshot) string {
	switch {
	case m.HalfOpen:
		return "half-open"
	case m.CircuitOpen:
		return "open"
	default:
		return "closed"
	}
}

func formatHealthTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(healthTimeFormat)
}
