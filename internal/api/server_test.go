package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proletto/opportunity-engine/internal/scraper"
)

type stubHealth struct {
	snapshot map[string]scraper.HealthSnapshot
	report   string
}

func (s *stubHealth) Snapshot() map[string]scraper.HealthSnapshot { return s.snapshot }
func (s *stubHealth) Report() string                              { return s.report }

func newTestServer(t *testing.T, health HealthSource) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewServer(health, nil).Handler())
	t.Cleanup(server.Close)
	return server
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	server := newTestServer(t, &stubHealth{})

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestListSites(t *testing.T) {
	t.Parallel()
	attempt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	server := newTestServer(t, &stubHealth{snapshot: map[string]scraper.HealthSnapshot{
		"example.org": {
			Domain:       "example.org",
			SuccessCount: 7,
			FailureCount: 2,
			CircuitOpen:  true,
			LastAttempt:  &attempt,
			AvgLatency:   1.25,
		},
	}})

	resp, err := http.Get(server.URL + "/v1/sites")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]scraper.HealthSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 1)
	require.Equal(t, 7, body["example.org"].SuccessCount)
	require.True(t, body["example.org"].CircuitOpen)
	require.InDelta(t, 1.25, body["example.org"].AvgLatency, 1e-9)
}

func TestSiteReportCSV(t *testing.T) {
	t.Parallel()
	const report = "domain,success_count,failure_count,circuit_status,last_attempt,last_success,success_rate\nexample.org,1,0,closed,never,never,100.0%"
	server := newTestServer(t, &stubHealth{report: report})

	resp, err := http.Get(server.URL + "/v1/sites/report.csv")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/csv")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, report, string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	server := newTestServer(t, &stubHealth{})

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()
	server := newTestServer(t, &panickyHealth{})

	resp, err := http.Get(server.URL + "/v1/sites/report.csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

type panickyHealth struct{}

func (p *panickyHealth) Snapshot() map[string]scraper.HealthSnapshot { return nil }
func (p *panickyHealth) Report() string                              { panic("registry corrupted") }
