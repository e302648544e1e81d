package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proletto/opportunity-engine/internal/scraper"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return New(Config{BackoffBase: time.Millisecond, TimeoutStep: time.Millisecond}, nil)
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body>listings</body></html>")) //nolint:errcheck
	}))
	defer server.Close()

	result, err := newTestFetcher(t).Fetch(context.Background(), scraper.FetchRequest{
		URL: server.URL, Timeout: 5 * time.Second, VerifySSL: true, MaxRetries: 2,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, []byte("<html><body>listings</body></html>"), result.Body)
	require.Equal(t, 1, result.Attempts)
}

func TestFetchNotFoundFailsImmediately(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), scraper.FetchRequest{
		URL: server.URL, MaxRetries: 3,
	})
	require.Error(t, err)

	var fetchErr *scraper.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, scraper.ReasonNotFound, fetchErr.Reason)
	require.Equal(t, int32(1), hits.Load(), "404 must not be retried")
}

func TestFetchForbiddenFailsImmediately(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), scraper.FetchRequest{
		URL: server.URL, MaxRetries: 3,
	})
	var fetchErr *scraper.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, scraper.ReasonForbidden, fetchErr.Reason)
	require.Equal(t, int32(1), hits.Load())
}

func TestFetchRetriesAfterRateLimit(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer server.Close()

	result, err := newTestFetcher(t).Fetch(context.Background(), scraper.FetchRequest{
		URL: server.URL, MaxRetries: 3,
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Attempts)
}

func TestFetchRetriesAfterServerError(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered")) //nolint:errcheck
	}))
	defer server.Close()

	result, err := newTestFetcher(t).Fetch(context.Background(), scraper.FetchRequest{
		URL: server.URL, MaxRetries: 2,
	})
	require.NoError(t, err)
	require.Equal(t, []byte("recovered"), result.Body)
	require.Equal(t, 2, result.Attempts)
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), scraper.FetchRequest{
		URL: server.URL, MaxRetries: 1,
	})
	var fetchErr *scraper.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, scraper.ReasonMaxRetries, fetchErr.Reason)
	require.Equal(t, int32(2), hits.Load(), "one initial attempt plus one retry")
}

func TestFetchZeroRetriesMeansSingleAttempt(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), scraper.FetchRequest{
		URL: server.URL, MaxRetries: 0,
	})
	var fetchErr *scraper.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, scraper.ReasonMaxRetries, fetchErr.Reason)
	require.Equal(t, int32(1), hits.Load())
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	t.Parallel()
	f := newTestFetcher(t)

	for _, raw := range []string{"ftp://example.org/file", "not-a-url", ""} {
		_, err := f.Fetch(context.Background(), scraper.FetchRequest{URL: raw})
		var fetchErr *scraper.FetchError
		require.ErrorAs(t, err, &fetchErr, "url %q", raw)
		require.Equal(t, scraper.ReasonInvalidURL, fetchErr.Reason)
	}
}

func TestFetchSendsCallerHeaders(t *testing.T) {
	t.Parallel()
	var gotKey, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer server.Close()

	headers := http.Header{}
	headers.Set("X-Api-Key", "secret")

	_, err := newTestFetcher(t).Fetch(context.Background(), scraper.FetchRequest{
		URL: server.URL, Headers: headers,
	})
	require.NoError(t, err)
	require.Equal(t, "secret", gotKey)
	require.NotEmpty(t, gotUA, "a User-Agent from the rotation pool is always sent")
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(t).Fetch(ctx, scraper.FetchRequest{URL: server.URL})
	var fetchErr *scraper.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, scraper.ReasonTimeout, fetchErr.Reason)
}
