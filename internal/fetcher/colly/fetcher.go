// Package collyfetcher implements the resilient HTTP fetch layer using the
// Colly collector: bounded retries with jittered exponential backoff,
// per-attempt timeouts that grow on timeout retries, a one-shot TLS
// fallback, and User-Agent rotation.
package collyfetcher

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"math/big"
	mathrand "math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/proletto/opportunity-engine/internal/scraper"
)

// Defaults applied when the request leaves a knob unset.
const (
	defaultTimeout     = 15 * time.Second
	defaultMaxRetries  = 3
	defaultBackoffBase = time.Second
	defaultTimeoutStep = 5 * time.Second
)

// defaultUserAgents is the rotation pool used when the caller supplies no
// explicit User-Agent. The last entry identifies the bot honestly.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148",
	"ProlettoBot/1.0 (+https://www.myproletto.com/bot)",
}

// Config controls fetch behavior across all requests.
type Config struct {
	// UserAgents overrides the built-in rotation pool.
	UserAgents []string
	// BackoffBase scales the exponential backoff; the wait before retry n
	// is BackoffBase * 2^n plus up to one BackoffBase of jitter.
	BackoffBase time.Duration
	// TimeoutStep is added to the per-attempt timeout after each timeout.
	TimeoutStep time.Duration
}

// Fetcher implements scraper.Fetcher using Colly.
type Fetcher struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = defaultUserAgents
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.TimeoutStep <= 0 {
		cfg.TimeoutStep = defaultTimeoutStep
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, logger: logger}
}

// Fetch executes a GET against request.URL with up to MaxRetries+1
// attempts. HTTP 200 succeeds; 403/404 fail immediately; 429 and 5xx back
// off and retry; timeouts retry with a longer per-attempt timeout; a TLS
// failure gets a single retry with verification disabled. The breaker and
// health registry are deliberately not touched here.
func (f *Fetcher) Fetch(ctx context.Context, request scraper.FetchRequest) (scraper.FetchResult, error) {
	parsed, err := url.Parse(request.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonInvalidURL, Err: err}
	}

	timeout := request.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := request.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	verifySSL := request.VerifySSL

	start := time.Now()
	attempts := 0
	retries := 0

	for retries <= maxRetries {
		if err := ctx.Err(); err != nil {
			return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonTimeout, Err: err}
		}

		attempts++
		status, body, attemptErr := f.attempt(ctx, request, timeout, verifySSL)

		switch {
		case status == http.StatusOK:
			return scraper.FetchResult{
				URL:        request.URL,
				StatusCode: status,
				Body:       body,
				Duration:   time.Since(start),
				Attempts:   attempts,
			}, nil

		case status == http.StatusForbidden:
			f.logger.Warn("access forbidden", zap.String("url", request.URL))
			return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonForbidden}

		case status == http.StatusNotFound:
			f.logger.Warn("page not found", zap.String("url", request.URL))
			return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonNotFound}

		case status == http.StatusTooManyRequests:
			scraper.TotalRateLimitHits.Inc()
			retries++
			if retries > maxRetries {
				return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonMaxRetries}
			}
			f.logger.Warn("rate limited, backing off", zap.String("url", request.URL), zap.Int("retry", retries))
			if err := f.pause(ctx, f.backoff(retries)); err != nil {
				return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonTimeout, Err: err}
			}

		case status >= http.StatusInternalServerError:
			retries++
			if retries > maxRetries {
				return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonMaxRetries}
			}
			f.logger.Warn("server error, backing off",
				zap.String("url", request.URL), zap.Int("status", status), zap.Int("retry", retries))
			if err := f.pause(ctx, f.backoff(retries)); err != nil {
				return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonTimeout, Err: err}
			}

		case status >= http.StatusBadRequest:
			return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.HTTPErrorReason(status)}

		case isTimeoutErr(attemptErr):
			retries++
			if retries > maxRetries {
				return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonTimeout, Err: attemptErr}
			}
			f.logger.Warn("request timed out, backing off",
				zap.String("url", request.URL), zap.Duration("timeout", timeout), zap.Int("retry", retries))
			if err := f.pause(ctx, f.backoff(retries)); err != nil {
				return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonTimeout, Err: err}
			}
			timeout += f.cfg.TimeoutStep

		case isTLSErr(attemptErr):
			if verifySSL {
				f.logger.Warn("tls error, retrying without certificate verification",
					zap.String("url", request.URL), zap.Error(attemptErr))
				verifySSL = false
				continue
			}
			return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonSSL, Err: attemptErr}

		case attemptErr != nil:
			retries++
			if retries > maxRetries {
				return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonConnection, Err: attemptErr}
			}
			f.logger.Warn("connection error, backing off",
				zap.String("url", request.URL), zap.Error(attemptErr), zap.Int("retry", retries))
			if err := f.pause(ctx, f.backoff(retries)); err != nil {
				return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonConnection, Err: err}
			}

		default:
			// No status, no error: nothing usable came back.
			return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonConnection}
		}
	}

	return scraper.FetchResult{}, &scraper.FetchError{URL: request.URL, Reason: scraper.ReasonMaxRetries}
}

// attempt runs a single GET through a fresh collector and reports the
// status code, body, and transport error.
func (f *Fetcher) attempt(ctx context.Context, request scraper.FetchRequest, timeout time.Duration, verifySSL bool) (int, []byte, error) {
	collector := colly.NewCollector()
	collector.IgnoreRobotsTxt = true
	collector.UserAgent = f.userAgent(request)
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(newTransport(verifySSL))

	var (
		status   int
		body     []byte
		fetchErr error
	)

	collector.OnRequest(func(r *colly.Request) {
		if request.Headers == nil {
			r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
			r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
			return
		}
		for key, values := range request.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(request.URL)
	}()

	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case visitErr := <-done:
		if status == 0 && fetchErr == nil && visitErr != nil {
			fetchErr = visitErr
		}
		return status, body, fetchErr
	}
}

func (f *Fetcher) userAgent(request scraper.FetchRequest) string {
	if ua := request.Headers.Get("User-Agent"); ua != "" {
		return ua
	}
	return f.cfg.UserAgents[mathrand.IntN(len(f.cfg.UserAgents))]
}

// backoff is 2^retry scaled by the base, plus up to one base of jitter.
func (f *Fetcher) backoff(retry int) time.Duration {
	delay := f.cfg.BackoffBase << uint(retry)
	return delay + randomJitter(f.cfg.BackoffBase)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// pause sleeps for delay or until the context finishes.
func (f *Fetcher) pause(ctx context.Context, delay time.Duration) error {
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

func newTransport(verifySSL bool) *http.Transport {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	if !verifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- deliberate fallback for broken cert chains
	}
	return transport
}

func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTLSErr(err error) bool {
	if err == nil {
		return false
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	return strings.Contains(err.Error(), "x509:")
}
