// Package fetch downloads remote artifacts with timeouts, pacing and an
// optional read-through cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"rental-pipeline/cache"
	"rental-pipeline/metrics"
	"rental-pipeline/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Response is the result of a successful fetch.
type Response struct {
	Body       []byte
	StatusCode int
	Cached     bool
}

// Fetcher performs cache-aware HTTP GETs.
type Fetcher struct {
	client  *http.Client
	store   *cache.Store
	limiter *rate.Limiter
	metrics *metrics.PipelineMetrics
	logger  *utils.Logger
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithClient replaces the HTTP client. Tests pass one backed by an httpmock transport.
func WithClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }

// WithTimeout sets the per-request timeout on the client.
func WithTimeout(d time.Duration) Option { return func(f *Fetcher) { f.client.Timeout = d } }

// WithRateLimit paces network requests. rps <= 0 disables pacing.
func WithRateLimit(rps float64) Option {
	return func(f *Fetcher) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			f.limiter = nil
		}
	}
}

// WithMetrics records fetch outcomes.
func WithMetrics(m *metrics.PipelineMetrics) Option { return func(f *Fetcher) { f.metrics = m } }

// New creates a Fetcher reading and writing through store.
func New(store *cache.Store, logger *utils.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 5 * time.Second},
		store:  store,
		logger: logger.With("fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.metrics == nil {
		f.metrics = metrics.NewUnregistered()
	}
	return f
}

// Store is the cache the fetcher reads through.
func (f *Fetcher) Store() *cache.Store { return f.store }

// Fetch returns the bytes at url. With useCache, a stored copy at cachePath is
// returned without touching the network, and a fresh download is written back.
func (f *Fetcher) Fetch(ctx context.Context, url, cachePath string, useCache bool, description string) (*Response, error) {
	if useCache && cachePath != "" && f.store != nil {
		data, err := f.store.Read(cachePath)
		if err == nil {
			f.logger.Debug("cache hit for %s at %s", description, cachePath)
			f.metrics.RecordFetch(metrics.OutcomeCacheHit, 0, len(data))
			return &Response{Body: data, StatusCode: http.StatusOK, Cached: true}, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			f.logger.Warn("cache read for %s failed: %v", description, err)
		}
	}

	f.logger.Info("downloading %s from %s", description, url)
	status, body, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &HTTPError{URL: url, StatusCode: status}
	}

	if useCache && cachePath != "" && f.store != nil {
		if err := f.store.Write(cachePath, body); err != nil {
			f.logger.Warn("caching %s failed: %v", description, err)
		}
	}
	return &Response{Body: body, StatusCode: status}, nil
}

// Status performs an uncached GET and returns the status code without
// treating non-2xx responses as errors.
func (f *Fetcher) Status(ctx context.Context, url string) (int, error) {
	status, _, err := f.get(ctx, url)
	return status, err
}

func (f *Fetcher) get(ctx context.Context, url string) (int, []byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("fetch %s: rate limiter: %w", url, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch %s: build request: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, f.classify(url, err, start)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, f.classify(url, err, start)
	}

	outcome := metrics.OutcomeOK
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = metrics.OutcomeHTTPError
		f.logger.Warn("GET %s returned %d", url, resp.StatusCode)
	}
	f.metrics.RecordFetch(outcome, time.Since(start), len(body))
	return resp.StatusCode, body, nil
}

func (f *Fetcher) classify(url string, err error, start time.Time) error {
	if IsTimeout(err) {
		f.metrics.RecordFetch(metrics.OutcomeTimeout, time.Since(start), 0)
		return &timeoutError{url: url, err: err}
	}
	f.metrics.RecordFetch(metrics.OutcomeError, time.Since(start), 0)
	return fmt.Errorf("fetch %s: %w", url, err)
}
