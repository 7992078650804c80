package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/roadrisk/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int

	// Retry overrides the backoff policy; MaxRetries still sets the attempts.
	Retry *resilience.RetryConfig

	// RateLimiters holds per-host limiters; hosts without one share
	// DefaultRate.
	RateLimiters map[string]*rate.Limiter
	DefaultRate  rate.Limit
}

// HTTPFetcher implements Fetcher with per-host rate limiting and retry of
// transient failures.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
	retry  resilience.RetryConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ Fetcher = (*HTTPFetcher)(nil)

// DefaultRateLimiters returns limiters for the public data APIs the
// aggregates usually come from.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"servicodados.ibge.gov.br": rate.NewLimiter(5, 5),
		"apisidra.ibge.gov.br":     rate.NewLimiter(2, 2),
	}
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "roadrisk/1.0"
	}
	if opts.DefaultRate == 0 {
		opts.DefaultRate = 20
	}

	retry := resilience.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	retry = retry.WithAttempts(opts.MaxRetries)
	retry.OnRetry = resilience.RetryLogger("fetcher", "download")

	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for host, lim := range opts.RateLimiters {
		limiters[host] = lim
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		retry:    retry,
		limiters: limiters,
	}
}

func (f *HTTPFetcher) limiterFor(u *url.URL) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(f.opts.DefaultRate, int(f.opts.DefaultRate))
		f.limiters[u.Host] = lim
	}
	return lim
}

// Download fetches the URL and returns the response body. 408, 429 and 5xx
// responses and network timeouts are retried with backoff.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	lim := f.limiterFor(u)

	body, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (io.ReadCloser, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: request")
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			_ = resp.Body.Close()
			return nil, resilience.NewTransientError(
				eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
		default:
			_ = resp.Body.Close()
			return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
		}
	})
	if err != nil {
		zap.L().Warn("download failed",
			zap.String("component", "fetcher"),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return nil, err
	}
	return body, nil
}

// DownloadToFile fetches the URL and writes it to path, creating parent
// directories as needed.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrap(err, "fetcher: create directory")
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, body)
	if err != nil {
		return n, eris.Wrap(err, "fetcher: write file")
	}
	return n, nil
}
