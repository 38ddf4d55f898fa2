// Package edgar talks to SEC EDGAR: a rate-limited HTTP client honoring
// the SEC fair-access policy, and a resolver that maps a fund to its
// most recent N-PORT holdings filing.
package edgar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"etfoverlap/internal/config"
	"etfoverlap/internal/infrastructure"
)

// FetchError reports that a fetch failed after the retry budget was
// exhausted, or terminally. Status is the last HTTP status observed, or
// zero when the failure never produced a response.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("edgar fetch %s failed with status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("edgar fetch %s failed: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

var errHTTPStatus = errors.New("unexpected http status")

// Client is a rate-limited EDGAR fetcher. The limiter is process-wide:
// one Client instance is shared by every caller, and Fetch blocks until
// a request slot is available rather than rejecting.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
	metrics    *infrastructure.Metrics
}

// NewClient builds a Client from configuration. A missing User-Agent is
// a configuration error: EDGAR rejects anonymous traffic, so refusing
// to construct the client beats failing on the first request.
func NewClient(cfg config.EdgarConfig, logger *slog.Logger, metrics *infrastructure.Metrics) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("edgar client requires a contact-style User-Agent")
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		logger:     logger.With(slog.String("component", "edgar_client")),
		metrics:    metrics,
	}, nil
}

// Fetch retrieves url under the shared rate ceiling. Transient failures
// (5xx, 429, network errors) are retried with exponential backoff and
// jitter; other 4xx are terminal. The returned error is always a
// *FetchError once the budget is spent.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	lastStatus := 0

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.EdgarRetries.Inc()
			}
			if err := c.sleep(ctx, c.backoff(attempt, lastStatus)); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, status, err := c.do(ctx, url)
		if err == nil {
			c.countRequest("ok")
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr, lastStatus = err, status

		if !isTransient(status, err) {
			c.countRequest("client_error")
			return nil, &FetchError{URL: url, Status: status, Err: err}
		}

		c.logger.WarnContext(ctx, "transient fetch failure",
			slog.String("url", url),
			slog.Int("status", status),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	c.countRequest("exhausted")
	return nil, &FetchError{URL: url, Status: lastStatus, Err: fmt.Errorf("retries exhausted: %w", lastErr)}
}

func (c *Client) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("%w: %d", errHTTPStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// isTransient classifies a failed attempt. A 429 from EDGAR means the
// remote limiter fired; it is retried after a longer backoff rather
// than surfaced to the caller.
func isTransient(status int, err error) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 {
		return true
	}
	if status >= 400 {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Connection resets and similar transport failures arrive as plain
	// url.Error values without a net.Error inside.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// backoff returns the delay before the given attempt: exponential in
// the attempt number with up to 25% jitter, quadrupled after a 429.
func (c *Client) backoff(attempt, lastStatus int) time.Duration {
	delay := c.baseDelay << (attempt - 1)
	if lastStatus == http.StatusTooManyRequests {
		delay *= 4
	}
	jitter := time.Duration(rand.Float64() * 0.25 * float64(delay))
	return delay + jitter
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) countRequest(status string) {
	if c.metrics != nil {
		c.metrics.EdgarRequests.WithLabelValues(status).Inc()
	}
}
