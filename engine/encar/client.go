// Package encar talks to the Encar marketplace: paginated search plus the
// four per-listing detail documents.
package encar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/WessleyAI/carfeed/pkg/fn"
	"github.com/WessleyAI/carfeed/pkg/metrics"
	"github.com/WessleyAI/carfeed/pkg/resilience"
)

// Endpoint names one upstream document kind. Each gets its own breaker.
type Endpoint string

const (
	EndpointSearch      Endpoint = "search"
	EndpointProfile     Endpoint = "profile"
	EndpointDiagnosis   Endpoint = "diagnosis"
	EndpointInspection  Endpoint = "inspection"
	EndpointDescription Endpoint = "description"
	EndpointPhoto       Endpoint = "photo"
)

var endpoints = []Endpoint{
	EndpointSearch, EndpointProfile, EndpointDiagnosis,
	EndpointInspection, EndpointDescription, EndpointPhoto,
}

// ErrNotFound is returned for a 404. The document is treated as absent and
// the breaker does not count it.
var ErrNotFound = errors.New("encar: not found")

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("encar: unexpected status %d from %s", e.Code, e.URL)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Transient reports whether err is worth retrying: 5xx, 429, or a network or
// timeout failure. Caller cancellation is never transient.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Client is a rate limited, retrying Encar API client.
type Client struct {
	cfg      Config
	client   *http.Client
	limiter  *rate.Limiter
	breakers map[Endpoint]*resilience.Breaker
	logger   *slog.Logger
	metrics  *metrics.Registry
	photos   PhotoSink
}

// NewClient builds a Client. A nil logger falls back to slog.Default and a
// nil registry to a private one.
func NewClient(cfg Config, logger *slog.Logger, reg *metrics.Registry) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	c := &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		breakers: make(map[Endpoint]*resilience.Breaker, len(endpoints)),
		logger:   logger.With("component", "encar"),
		metrics:  reg,
	}
	for _, ep := range endpoints {
		opts := cfg.Breaker
		opts.Name = string(ep)
		opts.IsFailure = countsAgainstBreaker
		opts.OnStateChange = func(name string, from, to resilience.State) {
			c.logger.Warn("breaker state change", "endpoint", name, "from", from.String(), "to", to.String())
			c.metrics.Counter(metrics.WithLabels("carfeed_breaker_transitions_total", "endpoint", name, "to", to.String()),
				"Circuit breaker state transitions.").Inc()
		}
		c.breakers[ep] = resilience.NewBreaker(opts)
	}
	return c
}

// countsAgainstBreaker excludes outcomes that say nothing about upstream
// health: a missing document and a caller that gave up.
func countsAgainstBreaker(err error) bool {
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled)
}

// Breaker exposes the breaker guarding ep.
func (c *Client) Breaker(ep Endpoint) *resilience.Breaker { return c.breakers[ep] }

// getJSON retrieves url and decodes the body into a fresh T. Transient
// failures are retried with backoff; everything else returns at once.
func getJSON[T any](ctx context.Context, c *Client, ep Endpoint, url string) fn.Result[*T] {
	opts := c.cfg.Retry
	opts.Retryable = Transient
	opts.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.logger.Debug("retrying", "endpoint", ep, "attempt", attempt, "wait", wait, "err", err)
		c.metrics.Counter(metrics.WithLabels("carfeed_http_retries_total", "endpoint", string(ep)),
			"Retried Encar requests.").Inc()
	}
	return fn.Retry(ctx, opts, func(ctx context.Context) fn.Result[*T] {
		return resilience.CallResult(c.breakers[ep], ctx, func(ctx context.Context) fn.Result[*T] {
			body := c.doGet(ctx, ep, url)
			if body.IsErr() {
				return fn.Err[*T](body.Error())
			}
			data, _ := body.Unwrap()
			var out T
			if err := json.Unmarshal(data, &out); err != nil {
				return fn.Errf[*T]("encar: decode %s: %w", ep, err)
			}
			return fn.Ok(&out)
		})
	})
}

// doGet performs one rate-limited GET and returns the body of a 2xx response.
func (c *Client) doGet(ctx context.Context, ep Endpoint, url string) fn.Result[[]byte] {
	if err := c.limiter.Wait(ctx); err != nil {
		return fn.Err[[]byte](err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fn.Err[[]byte](err)
	}
	if ep != EndpointPhoto {
		for k, v := range c.cfg.Headers {
			req.Header.Set(k, v)
		}
		for k, v := range c.cfg.Cookies {
			req.AddCookie(&http.Cookie{Name: k, Value: v})
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	c.metrics.Counter(metrics.WithLabels("carfeed_http_requests_total", "endpoint", string(ep), "status", status),
		"Encar HTTP requests by endpoint and status.").Inc()
	c.metrics.Histogram(metrics.WithLabels("carfeed_http_request_seconds", "endpoint", string(ep)),
		"Encar HTTP request latency.", nil).Since(start)
	if err != nil {
		return fn.Err[[]byte](err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fn.Err[[]byte](&StatusError{Code: resp.StatusCode, URL: url})
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return fn.Err[[]byte](err)
	}
	return fn.Ok(data)
}
