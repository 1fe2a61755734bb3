// Package fetch provides the HTTP client used to pull feeds and
// transcript pages from publisher sites.
//
// The client wraps the standard http.Client and adds:
//   - Automatic retries with exponential backoff
//   - Per-host circuit breakers so one failing publisher does not burn
//     retry budget for the others
//   - Transparent decompression (gzip, deflate, brotli)
//   - A response body size cap applied after decompression
package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// Errors returned by the client.
var (
	ErrCircuitOpen  = errors.New("circuit breaker is open")
	ErrMaxRetries   = errors.New("max retries exceeded")
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// Default configuration values.
const (
	DefaultTimeout           = 30 * time.Second
	DefaultRetryAttempts     = 3
	DefaultRetryDelay        = 1 * time.Second
	DefaultRetryMaxDelay     = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultBreakerThreshold  = 5
	DefaultBreakerReset      = 30 * time.Second
	DefaultHalfOpenMax       = 1
	DefaultUserAgent         = "discoursekg-fetch/1.0"

	acceptEncodingHeader = "gzip, deflate, br"
)

// StatusError reports a response whose status code was not acceptable.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.URL)
}

// Document is one fetched resource with its fully read body.
type Document struct {
	Body        []byte
	StatusCode  int
	ContentType string
	// FinalURL is the URL after redirects.
	FinalURL  string
	Retrieved time.Time
}

// HTMLReader returns the body as UTF-8. Publisher pages still ship in
// legacy encodings now and then; the charset comes from the
// Content-Type header, a meta tag, or sniffing, in that order.
func (d *Document) HTMLReader() (io.Reader, error) {
	return charset.NewReader(bytes.NewReader(d.Body), d.ContentType)
}

// Config holds client configuration. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// Timeout is the overall per-request timeout.
	Timeout time.Duration

	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts int

	// RetryDelay is the initial delay between retries. Each retry
	// multiplies the delay by BackoffMultiplier up to RetryMaxDelay.
	RetryDelay        time.Duration
	RetryMaxDelay     time.Duration
	BackoffMultiplier float64

	// BreakerThreshold is the consecutive failure count per host before
	// its circuit opens. BreakerReset is how long the circuit stays open
	// before probing again with up to HalfOpenMax requests.
	BreakerThreshold int
	BreakerReset     time.Duration
	HalfOpenMax      int

	// UserAgent is sent with every request unless the request already
	// carries one.
	UserAgent string

	// MaxBodySize caps the response body in bytes, applied after
	// decompression. Zero disables the cap.
	MaxBodySize int64

	// AcceptableStatus lists status codes treated as success. Empty
	// means all 2xx.
	AcceptableStatus *StatusCodeSet

	// EnableDecompression advertises and transparently decodes gzip,
	// deflate and brotli bodies.
	EnableDecompression bool

	Logger *slog.Logger

	// BaseClient overrides the underlying http.Client.
	BaseClient *http.Client
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             DefaultTimeout,
		RetryAttempts:       DefaultRetryAttempts,
		RetryDelay:          DefaultRetryDelay,
		RetryMaxDelay:       DefaultRetryMaxDelay,
		BackoffMultiplier:   DefaultBackoffMultiplier,
		BreakerThreshold:    DefaultBreakerThreshold,
		BreakerReset:        DefaultBreakerReset,
		HalfOpenMax:         DefaultHalfOpenMax,
		UserAgent:           DefaultUserAgent,
		EnableDecompression: true,
	}
}

// Client fetches remote documents with retries and per-host circuit
// breakers. It is safe for concurrent use.
type Client struct {
	config   Config
	client   *http.Client
	breakers *hostBreakers
	logger   *slog.Logger
}

// New creates a client from cfg, filling unset fields from defaults.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = DefaultBreakerThreshold
	}
	if cfg.BreakerReset <= 0 {
		cfg.BreakerReset = DefaultBreakerReset
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = DefaultHalfOpenMax
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	client := cfg.BaseClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		config:   cfg,
		client:   client,
		breakers: newHostBreakers(cfg.BreakerThreshold, cfg.BreakerReset, cfg.HalfOpenMax),
		logger:   cfg.Logger,
	}
}

// NewWithDefaults creates a client with DefaultConfig.
func NewWithDefaults() *Client {
	return New(DefaultConfig())
}

// Do executes req with retries and circuit breaker protection. The
// response body is wrapped for decompression and the size cap; callers
// own closing it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.EnableDecompression && req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", acceptEncodingHeader)
	}

	breaker := c.breakers.forHost(req.URL.Host)

	var lastErr error
	delay := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("url", req.URL.String()),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * c.config.BackoffMultiplier)
			if delay > c.config.RetryMaxDelay {
				delay = c.config.RetryMaxDelay
			}
		}

		if !breaker.Allow() {
			lastErr = ErrCircuitOpen
			c.logger.Warn("circuit breaker open, skipping request",
				slog.String("host", req.URL.Host),
				slog.String("url", req.URL.String()),
			)
			continue
		}

		start := time.Now()
		resp, err := c.client.Do(req.WithContext(ctx))
		elapsed := time.Since(start)

		if err != nil {
			breaker.RecordFailure()
			lastErr = err
			c.logger.Warn("request failed",
				slog.String("url", req.URL.String()),
				slog.Duration("duration", elapsed),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			continue
		}

		if retryableStatus(resp.StatusCode) {
			breaker.RecordFailure()
			lastErr = fmt.Errorf("retryable status code: %d", resp.StatusCode)
			c.logger.Warn("retryable status code",
				slog.String("url", req.URL.String()),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt),
			)
			resp.Body.Close()
			continue
		}

		if c.acceptableStatus(resp.StatusCode) {
			breaker.RecordSuccess()
		} else {
			breaker.RecordFailure()
		}
		c.logger.Debug("request completed",
			slog.String("url", req.URL.String()),
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", elapsed),
		)

		if c.config.EnableDecompression {
			resp.Body = c.decompress(resp)
		}
		// The cap runs after decompression so a small compressed payload
		// cannot expand past the limit unnoticed.
		if c.config.MaxBodySize > 0 {
			resp.Body = newCappedReader(resp.Body, c.config.MaxBodySize)
		}

		return resp, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMaxRetries, lastErr)
	}
	return nil, ErrMaxRetries
}

// Get fetches url and reads the whole body into a Document. A response
// whose status is not acceptable returns a StatusError.
func (c *Client) Get(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !c.acceptableStatus(resp.StatusCode) {
		// Drain a little so the connection can be reused.
		io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Document{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
		Retrieved:   time.Now().UTC(),
	}, nil
}

// StandardClient returns a *http.Client routed through this client, for
// libraries that accept one.
func (c *Client) StandardClient() *http.Client {
	return &http.Client{
		Transport: roundTripper{client: c},
		Timeout:   c.config.Timeout,
	}
}

// BreakerStats returns per-host circuit breaker statistics.
func (c *Client) BreakerStats() map[string]BreakerStats {
	return c.breakers.stats()
}

type roundTripper struct {
	client *Client
}

func (t roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}

var _ http.RoundTripper = roundTripper{}

func (c *Client) acceptableStatus(code int) bool {
	if !c.config.AcceptableStatus.IsEmpty() {
		return c.config.AcceptableStatus.Contains(code)
	}
	return code >= 200 && code < 300
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// decompress wraps the body according to Content-Encoding. Unknown
// encodings pass through untouched.
func (c *Client) decompress(resp *http.Response) io.ReadCloser {
	encoding := strings.ToLower(resp.Header.Get("Content-Encoding"))
	switch encoding {
	case "":
		return resp.Body
	case "gzip":
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			c.logger.Warn("gzip reader failed, returning raw body",
				slog.String("error", err.Error()))
			return resp.Body
		}
		return &decompressReader{reader: reader, closer: resp.Body}
	case "deflate":
		return &decompressReader{reader: flate.NewReader(resp.Body), closer: resp.Body}
	case "br":
		return &decompressReader{reader: brotli.NewReader(resp.Body), closer: resp.Body}
	default:
		c.logger.Debug("unknown content encoding",
			slog.String("encoding", encoding))
		return resp.Body
	}
}

// decompressReader pairs a decompression reader with the original body
// closer.
type decompressReader struct {
	reader io.Reader
	closer io.Closer
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressReader) Close() error {
	if closer, ok := d.reader.(io.Closer); ok {
		closer.Close()
	}
	return d.closer.Close()
}

// cappedReader returns ErrBodyTooLarge once more than limit bytes have
// been read.
type cappedReader struct {
	reader    io.Reader
	closer    io.Closer
	remaining int64
	exceeded  bool
}

func newCappedReader(r io.ReadCloser, limit int64) *cappedReader {
	return &cappedReader{reader: r, closer: r, remaining: limit}
}

func (l *cappedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, ErrBodyTooLarge
	}
	n, err := l.reader.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return n, ErrBodyTooLarge
	}
	return n, err
}

func (l *cappedReader) Close() error {
	return l.closer.Close()
}
