package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/impactrefresh/pkg/buildinfo"
	"github.com/matzehuels/impactrefresh/pkg/cache"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/observability"
)

// maxBody bounds how much of a response body is read.
const maxBody = 16 << 20

// Doer sends HTTP requests. *http.Client satisfies it; tests inject fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides shared HTTP functionality for all provider adapters.
// It handles response caching, the service User-Agent, and translation of
// transport and status failures into the error taxonomy.
type Client struct {
	http    Doer
	cache   cache.Cache
	prefix  string
	ttl     time.Duration
	headers map[string]string
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithDoer replaces the HTTP transport.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// NewClient creates a Client that caches responses in backend under prefix
// for ttl. prefix is also the provider name reported in throttling errors.
// Headers are applied to all requests made through this client.
// Pass nil for headers if no default headers are needed.
func NewClient(backend cache.Cache, prefix string, ttl time.Duration, headers map[string]string, opts ...Option) *Client {
	if backend == nil {
		backend = cache.NewNullCache()
	}
	c := &Client{
		http:    NewHTTPClient(),
		cache:   backend,
		prefix:  strings.TrimSuffix(prefix, ":"),
		ttl:     ttl,
		headers: headers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.fetch(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		// a bad body must not be served again from cache
		_ = c.cache.Delete(ctx, c.key(url, headers))
		return apperr.Wrap(apperr.ErrCodeContentMalformed, err, "%s: decode %s", c.prefix, url)
	}
	return nil
}

// GetText performs an HTTP GET request and returns the response body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.fetch(ctx, url, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	key := c.key(url, headers)
	if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return data, nil
	}
	data, err := c.doRequest(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(ctx, key, data, c.ttl)
	return data, nil
}

// key scopes the cache entry by request headers so that content
// negotiation variants do not collide.
func (c *Client) key(url string, headers map[string]string) string {
	if len(headers) == 0 {
		return cache.Key(c.prefix, url)
	}
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	slices.Sort(names)
	var b strings.Builder
	b.WriteString(url)
	for _, k := range names {
		b.WriteString("\n" + k + ":" + headers[k])
	}
	return cache.Key(c.prefix, b.String())
}

func (c *Client) doRequest(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeClientError, err, "%s: build request", c.prefix)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, c.transportError(ctx, rawURL, err)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, c.transportError(ctx, rawURL, err)
	}
	return data, nil
}

func (c *Client) transportError(ctx context.Context, rawURL string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return apperr.Wrap(apperr.ErrCodeTimeout, err, "%s: %s", c.prefix, redact(rawURL))
	}
	return apperr.Wrap(apperr.ErrCodeTransport, err, "%s: %s", c.prefix, redact(rawURL))
}

func (c *Client) checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return &apperr.RateLimitedError{
			Provider:   c.prefix,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
		}
	case code >= 500:
		e := apperr.New(apperr.ErrCodeServerError, "%s: status %d", c.prefix, code)
		e.Status = code
		return e
	default:
		e := apperr.New(apperr.ErrCodeClientError, "%s: status %d", c.prefix, code)
		e.Status = code
		return e
	}
}

// parseRetryAfter reads the delay-seconds or HTTP-date form.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// IsNotFound reports whether err is a client error caused by a 404.
// Adapters treat it as "nothing to contribute".
func IsNotFound(err error) bool {
	var e *apperr.Error
	return errors.As(err, &e) && e.Code == apperr.ErrCodeClientError && e.Status == http.StatusNotFound
}

// redact strips query strings, which may carry API keys, from logged URLs.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	return u.String()
}
