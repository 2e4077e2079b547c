package integrations

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/matzehuels/impactrefresh/pkg/cache"
)

const httpTimeout = 30 * time.Second

// DefaultCacheTTL is how long provider responses are reused.
const DefaultCacheTTL = 10 * time.Minute

// NewHTTPClient creates an HTTP client with a standard timeout for provider requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, git://, and git+ prefixes, and removes .git suffixes.
// Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	return strings.TrimSuffix(s, ".git")
}

var githubRepoPattern = regexp.MustCompile(`^https?://(?:www\.)?github\.com/([^/]+)/([^/?#]+)`)

// GitHubRepo extracts "owner/repo" from a GitHub repository URL.
func GitHubRepo(raw string) (string, bool) {
	m := githubRepoPattern.FindStringSubmatch(NormalizeRepoURL(raw))
	if len(m) < 3 {
		return "", false
	}
	return m[1] + "/" + strings.TrimSuffix(m[2], ".git"), true
}

// Host returns the lower-cased host of raw without a leading "www.".
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }

// PathEscape percent-encodes a string for use as one path segment.
func PathEscape(s string) string { return url.PathEscape(s) }

// Config holds what every adapter needs to build its [Client].
type Config struct {
	Cache   cache.Cache   // response cache; nil disables caching
	TTL     time.Duration // cache lifetime; 0 uses DefaultCacheTTL
	Doer    Doer          // transport; nil uses NewHTTPClient
	BaseURL string        // API root override, mainly for tests
	Token   string        // API credential, if the provider takes one
}

// NewClientFor builds the shared client for provider name from cfg.
func NewClientFor(name string, cfg Config, headers map[string]string) *Client {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return NewClient(cfg.Cache, name, ttl, headers, WithDoer(cfg.Doer))
}

// BaseURLOr returns cfg.BaseURL, or def when unset, without a trailing slash.
func (cfg Config) BaseURLOr(def string) string {
	if cfg.BaseURL != "" {
		return strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return def
}
