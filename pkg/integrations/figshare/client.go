// Package figshare reads item metadata and usage totals from figshare.
package figshare

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Name is the provider name.
const Name = "figshare"

const (
	defaultBaseURL  = "https://api.figshare.com/v2"
	defaultStatsURL = "https://stats.figshare.com"
	maxMembers      = 100
)

// Client is the figshare provider.
type Client struct {
	*integrations.Client
	baseURL  string
	statsURL string
}

// New creates a figshare client. A BaseURL override serves both the API and
// the stats endpoints.
func New(cfg integrations.Config) *Client {
	headers := map[string]string{"Accept": "application/json"}
	if cfg.Token != "" {
		headers["Authorization"] = "token " + cfg.Token
	}
	return &Client{
		Client:   integrations.NewClientFor(Name, cfg, headers),
		baseURL:  cfg.BaseURLOr(defaultBaseURL),
		statsURL: cfg.BaseURLOr(defaultStatsURL),
	}
}

func (c *Client) Name() string         { return Name }
func (c *Client) Namespaces() []string { return []string{alias.Figshare, alias.URL} }
func (c *Client) Emits() []string      { return []string{alias.DOI, alias.URL, alias.Figshare} }

type article struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	DOI           string `json:"doi"`
	URL           string `json:"url_public_html"`
	PublishedDate string `json:"published_date"`
	Type          string `json:"defined_type_name"`
	Description   string `json:"description"`
	Authors       []struct {
		FullName string `json:"full_name"`
	} `json:"authors"`
	License struct {
		Name string `json:"name"`
	} `json:"license"`
}

// urlID matches the trailing numeric item id of a figshare landing page,
// optionally followed by a version number.
var urlID = regexp.MustCompile(`figshare\.com/articles/(?:[^/]+/)*?(\d+)(?:/\d+)?/?$`)

// itemOf returns the figshare item id from a figshare alias or URL.
func itemOf(aliases *alias.Set) (string, bool) {
	for _, id := range aliases.Get(alias.Figshare) {
		if _, err := strconv.Atoi(id); err == nil {
			return id, true
		}
	}
	for _, u := range aliases.Get(alias.URL) {
		if !strings.HasSuffix(integrations.Host(u), "figshare.com") {
			continue
		}
		if m := urlID.FindStringSubmatch(strings.SplitN(u, "?", 2)[0]); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func (c *Client) article(ctx context.Context, aliases *alias.Set) (*article, error) {
	id, ok := itemOf(aliases)
	if !ok {
		return nil, nil
	}
	var a article
	if err := c.Get(ctx, fmt.Sprintf("%s/articles/%s", c.baseURL, id), &a); err != nil {
		if integrations.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// DiscoverIdentifiers links the item's DOI and landing page.
func (c *Client) DiscoverIdentifiers(ctx context.Context, aliases *alias.Set) ([]alias.Alias, error) {
	a, err := c.article(ctx, aliases)
	if err != nil || a == nil {
		return nil, err
	}
	out := []alias.Alias{alias.New(alias.Figshare, strconv.Itoa(a.ID))}
	if a.DOI != "" {
		out = append(out, alias.New(alias.DOI, a.DOI))
	}
	if a.URL != "" {
		out = append(out, alias.New(alias.URL, a.URL))
	}
	return out, nil
}

// DiscoverBiblio returns item metadata.
func (c *Client) DiscoverBiblio(ctx context.Context, aliases *alias.Set) (map[string]any, error) {
	a, err := c.article(ctx, aliases)
	if err != nil || a == nil {
		return nil, err
	}
	b := map[string]any{"repository": "figshare", "genre": "dataset"}
	if a.Title != "" {
		b["title"] = a.Title
	}
	if a.Type != "" {
		b["genre"] = a.Type
	}
	if len(a.PublishedDate) >= 4 {
		b["year"] = a.PublishedDate[:4]
	}
	if len(a.Authors) > 0 {
		names := make([]string, len(a.Authors))
		for i, au := range a.Authors {
			names[i] = au.FullName
		}
		b["authors"] = strings.Join(names, "; ")
	}
	if a.License.Name != "" {
		b["license"] = a.License.Name
	}
	return b, nil
}

// DiscoverMetrics returns total views, downloads and shares.
func (c *Client) DiscoverMetrics(ctx context.Context, aliases *alias.Set) ([]provider.Metric, error) {
	id, ok := itemOf(aliases)
	if !ok {
		return nil, nil
	}
	page := "https://figshare.com/articles/_/" + id
	var out []provider.Metric
	for _, kind := range []string{"views", "downloads", "shares"} {
		var total struct {
			Totals int `json:"totals"`
		}
		url := fmt.Sprintf("%s/total/%s/article/%s", c.statsURL, kind, id)
		if err := c.Get(ctx, url, &total); err != nil {
			if integrations.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if total.Totals > 0 {
			out = append(out, provider.Metric{Name: kind, Value: total.Totals, DrilldownURL: page})
		}
	}
	return out, nil
}

// DiscoverMembers lists the public items of a figshare collection.
func (c *Client) DiscoverMembers(ctx context.Context, collection string) ([]alias.Alias, error) {
	collection = strings.TrimSpace(collection)
	if _, err := strconv.Atoi(collection); err != nil {
		return nil, apperr.New(apperr.ErrCodeInvalidInput, "figshare: collection id must be numeric, got %q", collection)
	}
	var items []struct {
		ID  int    `json:"id"`
		DOI string `json:"doi"`
	}
	url := fmt.Sprintf("%s/collections/%s/articles?page_size=%d", c.baseURL, collection, maxMembers)
	if err := c.Get(ctx, url, &items); err != nil {
		return nil, err
	}
	out := make([]alias.Alias, 0, len(items))
	for _, it := range items {
		if it.DOI != "" {
			out = append(out, alias.New(alias.DOI, it.DOI))
			continue
		}
		out = append(out, alias.New(alias.Figshare, strconv.Itoa(it.ID)))
	}
	return out, nil
}

var (
	_ provider.IdentifierDiscoverer = (*Client)(nil)
	_ provider.BiblioDiscoverer     = (*Client)(nil)
	_ provider.MetricsDiscoverer    = (*Client)(nil)
	_ provider.MemberDiscoverer     = (*Client)(nil)
)
