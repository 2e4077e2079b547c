// Package wikipedia counts Wikipedia articles that mention an artifact.
package wikipedia

import (
	"context"
	"fmt"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Name is the provider name.
const Name = "wikipedia"

const (
	defaultBaseURL = "https://en.wikipedia.org/w"
	searchLimit    = 50
)

// Client is the Wikipedia provider.
type Client struct {
	*integrations.Client
	baseURL string
}

// New creates a Wikipedia client.
func New(cfg integrations.Config) *Client {
	return &Client{
		Client:  integrations.NewClientFor(Name, cfg, nil),
		baseURL: cfg.BaseURLOr(defaultBaseURL),
	}
}

func (c *Client) Name() string         { return Name }
func (c *Client) Namespaces() []string { return []string{alias.DOI, alias.URL} }
func (c *Client) Emits() []string      { return nil }

type searchResponse struct {
	Query struct {
		SearchInfo struct {
			TotalHits int `json:"totalhits"`
		} `json:"searchinfo"`
	} `json:"query"`
}

// term picks the search phrase: the DOI when present, else the first URL.
func term(aliases *alias.Set) (string, bool) {
	if doi, ok := aliases.First(alias.DOI); ok {
		return doi, true
	}
	return aliases.First(alias.URL)
}

func (c *Client) searchURL(phrase string) string {
	return fmt.Sprintf("%s/api.php?action=query&list=search&format=json&srprop=timestamp&srlimit=%d&srsearch=%s",
		c.baseURL, searchLimit, integrations.URLEncode(`"`+phrase+`"`))
}

// DiscoverMetrics returns the number of articles mentioning the artifact.
func (c *Client) DiscoverMetrics(ctx context.Context, aliases *alias.Set) ([]provider.Metric, error) {
	phrase, ok := term(aliases)
	if !ok {
		return nil, nil
	}
	var resp searchResponse
	if err := c.Get(ctx, c.searchURL(phrase), &resp); err != nil {
		if integrations.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	hits := resp.Query.SearchInfo.TotalHits
	if hits == 0 {
		return nil, nil
	}
	return []provider.Metric{{
		Name:         "mentions",
		Value:        hits,
		DrilldownURL: "https://en.wikipedia.org/w/index.php?fulltext=1&search=" + integrations.URLEncode(`"`+phrase+`"`),
	}}, nil
}

var _ provider.MetricsDiscoverer = (*Client)(nil)
