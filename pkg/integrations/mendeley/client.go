// Package mendeley reads catalog metadata and reader counts from the
// Mendeley API. An OAuth access token is required.
package mendeley

import (
	"context"
	"net/url"
	"strings"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Name is the provider name.
const Name = "mendeley"

const defaultBaseURL = "https://api.mendeley.com"

// Client is the Mendeley provider.
type Client struct {
	*integrations.Client
	baseURL string
}

// New creates a Mendeley client. It fails with CONFIGURATION_ERROR when no
// token is configured.
func New(cfg integrations.Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, apperr.New(apperr.ErrCodeConfiguration, "mendeley: access token required")
	}
	headers := map[string]string{
		"Authorization": "Bearer " + cfg.Token,
		"Accept":        "application/vnd.mendeley-document.1+json",
	}
	return &Client{
		Client:  integrations.NewClientFor(Name, cfg, headers),
		baseURL: cfg.BaseURLOr(defaultBaseURL),
	}, nil
}

func (c *Client) Name() string         { return Name }
func (c *Client) Namespaces() []string { return []string{alias.DOI, alias.PMID, alias.ArXiv} }
func (c *Client) Emits() []string      { return nil }

type document struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	Year        int    `json:"year"`
	Type        string `json:"type"`
	Abstract    string `json:"abstract"`
	Link        string `json:"link"`
	ReaderCount int    `json:"reader_count"`
	Authors     []struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"authors"`
}

// lookup queries the catalog by the first usable identifier.
func (c *Client) lookup(ctx context.Context, aliases *alias.Set) (*document, error) {
	q := url.Values{"view": {"stats"}}
	switch {
	case aliases.HasNamespace(alias.DOI):
		id, _ := aliases.First(alias.DOI)
		q.Set("doi", id)
	case aliases.HasNamespace(alias.PMID):
		id, _ := aliases.First(alias.PMID)
		q.Set("pmid", id)
	case aliases.HasNamespace(alias.ArXiv):
		id, _ := aliases.First(alias.ArXiv)
		q.Set("arxiv", id)
	default:
		return nil, nil
	}

	var docs []document
	if err := c.Get(ctx, c.baseURL+"/catalog?"+q.Encode(), &docs); err != nil {
		if integrations.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

// DiscoverBiblio returns catalog metadata.
func (c *Client) DiscoverBiblio(ctx context.Context, aliases *alias.Set) (map[string]any, error) {
	d, err := c.lookup(ctx, aliases)
	if err != nil || d == nil {
		return nil, err
	}
	b := map[string]any{}
	if d.Title != "" {
		b["title"] = d.Title
	}
	if d.Source != "" {
		b["journal"] = d.Source
	}
	if d.Year > 0 {
		b["year"] = d.Year
	}
	if d.Abstract != "" {
		b["abstract"] = d.Abstract
	}
	if len(d.Authors) > 0 {
		names := make([]string, len(d.Authors))
		for i, a := range d.Authors {
			names[i] = strings.TrimSpace(a.LastName + ", " + a.FirstName)
		}
		b["authors"] = strings.Join(names, "; ")
	}
	return b, nil
}

// DiscoverMetrics returns the reader count.
func (c *Client) DiscoverMetrics(ctx context.Context, aliases *alias.Set) ([]provider.Metric, error) {
	d, err := c.lookup(ctx, aliases)
	if err != nil || d == nil || d.ReaderCount == 0 {
		return nil, err
	}
	return []provider.Metric{{Name: "readers", Value: d.ReaderCount, DrilldownURL: d.Link}}, nil
}

var (
	_ provider.BiblioDiscoverer  = (*Client)(nil)
	_ provider.MetricsDiscoverer = (*Client)(nil)
)
