// Package crossref reads DOI registration metadata from the Crossref REST API.
//
// It resolves a DOI to its landing URL and ISSN aliases, fills the standard
// citation fields, and reports Crossref's cited-by count.
package crossref

import (
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Name is the provider name.
const Name = "crossref"

const defaultBaseURL = "https://api.crossref.org"

// Client is the Crossref provider.
type Client struct {
	*integrations.Client
	baseURL string
}

// New creates a Crossref client. A token, when set, is sent as the
// Crossref Plus API key.
func New(cfg integrations.Config) *Client {
	headers := map[string]string{"Accept": "application/json"}
	if cfg.Token != "" {
		headers["Crossref-Plus-API-Token"] = "Bearer " + cfg.Token
	}
	return &Client{
		Client:  integrations.NewClientFor(Name, cfg, headers),
		baseURL: cfg.BaseURLOr(defaultBaseURL),
	}
}

func (c *Client) Name() string         { return Name }
func (c *Client) Namespaces() []string { return []string{alias.DOI} }
func (c *Client) Emits() []string      { return []string{alias.URL, "issn"} }

type worksResponse struct {
	Message work `json:"message"`
}

type work struct {
	DOI            string   `json:"DOI"`
	URL            string   `json:"URL"`
	Type           string   `json:"type"`
	Title          []string `json:"title"`
	ContainerTitle []string `json:"container-title"`
	ISSN           []string `json:"ISSN"`
	Volume         string   `json:"volume"`
	Issue          string   `json:"issue"`
	Page           string   `json:"page"`
	CitedBy        int      `json:"is-referenced-by-count"`
	Author         []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
	Issued struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
	License []struct {
		URL string `json:"URL"`
	} `json:"license"`
}

func (c *Client) fetch(ctx context.Context, doi string) (*work, error) {
	var resp worksResponse
	url := fmt.Sprintf("%s/works/%s", c.baseURL, integrations.PathEscape(doi))
	if err := c.Get(ctx, url, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

// DiscoverIdentifiers resolves the first DOI to its registered URL and ISSNs.
func (c *Client) DiscoverIdentifiers(ctx context.Context, aliases *alias.Set) ([]alias.Alias, error) {
	doi, ok := aliases.First(alias.DOI)
	if !ok {
		return nil, nil
	}
	w, err := c.fetch(ctx, doi)
	if err != nil {
		if integrations.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []alias.Alias
	if w.URL != "" {
		out = append(out, alias.New(alias.URL, w.URL))
	}
	for _, issn := range w.ISSN {
		out = append(out, alias.New("issn", issn))
	}
	return out, nil
}

// DiscoverBiblio returns the citation fields for the first DOI.
func (c *Client) DiscoverBiblio(ctx context.Context, aliases *alias.Set) (map[string]any, error) {
	doi, ok := aliases.First(alias.DOI)
	if !ok {
		return nil, nil
	}
	w, err := c.fetch(ctx, doi)
	if err != nil {
		if integrations.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	b := map[string]any{}
	if len(w.Title) > 0 && w.Title[0] != "" {
		b["title"] = w.Title[0]
	}
	if len(w.ContainerTitle) > 0 && w.ContainerTitle[0] != "" {
		b["journal"] = w.ContainerTitle[0]
	}
	if parts := w.Issued.DateParts; len(parts) > 0 && len(parts[0]) > 0 && parts[0][0] > 0 {
		b["year"] = parts[0][0]
	}
	if len(w.Author) > 0 {
		names := make([]string, 0, len(w.Author))
		for _, a := range w.Author {
			names = append(names, strings.TrimSpace(a.Family+", "+a.Given))
		}
		b["authors"] = strings.Join(names, "; ")
	}
	if w.Volume != "" {
		b["volume"] = w.Volume
	}
	if w.Issue != "" {
		b["issue"] = w.Issue
	}
	if w.Page != "" {
		b["first_page"] = strings.SplitN(w.Page, "-", 2)[0]
	}
	if w.Type != "" {
		b["genre"] = w.Type
	}
	if len(w.License) > 0 {
		b["license"] = w.License[0].URL
	}
	return b, nil
}

// DiscoverMetrics reports how many Crossref-registered works cite the DOI.
func (c *Client) DiscoverMetrics(ctx context.Context, aliases *alias.Set) ([]provider.Metric, error) {
	doi, ok := aliases.First(alias.DOI)
	if !ok {
		return nil, nil
	}
	w, err := c.fetch(ctx, doi)
	if err != nil {
		if integrations.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if w.CitedBy == 0 {
		return nil, nil
	}
	return []provider.Metric{{
		Name:         "citations",
		Value:        w.CitedBy,
		DrilldownURL: "https://doi.org/" + doi,
	}}, nil
}

var (
	_ provider.IdentifierDiscoverer = (*Client)(nil)
	_ provider.BiblioDiscoverer     = (*Client)(nil)
	_ provider.MetricsDiscoverer    = (*Client)(nil)
)
