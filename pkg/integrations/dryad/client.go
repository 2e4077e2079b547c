// Package dryad reads dataset metadata and usage from the Dryad data
// repository API.
//
// A dataset is named by a "dryad" alias holding its DOI (10.5061/dryad.x)
// or by a datadryad.org landing page URL.
package dryad

import (
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Name is the provider name.
const Name = "dryad"

const defaultBaseURL = "https://datadryad.org/api/v2"

// Client is the Dryad provider.
type Client struct {
	*integrations.Client
	baseURL string
}

// New creates a Dryad client.
func New(cfg integrations.Config) *Client {
	return &Client{
		Client:  integrations.NewClientFor(Name, cfg, map[string]string{"Accept": "application/json"}),
		baseURL: cfg.BaseURLOr(defaultBaseURL),
	}
}

func (c *Client) Name() string         { return Name }
func (c *Client) Namespaces() []string { return []string{alias.Dryad, alias.URL} }
func (c *Client) Emits() []string      { return []string{alias.DOI, alias.URL, alias.Dryad} }

type dataset struct {
	Identifier      string `json:"identifier"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	PublicationDate string `json:"publicationDate"`
	SharingLink     string `json:"sharingLink"`
	License         string `json:"license"`
	Authors         []struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"authors"`
}

type usage struct {
	Views     int `json:"views"`
	Downloads int `json:"downloads"`
}

// doiOf returns the dataset DOI from a dryad alias or a Dryad URL.
func doiOf(aliases *alias.Set) (string, bool) {
	if id, ok := aliases.First(alias.Dryad); ok {
		return strings.TrimPrefix(strings.ToLower(id), "doi:"), true
	}
	for _, u := range aliases.Get(alias.URL) {
		if integrations.Host(u) != "datadryad.org" {
			continue
		}
		if i := strings.Index(strings.ToLower(u), "doi:"); i >= 0 {
			return strings.ToLower(u[i+4:]), true
		}
	}
	return "", false
}

func (c *Client) datasetURL(doi string) string {
	return fmt.Sprintf("%s/datasets/%s", c.baseURL, integrations.PathEscape("doi:"+doi))
}

func (c *Client) dataset(ctx context.Context, aliases *alias.Set) (*dataset, string, error) {
	doi, ok := doiOf(aliases)
	if !ok {
		return nil, "", nil
	}
	var d dataset
	if err := c.Get(ctx, c.datasetURL(doi), &d); err != nil {
		if integrations.IsNotFound(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return &d, doi, nil
}

// DiscoverIdentifiers links the dataset DOI and its landing page.
func (c *Client) DiscoverIdentifiers(ctx context.Context, aliases *alias.Set) ([]alias.Alias, error) {
	d, doi, err := c.dataset(ctx, aliases)
	if err != nil || d == nil {
		return nil, err
	}
	out := []alias.Alias{alias.New(alias.DOI, doi), alias.New(alias.Dryad, doi)}
	if d.SharingLink != "" {
		out = append(out, alias.New(alias.URL, d.SharingLink))
	}
	return out, nil
}

// DiscoverBiblio returns dataset metadata.
func (c *Client) DiscoverBiblio(ctx context.Context, aliases *alias.Set) (map[string]any, error) {
	d, _, err := c.dataset(ctx, aliases)
	if err != nil || d == nil {
		return nil, err
	}
	b := map[string]any{"genre": "dataset", "repository": "Dryad"}
	if d.Title != "" {
		b["title"] = d.Title
	}
	if len(d.PublicationDate) >= 4 {
		b["year"] = d.PublicationDate[:4]
	}
	if len(d.Authors) > 0 {
		names := make([]string, len(d.Authors))
		for i, a := range d.Authors {
			names[i] = strings.TrimSpace(a.LastName + ", " + a.FirstName)
		}
		b["authors"] = strings.Join(names, "; ")
	}
	if d.License != "" {
		b["license"] = d.License
	}
	return b, nil
}

// DiscoverMetrics returns page views and file downloads.
func (c *Client) DiscoverMetrics(ctx context.Context, aliases *alias.Set) ([]provider.Metric, error) {
	doi, ok := doiOf(aliases)
	if !ok {
		return nil, nil
	}
	var u usage
	if err := c.Get(ctx, c.datasetURL(doi)+"/usage", &u); err != nil {
		if integrations.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	page := "https://datadryad.org/stash/dataset/doi:" + doi
	var out []provider.Metric
	if u.Views > 0 {
		out = append(out, provider.Metric{Name: "views", Value: u.Views, DrilldownURL: page})
	}
	if u.Downloads > 0 {
		out = append(out, provider.Metric{Name: "downloads", Value: u.Downloads, DrilldownURL: page})
	}
	return out, nil
}

var (
	_ provider.IdentifierDiscoverer = (*Client)(nil)
	_ provider.BiblioDiscoverer     = (*Client)(nil)
	_ provider.MetricsDiscoverer    = (*Client)(nil)
)
