// Package github reads repository metadata and popularity counters from the
// GitHub REST API.
//
// Software artifacts are identified by a "github" alias holding
// "owner/repo", or by a github.com URL. A personal access token is optional
// but raises the API quota from 60 to 5000 requests per hour.
package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Name is the provider name.
const Name = "github"

const (
	defaultBaseURL = "https://api.github.com"
	maxMembers     = 100
)

// Client is the GitHub provider.
type Client struct {
	*integrations.Client
	baseURL string
}

// New creates a GitHub API client with optional authentication.
func New(cfg integrations.Config) *Client {
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if cfg.Token != "" {
		headers["Authorization"] = "Bearer " + cfg.Token
	}
	return &Client{
		Client:  integrations.NewClientFor(Name, cfg, headers),
		baseURL: cfg.BaseURLOr(defaultBaseURL),
	}
}

func (c *Client) Name() string         { return Name }
func (c *Client) Namespaces() []string { return []string{alias.GitHub, alias.URL} }
func (c *Client) Emits() []string      { return []string{alias.GitHub, alias.URL} }

type repoResponse struct {
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description string    `json:"description"`
	HTMLURL     string    `json:"html_url"`
	Homepage    string    `json:"homepage"`
	Language    string    `json:"language"`
	CreatedAt   time.Time `json:"created_at"`
	Stars       int       `json:"stargazers_count"`
	Forks       int       `json:"forks_count"`
	Watchers    int       `json:"subscribers_count"`
	Archived    bool      `json:"archived"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
	License *struct {
		SPDXID string `json:"spdx_id"`
	} `json:"license"`
}

// repoOf finds "owner/repo" in a github alias or a github.com URL.
func repoOf(aliases *alias.Set) (string, bool) {
	for _, id := range aliases.Get(alias.GitHub) {
		if strings.Count(id, "/") == 1 {
			return id, true
		}
	}
	for _, u := range aliases.Get(alias.URL) {
		if r, ok := integrations.GitHubRepo(u); ok {
			return r, true
		}
	}
	return "", false
}

func (c *Client) fetchRepo(ctx context.Context, fullName string) (*repoResponse, error) {
	var data repoResponse
	url := fmt.Sprintf("%s/repos/%s", c.baseURL, fullName)
	if err := c.Get(ctx, url, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// repo loads the repository named by aliases. A missing repository yields nil.
func (c *Client) repo(ctx context.Context, aliases *alias.Set) (*repoResponse, error) {
	name, ok := repoOf(aliases)
	if !ok {
		return nil, nil
	}
	r, err := c.fetchRepo(ctx, name)
	if integrations.IsNotFound(err) {
		return nil, nil
	}
	return r, err
}

// DiscoverIdentifiers links the github alias and the repository URL.
func (c *Client) DiscoverIdentifiers(ctx context.Context, aliases *alias.Set) ([]alias.Alias, error) {
	r, err := c.repo(ctx, aliases)
	if err != nil || r == nil {
		return nil, err
	}
	out := []alias.Alias{alias.New(alias.GitHub, r.FullName)}
	if r.HTMLURL != "" {
		out = append(out, alias.New(alias.URL, r.HTMLURL))
	}
	return out, nil
}

// DiscoverBiblio returns repository metadata.
func (c *Client) DiscoverBiblio(ctx context.Context, aliases *alias.Set) (map[string]any, error) {
	r, err := c.repo(ctx, aliases)
	if err != nil || r == nil {
		return nil, err
	}
	b := map[string]any{
		"title":    r.Name,
		"owner":    r.Owner.Login,
		"url":      r.HTMLURL,
		"genre":    "software",
		"archived": r.Archived,
	}
	if !r.CreatedAt.IsZero() {
		b["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339)
		b["year"] = r.CreatedAt.Year()
	}
	if r.Description != "" {
		b["description"] = r.Description
	}
	if r.Homepage != "" {
		b["homepage"] = r.Homepage
	}
	if r.Language != "" {
		b["language"] = r.Language
	}
	if r.License != nil && r.License.SPDXID != "" && r.License.SPDXID != "NOASSERTION" {
		b["license"] = r.License.SPDXID
	}
	return b, nil
}

// DiscoverMetrics returns stars, forks and watchers.
func (c *Client) DiscoverMetrics(ctx context.Context, aliases *alias.Set) ([]provider.Metric, error) {
	r, err := c.repo(ctx, aliases)
	if err != nil || r == nil {
		return nil, err
	}
	return []provider.Metric{
		{Name: "stars", Value: r.Stars, DrilldownURL: r.HTMLURL + "/stargazers"},
		{Name: "forks", Value: r.Forks, DrilldownURL: r.HTMLURL + "/network/members"},
		{Name: "watchers", Value: r.Watchers, DrilldownURL: r.HTMLURL + "/watchers"},
	}, nil
}

// DiscoverMembers lists the public, non-fork repositories of a user.
func (c *Client) DiscoverMembers(ctx context.Context, user string) ([]alias.Alias, error) {
	user = strings.TrimSpace(user)
	if user == "" || strings.Contains(user, "/") {
		return nil, apperr.New(apperr.ErrCodeInvalidInput, "github: members query must be a user name, got %q", user)
	}
	var repos []struct {
		FullName string `json:"full_name"`
		Fork     bool   `json:"fork"`
	}
	url := fmt.Sprintf("%s/users/%s/repos?type=owner&sort=updated&per_page=%d", c.baseURL, integrations.PathEscape(user), maxMembers)
	if err := c.Get(ctx, url, &repos); err != nil {
		return nil, err
	}
	var out []alias.Alias
	for _, r := range repos {
		if !r.Fork {
			out = append(out, alias.New(alias.GitHub, r.FullName))
		}
	}
	return out, nil
}

var (
	_ provider.IdentifierDiscoverer = (*Client)(nil)
	_ provider.BiblioDiscoverer     = (*Client)(nil)
	_ provider.MetricsDiscoverer    = (*Client)(nil)
	_ provider.MemberDiscoverer     = (*Client)(nil)
)
