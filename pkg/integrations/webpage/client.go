// Package webpage scrapes descriptive metadata from arbitrary web pages.
package webpage

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Name is the provider name.
const Name = "webpage"

// Client is the webpage provider.
type Client struct {
	*integrations.Client
}

// New creates a webpage client.
func New(cfg integrations.Config) *Client {
	headers := map[string]string{"Accept": "text/html,application/xhtml+xml"}
	return &Client{Client: integrations.NewClientFor(Name, cfg, headers)}
}

func (c *Client) Name() string         { return Name }
func (c *Client) Namespaces() []string { return []string{alias.URL} }
func (c *Client) Emits() []string      { return nil }

// DiscoverBiblio reads the page title, preferring OpenGraph and citation
// meta tags over the <title> element.
func (c *Client) DiscoverBiblio(ctx context.Context, aliases *alias.Set) (map[string]any, error) {
	u, ok := aliases.First(alias.URL)
	if !ok {
		return nil, nil
	}
	if err := apperr.ValidateURL(u); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeClientError, err, "webpage: %s", u)
	}
	body, err := c.GetText(ctx, u)
	if err != nil {
		if integrations.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeContentMalformed, err, "webpage: parse %s", u)
	}
	return extract(doc, u), nil
}

func extract(doc *goquery.Document, u string) map[string]any {
	b := map[string]any{"url": u}

	title := meta(doc, "citation_title", "og:title", "twitter:title")
	if title == "" {
		title = doc.Find("head title").First().Text()
	}
	if title = strings.Join(strings.Fields(title), " "); title != "" {
		b["title"] = title
	}
	if v := meta(doc, "citation_journal_title", "og:site_name"); v != "" {
		b["journal"] = v
	}
	if v := meta(doc, "citation_publication_date", "citation_date"); len(v) >= 4 {
		b["year"] = v[:4]
	}
	var authors []string
	doc.Find(`meta[name="citation_author"]`).Each(func(_ int, s *goquery.Selection) {
		if v := strings.TrimSpace(s.AttrOr("content", "")); v != "" {
			authors = append(authors, v)
		}
	})
	if len(authors) > 0 {
		b["authors"] = strings.Join(authors, "; ")
	}
	if v := meta(doc, "description", "og:description"); v != "" {
		b["abstract"] = v
	}
	return b
}

// meta returns the content of the first present meta tag among names,
// matched by either name= or property=.
func meta(doc *goquery.Document, names ...string) string {
	for _, n := range names {
		sel := doc.Find(`meta[name="` + n + `"], meta[property="` + n + `"]`).First()
		if v := strings.TrimSpace(sel.AttrOr("content", "")); v != "" {
			return v
		}
	}
	return ""
}

var _ provider.BiblioDiscoverer = (*Client)(nil)
