// Package pubmed talks to the NCBI services behind PubMed and PubMed Central.
//
// The identifier converter maps between DOI, PMID and PMCID; E-utilities
// summaries provide citation fields, and the pubmed_pmc_refs link set gives
// the number of PMC articles citing a paper.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Name is the provider name.
const Name = "pubmed"

const (
	defaultIDConvURL = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0"
	defaultEUtilsURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	tool             = "impactrefresh"
)

// Client is the PubMed provider.
type Client struct {
	*integrations.Client
	idconvURL string
	eutilsURL string
	apiKey    string
}

// New creates a PubMed client. BaseURL, when set, replaces both service
// roots (tests serve both from one server). Token is the NCBI API key.
func New(cfg integrations.Config) *Client {
	return &Client{
		Client:    integrations.NewClientFor(Name, cfg, nil),
		idconvURL: cfg.BaseURLOr(defaultIDConvURL),
		eutilsURL: cfg.BaseURLOr(defaultEUtilsURL),
		apiKey:    cfg.Token,
	}
}

func (c *Client) Name() string         { return Name }
func (c *Client) Namespaces() []string { return []string{alias.DOI, alias.PMID, alias.PMC} }
func (c *Client) Emits() []string      { return []string{alias.DOI, alias.PMID, alias.PMC} }

type idconvResponse struct {
	Status  string `json:"status"`
	Records []struct {
		DOI    string `json:"doi"`
		PMID   string `json:"pmid"`
		PMCID  string `json:"pmcid"`
		Status string `json:"status"`
	} `json:"records"`
}

// convert looks up the sibling identifiers of one id.
func (c *Client) convert(ctx context.Context, id string) (doi, pmid, pmcid string, err error) {
	q := url.Values{"ids": {id}, "format": {"json"}, "tool": {tool}}
	var resp idconvResponse
	if err := c.Get(ctx, c.idconvURL+"/?"+q.Encode(), &resp); err != nil {
		return "", "", "", err
	}
	for _, r := range resp.Records {
		if r.Status == "error" {
			continue
		}
		return r.DOI, r.PMID, r.PMCID, nil
	}
	return "", "", "", nil
}

// lookupKey picks the identifier the converter is asked about.
func lookupKey(aliases *alias.Set) (string, bool) {
	for _, ns := range []string{alias.PMID, alias.PMC, alias.DOI} {
		if id, ok := aliases.First(ns); ok {
			return id, true
		}
	}
	return "", false
}

// DiscoverIdentifiers maps between DOI, PMID and PMCID.
func (c *Client) DiscoverIdentifiers(ctx context.Context, aliases *alias.Set) ([]alias.Alias, error) {
	id, ok := lookupKey(aliases)
	if !ok {
		return nil, nil
	}
	doi, pmid, pmcid, err := c.convert(ctx, id)
	if err != nil {
		if integrations.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []alias.Alias
	if doi != "" {
		out = append(out, alias.New(alias.DOI, doi))
	}
	if pmid != "" {
		out = append(out, alias.New(alias.PMID, pmid))
	}
	if pmcid != "" {
		out = append(out, alias.New(alias.PMC, pmcid))
	}
	return out, nil
}

// pmidFor returns a PMID for the artifact, converting when only a DOI or
// PMCID is known.
func (c *Client) pmidFor(ctx context.Context, aliases *alias.Set) (string, error) {
	if pmid, ok := aliases.First(alias.PMID); ok {
		return pmid, nil
	}
	id, ok := lookupKey(aliases)
	if !ok {
		return "", nil
	}
	_, pmid, _, err := c.convert(ctx, id)
	if integrations.IsNotFound(err) {
		return "", nil
	}
	return pmid, err
}

func (c *Client) eutils(endpoint string, q url.Values) string {
	q.Set("retmode", "json")
	q.Set("tool", tool)
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	return fmt.Sprintf("%s/%s?%s", c.eutilsURL, endpoint, q.Encode())
}

// summaryResponse keeps entries raw: result mixes a "uids" array with
// per-id objects.
type summaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type summary struct {
	Title           string `json:"title"`
	FullJournalName string `json:"fulljournalname"`
	Source          string `json:"source"`
	PubDate         string `json:"pubdate"`
	Volume          string `json:"volume"`
	Issue           string `json:"issue"`
	Pages           string `json:"pages"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

// DiscoverBiblio returns the PubMed summary fields.
func (c *Client) DiscoverBiblio(ctx context.Context, aliases *alias.Set) (map[string]any, error) {
	pmid, err := c.pmidFor(ctx, aliases)
	if err != nil || pmid == "" {
		return nil, err
	}

	var resp summaryResponse
	if err := c.Get(ctx, c.eutils("esummary.fcgi", url.Values{"db": {"pubmed"}, "id": {pmid}}), &resp); err != nil {
		if integrations.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	raw, ok := resp.Result[pmid]
	if !ok {
		return nil, nil
	}
	var s summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeContentMalformed, err, "pubmed: summary for %s", pmid)
	}

	b := map[string]any{}
	if t := strings.TrimSuffix(strings.TrimSpace(s.Title), "."); t != "" {
		b["title"] = t
	}
	journal := s.FullJournalName
	if journal == "" {
		journal = s.Source
	}
	if journal != "" {
		b["journal"] = journal
	}
	if len(s.PubDate) >= 4 {
		b["year"] = s.PubDate[:4]
	}
	if len(s.Authors) > 0 {
		names := make([]string, len(s.Authors))
		for i, a := range s.Authors {
			names[i] = a.Name
		}
		b["authors"] = strings.Join(names, "; ")
	}
	if s.Volume != "" {
		b["volume"] = s.Volume
	}
	if s.Issue != "" {
		b["issue"] = s.Issue
	}
	if s.Pages != "" {
		b["first_page"] = strings.SplitN(s.Pages, "-", 2)[0]
	}
	return b, nil
}

type elinkResponse struct {
	LinkSets []struct {
		LinkSetDBs []struct {
			LinkName string   `json:"linkname"`
			Links    []string `json:"links"`
		} `json:"linksetdbs"`
	} `json:"linksets"`
}

// DiscoverMetrics counts PMC articles citing the paper.
func (c *Client) DiscoverMetrics(ctx context.Context, aliases *alias.Set) ([]provider.Metric, error) {
	pmid, err := c.pmidFor(ctx, aliases)
	if err != nil || pmid == "" {
		return nil, err
	}

	var resp elinkResponse
	q := url.Values{"dbfrom": {"pubmed"}, "linkname": {"pubmed_pmc_refs"}, "id": {pmid}}
	if err := c.Get(ctx, c.eutils("elink.fcgi", q), &resp); err != nil {
		if integrations.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	n := 0
	for _, ls := range resp.LinkSets {
		for _, db := range ls.LinkSetDBs {
			if db.LinkName == "pubmed_pmc_refs" {
				n += len(db.Links)
			}
		}
	}
	if n == 0 {
		return nil, nil
	}
	return []provider.Metric{{
		Name:         "pmc_citations",
		Value:        n,
		DrilldownURL: "https://www.ncbi.nlm.nih.gov/pmc/articles/pmid/" + pmid + "/citedby/",
	}}, nil
}

var (
	_ provider.IdentifierDiscoverer = (*Client)(nil)
	_ provider.BiblioDiscoverer     = (*Client)(nil)
	_ provider.MetricsDiscoverer    = (*Client)(nil)
)
