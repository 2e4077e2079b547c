// Package integrations provides the shared HTTP client used by provider
// adapters.
//
// # Overview
//
// Each external provider lives in its own subpackage:
//
//   - [crossref]: DOI metadata
//   - [pubmed]: NCBI identifier conversion, PubMed summaries, PMC citations
//   - [mendeley]: catalog metadata and reader counts
//   - [webpage]: HTML title scraping for arbitrary URLs
//   - [github]: repository metadata and popularity counters
//   - [dryad]: dataset metadata and usage
//   - [figshare]: item metadata and usage
//   - [wikipedia]: article mentions
//
// # Client Pattern
//
// Adapters embed [Client] and translate provider payloads into aliases,
// biblio fields and metrics:
//
//	c := crossref.New(integrations.Config{Cache: backend})
//	res, err := c.DiscoverBiblio(ctx, aliases)
//
// The shared client handles:
//   - Response caching through [cache.Cache], keyed by provider and URL
//   - A service User-Agent on every request
//   - Translation of failures into the error taxonomy: 4xx is a client
//     error, 429 is rate limited (honoring Retry-After), 5xx is a server
//     error, deadlines are timeouts, other transport failures are transport
//     errors, undecodable bodies are malformed content
//
// Retries are not performed here; the job executor owns retry policy.
//
// [crossref]: github.com/matzehuels/impactrefresh/pkg/integrations/crossref
// [pubmed]: github.com/matzehuels/impactrefresh/pkg/integrations/pubmed
// [mendeley]: github.com/matzehuels/impactrefresh/pkg/integrations/mendeley
// [webpage]: github.com/matzehuels/impactrefresh/pkg/integrations/webpage
// [github]: github.com/matzehuels/impactrefresh/pkg/integrations/github
// [dryad]: github.com/matzehuels/impactrefresh/pkg/integrations/dryad
// [figshare]: github.com/matzehuels/impactrefresh/pkg/integrations/figshare
// [wikipedia]: github.com/matzehuels/impactrefresh/pkg/integrations/wikipedia
// [cache.Cache]: github.com/matzehuels/impactrefresh/pkg/cache.Cache
package integrations
