package crossref

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
)

const workJSON = `{
  "status": "ok",
  "message": {
    "DOI": "10.1/x",
    "URL": "http://dx.doi.org/10.1/x",
    "type": "journal-article",
    "title": ["A Study of Things"],
    "container-title": ["Journal of Things"],
    "ISSN": ["1234-5678"],
    "volume": "12",
    "page": "100-110",
    "is-referenced-by-count": 42,
    "author": [{"given": "Ada", "family": "Lovelace"}, {"given": "Alan", "family": "Turing"}],
    "issued": {"date-parts": [[2015, 5, 28]]}
  }
}`

func testClient(t *testing.T) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/works/10.1/x":
			w.Write([]byte(workJSON))
		case "/works/10.1/broken":
			w.Write([]byte(`{"message": "nope"`))
		case "/works/10.1/down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return New(integrations.Config{BaseURL: server.URL, Doer: server.Client()})
}

func TestDiscoverIdentifiers(t *testing.T) {
	c := testClient(t)
	got, err := c.DiscoverIdentifiers(context.Background(), alias.NewSet(alias.New("doi", "10.1/X")))
	if err != nil {
		t.Fatalf("DiscoverIdentifiers() error: %v", err)
	}
	want := alias.NewSet(alias.New("url", "http://dx.doi.org/10.1/x"), alias.New("issn", "1234-5678"))
	if len(got) != want.Len() {
		t.Fatalf("DiscoverIdentifiers() = %v", got)
	}
	for _, a := range got {
		if !want.Has(a) {
			t.Errorf("unexpected alias %v", a)
		}
	}
}

func TestDiscoverBiblio(t *testing.T) {
	c := testClient(t)
	b, err := c.DiscoverBiblio(context.Background(), alias.NewSet(alias.New("doi", "10.1/x")))
	if err != nil {
		t.Fatalf("DiscoverBiblio() error: %v", err)
	}
	checks := map[string]any{
		"title":      "A Study of Things",
		"journal":    "Journal of Things",
		"year":       2015,
		"authors":    "Lovelace, Ada; Turing, Alan",
		"first_page": "100",
		"genre":      "journal-article",
	}
	for k, want := range checks {
		if b[k] != want {
			t.Errorf("biblio[%q] = %v, want %v", k, b[k], want)
		}
	}
}

func TestDiscoverMetrics(t *testing.T) {
	c := testClient(t)
	ms, err := c.DiscoverMetrics(context.Background(), alias.NewSet(alias.New("doi", "10.1/x")))
	if err != nil {
		t.Fatalf("DiscoverMetrics() error: %v", err)
	}
	if len(ms) != 1 || ms[0].Name != "citations" || ms[0].Value != 42 {
		t.Errorf("DiscoverMetrics() = %+v", ms)
	}
}

func TestErrors(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	if got, err := c.DiscoverBiblio(ctx, alias.NewSet(alias.New("doi", "10.1/missing"))); err != nil || got != nil {
		t.Errorf("unknown DOI = %v, %v; want nothing", got, err)
	}
	if _, err := c.DiscoverBiblio(ctx, alias.NewSet(alias.New("doi", "10.1/broken"))); !apperr.Is(err, apperr.ErrCodeContentMalformed) {
		t.Errorf("broken body error = %v, want CONTENT_MALFORMED", err)
	}
	if _, err := c.DiscoverBiblio(ctx, alias.NewSet(alias.New("doi", "10.1/down"))); !apperr.Is(err, apperr.ErrCodeServerError) {
		t.Errorf("502 error = %v, want SERVER_ERROR", err)
	}
	if got, err := c.DiscoverBiblio(ctx, alias.NewSet(alias.New("pmid", "1"))); err != nil || got != nil {
		t.Errorf("no DOI = %v, %v; want nothing", got, err)
	}
}
