package mendeley

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
)

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(integrations.Config{}); !apperr.Is(err, apperr.ErrCodeConfiguration) {
		t.Errorf("New() without token error = %v, want CONFIGURATION_ERROR", err)
	}
}

func TestCatalog(t *testing.T) {
	var auth, doi string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		doi = r.URL.Query().Get("doi")
		if r.URL.Path != "/catalog" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"title":"A Study","source":"J. Things","year":2015,
			"reader_count":17,"link":"https://www.mendeley.com/catalogue/x",
			"authors":[{"first_name":"Ada","last_name":"Lovelace"}]}]`))
	}))
	defer server.Close()

	c, err := New(integrations.Config{BaseURL: server.URL, Doer: server.Client(), Token: "tok"})
	if err != nil {
		t.Fatal(err)
	}
	set := alias.NewSet(alias.New("doi", "10.1/X"))

	b, err := c.DiscoverBiblio(context.Background(), set)
	if err != nil {
		t.Fatalf("DiscoverBiblio() error: %v", err)
	}
	if b["title"] != "A Study" || b["year"] != 2015 || b["authors"] != "Lovelace, Ada" {
		t.Errorf("DiscoverBiblio() = %v", b)
	}
	if auth != "Bearer tok" || doi != "10.1/x" {
		t.Errorf("request auth=%q doi=%q", auth, doi)
	}

	ms, err := c.DiscoverMetrics(context.Background(), set)
	if err != nil || len(ms) != 1 || ms[0].Name != "readers" || ms[0].Value != 17 {
		t.Errorf("DiscoverMetrics() = %+v, %v", ms, err)
	}
}

func TestEmptyCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c, _ := New(integrations.Config{BaseURL: server.URL, Doer: server.Client(), Token: "tok"})
	b, err := c.DiscoverBiblio(context.Background(), alias.NewSet(alias.New("pmid", "1")))
	if err != nil || b != nil {
		t.Errorf("DiscoverBiblio() = %v, %v; want nothing", b, err)
	}
}
