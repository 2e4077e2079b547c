package alias

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Well-known namespaces.
const (
	DOI      = "doi"
	PMID     = "pmid"
	PMC      = "pmc"
	ArXiv    = "arxiv"
	URL      = "url"
	GitHub   = "github"
	Dryad    = "dryad"
	Figshare = "figshare"
	Blog     = "blog"
	Biblio   = "biblio"
)

// synonyms folds near-duplicate namespaces onto their canonical name.
var synonyms = map[string]string{
	"uri":         URL,
	"link":        URL,
	"pubmed":      PMID,
	"pubmed_id":   PMID,
	"pmcid":       PMC,
	"arxiv_id":    ArXiv,
	"github_repo": GitHub,
}

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// Alias names an artifact within an identifier namespace.
//
// Values built with [New] are canonical: the namespace is trimmed,
// lower-cased and folded to its canonical synonym, and DOI identifiers are
// lower-cased. The zero value is not a valid alias.
type Alias struct {
	Namespace  string `json:"namespace" bson:"namespace"`
	Identifier string `json:"identifier" bson:"identifier"`
}

// New returns the canonical form of (namespace, identifier).
func New(namespace, identifier string) Alias {
	ns := strings.ToLower(strings.TrimSpace(namespace))
	if s, ok := synonyms[ns]; ok {
		ns = s
	}
	id := strings.TrimSpace(identifier)
	if ns == DOI {
		id = strings.ToLower(id)
	}
	return Alias{Namespace: ns, Identifier: id}
}

// Parse reads the "namespace:identifier" form used on the command line.
// Only the first colon separates the parts, so "doi:10.1/x:y" keeps its tail.
func Parse(s string) (Alias, error) {
	ns, id, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(ns) == "" || strings.TrimSpace(id) == "" {
		return Alias{}, fmt.Errorf("invalid alias %q: want namespace:identifier", s)
	}
	return New(ns, id), nil
}

// IsZero reports whether a is the zero alias.
func (a Alias) IsZero() bool { return a.Namespace == "" && a.Identifier == "" }

// String returns "namespace:identifier".
func (a Alias) String() string { return a.Namespace + ":" + a.Identifier }

// Key returns the identity used for deduplication. Two aliases refer to the
// same identity exactly when their keys are equal.
func (a Alias) Key() string {
	a = New(a.Namespace, a.Identifier)
	ns, id := a.Namespace, a.Identifier
	switch ns {
	case DOI:
		id = strings.ToLower(id)
		for _, p := range doiPrefixes {
			if strings.HasPrefix(id, p) {
				id = id[len(p):]
				break
			}
		}
	case Biblio:
		return Biblio + ":" + biblioKey(id)
	}
	return ns + ":" + id
}

// Equal reports whether a and b name the same identity.
func (a Alias) Equal(b Alias) bool { return a.Key() == b.Key() }

// reducedBiblio holds the fields a free-text citation is compared on.
type reducedBiblio struct {
	Title   string `json:"title"`
	Authors any    `json:"authors"`
	Journal string `json:"journal"`
	Year    any    `json:"year"`
}

// NewBiblio builds a biblio pseudo-alias from citation fields.
func NewBiblio(fields map[string]any) (Alias, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return Alias{}, fmt.Errorf("encode biblio alias: %w", err)
	}
	return Alias{Namespace: Biblio, Identifier: string(data)}, nil
}

func biblioKey(raw string) string {
	var b reducedBiblio
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return fold(raw)
	}
	return strings.Join([]string{
		fold(b.Title),
		fold(stringify(b.Authors)),
		fold(b.Journal),
		fold(stringify(b.Year)),
	}, "|")
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = stringify(p)
		}
		return strings.Join(parts, ",")
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
