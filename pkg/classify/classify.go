// Package classify infers what kind of research output an artifact is and
// plans the three stages of its refresh.
//
// # Stages
//
//  1. identifiers: discover more aliases. Skipped once a URL is known.
//  2. biblio: discover descriptive metadata. Skipped once a title is known.
//  3. metrics: read impact metrics from every provider that could accept
//     the artifact by the time stage 3 runs.
//
// A plan depends only on the input aliases and the registry's order, so the
// same input always yields the same plan.
package classify

import (
	"slices"
	"strings"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Genre is the kind of research output.
type Genre string

const (
	Article  Genre = "article"
	Software Genre = "software"
	Dataset  Genre = "dataset"
	Slides   Genre = "slides"
	Twitter  Genre = "twitter"
	Video    Genre = "video"
	Blog     Genre = "blog"
	Webpage  Genre = "webpage"
	Unknown  Genre = "unknown"
)

// UnknownHost is the host of artifacts no provider owns.
const UnknownHost = "unknown"

// hostGenres maps each provider-owned host to the genre it serves.
var hostGenres = map[string]Genre{
	"github":     Software,
	"dryad":      Dataset,
	"figshare":   Dataset,
	"slideshare": Slides,
	"twitter":    Twitter,
	"youtube":    Video,
	"vimeo":      Video,
	"arxiv":      Article,
}

var urlHosts = map[string]string{
	"github.com":     "github",
	"datadryad.org":  "dryad",
	"figshare.com":   "figshare",
	"slideshare.net": "slideshare",
	"twitter.com":    "twitter",
	"x.com":          "twitter",
	"youtube.com":    "youtube",
	"youtu.be":       "youtube",
	"vimeo.com":      "vimeo",
}

// DOI prefixes registered by data repositories.
var doiHosts = []struct{ prefix, host string }{
	{"10.5061/dryad.", "dryad"},
	{"10.6084/m9.figshare.", "figshare"},
}

// Classify returns the genre and host of the artifact named by aliases.
// Provider-owned identifiers decide first; generic scholarly identifiers
// make an article; any other URL makes a webpage.
func Classify(aliases *alias.Set) (Genre, string) {
	if host := hostOf(aliases); host != UnknownHost {
		return hostGenres[host], host
	}
	for _, ns := range []string{alias.DOI, alias.PMID, alias.PMC, alias.ArXiv} {
		if aliases.HasNamespace(ns) {
			return Article, UnknownHost
		}
	}
	switch {
	case aliases.HasNamespace(alias.Blog):
		return Blog, UnknownHost
	case aliases.HasNamespace(alias.URL):
		return Webpage, UnknownHost
	}
	return Unknown, UnknownHost
}

func hostOf(aliases *alias.Set) string {
	for _, ns := range []string{alias.GitHub, alias.Dryad, alias.Figshare, alias.ArXiv} {
		if aliases.HasNamespace(ns) {
			return ns
		}
	}
	for _, doi := range aliases.Get(alias.DOI) {
		for _, d := range doiHosts {
			if strings.HasPrefix(strings.ToLower(doi), d.prefix) {
				return d.host
			}
		}
	}
	for _, u := range aliases.Get(alias.URL) {
		h := integrations.Host(u)
		for suffix, host := range urlHosts {
			if h == suffix || strings.HasSuffix(h, "."+suffix) {
				return host
			}
		}
	}
	return UnknownHost
}

// Task is one provider call within a stage.
type Task struct {
	Operation provider.Operation `json:"operation"`
	Provider  string             `json:"provider"`
}

// Stage is one barrier-separated step of a refresh.
type Stage struct {
	Index     int                `json:"index"`
	Operation provider.Operation `json:"operation"`
	Tasks     []Task             `json:"tasks"`
}

// Plan is the ordered list of non-empty stages for one artifact.
type Plan struct {
	Genre  Genre   `json:"genre"`
	Host   string  `json:"host"`
	Stages []Stage `json:"stages"`
}

// Jobs returns the total number of tasks.
func (p Plan) Jobs() int {
	n := 0
	for _, s := range p.Stages {
		n += len(s.Tasks)
	}
	return n
}

// Providers returns the provider names planned for op, in order.
func (p Plan) Providers(op provider.Operation) []string {
	var out []string
	for _, s := range p.Stages {
		if s.Operation != op {
			continue
		}
		for _, t := range s.Tasks {
			out = append(out, t.Provider)
		}
	}
	return out
}

// Planner builds plans against a provider registry.
type Planner struct {
	reg *provider.Registry
}

// NewPlanner returns a planner over reg.
func NewPlanner(reg *provider.Registry) *Planner {
	return &Planner{reg: reg}
}

// articleIdentifiers is the identifier stage for articles no host owns.
var articleIdentifiers = []string{"pubmed", "crossref"}

// articleBiblio is the set of providers asked for article metadata.
var articleBiblio = []string{"crossref", "pubmed", "mendeley", "webpage"}

// Plan classifies aliases and lays out the stages. hasTitle reports whether
// the artifact already has a title.
func (pl *Planner) Plan(aliases *alias.Set, hasTitle bool) Plan {
	genre, host := Classify(aliases)
	plan := Plan{Genre: genre, Host: host}
	projected := aliases.Namespaces()

	// identifiers
	var identifiers []string
	if !aliases.HasNamespace(alias.URL) {
		switch {
		case host != UnknownHost:
			identifiers = []string{host}
		case genre == Article:
			identifiers = articleIdentifiers
		}
	}
	stage1 := pl.tasks(provider.Identifiers, identifiers, projected)
	for _, t := range stage1 {
		p, _ := pl.reg.Get(t.Provider)
		projected = union(projected, p.Emits())
	}

	// biblio
	var stage2 []Task
	if !hasTitle {
		var allowed []string
		switch {
		case genre == Article && host == UnknownHost:
			allowed = articleBiblio
		case host != UnknownHost:
			allowed = []string{host, "webpage"}
		default:
			allowed = []string{"webpage"}
		}
		stage2 = pl.tasks(provider.Biblio, pl.inRegistryOrder(provider.Biblio, allowed), projected)
	}
	if len(stage2) > 0 {
		projected = union(projected, []string{alias.URL})
	}

	// metrics
	stage3 := pl.tasks(provider.Metrics, pl.inRegistryOrder(provider.Metrics, nil), projected)

	for _, s := range []struct {
		op    provider.Operation
		tasks []Task
	}{
		{provider.Identifiers, stage1},
		{provider.Biblio, stage2},
		{provider.Metrics, stage3},
	} {
		if len(s.tasks) == 0 {
			continue
		}
		plan.Stages = append(plan.Stages, Stage{Index: len(plan.Stages), Operation: s.op, Tasks: s.tasks})
	}
	return plan
}

// inRegistryOrder returns the names of providers capable of op, in registry
// order, restricted to allowed when allowed is non-nil.
func (pl *Planner) inRegistryOrder(op provider.Operation, allowed []string) []string {
	var out []string
	for _, p := range pl.reg.Capable(op) {
		if allowed == nil || slices.Contains(allowed, p.Name()) {
			out = append(out, p.Name())
		}
	}
	return out
}

// tasks keeps the named providers that support op and accept at least one
// namespace in projected.
func (pl *Planner) tasks(op provider.Operation, names, projected []string) []Task {
	var out []Task
	for _, name := range names {
		p, ok := pl.reg.Get(name)
		if !ok || !provider.Supports(p, op) || !provider.AcceptsAny(p, projected) {
			continue
		}
		out = append(out, Task{Operation: op, Provider: name})
	}
	return out
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}
