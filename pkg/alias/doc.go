// Package alias models the identifiers that name a research artifact.
//
// # Canonical Form
//
// An [Alias] is a (namespace, identifier) pair such as ("doi", "10.1/abc")
// or ("url", "https://example.org/paper"). [New] canonicalizes on the way in:
// namespaces are lower-cased and folded onto a canonical name ("pubmed"
// becomes "pmid", "uri" becomes "url"), and DOI identifiers are lower-cased,
// so ("DOI", "10.1/ABC") and ("doi", "10.1/abc") are stored identically.
//
// # Identity
//
// [Alias.Key] is the identity used for deduplication. On top of the
// canonical form it strips resolver prefixes from DOIs. A "biblio"
// pseudo-alias carries a free-text citation as a JSON object; its key is
// built from title, authors, journal and year compared case-insensitively.
//
// # Sets
//
// [Set] keeps aliases in insertion order and refuses members whose key is
// already present, which is the property the merger relies on: unioning
// the same discovery result twice never grows the set.
package alias
