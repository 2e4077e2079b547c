// Package provider defines the uniform capability contract every external
// data source implements, and the ordered registry the pipeline consults.
//
// A provider always reports its name, the alias namespaces it accepts and
// the namespaces its identifier discovery may add. Each operation is an
// optional interface:
//
//   - [IdentifierDiscoverer]: new aliases for the artifact
//   - [BiblioDiscoverer]: descriptive metadata fields
//   - [MetricsDiscoverer]: metric values with provenance URLs
//   - [MemberDiscoverer]: aliases belonging to an account or collection
//
// [Call] dispatches an [Operation] to the matching method. Adapters report
// failures with the codes in the errors package; Call never retries.
package provider
