// Package pkg provides the libraries behind impactrefresh, a service that
// keeps canonical impact records of research outputs up to date.
//
// # Overview
//
// An artifact is one research output (an article, a dataset, a repository)
// known by one or more aliases such as a DOI, a PubMed id or a URL. A
// refresh asks external providers about the artifact and merges what they
// return into its record. The pkg directory is organized into four areas:
//
//  1. Domain: [alias], [artifact], [classify], [merge]
//  2. Providers: [provider] and the adapters under [integrations]
//  3. Execution: [pipeline], [jobqueue], [ratelimit], [status], [retry]
//  4. Infrastructure: [store], [cache], [config], [observability], [errors]
//
// # Architecture
//
// A refresh flows through these packages:
//
//	alias (register or refresh request)
//	         ↓
//	    [classify] genre, host and a three-stage plan
//	         ↓
//	    [pipeline] jobs per stage, run in place or queued for workers
//	         ↓
//	    [provider] calls, gated by [ratelimit] and retried per [retry]
//	         ↓
//	    [merge] aliases, biblio and metric observations into the [store]
//
// Stages run in order: identifiers, then biblio, then metrics. A stage
// starts only once every job of the previous one has finished, so later
// providers see the aliases earlier ones discovered. [status] counts the
// jobs still outstanding per artifact.
//
// # Quick Start
//
// Refresh an artifact in process:
//
//	cfg, _ := config.Load("")
//	a, _ := app.New(ctx, cfg, logger)
//	defer a.Close()
//
//	art, run, err := a.Local.Register(ctx, alias.New("doi", "10.1371/journal.pcbi.1000361"))
//
// With redis.addr configured, a.Service queues the run instead and any
// number of worker processes execute it.
package pkg
