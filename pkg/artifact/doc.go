// Package artifact defines the canonical impact record and the persistence
// contract every store backend satisfies.
//
// An [Artifact] accumulates three kinds of data from providers:
//   - Aliases: identifiers naming the same research output
//   - Biblio: descriptive fields, each remembering which provider set it
//   - Metrics: an append-only history of [Observation] values
//
// # Stores
//
// [Store] is implemented by:
//   - store/memory: in-process maps for tests and local runs
//   - store/mongo: one document per artifact
//   - store/postgres: one jsonb row per artifact
//
// Writes use optimistic concurrency. [Store.Put] succeeds only when the
// stored version equals the version the caller read, and fails with
// [ErrConflict] otherwise:
//
//	a, err := store.Get(ctx, id)
//	a.Biblio["title"] = artifact.BiblioField{...}
//	if err := store.Put(ctx, a); errors.Is(err, artifact.ErrConflict) {
//	    // re-read and try again
//	}
package artifact
