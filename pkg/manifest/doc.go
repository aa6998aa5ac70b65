// Package manifest records what every entry template compiled to and which
// templates it depends on.
//
// The manifest drives incremental rebuilds: when a template changes, the
// entries whose resource path or dependency list contains it are the ones
// to recompile. Two backends are provided:
//
//   - SQLiteStore persists the manifest with database/sql, using either the
//     pure Go "sqlite" driver (modernc.org/sqlite) or the cgo "sqlite3"
//     driver (github.com/mattn/go-sqlite3).
//   - MemoryStore keeps everything in memory, for tests and for runs with
//     the manifest disabled.
//
// # Basic Usage
//
//	store, err := manifest.Open(&cfg.Manifest)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Record(ctx, &manifest.Entry{
//	    ResourcePath: "/src/templates/page.twig",
//	    Key:          result.Key,
//	    Dependencies: result.Dependencies,
//	})
//
//	affected, err := store.Dependents(ctx, "/src/templates/partial.twig")
package manifest
