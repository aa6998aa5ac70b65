// Package watch rebuilds compiled templates when their sources change.
//
// A Watcher follows template directories with fsnotify and delivers
// debounced batches of changed paths. A Rebuilder maps each batch to the
// entries that depend on the changed files, using the manifest recorded by
// previous builds, and recompiles them.
//
// Basic usage:
//
//	w, err := watch.New(watch.FromWatchConfig(&cfg.Watch, roots), logger)
//	if err != nil {
//	    return err
//	}
//	rb := watch.NewRebuilder(builder, store, watch.WithEntries(resolve))
//	err = w.Watch(ctx, rb.Handle)
package watch
