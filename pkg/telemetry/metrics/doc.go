// Package metrics exposes twigpack's Prometheus metrics.
//
// A Collector groups the compile, discovery, manifest and watch metric
// families behind one recording API. Every metric is prefixed with the
// configured namespace (default "twigpack"):
//
//	twigpack_compile_total{mode,status}
//	twigpack_compile_duration_seconds{mode}
//	twigpack_compile_errors_total{mode,phase}
//	twigpack_entry_dependencies{entry}
//	twigpack_references_total{outcome}
//	twigpack_manifest_operations_total{operation,status}
//	twigpack_manifest_operation_duration_seconds{operation}
//	twigpack_manifest_entries
//	twigpack_watch_events_total{op}
//	twigpack_rebuilds_total{status}
//	twigpack_rebuild_entries
//	twigpack_rebuild_duration_seconds
//
// The entry label is capped by a CardinalityLimiter; entries beyond the
// limit are aggregated under "other".
package metrics
