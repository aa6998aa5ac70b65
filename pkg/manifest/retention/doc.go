// Package retention prunes stale manifest entries.
//
// An entry is stale when it was compiled longer ago than the retention
// period, or when its entry template no longer exists on disk.
//
// # Basic Usage
//
//	pruner := retention.NewPruner(store, &retention.Config{
//	    Retention:     30 * 24 * time.Hour,
//	    PruneSchedule: "0 3 * * *", // Daily at 3 AM
//	})
//
//	// Start background pruning
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
//
// # Manual Pruning
//
//	deleted, err := pruner.Prune(ctx)
//
// # Scheduling
//
// The scheduler uses standard five field cron expressions:
//
//   - "0 3 * * *": Daily at 3 AM (default)
//   - "0 */6 * * *": Every 6 hours
//   - "*/1 * * * *": Every minute (testing only)
//
// If no schedule is configured (empty PruneSchedule), the scheduler does
// nothing and pruning only happens on demand.
package retention
