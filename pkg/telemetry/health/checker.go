package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CheckFunc reports whether a component is usable. It returns nil when the
// component is healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult represents the result of a single health check.
type CheckResult struct {
	// Status is "ok" or "unhealthy"
	Status string `json:"status"`

	// Message describes the failure of an unhealthy check
	Message string `json:"message,omitempty"`

	// Duration is how long the check took
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// Status is the aggregated health of the watcher.
type Status struct {
	// Status is "ok" for liveness, "ready" or "degraded" for readiness
	Status string `json:"status"`

	// Checks contains the individual readiness results
	Checks map[string]CheckResult `json:"checks,omitempty"`

	// LastBuild is the completion time of the last rebuild, if any
	LastBuild *time.Time `json:"last_build,omitempty"`

	// LastError is the error of the last rebuild, if it failed
	LastError string `json:"last_error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Checker runs named readiness checks and tracks the outcome of the last
// rebuild.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc

	lastBuild time.Time
	lastErr   error

	checkTimeout time.Duration
	now          func() time.Time
}

// New creates a health checker. A zero timeout defaults to 2 seconds per
// check.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout <= 0 {
		checkTimeout = 2 * time.Second
	}
	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
		now:          time.Now,
	}
}

// RegisterCheck registers a check, replacing any check of the same name.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// ListChecks returns the sorted names of the registered checks.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ObserveBuild records the outcome of a rebuild. A failed rebuild makes the
// watcher degraded until the next successful one.
func (c *Checker) ObserveBuild(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastBuild = c.now()
	c.lastErr = err
}

// CheckLiveness reports that the process is running.
func (c *Checker) CheckLiveness(ctx context.Context) Status {
	return Status{Status: "ok", Timestamp: c.now()}
}

// CheckReadiness runs every registered check concurrently. The watcher is
// degraded when a check fails or the last rebuild failed.
func (c *Checker) CheckReadiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	lastBuild, lastErr := c.lastBuild, c.lastErr
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := c.runCheck(ctx, check)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}(name, check)
	}
	wg.Wait()

	status := Status{Status: "ready", Checks: results, Timestamp: c.now()}
	for _, result := range results {
		if result.Status != "ok" {
			status.Status = "degraded"
		}
	}
	if !lastBuild.IsZero() {
		status.LastBuild = &lastBuild
	}
	if lastErr != nil {
		status.Status = "degraded"
		status.LastError = lastErr.Error()
	}
	return status
}

// runCheck executes a single health check with timeout.
func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()

	errChan := make(chan error, 1)
	go func() {
		errChan <- check(checkCtx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return CheckResult{Status: "unhealthy", Message: err.Error(), Duration: time.Since(start)}
		}
		return CheckResult{Status: "ok", Duration: time.Since(start)}
	case <-checkCtx.Done():
		return CheckResult{Status: "unhealthy", Message: "health check timeout", Duration: time.Since(start)}
	}
}
