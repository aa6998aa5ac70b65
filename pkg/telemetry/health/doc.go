// Package health serves the liveness and readiness endpoints of the
// "twigpack watch" status server.
//
// Readiness aggregates registered checks (manifest reachable, template
// directories present) and the outcome of the last rebuild: a failed
// rebuild reports "degraded" with its error until a later rebuild succeeds.
package health
