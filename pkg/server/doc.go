// Package server provides the HTTP status server run alongside "twigpack
// watch".
//
// The server exposes whatever handler it is given, typically the telemetry
// mux with the Prometheus metrics and the liveness and readiness endpoints,
// behind a small middleware chain:
//
//   - RecoveryMiddleware turns handler panics into 500 responses
//   - RequestIDMiddleware tags every request with an X-Request-ID
//   - LoggingMiddleware logs each request at a level derived from its status
//
// # Basic Usage
//
//	srv := server.NewServer(&server.Config{ListenAddress: "127.0.0.1:9464"},
//	    tel.Handler(info), logger)
//	go func() {
//	    if err := srv.Start(ctx); err != nil {
//	        logger.Error("status server failed", "error", err)
//	    }
//	}()
//
// Start blocks until ctx is cancelled or Shutdown is called, then drains
// active connections for at most Config.ShutdownTimeout.
package server
