package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/twigpack/pkg/config"
	"mercator-hq/twigpack/pkg/telemetry/health"
)

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig().Telemetry
	buf := &bytes.Buffer{}

	tel, err := New(&cfg, buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer tel.Shutdown(context.Background())

	if tel.Tracer().Enabled() {
		t.Error("tracing is disabled by default")
	}

	tel.Logger().Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("expected text log output, got %q", buf.String())
	}
}

func TestNew_InvalidLogging(t *testing.T) {
	cfg := config.DefaultConfig().Telemetry
	cfg.Logging.Format = "xml"

	if _, err := New(&cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for invalid log format")
	}
}

func TestHandler(t *testing.T) {
	cfg := config.DefaultConfig().Telemetry
	tel, err := New(&cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tel.Metrics().RecordCompile("a.twig", "precompile", "success", time.Millisecond, 1)
	handler := tel.Handler(health.VersionInfo{Version: "test"})

	for path, want := range map[string]string{
		"/metrics": "twigpack_compile_total",
		"/health":  `"status":"ok"`,
		"/ready":   `"status":"ready"`,
		"/version": `"version":"test"`,
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("%s: expected %q in body %q", path, want, rec.Body.String())
		}
	}
}

func TestHandler_MetricsDisabled(t *testing.T) {
	cfg := config.DefaultConfig().Telemetry
	cfg.Metrics.Enabled = false
	tel, _ := New(&cfg, &bytes.Buffer{})

	rec := httptest.NewRecorder()
	tel.Handler(health.VersionInfo{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with metrics disabled, got %d", rec.Code)
	}
}
