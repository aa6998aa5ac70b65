package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/twigpack/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:                true,
		Namespace:              "test",
		CompileDurationBuckets: []float64{0.01, 0.1, 1.0},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)
	if collector.Registry() != registry {
		t.Error("collector registry not set correctly")
	}

	defaulted := NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	if defaulted.Registry() == nil {
		t.Fatal("expected a fresh registry")
	}
	if defaulted.config.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("expected default namespace, got %q", defaulted.config.Namespace)
	}
}

func TestCollector_RecordCompile(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordCompile("a.twig", "precompile", "success", 20*time.Millisecond, 3)
	collector.RecordCompile("b.twig", "precompile", "success", 5*time.Millisecond, 1)
	collector.RecordCompile("c.twig", "direct-render", "error", time.Millisecond, 0)
	collector.RecordCompileError("direct-render", "render")

	cm := collector.compileMetrics
	if got := testutil.ToFloat64(cm.compileTotal.WithLabelValues("precompile", "success")); got != 2 {
		t.Errorf("expected 2 successful precompiles, got %v", got)
	}
	if got := testutil.ToFloat64(cm.compileTotal.WithLabelValues("direct-render", "error")); got != 1 {
		t.Errorf("expected 1 failed render, got %v", got)
	}
	if got := testutil.ToFloat64(cm.errorsTotal.WithLabelValues("direct-render", "render")); got != 1 {
		t.Errorf("expected 1 render error, got %v", got)
	}
	if got := testutil.ToFloat64(cm.dependencies.WithLabelValues("a.twig")); got != 3 {
		t.Errorf("expected 3 dependencies for a.twig, got %v", got)
	}
	if got := testutil.CollectAndCount(cm.dependencies); got != 2 {
		t.Errorf("failed compilations must not set dependencies, got %d series", got)
	}
	if got := testutil.CollectAndCount(cm.compileDuration); got != 2 {
		t.Errorf("expected 2 duration series, got %d", got)
	}
}

func TestCollector_EntryCardinality(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.entryLimiter = NewCardinalityLimiter(1)

	collector.RecordCompile("a.twig", "precompile", "success", time.Millisecond, 1)
	collector.RecordCompile("b.twig", "precompile", "success", time.Millisecond, 4)

	if got := testutil.ToFloat64(collector.compileMetrics.dependencies.WithLabelValues("other")); got != 4 {
		t.Errorf("expected overflow entry aggregated as other, got %v", got)
	}
}

func TestCollector_RecordReferences(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordReferences(2, 3, 1)
	collector.RecordReferences(0, 0, 0)

	refs := collector.discoveryMetrics.referencesTotal
	if got := testutil.ToFloat64(refs.WithLabelValues("tracked")); got != 2 {
		t.Errorf("tracked = %v, want 2", got)
	}
	if got := testutil.ToFloat64(refs.WithLabelValues("rewritten")); got != 3 {
		t.Errorf("rewritten = %v, want 3", got)
	}
	if got := testutil.ToFloat64(refs.WithLabelValues("unresolved")); got != 1 {
		t.Errorf("unresolved = %v, want 1", got)
	}
}

func TestCollector_ManifestAndWatch(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordManifestOperation("record", nil, time.Millisecond)
	collector.RecordManifestOperation("record", errors.New("locked"), time.Millisecond)
	collector.UpdateManifestEntries(7)
	collector.RecordWatchEvent("write")
	collector.RecordWatchEvent("write")
	collector.RecordRebuild(3, nil, 10*time.Millisecond)

	mm := collector.manifestMetrics
	if got := testutil.ToFloat64(mm.operationsTotal.WithLabelValues("record", "error")); got != 1 {
		t.Errorf("expected 1 failed record, got %v", got)
	}
	if got := testutil.ToFloat64(mm.entries); got != 7 {
		t.Errorf("expected 7 entries, got %v", got)
	}

	wm := collector.watchMetrics
	if got := testutil.ToFloat64(wm.eventsTotal.WithLabelValues("write")); got != 2 {
		t.Errorf("expected 2 write events, got %v", got)
	}
	if got := testutil.ToFloat64(wm.rebuildsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 rebuild, got %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordCompile("a.twig", "precompile", "success", time.Millisecond, 1)
	collector.RecordCompileError("precompile", "parse")
	collector.RecordReferences(1, 1, 1)
	collector.RecordWatchEvent("create")

	if got := testutil.CollectAndCount(collector.compileMetrics.compileTotal); got != 0 {
		t.Errorf("disabled collector recorded %d series", got)
	}
	if got := testutil.CollectAndCount(collector.discoveryMetrics.referencesTotal); got != 0 {
		t.Errorf("disabled collector recorded %d reference series", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordCompile("a.twig", "precompile", "success", time.Millisecond, 1)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_compile_total{mode="precompile",status="success"} 1`) {
		t.Errorf("compile counter missing from exposition:\n%s", rec.Body.String())
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("expected first two label sets to be allowed")
	}
	if cl.Allow("c") {
		t.Error("expected third label set to be rejected")
	}
	if !cl.Allow("a") {
		t.Error("known label sets stay allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("expected count 2, got %d", cl.Count())
	}
}
