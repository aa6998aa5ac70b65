package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_DefaultTimeout(t *testing.T) {
	if got := New(0).checkTimeout; got != 2*time.Second {
		t.Errorf("expected default timeout 2s, got %v", got)
	}
	if got := New(time.Second).checkTimeout; got != time.Second {
		t.Errorf("expected custom timeout, got %v", got)
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		buildErr   error
		observe    bool
		wantStatus string
	}{
		{
			name:       "no checks",
			wantStatus: "ready",
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"manifest":  func(context.Context) error { return nil },
				"templates": func(context.Context) error { return nil },
			},
			observe:    true,
			wantStatus: "ready",
		},
		{
			name: "failing check",
			checks: map[string]CheckFunc{
				"manifest": func(context.Context) error { return errors.New("database is locked") },
			},
			wantStatus: "degraded",
		},
		{
			name:       "failed rebuild",
			observe:    true,
			buildErr:   errors.New("unexpected token"),
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}
			if tt.observe {
				checker.ObserveBuild(tt.buildErr)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("expected status %q, got %q", tt.wantStatus, status.Status)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("expected %d results, got %d", len(tt.checks), len(status.Checks))
			}
			if tt.observe && status.LastBuild == nil {
				t.Error("expected last build time")
			}
			if tt.buildErr != nil && status.LastError != tt.buildErr.Error() {
				t.Errorf("expected last error %q, got %q", tt.buildErr, status.LastError)
			}
		})
	}
}

func TestCheckReadiness_RecoversAfterSuccessfulBuild(t *testing.T) {
	checker := New(time.Second)
	checker.ObserveBuild(errors.New("boom"))
	checker.ObserveBuild(nil)

	if status := checker.CheckReadiness(context.Background()); status.Status != "ready" {
		t.Errorf("expected ready after a successful rebuild, got %q", status.Status)
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	checker := New(10 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	if status.Checks["slow"].Message != "health check timeout" {
		t.Errorf("expected timeout result, got %+v", status.Checks["slow"])
	}
}

func TestHandlers(t *testing.T) {
	checker := New(time.Second)
	mux := http.NewServeMux()
	checker.Mount(mux, "/health", "/ready", VersionInfo{Version: "1.2.3"})

	tests := []struct {
		name     string
		method   string
		path     string
		buildErr error
		wantCode int
	}{
		{name: "liveness", method: http.MethodGet, path: "/health", wantCode: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/ready", wantCode: http.StatusOK},
		{name: "degraded", method: http.MethodGet, path: "/ready", buildErr: errors.New("x"), wantCode: http.StatusServiceUnavailable},
		{name: "version", method: http.MethodGet, path: "/version", wantCode: http.StatusOK},
		{name: "head", method: http.MethodHead, path: "/health", wantCode: http.StatusOK},
		{name: "post rejected", method: http.MethodPost, path: "/health", wantCode: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker.ObserveBuild(tt.buildErr)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Error("HEAD responses must not carry a body")
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.3", "abc", "today")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if info.Version != "1.2.3" || info.Commit != "abc" || info.GoVersion == "" {
		t.Errorf("unexpected info %+v", info)
	}
}
