package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/services"
)

func TestHealthHandlersHealthz(t *testing.T) {
	started := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Minute)
	h := NewHealthHandlers(
		WithHealthClock(func() time.Time { return now }),
		WithHealthBuildInfo(services.BuildInfo{Version: "1.2.3", CommitSHA: "abc123", Environment: "test", StartedAt: started}),
	)

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != domain.HealthStatusOK || body["version"] != "1.2.3" || body["commitSha"] != "abc123" {
		t.Fatalf("unexpected payload %v", body)
	}
	if body["uptime"] != "1h30m0s" {
		t.Fatalf("unexpected uptime %v", body["uptime"])
	}
}

func TestHealthHandlersReadyz(t *testing.T) {
	checkedAt := time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		report services.SystemHealthReport
		err    error
		status int
	}{
		{
			name: "ok",
			report: services.SystemHealthReport{HealthReport: domain.HealthReport{
				Status:      domain.HealthStatusOK,
				Checks:      map[string]domain.HealthCheck{"store": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: checkedAt}},
				GeneratedAt: checkedAt,
			}},
			status: http.StatusOK,
		},
		{
			name: "degraded stays ready",
			report: services.SystemHealthReport{HealthReport: domain.HealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.HealthCheck{"events": {Status: domain.HealthStatusDegraded, Detail: "breaker open"}},
			}},
			status: http.StatusOK,
		},
		{
			name: "error",
			report: services.SystemHealthReport{HealthReport: domain.HealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.HealthCheck{"store": {Status: domain.HealthStatusError, Detail: "unreachable"}},
			}},
			status: http.StatusServiceUnavailable,
		},
		{name: "collect failure", err: errors.New("boom"), status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			system := &stubSystemService{
				reportFn: func(ctx context.Context) (services.SystemHealthReport, error) {
					if _, ok := ctx.Deadline(); !ok {
						t.Fatalf("expected readiness probe to carry a deadline")
					}
					return tc.report, tc.err
				},
			}
			h := NewHealthHandlers(WithHealthSystemService(system), WithHealthTimeout(time.Second))
			rr := httptest.NewRecorder()
			h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if tc.err != nil {
				return
			}
			checks := decodeBody(t, rr)["checks"].(map[string]any)
			if len(checks) != len(tc.report.Checks) {
				t.Fatalf("expected %d checks, got %v", len(tc.report.Checks), checks)
			}
		})
	}
}

func TestHealthHandlersReadyzWithoutSystemServiceMirrorsLiveness(t *testing.T) {
	h := NewHealthHandlers()
	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
