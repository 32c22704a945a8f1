package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/h2323547425/weenix/internal/metrics"
)

func TestRegistryExposesMetrics(t *testing.T) {
	metrics.EmitBuildInfo()
	metrics.IncProcsCreated()
	metrics.IncProcsExited()
	metrics.AddProcsAdopted(2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"weenix_procs_created_total",
		"weenix_procs_exited_total",
		"weenix_procs_adopted_total 2",
		"weenix_procs_live",
		"weenix_build_info{",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}

	if !strings.Contains(body, "go_version=") {
		t.Fatalf("expected go_version label on build info metric:\n%s", body)
	}
}
