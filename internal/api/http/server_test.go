package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/h2323547425/weenix/internal/api"
	"github.com/h2323547425/weenix/internal/proc"
)

type fakeSource struct {
	procs  []proc.Info
	kernel proc.KernelInfo
	lines  []string
}

func (f *fakeSource) Snapshot() []proc.Info       { return f.procs }
func (f *fakeSource) KernelInfo() proc.KernelInfo { return f.kernel }
func (f *fakeSource) Dmesg() []string             { return f.lines }

func newTestServer(t *testing.T, src api.Source) *Server {
	t.Helper()
	server, err := NewServer(Config{Source: src})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server
}

func TestNewServerRequiresSource(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatalf("expected error when source is missing")
	}
}

func TestNormalizeAddr(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":           defaultAddr,
		":80":        "127.0.0.1:80",
		"0.0.0.0:80": "127.0.0.1:80",
		"[::]:80":    "127.0.0.1:80",
		"host:9000":  "host:9000",
		"[::1]:443":  "[::1]:443",
	}

	for input, expected := range tests {
		input, expected := input, expected
		t.Run(fmt.Sprintf("%s->%s", input, expected), func(t *testing.T) {
			t.Parallel()
			if got := normalizeAddr(input); got != expected {
				t.Fatalf("normalizeAddr(%q)=%q, want %q", input, got, expected)
			}
		})
	}
}

func TestHandleProcs(t *testing.T) {
	src := &fakeSource{
		procs: []proc.Info{
			{PID: 0, Name: "idle", State: "running"},
			{PID: 1, Name: "init", State: "running", Threads: 1},
		},
	}
	server := newTestServer(t, src)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/procs", nil)
	rec := httptest.NewRecorder()
	server.handleProcs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	var body api.ProcsReport
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response: %v", err)
	}
	if len(body.Procs) != 2 || body.Procs[1].Name != "init" {
		t.Fatalf("unexpected procs payload: %+v", body.Procs)
	}
	if body.GeneratedAt.IsZero() {
		t.Fatalf("generated_at missing")
	}
}

func TestHandleKernel(t *testing.T) {
	src := &fakeSource{kernel: proc.KernelInfo{BootID: "b-123", State: "running", Procs: 3}}
	server := newTestServer(t, src)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/kernel", nil)
	rec := httptest.NewRecorder()
	server.handleKernel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	var body api.KernelReport
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response: %v", err)
	}
	if body.Kernel.BootID != "b-123" || body.Kernel.Procs != 3 {
		t.Fatalf("unexpected kernel payload: %+v", body.Kernel)
	}
}

func TestHandleDmesg(t *testing.T) {
	src := &fakeSource{lines: []string{"[    0.0001] boot", "[    0.0042] init started"}}
	server := newTestServer(t, src)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dmesg", nil)
	rec := httptest.NewRecorder()
	server.handleDmesg(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	var body api.DmesgReport
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response: %v", err)
	}
	if len(body.Lines) != 2 || !strings.Contains(body.Lines[1], "init started") {
		t.Fatalf("unexpected dmesg payload: %v", body.Lines)
	}
}

func TestHandleHealthz(t *testing.T) {
	src := &fakeSource{kernel: proc.KernelInfo{State: "running"}}
	server := newTestServer(t, src)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.handleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	var body api.Health
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response: %v", err)
	}
	if body.Status != "ok" || body.State != "running" {
		t.Fatalf("unexpected health payload: %+v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, &fakeSource{})

	handlers := map[string]http.HandlerFunc{
		"/api/v1/procs":  server.handleProcs,
		"/api/v1/kernel": server.handleKernel,
		"/api/v1/dmesg":  server.handleDmesg,
		"/healthz":       server.handleHealthz,
	}
	for path, handler := range handlers {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		handler(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", path, rec.Code)
		}
		if allow := rec.Header().Get("Allow"); allow != http.MethodGet {
			t.Fatalf("%s: Allow = %q, want GET", path, allow)
		}
		var body errorBody
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode error: %v", path, err)
		}
		if body.Code != "method_not_allowed" {
			t.Fatalf("%s: code = %q", path, body.Code)
		}
	}
}

func TestMetricsRouteServesExposition(t *testing.T) {
	server := newTestServer(t, &fakeSource{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "weenix_procs_created_total") {
		t.Fatalf("metrics exposition missing kernel counters")
	}
}
