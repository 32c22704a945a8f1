package cli

import (
	"bytes"
	stdcontext "context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	httpapi "github.com/h2323547425/weenix/internal/api/http"
)

func TestAPIEnabled(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"true", true},
		{"1", true},
		{"false", false},
		{"bogus", false},
		{"  true  ", true},
	}
	for _, tc := range cases {
		t.Setenv("WEENIX_ENABLE_API", tc.value)
		if got := apiEnabled(); got != tc.want {
			t.Errorf("apiEnabled() with %q = %t, want %t", tc.value, got, tc.want)
		}
	}
}

func TestServeWithoutAPIPrintsNotice(t *testing.T) {
	t.Setenv("WEENIX_ENABLE_API", "")
	path := writeManifest(t, "")

	root, _ := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", path, "serve"})

	if err := root.Execute(); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if !strings.Contains(out.String(), "Diagnostics API disabled") {
		t.Errorf("output missing disabled notice:\n%s", out.String())
	}
}

func TestServeExposesDiagnostics(t *testing.T) {
	path := writeManifest(t, `
boot:
  - name: dozer
    program: sleeper
`)

	servers := make(chan *httpapi.Server, 1)
	orig := newAPIServer
	newAPIServer = func(cfg httpapi.Config) (*httpapi.Server, error) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		cfg.Listener = ln
		server, err := httpapi.NewServer(cfg)
		if err != nil {
			ln.Close()
			return nil, err
		}
		servers <- server
		return server, nil
	}
	defer func() { newAPIServer = orig }()

	root, _ := newRootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", path, "serve", "--api", "127.0.0.1:0"})

	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	var server *httpapi.Server
	select {
	case server = <-servers:
	case err := <-done:
		t.Fatalf("serve returned before starting the API: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatalf("API server never constructed")
	}

	url := fmt.Sprintf("http://%s/api/v1/procs", server.Addr())
	deadline := time.Now().Add(10 * time.Second)
	var body string
	for {
		resp, err := http.Get(url)
		if err == nil {
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				body = string(raw)
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("GET %s never succeeded (last err %v)", url, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(body, `"name":"init"`) {
		t.Errorf("procs report missing init:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatalf("serve did not stop after cancellation")
	}
}
