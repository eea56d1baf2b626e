package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazz-dev/everwatch/internal/config"
	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/server"
	"github.com/hazz-dev/everwatch/internal/storage"
)

func memoryState(t *testing.T) *state {
	t.Helper()
	st, err := restore(context.Background(), storage.NewMemory(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func wake(t *testing.T, a *app) int {
	t.Helper()
	w := httptest.NewRecorder()
	a.api.Router().ServeHTTP(w, httptest.NewRequest("POST", "/api/wake", nil))
	return w.Code
}

func TestNewApp_WakeRefusedWithoutBackgroundChecks(t *testing.T) {
	cfg := config.Default()
	cfg.BackgroundChecks = false

	a := newApp(context.Background(), cfg, memoryState(t), nil)
	if a.trigger != nil {
		t.Error("expected no background trigger")
	}
	if code := wake(t, a); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
}

func TestNewApp_WakeRunsAndRearms(t *testing.T) {
	cfg := config.Default()
	cfg.BackgroundChecks = true

	a := newApp(context.Background(), cfg, memoryState(t), nil)
	if a.trigger == nil {
		t.Fatal("expected a background trigger")
	}
	defer a.trigger.Stop()
	if _, armed := a.trigger.Next(); armed {
		t.Error("trigger should not be armed before serve starts")
	}

	if code := wake(t, a); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if _, armed := a.trigger.Next(); !armed {
		t.Error("expected wake to re-arm the trigger")
	}
}

func TestOpenState_CorruptSQLiteStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "everwatch.db")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 1024), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: "sqlite", Path: path}
	st, err := openState(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("openState on corrupt database: %v", err)
	}
	defer st.close()

	if st.reg.Len() != 0 {
		t.Errorf("expected empty registry, got %d endpoints", st.reg.Len())
	}
	ep, err := st.add(ctx, "api.example.com", defaultAddOptions())
	if err != nil {
		t.Fatalf("add after corrupt load: %v", err)
	}
	res := st.gw.Load(ctx)
	if res.State != storage.LoadOK || len(res.Endpoints) != 1 || res.Endpoints[0].ID != ep.ID {
		t.Errorf("expected saved endpoint, got %v %+v (%v)", res.State, res.Endpoints, res.Err)
	}
}

func TestEndpointAdd_DefaultsMatchOtherEditors(t *testing.T) {
	flag := endpointAddCmd().Flags().Lookup("time-sensitive")
	if flag == nil || flag.DefValue != "true" {
		t.Fatalf("expected --time-sensitive to default to true, got %+v", flag)
	}

	st := memoryState(t)
	ep, err := st.add(context.Background(), "https://api.example.com", defaultAddOptions())
	if err != nil {
		t.Fatal(err)
	}
	if ep.Settings != endpoint.DefaultSettings() {
		t.Errorf("expected default settings %+v, got %+v", endpoint.DefaultSettings(), ep.Settings)
	}
}

func TestRemote_EditsGoThroughRunningServer(t *testing.T) {
	ctx := context.Background()
	reg := endpoint.NewRegistry(0)
	gw := storage.NewMemory()
	api := server.New(reg, storage.NewWriter(gw, reg, nil, nil), nil, nil, nil)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	r := dialRemote(ctx, srv.Listener.Addr().String())
	if r == nil {
		t.Fatal("expected running server to be detected")
	}

	var buf bytes.Buffer
	if err := executeAdd(ctx, &buf, r, "status.example.com", defaultAddOptions()); err != nil {
		t.Fatalf("executeAdd: %v", err)
	}
	eps := reg.List()
	if len(eps) != 1 || eps[0].URL != "https://status.example.com" || !eps[0].Settings.TimeSensitive {
		t.Fatalf("expected endpoint added in the server's registry, got %+v", eps)
	}
	if res := gw.Load(ctx); res.State != storage.LoadOK || len(res.Endpoints) != 1 {
		t.Errorf("expected the server to persist the edit, got %v", res.State)
	}

	if err := executeRemove(ctx, &buf, r, eps[0].ID); err != nil {
		t.Fatalf("executeRemove: %v", err)
	}
	if reg.Len() != 0 {
		t.Error("expected endpoint removed from the server's registry")
	}
	if err := executeRemove(ctx, &buf, r, eps[0].ID); !errors.Is(err, endpoint.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDialRemote_NoServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	if r := dialRemote(context.Background(), addr); r != nil {
		t.Errorf("expected no remote on closed port %s", addr)
	}
	if r := dialRemote(context.Background(), "not-an-address"); r != nil {
		t.Error("expected no remote for an invalid address")
	}
}

func TestAPIBase(t *testing.T) {
	tests := map[string]string{
		":8080":          "http://127.0.0.1:8080",
		"0.0.0.0:9000":   "http://127.0.0.1:9000",
		"localhost:8080": "http://localhost:8080",
		"[::]:8080":      "http://127.0.0.1:8080",
		"garbage":        "",
	}
	for addr, want := range tests {
		if got := apiBase(addr); got != want {
			t.Errorf("apiBase(%q) = %q, want %q", addr, got, want)
		}
	}
}
