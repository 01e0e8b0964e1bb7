package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"emfpager/internal/eventbus"
	"emfpager/pkg/logx"
)

func TestAnnouncementsRecord(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	a, err := NewAnnouncements(reg)
	if err != nil {
		t.Fatalf("NewAnnouncements: %v", err)
	}
	a.Record("rubric", ResultError)
	a.Record("rubric", ResultError)
	a.Record("rubric", ResultOK)
	a.Record("call", ResultOK)

	if got := testutil.ToFloat64(a.Collector().WithLabelValues("rubric", ResultError)); got != 2 {
		t.Fatalf("rubric/error = %v, want 2", got)
	}
	if got := testutil.ToFloat64(a.Collector().WithLabelValues("call", ResultOK)); got != 1 {
		t.Fatalf("call/ok = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(a.Collector(), "dapnet_event_announcements_total"); n != 3 {
		t.Fatalf("series = %d, want 3", n)
	}
	if _, err := NewAnnouncements(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestRecentKeepsNewest(t *testing.T) {
	t.Parallel()
	r := NewRecent(2)
	for _, id := range []string{"a", "b", "c"} {
		r.Observe(eventbus.Event{Type: eventbus.TypeDeliverySent, Data: eventbus.Delivery{ID: id}})
	}
	r.Observe(eventbus.Event{Type: "config.reloaded"})

	got := r.Snapshot()
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("Snapshot() = %+v, want b,c", got)
	}
}

func TestRecentRunConsumesBus(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	r := NewRecent(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, bus)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(r.Snapshot()) == 0 && time.Now().Before(deadline) {
		bus.Publish(eventbus.Event{Type: eventbus.TypeDeliveryFailed, Data: eventbus.Delivery{ID: "x", Error: "boom"}})
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
	snap := r.Snapshot()
	if len(snap) == 0 || snap[0].Error != "boom" {
		t.Fatalf("Snapshot() = %+v", snap)
	}
}

func TestServerHandler(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	a, err := NewAnnouncements(reg)
	if err != nil {
		t.Fatalf("NewAnnouncements: %v", err)
	}
	a.Record("call", ResultOK)
	recent := NewRecent(0)
	recent.Observe(eventbus.Event{Type: eventbus.TypeDeliverySent, Data: eventbus.Delivery{ID: "d1", Target: "call"}})

	srv := NewServer(ServerConfig{Enabled: true, Pprof: true}, Deps{
		Gatherer: reg,
		Recent:   recent,
		Info:     func() map[string]any { return map[string]any{"dry_run": true} },
	}, logx.Nop())
	h := srv.Handler()

	tests := []struct {
		path     string
		code     int
		contains string
	}{
		{"/healthz", http.StatusOK, "ok"},
		{"/metrics", http.StatusOK, `dapnet_event_announcements_total{result="ok",target="call"} 1`},
		{"/debug/pprof/", http.StatusOK, "goroutine"},
		{"/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rr.Code != tt.code {
			t.Fatalf("%s status = %d, want %d", tt.path, rr.Code, tt.code)
		}
		if !strings.Contains(rr.Body.String(), tt.contains) {
			t.Fatalf("%s body missing %q", tt.path, tt.contains)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	var body struct {
		DryRun     bool          `json:"dry_run"`
		Deliveries []StatusEntry `json:"deliveries"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode /status: %v", err)
	}
	if !body.DryRun || len(body.Deliveries) != 1 || body.Deliveries[0].ID != "d1" {
		t.Fatalf("/status = %+v", body)
	}
}

func TestServerPprofDisabled(t *testing.T) {
	t.Parallel()
	h := NewServer(ServerConfig{Enabled: true}, Deps{Gatherer: prometheus.NewRegistry()}, logx.Nop()).Handler()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestServerStartStop(t *testing.T) {
	t.Parallel()
	srv := NewServer(ServerConfig{Enabled: true, Addr: "127.0.0.1:0"}, Deps{Gatherer: prometheus.NewRegistry()}, logx.Nop())
	srv.Start(context.Background())

	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for addr == "" && time.Now().Before(deadline) {
		addr = srv.Addr()
		time.Sleep(5 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server did not start")
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(b) != "ok" {
		t.Fatalf("body = %q", b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	srv.Stop(ctx)
	if srv.Addr() != "" {
		t.Fatalf("Addr() = %q after Stop", srv.Addr())
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1:9090": true,
		"localhost:9090": true,
		"[::1]:9090":     true,
		":9090":          false,
		"0.0.0.0:9090":   false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
