package systemd

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNotifierStates(t *testing.T) {
	t.Parallel()
	var got []string
	n := Notifier{notify: func(s string) (bool, error) {
		got = append(got, s)
		return true, nil
	}}
	_, _ = n.Ready()
	_, _ = n.Status("polling")
	_, _ = n.Reloading()
	_, _ = n.Stopping()
	want := []string{"READY=1", "STATUS=polling", "RELOADING=1", "STOPPING=1"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("state %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWatchdogDisabled(t *testing.T) {
	t.Parallel()
	n := Notifier{
		notify:          func(string) (bool, error) { t.Fatal("unexpected notify"); return false, nil },
		watchdogEnabled: func() (time.Duration, error) { return 0, nil },
	}
	if err := n.Watchdog(context.Background()); err != nil {
		t.Fatalf("Watchdog() = %v", err)
	}
}

func TestWatchdogPings(t *testing.T) {
	t.Parallel()
	var (
		mu    sync.Mutex
		pings int
	)
	pinged := make(chan struct{}, 8)
	n := Notifier{
		notify: func(s string) (bool, error) {
			if s == "WATCHDOG=1" {
				mu.Lock()
				pings++
				mu.Unlock()
				select {
				case pinged <- struct{}{}:
				default:
				}
			}
			return true, nil
		},
		watchdogEnabled: func() (time.Duration, error) { return 20 * time.Millisecond, nil },
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Watchdog(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-pinged:
		case <-time.After(2 * time.Second):
			t.Fatal("no watchdog ping")
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watchdog() = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if pings < 2 {
		t.Fatalf("pings = %d", pings)
	}
}
