package metrics

import (
	"context"
	"strings"
	"sync"
	"time"

	"emfpager/internal/eventbus"
)

const defaultHistory = 50

// StatusEntry is one recent delivery as shown on /status.
type StatusEntry struct {
	Type     string        `json:"type"`
	At       time.Time     `json:"at"`
	ID       string        `json:"id"`
	Target   string        `json:"target"`
	Text     string        `json:"text"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Recent keeps the last few delivery events seen on the bus.
type Recent struct {
	mu      sync.Mutex
	max     int
	entries []StatusEntry
	started time.Time
}

func NewRecent(max int) *Recent {
	if max <= 0 {
		max = defaultHistory
	}
	return &Recent{max: max, started: time.Now()}
}

// Run consumes delivery events from bus until ctx is done.
func (r *Recent) Run(ctx context.Context, bus eventbus.Bus) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			r.Observe(ev)
		}
	}
}

// Observe records ev if it is a delivery event.
func (r *Recent) Observe(ev eventbus.Event) {
	if !strings.HasPrefix(ev.Type, "delivery.") {
		return
	}
	d, _ := ev.Data.(eventbus.Delivery)
	r.mu.Lock()
	r.entries = append(r.entries, StatusEntry{
		Type:     ev.Type,
		At:       ev.Time,
		ID:       d.ID,
		Target:   d.Target,
		Text:     d.Text,
		Attempts: d.Attempts,
		Duration: d.Duration,
		Error:    d.Error,
	})
	if over := len(r.entries) - r.max; over > 0 {
		r.entries = append(r.entries[:0:0], r.entries[over:]...)
	}
	r.mu.Unlock()
}

// Snapshot returns the recorded entries, newest last.
func (r *Recent) Snapshot() []StatusEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StatusEntry(nil), r.entries...)
}

// Uptime returns the time since r was created.
func (r *Recent) Uptime() time.Duration { return time.Since(r.started) }
