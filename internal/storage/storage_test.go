package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"emfpager/internal/schedule"
	"emfpager/pkg/logx"
)

func sampleEvents() []schedule.Event {
	bst := time.FixedZone("BST", 3600)
	return []schedule.Event{
		{ID: 7, Slug: "opening", Start: time.Date(2026, 7, 16, 10, 0, 0, 0, bst), End: time.Date(2026, 7, 16, 10, 30, 0, 0, bst), Venue: "Stage A", Title: "Opening", Kind: "talk"},
		{ID: 9, Start: time.Date(2026, 7, 16, 11, 0, 0, 0, bst), Venue: "Workshop 1", Title: "Soldering", Speaker: "Someone"},
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if st != nil || err != nil {
			t.Fatalf("Open(%q) = %v, %v", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected unknown driver error")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected missing path error")
	}
}

func TestStoresRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		driver string
		file   string
	}{
		{"file", "cache/schedule.json"},
		{"sqlite", "cache/schedule.db"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), tt.file)
			st, err := Open(Config{Driver: tt.driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer st.Close()

			got, err := st.LoadSchedule(ctx)
			if err != nil || len(got) != 0 {
				t.Fatalf("empty LoadSchedule() = %v, %v", got, err)
			}

			// The second save must replace, not append.
			if err := st.SaveSchedule(ctx, sampleEvents()[:1]); err != nil {
				t.Fatalf("SaveSchedule: %v", err)
			}
			want := sampleEvents()
			if err := st.SaveSchedule(ctx, want); err != nil {
				t.Fatalf("SaveSchedule: %v", err)
			}
			got, err = st.LoadSchedule(ctx)
			if err != nil {
				t.Fatalf("LoadSchedule: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("len = %d, want %d", len(got), len(want))
			}
			for i := range want {
				g, w := got[i], want[i]
				if g.ID != w.ID || g.Slug != w.Slug || g.Venue != w.Venue || g.Title != w.Title ||
					g.Speaker != w.Speaker || g.Kind != w.Kind || !g.Start.Equal(w.Start) || !g.End.Equal(w.End) {
					t.Fatalf("event %d = %+v, want %+v", i, g, w)
				}
			}
		})
	}
}

func TestSQLiteReopenKeepsSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "schedule.db")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.SaveSchedule(ctx, sampleEvents()); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	got, err := st.LoadSchedule(ctx)
	if err != nil || len(got) != 2 {
		t.Fatalf("LoadSchedule() = %d events, %v", len(got), err)
	}
}

func TestFileStoreClosed(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "s.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = st.Close()
	if err := st.SaveSchedule(context.Background(), nil); err != ErrClosed {
		t.Fatalf("SaveSchedule after Close = %v", err)
	}
}
