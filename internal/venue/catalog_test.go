package venue

import (
	"errors"
	"testing"
)

func TestResolveKnownVenues(t *testing.T) {
	t.Parallel()
	c := Default()
	tests := []struct {
		raw     string
		short   string
		channel int
	}{
		{"Stage A", "Stg A", 1},
		{"Stage B", "Stg B", 2},
		{"Stage C", "Stg C", 3},
		{"Workshop 1 (NottingHack)", "Wksp 1", 4},
		{"Workshop 2", "Wksp 2", 5},
		{"Workshop 3 (Furry High Commission)", "Wksp 3", 6},
		{"Workshop 4", "Wksp 4", 7},
		{"Workshop 5", "Wksp 5", 8},
		{"Null Sector", "Null Sec", 9},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got := c.Resolve(tt.raw)
			if got.ShortName != tt.short || got.Channel != tt.channel || got.Key != tt.raw {
				t.Fatalf("Resolve(%q) = %+v, want short=%q channel=%d", tt.raw, got, tt.short, tt.channel)
			}
			// Deterministic: a second lookup yields the same entry.
			if again := c.Resolve(tt.raw); again != got {
				t.Fatalf("Resolve(%q) not stable: %+v then %+v", tt.raw, got, again)
			}
		})
	}
	if c.Len() != len(Builtin) {
		t.Fatalf("Len() = %d, want %d", c.Len(), len(Builtin))
	}
}

func TestResolveUnknownFallsBack(t *testing.T) {
	t.Parallel()
	c := Default()
	for _, raw := range []string{"", "Stage D", "stage a", "Stage A ", "Workshop 1", "Bar"} {
		got := c.Resolve(raw)
		want := Entry{Key: OtherKey, ShortName: raw, Channel: OtherChannel}
		if got != want {
			t.Fatalf("Resolve(%q) = %+v, want %+v", raw, got, want)
		}
	}
}

func TestNewCatalogRejectsBadTables(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		entries []Entry
	}{
		{"empty key", []Entry{{Key: "", ShortName: "x", Channel: 1}}},
		{"empty short", []Entry{{Key: "a", ShortName: " ", Channel: 1}}},
		{"channel zero", []Entry{{Key: "a", ShortName: "A", Channel: 0}}},
		{"reserved channel", []Entry{{Key: "a", ShortName: "A", Channel: OtherChannel}}},
		{"duplicate", []Entry{{Key: "a", ShortName: "A", Channel: 1}, {Key: "a", ShortName: "B", Channel: 2}}},
	}
	for _, tt := range tests {
		if _, err := NewCatalog(tt.entries); !errors.Is(err, ErrInvalidTable) {
			t.Errorf("%s: NewCatalog() error = %v, want ErrInvalidTable", tt.name, err)
		}
	}
}

func TestBuiltinChannelsAreUnique(t *testing.T) {
	t.Parallel()
	seen := map[int]string{}
	for _, e := range Builtin {
		if prev, ok := seen[e.Channel]; ok {
			t.Fatalf("channel %d used by %q and %q", e.Channel, prev, e.Key)
		}
		seen[e.Channel] = e.Key
	}
}
