package schedule

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// naiveLayout is used by schedule feeds that omit the UTC offset.
const naiveLayout = "2006-01-02 15:04:05"

// Event is one scheduled item.
type Event struct {
	ID      int       `json:"id"`
	Slug    string    `json:"slug,omitempty"`
	Start   time.Time `json:"start_date"`
	End     time.Time `json:"end_date"`
	Venue   string    `json:"venue"`
	Title   string    `json:"title"`
	Speaker string    `json:"speaker,omitempty"`
	Kind    string    `json:"type,omitempty"`
}

type wireEvent struct {
	ID      int    `json:"id"`
	Slug    string `json:"slug"`
	Start   string `json:"start_date"`
	End     string `json:"end_date"`
	Venue   string `json:"venue"`
	Title   string `json:"title"`
	Speaker string `json:"speaker"`
	Kind    string `json:"type"`
}

// DecodeEvents parses a JSON array of events. Timestamps may be RFC 3339 or
// naive "YYYY-MM-DD HH:MM:SS", the latter interpreted in loc.
// The result is sorted by start time, then ID.
func DecodeEvents(b []byte, loc *time.Location) ([]Event, error) {
	if loc == nil {
		loc = time.UTC
	}
	var raw []wireEvent
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	out := make([]Event, 0, len(raw))
	for _, w := range raw {
		start, err := parseTime(w.Start, loc)
		if err != nil {
			return nil, fmt.Errorf("event %d start_date: %w", w.ID, err)
		}
		var end time.Time
		if strings.TrimSpace(w.End) != "" {
			if end, err = parseTime(w.End, loc); err != nil {
				return nil, fmt.Errorf("event %d end_date: %w", w.ID, err)
			}
		}
		out = append(out, Event{
			ID:      w.ID,
			Slug:    w.Slug,
			Start:   start,
			End:     end,
			Venue:   w.Venue,
			Title:   w.Title,
			Speaker: w.Speaker,
			Kind:    w.Kind,
		})
	}
	sortEvents(out)
	return out, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	return t, nil
}

// key identifies an event within one announcement instant.
func (e Event) key() string {
	return fmt.Sprintf("%d|%s|%s", e.ID, e.Venue, e.Title)
}

func sortEvents(evs []Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		if !evs[i].Start.Equal(evs[j].Start) {
			return evs[i].Start.Before(evs[j].Start)
		}
		return evs[i].ID < evs[j].ID
	})
}
