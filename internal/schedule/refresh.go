package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRefresh is how often the schedule is re-downloaded.
const DefaultRefresh = "@every 1m"

var refreshParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseRefresh parses a refresh cadence.
//
// Supported forms:
//   - Cron: "*/5 * * * *", "@hourly", "@every 90s"
//   - Interval duration: "90s", "2m"
//
// Optional prefixes "cron:" and "every:" force the interpretation.
func ParseRefresh(raw string) (cron.Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		s = DefaultRefresh
	}
	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseEvery(strings.TrimSpace(s[len("every:"):]))
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return parseCron(s)
	default:
		return parseEvery(s)
	}
}

func parseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("schedule.refresh: cron expression required")
	}
	sched, err := refreshParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule.refresh: invalid cron %q: %w", expr, err)
	}
	return sched, nil
}

func parseEvery(v string) (cron.Schedule, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, fmt.Errorf("schedule.refresh: invalid interval %q (use cron like '*/5 * * * *' or duration like '90s')", v)
	}
	if d < time.Second {
		return nil, fmt.Errorf("schedule.refresh: interval must be >= 1s")
	}
	return cron.Every(d), nil
}
