package config

import (
	"reflect"
	"strings"

	"emfpager/pkg/logx"
)

// Live sections are applied without a restart.
const (
	SectionLogging = "logging"
	SectionDryRun  = "dry_run"
)

// Change describes the difference between two configs.
type Change struct {
	// Changed lists every section that differs.
	Changed []string
	// Restart lists the changed sections that only take effect after a restart.
	Restart []string
	// Fields are safe to log; secrets are reported only as "*_set" booleans.
	Fields []logx.Field
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool { return len(c.Changed) == 0 }

// Live reports whether section is among the changed sections.
func (c Change) Live(section string) bool {
	for _, s := range c.Changed {
		if s == section {
			return true
		}
	}
	return false
}

// SummarizeChange compares oldCfg and newCfg section by section.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(section string, live bool, fields ...logx.Field) {
		ch.Changed = append(ch.Changed, section)
		if !live {
			ch.Restart = append(ch.Restart, section)
		}
		ch.Fields = append(ch.Fields, fields...)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark(SectionLogging, true,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.DryRun != newCfg.DryRun {
		mark(SectionDryRun, true, logx.Bool("dry_run", newCfg.DryRun))
	}

	if strings.TrimSpace(oldCfg.APIURL) != strings.TrimSpace(newCfg.APIURL) {
		mark("api_url", false, logx.String("api_url", newCfg.APIURL))
	}
	if oldCfg.DAPNET.URL != newCfg.DAPNET.URL ||
		oldCfg.DAPNET.Username != newCfg.DAPNET.Username ||
		oldCfg.DAPNET.Password != newCfg.DAPNET.Password ||
		oldCfg.DAPNET.Timeout != newCfg.DAPNET.Timeout ||
		oldCfg.DAPNET.RatePerSec != newCfg.DAPNET.RatePerSec ||
		!reflect.DeepEqual(oldCfg.DAPNET.TransmitterGroups, newCfg.DAPNET.TransmitterGroups) {
		mark("dapnet", false,
			logx.String("dapnet.username", newCfg.DAPNET.Username),
			logx.Bool("dapnet.password_set", newCfg.DAPNET.Password != ""),
			logx.Strs("dapnet.transmitter_groups", newCfg.DAPNET.TransmitterGroups),
		)
	}
	if oldCfg.PreEventAnnouncementTime != newCfg.PreEventAnnouncementTime {
		mark("pre_event_announcement_time", false, logx.Int("pre_event_announcement_time", newCfg.PreEventAnnouncementTime))
	}
	if oldCfg.Schedule != newCfg.Schedule {
		mark("schedule", false,
			logx.String("schedule.refresh", newCfg.Schedule.Refresh),
			logx.String("schedule.timezone", newCfg.Schedule.Timezone),
		)
	}
	if !reflect.DeepEqual(oldCfg.Mode, newCfg.Mode) {
		mark("mode", false, logx.String("mode.kind", newCfg.Mode.Kind), logx.Int("mode.recipients", len(newCfg.Mode.Recipients)))
	}
	if oldCfg.Observability != newCfg.Observability {
		mark("observability", false,
			logx.Bool("observability.enabled", newCfg.Observability.Enabled),
			logx.String("observability.addr", newCfg.Observability.Addr),
		)
	}
	if oldCfg.Telegram.ChatID != newCfg.Telegram.ChatID ||
		oldCfg.Telegram.ThreadID != newCfg.Telegram.ThreadID ||
		oldCfg.Telegram.Token != newCfg.Telegram.Token {
		mark("telegram", false, logx.Bool("telegram.token_set", newCfg.Telegram.Token != ""))
	}
	if oldCfg.Storage != newCfg.Storage {
		mark("storage", false, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Systemd != newCfg.Systemd {
		mark("systemd", false, logx.Bool("systemd.watchdog", newCfg.Systemd.Watchdog))
	}
	return ch
}
