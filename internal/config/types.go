package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // schedule.timezone must resolve on hosts without a zoneinfo database

	"emfpager/internal/announce"
	"emfpager/internal/dapnet"
	"emfpager/internal/schedule"
	"emfpager/pkg/logx"
)

// EnvPrefix prefixes every environment variable read by Manager.Parse.
const EnvPrefix = "EMFPAGER_"

// DefaultPreEventSeconds is the default lead time before an event starts.
const DefaultPreEventSeconds = 120

var ErrInvalid = errors.New("invalid config")

// Config is the full process configuration.
//
// Durations are Go duration strings ("15s", "1m"). Fields tagged with env are
// also read from EMFPAGER_<NAME> variables.
type Config struct {
	APIURL string `json:"api_url,omitempty" env:"API_URL"`

	DAPNET DAPNETConfig `json:"dapnet" envPrefix:"DAPNET_"`

	// PreEventAnnouncementTime is the lead time in seconds.
	PreEventAnnouncementTime int `json:"pre_event_announcement_time,omitempty" env:"PRE_EVENT_ANNOUNCEMENT_TIME"`

	Schedule ScheduleConfig `json:"schedule" envPrefix:"SCHEDULE_"`

	DryRun bool `json:"dry_run,omitempty" env:"DRY_RUN"`

	Mode ModeConfig `json:"mode" envPrefix:"MODE_"`

	Observability ObservabilityConfig `json:"observability" envPrefix:"OBSERVABILITY_"`
	Logging       LoggingConfig       `json:"logging" envPrefix:"LOGGING_"`
	Telegram      TelegramConfig      `json:"telegram" envPrefix:"TELEGRAM_"`
	Storage       StorageConfig       `json:"storage" envPrefix:"STORAGE_"`
	Systemd       SystemdConfig       `json:"systemd" envPrefix:"SYSTEMD_"`
}

type DAPNETConfig struct {
	URL      string `json:"url,omitempty" env:"URL"`
	Username string `json:"username,omitempty" env:"USERNAME"`
	Password string `json:"password,omitempty" env:"PASSWORD"`
	Timeout  string `json:"timeout,omitempty" env:"TIMEOUT"`
	// RatePerSec caps outgoing requests; 0 disables the limiter.
	RatePerSec float64 `json:"rate_per_sec,omitempty" env:"RATE_PER_SEC"`
	// TransmitterGroups used for calls (including the startup page).
	TransmitterGroups []string `json:"transmitter_groups,omitempty" env:"TRANSMITTER_GROUPS" envSeparator:","`
}

type ScheduleConfig struct {
	// Refresh is a cron expression or interval ("@every 1m", "*/5 * * * *", "90s").
	Refresh  string `json:"refresh,omitempty" env:"REFRESH"`
	Timeout  string `json:"timeout,omitempty" env:"TIMEOUT"`
	Retry    string `json:"retry,omitempty" env:"RETRY"`
	Timezone string `json:"timezone,omitempty" env:"TIMEZONE"`
}

type ModeConfig struct {
	// Kind is "rubric" or "call".
	Kind       string   `json:"kind,omitempty" env:"KIND"`
	Rubric     string   `json:"rubric,omitempty" env:"RUBRIC"`
	Recipients []string `json:"recipients,omitempty" env:"RECIPIENTS" envSeparator:","`
}

type ObservabilityConfig struct {
	Enabled bool   `json:"enabled" env:"ENABLED"`
	Addr    string `json:"addr,omitempty" env:"ADDR"`
	Pprof   bool   `json:"pprof,omitempty" env:"PPROF"`
}

type LoggingConfig struct {
	Level    string            `json:"level,omitempty" env:"LEVEL"`
	Console  bool              `json:"console" env:"CONSOLE"`
	File     LogFileConfig     `json:"file" envPrefix:"FILE_"`
	Telegram LogTelegramConfig `json:"telegram" envPrefix:"TELEGRAM_"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled" env:"ENABLED"`
	Path    string `json:"path,omitempty" env:"PATH"`
}

// LogTelegramConfig mirrors warnings to the chat in TelegramConfig.
type LogTelegramConfig struct {
	Enabled    bool   `json:"enabled" env:"ENABLED"`
	MinLevel   string `json:"min_level,omitempty" env:"MIN_LEVEL"`
	RatePerSec int    `json:"rate_per_sec,omitempty" env:"RATE_PER_SEC"`
}

type TelegramConfig struct {
	Token    string `json:"token,omitempty" env:"TOKEN"`
	ChatID   int64  `json:"chat_id,omitempty" env:"CHAT_ID"`
	ThreadID int    `json:"thread_id,omitempty" env:"THREAD_ID"`
}

// StorageConfig selects where the last good schedule is cached.
type StorageConfig struct {
	// Driver is "none", "file" or "sqlite".
	Driver string `json:"driver,omitempty" env:"DRIVER"`
	Path   string `json:"path,omitempty" env:"PATH"`
}

type SystemdConfig struct {
	Watchdog bool `json:"watchdog" env:"WATCHDOG"`
}

// Default returns the built-in configuration every other layer is applied on.
func Default() *Config {
	return &Config{
		APIURL: schedule.DefaultURL,
		DAPNET: DAPNETConfig{
			URL:               dapnet.DefaultBaseURL,
			Timeout:           "15s",
			RatePerSec:        1,
			TransmitterGroups: append([]string(nil), announce.DefaultTransmitterGroups...),
		},
		PreEventAnnouncementTime: DefaultPreEventSeconds,
		Schedule: ScheduleConfig{
			Refresh:  schedule.DefaultRefresh,
			Timeout:  "15s",
			Retry:    "10s",
			Timezone: "Europe/London",
		},
		Mode: ModeConfig{Kind: string(announce.TargetRubric), Rubric: "emfcamp"},
		Observability: ObservabilityConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9090",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Telegram: LogTelegramConfig{
				MinLevel:   "warn",
				RatePerSec: 1,
			},
		},
		Storage: StorageConfig{Driver: "none"},
		Systemd: SystemdConfig{Watchdog: true},
	}
}

// PreEventOffset returns the lead time as a duration.
func (c *Config) PreEventOffset() time.Duration {
	return time.Duration(c.PreEventAnnouncementTime) * time.Second
}

// Location loads schedule.timezone.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Schedule.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

// AnnounceMode converts the mode section.
func (c *Config) AnnounceMode() announce.Mode {
	return announce.Mode{
		Kind:              announce.Target(strings.ToLower(strings.TrimSpace(c.Mode.Kind))),
		Rubric:            strings.TrimSpace(c.Mode.Rubric),
		Recipients:        c.Mode.Recipients,
		TransmitterGroups: c.DAPNET.TransmitterGroups,
	}
}

// Validate reports every invalid field at once, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if u, err := url.Parse(strings.TrimSpace(c.APIURL)); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("api_url: must be an http(s) url, got %q", c.APIURL)
	}
	if u, err := url.Parse(strings.TrimSpace(c.DAPNET.URL)); c.DAPNET.URL != "" && (err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "") {
		add("dapnet.url: must be an http(s) url, got %q", c.DAPNET.URL)
	}
	if strings.TrimSpace(c.DAPNET.Username) == "" {
		add("dapnet.username: required")
	}
	if c.DAPNET.Password == "" {
		add("dapnet.password: required")
	}
	if _, err := ParseDurationField("dapnet.timeout", c.DAPNET.Timeout); err != nil {
		errs = append(errs, err)
	}
	if c.DAPNET.RatePerSec < 0 {
		add("dapnet.rate_per_sec: must be >= 0")
	}
	if c.PreEventAnnouncementTime <= 0 {
		add("pre_event_announcement_time: must be > 0 seconds, got %d", c.PreEventAnnouncementTime)
	}

	if _, err := schedule.ParseRefresh(c.Schedule.Refresh); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("schedule.timeout", c.Schedule.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("schedule.retry", c.Schedule.Retry); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		add("schedule.timezone: %v", err)
	}

	if err := c.AnnounceMode().Validate(); err != nil {
		add("mode: %v", err)
	}

	if c.Observability.Enabled {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(c.Observability.Addr)); err != nil {
			add("observability.addr: %v", err)
		}
	}

	if lvl := strings.TrimSpace(c.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		add("logging.level: unknown level %q", lvl)
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		add("logging.file.path: required when file logging is enabled")
	}
	if c.Logging.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" || c.Telegram.ChatID == 0 {
			add("logging.telegram: telegram.token and telegram.chat_id are required")
		}
		if lvl := strings.TrimSpace(c.Logging.Telegram.MinLevel); lvl != "" && !logx.ValidLevel(lvl) {
			add("logging.telegram.min_level: unknown level %q", lvl)
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "none":
	case "file", "sqlite":
		if strings.TrimSpace(c.Storage.Path) == "" {
			add("storage.path: required for driver %q", c.Storage.Driver)
		}
	default:
		add("storage.driver: unknown driver %q", c.Storage.Driver)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
