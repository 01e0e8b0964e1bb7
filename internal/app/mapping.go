package app

import (
	"time"

	"emfpager/internal/config"
	"emfpager/internal/dapnet"
	"emfpager/internal/metrics"
	"emfpager/internal/schedule"
	"emfpager/internal/storage"
	"emfpager/pkg/logx"
)

// Config values are validated by config.Validate before they reach these
// mappers, so parse errors fall back to defaults.

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.ChatID,
			ThreadID:   cfg.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapDAPNETConfig(cfg *config.Config) dapnet.Config {
	return dapnet.Config{
		BaseURL:    cfg.DAPNET.URL,
		Username:   cfg.DAPNET.Username,
		Password:   cfg.DAPNET.Password,
		Timeout:    config.DurationOr(cfg.DAPNET.Timeout, 15*time.Second),
		RatePerSec: cfg.DAPNET.RatePerSec,
	}
}

func mapStorageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: time.Second,
	}
}

func mapServerConfig(cfg *config.Config) metrics.ServerConfig {
	addr := cfg.Observability.Addr
	if addr == "" {
		addr = metrics.DefaultAddr
	}
	return metrics.ServerConfig{
		Enabled: cfg.Observability.Enabled,
		Addr:    addr,
		Pprof:   cfg.Observability.Pprof,
	}
}

func mapAnnouncerSettings(cfg *config.Config) (schedule.Settings, error) {
	refresh, err := schedule.ParseRefresh(cfg.Schedule.Refresh)
	if err != nil {
		return schedule.Settings{}, err
	}
	return schedule.Settings{
		Offset:     cfg.PreEventOffset(),
		Refresh:    refresh,
		RetryAfter: config.DurationOr(cfg.Schedule.Retry, 10*time.Second),
	}, nil
}
