package storage

import (
	"context"
	"errors"
	"time"

	"emfpager/internal/schedule"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage. An empty Driver or "none" disables it.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store persists schedule snapshots. It implements schedule.Snapshotter.
type Store interface {
	SaveSchedule(ctx context.Context, events []schedule.Event) error
	// LoadSchedule returns the last saved events, or none if nothing was saved.
	LoadSchedule(ctx context.Context) ([]schedule.Event, error)
	Close() error
}
