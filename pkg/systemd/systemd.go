// Package systemd speaks the sd_notify protocol. Every call is a no-op when
// the process is not run by systemd (NOTIFY_SOCKET unset).
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends state updates. The zero value uses the real socket.
type Notifier struct {
	// notify and watchdogEnabled are replaced in tests.
	notify          func(state string) (bool, error)
	watchdogEnabled func() (time.Duration, error)
}

func (n Notifier) send(state string) (bool, error) {
	if n.notify != nil {
		return n.notify(state)
	}
	return daemon.SdNotify(false, state)
}

func (n Notifier) interval() (time.Duration, error) {
	if n.watchdogEnabled != nil {
		return n.watchdogEnabled()
	}
	return daemon.SdWatchdogEnabled(false)
}

func (n Notifier) Ready() (bool, error)    { return n.send(daemon.SdNotifyReady) }
func (n Notifier) Stopping() (bool, error) { return n.send(daemon.SdNotifyStopping) }
func (n Notifier) Reloading() (bool, error) {
	return n.send(daemon.SdNotifyReloading)
}

// Status sets the free-form status line shown by systemctl status.
func (n Notifier) Status(s string) (bool, error) { return n.send("STATUS=" + s) }

// Watchdog pings at half the configured WatchdogSec until ctx is done.
// It returns immediately when the unit has no watchdog.
func (n Notifier) Watchdog(ctx context.Context) error {
	every, err := n.interval()
	if err != nil {
		return err
	}
	if every <= 0 {
		return nil
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := n.send(daemon.SdNotifyWatchdog); err != nil {
				return err
			}
		}
	}
}
