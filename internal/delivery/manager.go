// Package delivery sends notifications to DAPNET with a fixed retry budget.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"emfpager/internal/announce"
	"emfpager/internal/dapnet"
	"emfpager/internal/eventbus"
	"emfpager/internal/metrics"
	"emfpager/pkg/logx"
)

const (
	// MaxAttempts is the total number of sends tried per notification.
	MaxAttempts = 5
	// RetryDelay is the fixed pause between attempts.
	RetryDelay = time.Second
	// DefaultAttemptTimeout bounds a single send.
	DefaultAttemptTimeout = 15 * time.Second
)

var errUnknownKind = errors.New("delivery: notification has no payload")

// Outcome is the result of one Deliver call.
type Outcome struct {
	Status   Status
	Attempts int
	// Err is the last send error when Status is Failure.
	Err error
}

type Status int

const (
	Success Status = iota
	Failure
	// Skipped means dry-run suppressed the send.
	Skipped
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Sender is the transport. *dapnet.Client implements it.
type Sender interface {
	SendNews(ctx context.Context, n dapnet.News) error
	SendCall(ctx context.Context, c dapnet.Call) error
}

// Recorder counts attempt outcomes. *metrics.Announcements implements it.
type Recorder interface {
	Record(target, result string)
}

// Options configure a Manager. Zero values select the defaults.
type Options struct {
	AttemptTimeout time.Duration
	// DryRun reports whether sends are suppressed. It is consulted on every
	// Deliver so it can follow config reloads.
	DryRun func() bool
	// Sleep waits between attempts. Tests replace it.
	Sleep func(d time.Duration)
	Bus   eventbus.Bus
}

// Manager delivers notifications one at a time. It is not meant to be used
// concurrently; the dispatch loop calls it from a single goroutine.
type Manager struct {
	send    Sender
	rec     Recorder
	log     logx.Logger
	opts    Options
	newID   func() string
	nowFunc func() time.Time
}

func NewManager(send Sender, rec Recorder, log logx.Logger, opts Options) (*Manager, error) {
	if send == nil {
		return nil, errors.New("delivery: sender is required")
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	if opts.DryRun == nil {
		opts.DryRun = func() bool { return false }
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Manager{
		send:    send,
		rec:     rec,
		log:     log,
		opts:    opts,
		newID:   uuid.NewString,
		nowFunc: time.Now,
	}, nil
}

// Deliver sends n, retrying up to MaxAttempts times with a fixed RetryDelay.
//
// Once started, the retry sequence runs to completion even if ctx is
// cancelled; only the values carried by ctx are used. Exhausting the budget
// is logged and reported as Failure, never escalated.
func (m *Manager) Deliver(ctx context.Context, n announce.Notification) Outcome {
	id := m.newID()
	log := m.log.With(
		logx.String("delivery_id", id),
		logx.String("target", string(n.Kind)),
		logx.String("text", n.Text()),
	)

	if m.opts.DryRun() {
		log.Info("dry run; not sending", logx.Any("payload", payload(n)))
		m.publish(eventbus.TypeDeliverySkipped, id, n, 0, 0, nil)
		return Outcome{Status: Skipped}
	}

	base := context.WithoutCancel(ctx)
	start := m.nowFunc()
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		err := m.sendOnce(base, n)
		if err == nil {
			m.rec.Record(string(n.Kind), metrics.ResultOK)
			log.Info("notification sent", logx.Int("attempt", attempt))
			m.publish(eventbus.TypeDeliverySent, id, n, attempt, m.nowFunc().Sub(start), nil)
			return Outcome{Status: Success, Attempts: attempt}
		}
		lastErr = err
		m.rec.Record(string(n.Kind), metrics.ResultError)
		log.Error("send failed", logx.Int("attempt", attempt), logx.Int("max", MaxAttempts), logx.Err(err))

		if attempt < MaxAttempts {
			m.opts.Sleep(RetryDelay)
		}
	}

	log.Error("delivery failed permanently", logx.Int("attempts", MaxAttempts), logx.Err(lastErr))
	m.publish(eventbus.TypeDeliveryFailed, id, n, MaxAttempts, m.nowFunc().Sub(start), lastErr)
	return Outcome{Status: Failure, Attempts: MaxAttempts, Err: lastErr}
}

func (m *Manager) sendOnce(base context.Context, n announce.Notification) error {
	ctx, cancel := context.WithTimeout(base, m.opts.AttemptTimeout)
	defer cancel()
	switch {
	case n.Kind == announce.TargetRubric && n.News != nil:
		return m.send.SendNews(ctx, *n.News)
	case n.Kind == announce.TargetCall && n.Call != nil:
		return m.send.SendCall(ctx, *n.Call)
	}
	return errUnknownKind
}

func (m *Manager) publish(typ, id string, n announce.Notification, attempts int, dur time.Duration, err error) {
	if m.opts.Bus == nil {
		return
	}
	d := eventbus.Delivery{
		ID:       id,
		Target:   string(n.Kind),
		Text:     n.Text(),
		Attempts: attempts,
		Duration: dur,
	}
	if err != nil {
		d.Error = err.Error()
	}
	m.opts.Bus.Publish(eventbus.Event{Type: typ, Time: m.nowFunc(), Data: d})
}

func payload(n announce.Notification) any {
	if n.News != nil {
		return n.News
	}
	return n.Call
}

type nopRecorder struct{}

func (nopRecorder) Record(string, string) {}
