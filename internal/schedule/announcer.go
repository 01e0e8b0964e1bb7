package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"emfpager/pkg/logx"
)

// ResultKind tags a poll result.
type ResultKind int

const (
	// NoOp means nothing needs announcing (e.g. the schedule was refreshed).
	NoOp ResultKind = iota
	// EventDue carries an event whose announcement time has arrived.
	EventDue
)

func (k ResultKind) String() string {
	if k == EventDue {
		return "event"
	}
	return "noop"
}

// PollResult is one item of the announcer's output stream.
type PollResult struct {
	Kind  ResultKind
	Event Event
}

// Fetcher downloads the full schedule.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Event, error)
}

// Snapshotter keeps the last good schedule so a restart during an API outage
// still has something to announce from.
type Snapshotter interface {
	SaveSchedule(ctx context.Context, events []Event) error
	LoadSchedule(ctx context.Context) ([]Event, error)
}

// Settings configure an Announcer.
type Settings struct {
	// Offset is how long before an event's start it is surfaced.
	Offset time.Duration
	// Refresh decides when the schedule is re-downloaded.
	Refresh cron.Schedule
	// RetryAfter is the delay before re-downloading after a failed refresh.
	RetryAfter time.Duration

	// Now and Wait default to the wall clock; tests replace them.
	Now  func() time.Time
	Wait func(ctx context.Context, d time.Duration) error
}

// Announcer turns a periodically refreshed schedule into a stream of due events.
//
// Each call to Poll blocks until one of: an event's announcement time
// (start - Offset) arrives, the schedule is refreshed, or ctx is done.
// Events whose announcement time passed before the Announcer was created are
// never emitted. Poll must not be called concurrently.
type Announcer struct {
	fetch Fetcher
	cache Snapshotter
	log   logx.Logger
	set   Settings

	events      []Event
	nextRefresh time.Time
	// count mirrors len(events) for readers outside the poll goroutine.
	count atomic.Int64

	// cursor is the announcement time of the last emitted event; announced
	// holds the keys of events already emitted at exactly cursor.
	cursor    time.Time
	announced map[string]struct{}
}

func NewAnnouncer(set Settings, fetch Fetcher, cache Snapshotter, log logx.Logger) (*Announcer, error) {
	if fetch == nil {
		return nil, errors.New("schedule: fetcher is required")
	}
	if set.Offset <= 0 {
		return nil, errors.New("schedule: offset must be > 0")
	}
	if set.Refresh == nil {
		sched, err := ParseRefresh(DefaultRefresh)
		if err != nil {
			return nil, err
		}
		set.Refresh = sched
	}
	if set.RetryAfter <= 0 {
		set.RetryAfter = 10 * time.Second
	}
	if set.Now == nil {
		set.Now = time.Now
	}
	if set.Wait == nil {
		set.Wait = sleepCtx
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Announcer{
		fetch:     fetch,
		cache:     cache,
		log:       log,
		set:       set,
		cursor:    set.Now(),
		announced: map[string]struct{}{},
	}, nil
}

// Poll returns the next result. A non-nil error is transient: the caller may
// poll again immediately.
func (a *Announcer) Poll(ctx context.Context) (PollResult, error) {
	now := a.set.Now()
	if !now.Before(a.nextRefresh) {
		return PollResult{Kind: NoOp}, a.refresh(ctx, now)
	}

	wake := a.nextRefresh
	ev, at, ok := a.nextDue()
	if ok && at.Before(wake) {
		wake = at
	}
	if d := wake.Sub(now); d > 0 {
		if err := a.set.Wait(ctx, d); err != nil {
			return PollResult{}, err
		}
	}

	if ok && !a.set.Now().Before(at) {
		a.markAnnounced(ev, at)
		return PollResult{Kind: EventDue, Event: ev}, nil
	}
	return PollResult{Kind: NoOp}, nil
}

// Len returns the number of events currently known. Safe to call
// concurrently with Poll.
func (a *Announcer) Len() int { return int(a.count.Load()) }

func (a *Announcer) setEvents(evs []Event) {
	a.events = evs
	a.count.Store(int64(len(evs)))
}

func (a *Announcer) refresh(ctx context.Context, now time.Time) error {
	evs, err := a.fetch.Fetch(ctx)
	if err != nil {
		a.nextRefresh = now.Add(a.set.RetryAfter)
		if len(a.events) == 0 && a.cache != nil {
			if cached, cerr := a.cache.LoadSchedule(ctx); cerr == nil && len(cached) > 0 {
				sortEvents(cached)
				a.setEvents(cached)
				a.log.Warn("schedule fetch failed; using cached schedule", logx.Int("events", len(cached)), logx.Err(err))
			}
		}
		return err
	}

	sortEvents(evs)
	a.setEvents(evs)
	a.nextRefresh = a.set.Refresh.Next(now)
	a.log.Debug("schedule refreshed", logx.Int("events", len(evs)), logx.Time("next_refresh", a.nextRefresh))

	if a.cache != nil {
		if err := a.cache.SaveSchedule(ctx, evs); err != nil {
			a.log.Warn("schedule snapshot save failed", logx.Err(err))
		}
	}
	return nil
}

func (a *Announcer) nextDue() (Event, time.Time, bool) {
	for _, ev := range a.events {
		at := ev.Start.Add(-a.set.Offset)
		if at.After(a.cursor) {
			return ev, at, true
		}
		if at.Equal(a.cursor) {
			if _, done := a.announced[ev.key()]; !done {
				return ev, at, true
			}
		}
	}
	return Event{}, time.Time{}, false
}

func (a *Announcer) markAnnounced(ev Event, at time.Time) {
	if at.After(a.cursor) {
		a.cursor = at
		clear(a.announced)
	}
	a.announced[ev.key()] = struct{}{}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
