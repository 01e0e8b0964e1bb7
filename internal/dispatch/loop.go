// Package dispatch runs the announce loop: poll the schedule, translate due
// events, deliver them one at a time.
package dispatch

import (
	"context"
	"errors"
	"sync/atomic"

	"emfpager/internal/announce"
	"emfpager/internal/delivery"
	"emfpager/internal/runtime/race"
	"emfpager/internal/schedule"
	"emfpager/pkg/logx"
)

type Source interface {
	Poll(ctx context.Context) (schedule.PollResult, error)
}

type Translator interface {
	Translate(ev schedule.Event) (announce.Notification, bool)
}

type Deliverer interface {
	Deliver(ctx context.Context, n announce.Notification) delivery.Outcome
}

// Stats are running totals since the loop started.
type Stats struct {
	Polls      int64 `json:"polls"`
	PollErrors int64 `json:"poll_errors"`
	Events     int64 `json:"events"`
	Dropped    int64 `json:"dropped"`
	Delivered  int64 `json:"delivered"`
	Failed     int64 `json:"failed"`
	Skipped    int64 `json:"skipped"`
}

// Loop is the single worker that drives a Source.
//
// Each iteration races one Poll against ctx. Cancellation wins only between
// deliveries: a due event is translated and delivered, including every
// retry, before the next poll starts.
type Loop struct {
	src Source
	tr  Translator
	dlv Deliverer
	log logx.Logger

	polls, pollErrors, events, dropped atomic.Int64
	delivered, failed, skipped         atomic.Int64
}

func New(src Source, tr Translator, dlv Deliverer, log logx.Logger) (*Loop, error) {
	if src == nil || tr == nil || dlv == nil {
		return nil, errors.New("dispatch: source, translator and deliverer are required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Loop{src: src, tr: tr, dlv: dlv, log: log}, nil
}

type pollResult struct {
	res schedule.PollResult
	err error
}

// Run blocks until ctx is cancelled and returns nil. Errors from the source
// are logged and never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("dispatch loop started")
	for {
		pr, stopped := race.First(ctx, ctx.Done(), l.poll)
		if stopped {
			l.log.Info("dispatch loop stopped")
			return nil
		}
		l.polls.Add(1)

		if pr.err != nil {
			l.pollErrors.Add(1)
			l.log.Warn("poll failed", logx.Err(pr.err))
			continue
		}
		if pr.res.Kind != schedule.EventDue {
			continue
		}
		l.handle(ctx, pr.res.Event)
	}
}

func (l *Loop) poll(ctx context.Context) pollResult {
	res, err := l.src.Poll(ctx)
	return pollResult{res: res, err: err}
}

func (l *Loop) handle(ctx context.Context, ev schedule.Event) {
	l.events.Add(1)
	l.log.Info("event due",
		logx.Int("event_id", ev.ID),
		logx.String("venue", ev.Venue),
		logx.String("title", ev.Title),
		logx.Time("start", ev.Start),
	)

	n, ok := l.tr.Translate(ev)
	if !ok {
		l.dropped.Add(1)
		return
	}
	switch out := l.dlv.Deliver(ctx, n); out.Status {
	case delivery.Success:
		l.delivered.Add(1)
	case delivery.Failure:
		l.failed.Add(1)
	case delivery.Skipped:
		l.skipped.Add(1)
	}
}

// Stats returns a snapshot of the loop counters. Safe to call concurrently
// with Run.
func (l *Loop) Stats() Stats {
	return Stats{
		Polls:      l.polls.Load(),
		PollErrors: l.pollErrors.Load(),
		Events:     l.events.Load(),
		Dropped:    l.dropped.Load(),
		Delivered:  l.delivered.Load(),
		Failed:     l.failed.Load(),
		Skipped:    l.skipped.Load(),
	}
}
