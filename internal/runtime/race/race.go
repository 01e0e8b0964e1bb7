// Package race waits on two sources and reports whichever becomes ready first.
//
// It is the building block of the dispatch loop: one source is a stop signal,
// the other is a unit of blocking work (a poll). When the stop signal wins the
// work's context is canceled and its eventual result is discarded.
package race

import "context"

// First runs work and blocks until either work returns or stop is closed.
//
// If stop is already closed when First is called, work is never started.
// stopped reports whether the stop signal won; in that case v is the zero value.
// work receives a context derived from ctx that is canceled once First returns.
func First[T any](ctx context.Context, stop <-chan struct{}, work func(context.Context) T) (v T, stopped bool) {
	select {
	case <-stop:
		return v, true
	default:
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so the worker never blocks on a result nobody reads.
	out := make(chan T, 1)
	go func() { out <- work(wctx) }()

	select {
	case <-stop:
		return v, true
	case v = <-out:
		return v, false
	}
}
