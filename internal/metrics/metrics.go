// Package metrics owns the announcer's Prometheus counters and the
// observability HTTP endpoint that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Announcements counts delivery attempt outcomes by target kind and result.
type Announcements struct {
	vec *prometheus.CounterVec
}

// NewAnnouncements creates the counter and registers it with reg.
// A nil reg leaves the counter unregistered.
func NewAnnouncements(reg prometheus.Registerer) (*Announcements, error) {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dapnet",
			Subsystem: "event",
			Name:      "announcements_total",
			Help:      "DAPNET delivery attempts by target kind and result",
		},
		[]string{"target", "result"},
	)
	if reg != nil {
		if err := reg.Register(vec); err != nil {
			return nil, err
		}
	}
	return &Announcements{vec: vec}, nil
}

// Record increments the counter for one attempt.
func (a *Announcements) Record(target, result string) {
	a.vec.WithLabelValues(target, result).Inc()
}

// Collector exposes the underlying vector, mainly for tests.
func (a *Announcements) Collector() *prometheus.CounterVec { return a.vec }
