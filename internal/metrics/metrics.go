// Package metrics provides sinks for credential access events.
//
// An access event carries no payload: it only says that a credential
// operation happened. Stores call RecordAccess exactly once per operation.
package metrics

import (
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives access events.
type Sink interface {
	RecordAccess()
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc func()

func (f SinkFunc) RecordAccess() { f() }

// Nop discards every event.
var Nop Sink = SinkFunc(func() {})

// Counter counts events. It is safe for concurrent use.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) RecordAccess() { c.n.Add(1) }

// Count returns the number of events recorded so far.
func (c *Counter) Count() int64 { return c.n.Load() }

// LogSink writes one structured log record per event.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink logs through logger, or through the default logger when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "metrics")}
}

func (s *LogSink) RecordAccess() {
	s.logger.Info("credential access")
}

// PrometheusSink increments a counter per event.
type PrometheusSink struct {
	accesses prometheus.Counter
}

// NewPrometheusSink creates the access counter and registers it with reg.
// A nil reg leaves the counter unregistered.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credmock_credential_access_total",
		Help: "Total number of credential store operations",
	})
	if reg != nil {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return &PrometheusSink{accesses: c}, nil
}

func (s *PrometheusSink) RecordAccess() { s.accesses.Inc() }

// Collector exposes the underlying counter, mainly for tests.
func (s *PrometheusSink) Collector() prometheus.Counter { return s.accesses }

type tee []Sink

func (t tee) RecordAccess() {
	for _, s := range t {
		s.RecordAccess()
	}
}

// Tee forwards each event once to every non-nil sink.
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
