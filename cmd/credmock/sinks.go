package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/benaskins/credmock/internal/audit"
	"github.com/benaskins/credmock/internal/config"
	"github.com/benaskins/credmock/internal/keychain"
	"github.com/benaskins/credmock/internal/metrics"
)

// telemetry holds the sinks and audit log built from config for one command.
type telemetry struct {
	sink     metrics.Sink
	counter  *metrics.Counter
	registry *prometheus.Registry
	audit    *audit.Logger
}

func newTelemetry(c *config.Config) (*telemetry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	t := &telemetry{}
	var sinks []metrics.Sink

	if c.AuditLog != "" {
		l, err := audit.NewLogger(c.AuditLog)
		if err != nil {
			return nil, err
		}
		t.audit = l
	}

	for _, name := range c.Sinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, metrics.NewLogSink(nil))
		case config.SinkAudit:
			sinks = append(sinks, t.audit)
		case config.SinkCounter:
			t.counter = &metrics.Counter{}
			sinks = append(sinks, t.counter)
		case config.SinkPrometheus:
			t.registry = prometheus.NewRegistry()
			p, err := metrics.NewPrometheusSink(t.registry)
			if err != nil {
				t.Close()
				return nil, fmt.Errorf("registering access counter: %w", err)
			}
			sinks = append(sinks, p)
		}
	}
	t.sink = metrics.Tee(sinks...)
	return t, nil
}

// wrap decorates store with audit logging when an audit log is configured.
func (t *telemetry) wrap(store keychain.Store, actor string) keychain.Store {
	if t.audit == nil {
		return store
	}
	return keychain.NewAuditedStore(store, t.audit, actor)
}

// report prints the counter and prometheus values, if enabled.
func (t *telemetry) report() {
	if t.counter != nil {
		fmt.Printf("accesses: %d\n", t.counter.Count())
	}
	if t.registry == nil {
		return
	}
	families, err := t.registry.Gather()
	if err != nil {
		slog.Warn("gathering metrics failed", "error", err)
		return
	}
	var b strings.Builder
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&b, mf); err != nil {
			slog.Warn("encoding metrics failed", "error", err)
			return
		}
	}
	fmt.Print(b.String())
}

func (t *telemetry) Close() {
	if t.audit != nil {
		t.audit.Close()
	}
}
