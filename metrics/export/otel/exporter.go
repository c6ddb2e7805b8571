package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/passless/passless"
	"github.com/passless/passless/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() passless.MetricsSnapshot
	BroadcastDropped() uint64
}

type observedCounter struct {
	id         passless.MetricID
	instrument metric.Int64ObservableCounter
}

// OTelExporter registers one observable counter per definition and reports
// snapshot values through a single callback.
type OTelExporter struct {
	source           metricsSource
	registration     metric.Registration
	counters         []observedCounter
	broadcastDropped metric.Int64ObservableCounter
}

// NewOTelExporter reads from a built Machine.
func NewOTelExporter(meter metric.Meter, machine *passless.Machine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, machine)
}

// NewOTelExporterFromSource accepts any snapshot source, mainly for tests.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:   source,
		counters: make([]observedCounter, 0, len(internaldefs.CounterDefs)),
	}
	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+1)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	dropped, err := meter.Int64ObservableCounter(
		internaldefs.BroadcastDroppedName,
		metric.WithDescription(internaldefs.BroadcastDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create broadcast dropped counter: %w", err)
	}
	exporter.broadcastDropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.broadcastDropped, int64(exporter.source.BroadcastDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
