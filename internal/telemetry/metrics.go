// Package telemetry defines the metric instruments of the session engine.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "spotter"

// Metrics holds all Spotter metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	Commands         metric.Int64Counter
	CommandsRejected metric.Int64Counter
	SetsCompleted    metric.Int64Counter
	Adjustments      metric.Int64Counter
	PersistFailures  metric.Int64Counter
	WorkoutsFinished metric.Int64Counter
	WorkoutDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Commands, err = meter.Int64Counter("spotter.commands",
		metric.WithDescription("Number of commands applied"))
	if err != nil {
		return nil, err
	}

	m.CommandsRejected, err = meter.Int64Counter("spotter.commands.rejected",
		metric.WithDescription("Number of commands rejected as not applicable or stale"))
	if err != nil {
		return nil, err
	}

	m.SetsCompleted, err = meter.Int64Counter("spotter.sets.completed",
		metric.WithDescription("Number of sets completed"))
	if err != nil {
		return nil, err
	}

	m.Adjustments, err = meter.Int64Counter("spotter.adjustments",
		metric.WithDescription("Number of set adjustments"))
	if err != nil {
		return nil, err
	}

	m.PersistFailures, err = meter.Int64Counter("spotter.persist.failures",
		metric.WithDescription("Number of failed persistence writes"))
	if err != nil {
		return nil, err
	}

	m.WorkoutsFinished, err = meter.Int64Counter("spotter.workouts.finished",
		metric.WithDescription("Number of workouts completed or finished early"))
	if err != nil {
		return nil, err
	}

	m.WorkoutDuration, err = meter.Float64Histogram("spotter.workout.duration_seconds",
		metric.WithDescription("Active workout duration in seconds, pauses excluded"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Command records an applied or rejected command.
func (m *Metrics) Command(ctx context.Context, name string, rejected bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("command", name))
	if rejected {
		m.CommandsRejected.Add(ctx, 1, attrs)
		return
	}
	m.Commands.Add(ctx, 1, attrs)
}

// SetCompleted records one completed set.
func (m *Metrics) SetCompleted(ctx context.Context, timedOut bool) {
	if m == nil {
		return
	}
	m.SetsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("timed_out", timedOut)))
}

// Adjusted records one adjustment of field.
func (m *Metrics) Adjusted(ctx context.Context, field string) {
	if m == nil {
		return
	}
	m.Adjustments.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
}

// PersistFailed records a failed write of the given kind.
func (m *Metrics) PersistFailed(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.PersistFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// WorkoutFinished records a workout reaching its terminal state.
func (m *Metrics) WorkoutFinished(ctx context.Context, seconds float64, early bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("finished_early", early))
	m.WorkoutsFinished.Add(ctx, 1, attrs)
	m.WorkoutDuration.Record(ctx, seconds, attrs)
}
