package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "orchestrator"

// Metrics holds all orchestrator metric instruments.
type Metrics struct {
	TicksRun          metric.Int64Counter
	TickDuration      metric.Float64Histogram
	TriggersFired     metric.Int64Counter
	MissionsCompleted metric.Int64Counter
	MissionsEscalated metric.Int64Counter
	StepsCompleted    metric.Int64Counter
	StepsFailed       metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TicksRun, err = meter.Int64Counter("orchestrator.ticks.run",
		metric.WithDescription("Number of orchestrator ticks run"))
	if err != nil {
		return nil, err
	}

	m.TickDuration, err = meter.Float64Histogram("orchestrator.tick.duration_seconds",
		metric.WithDescription("Tick duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.TriggersFired, err = meter.Int64Counter("orchestrator.triggers.fired",
		metric.WithDescription("Number of triggers fired"))
	if err != nil {
		return nil, err
	}

	m.MissionsCompleted, err = meter.Int64Counter("orchestrator.missions.completed",
		metric.WithDescription("Number of missions completed"))
	if err != nil {
		return nil, err
	}

	m.MissionsEscalated, err = meter.Int64Counter("orchestrator.missions.escalated",
		metric.WithDescription("Number of missions escalated to a human"))
	if err != nil {
		return nil, err
	}

	m.StepsCompleted, err = meter.Int64Counter("orchestrator.steps.completed",
		metric.WithDescription("Number of steps completed"))
	if err != nil {
		return nil, err
	}

	m.StepsFailed, err = meter.Int64Counter("orchestrator.steps.failed",
		metric.WithDescription("Number of steps failed"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
