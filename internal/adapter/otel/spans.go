package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "orchestrator"

// StartTickSpan starts a span for one orchestrator tick.
func StartTickSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tick")
}

// StartStepSpan starts a span for a step dispatch.
func StartStepSpan(ctx context.Context, stepID, stepType, agentID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "step",
		trace.WithAttributes(
			attribute.String("step.id", stepID),
			attribute.String("step.type", stepType),
			attribute.String("agent.id", agentID),
		),
	)
}

// StartMissionSpan starts a span covering a mission's closure or escalation check.
func StartMissionSpan(ctx context.Context, missionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "mission",
		trace.WithAttributes(
			attribute.String("mission.id", missionID),
		),
	)
}
