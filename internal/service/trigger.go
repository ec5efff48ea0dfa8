package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgewright/orchestrator/internal/domain"
	"github.com/forgewright/orchestrator/internal/domain/event"
	"github.com/forgewright/orchestrator/internal/domain/mission"
	"github.com/forgewright/orchestrator/internal/domain/step"
	"github.com/forgewright/orchestrator/internal/domain/trigger"
	"github.com/forgewright/orchestrator/internal/idgen"
	"github.com/forgewright/orchestrator/internal/port/database"
	"github.com/forgewright/orchestrator/internal/port/eventstore"
)

// triggerWindow is how far back TriggerEvaluator looks for candidate
// events each tick.
const triggerWindow = 5 * time.Minute

// TriggerEvaluator matches recent events against trigger patterns and
// executes their tagged-union actions.
type TriggerEvaluator struct {
	store  database.Store
	events eventstore.Store
}

// NewTriggerEvaluator constructs a TriggerEvaluator.
func NewTriggerEvaluator(store database.Store, events eventstore.Store) *TriggerEvaluator {
	return &TriggerEvaluator{store: store, events: events}
}

// Evaluate walks enabled triggers in creation order against the event
// window, executing the action of every matching (trigger, event)
// pair at most once. It returns (triggersEvaluated, triggersFired,
// actionsExecuted, errors).
func (e *TriggerEvaluator) Evaluate(ctx context.Context) (int, int, int, []string) {
	var errs []string

	triggers, err := e.store.ListEnabledTriggers(ctx)
	if err != nil {
		return 0, 0, 0, []string{"list triggers: " + err.Error()}
	}
	since := time.Now().Add(-triggerWindow)
	recent, err := e.events.Since(ctx, since)
	if err != nil {
		return 0, 0, 0, []string{"list recent events: " + err.Error()}
	}

	fired := 0
	executed := 0
	for i := range triggers {
		t := &triggers[i]
		matched := matchEvents(recent, t)
		if len(matched) == 0 {
			continue
		}
		triggerFiredThisTick := false
		for _, ev := range matched {
			n, err := e.executeAction(ctx, t, &ev)
			if err != nil {
				slog.Warn("trigger action failed", "trigger", t.Name, "error", err)
				errs = append(errs, "trigger "+t.Name+": "+err.Error())
				continue
			}
			executed += n
			if n > 0 {
				triggerFiredThisTick = true
			}
		}
		if triggerFiredThisTick {
			fired++
			now := time.Now()
			t.LastFiredAt = &now
			if err := e.store.UpdateTrigger(ctx, t); err != nil {
				errs = append(errs, "update trigger "+t.Name+": "+err.Error())
			}
		}
	}
	return len(triggers), fired, executed, errs
}

// matchEvents filters events matching t's pattern: same project,
// matching event_type, and every (k, v) in pattern.conditions present
// in event.payload with equal value (strict equality, no coercion).
func matchEvents(events []event.Event, t *trigger.Trigger) []event.Event {
	var out []event.Event
	for _, ev := range events {
		if ev.ProjectID != t.ProjectID {
			continue
		}
		if string(ev.EventType) != t.EventPattern.EventType {
			continue
		}
		ok := true
		for k, v := range t.EventPattern.Conditions {
			pv, present := ev.Payload[k]
			if !present || pv != v {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, ev)
		}
	}
	return out
}

// executeAction dispatches on the trigger's tagged action kind,
// returning how many actions were executed for this (trigger, event)
// pair (0 or 1) or ErrInvalidTrigger for an unrecognized tag; the
// tick continues regardless.
func (e *TriggerEvaluator) executeAction(ctx context.Context, t *trigger.Trigger, ev *event.Event) (int, error) {
	switch t.Action.Kind {
	case trigger.ActionCreateStep:
		return e.actionCreateStep(ctx, t, ev)
	case trigger.ActionEvaluateMissionCompletion:
		return e.actionEvaluateMissionCompletion(ctx, ev)
	default:
		return 0, domain.ErrInvalidTrigger
	}
}

func (e *TriggerEvaluator) actionCreateStep(ctx context.Context, t *trigger.Trigger, ev *event.Event) (int, error) {
	missionIDRaw, ok := ev.Payload["mission_id"]
	if !ok {
		return 0, nil // no-op if mission_id missing
	}
	missionID, ok := missionIDRaw.(string)
	if !ok || missionID == "" {
		return 0, nil
	}
	stepType := t.Action.StepType
	if stepType == "" {
		stepType = step.TypeOther
	}
	orderIndex := t.Action.OrderIndex
	if orderIndex == 0 {
		orderIndex = 999
	}
	s := &step.Step{
		ID:          idgen.New(),
		MissionID:   missionID,
		OrderIndex:  orderIndex,
		Title:       t.Action.Title,
		Description: t.Action.Description,
		StepType:    stepType,
		Status:      step.StatusPending,
	}
	if err := e.store.CreateStep(ctx, s); err != nil {
		return 0, err
	}
	e.appendTriggerFired(ctx, ev.ProjectID, t.ID)
	return 1, nil
}

func (e *TriggerEvaluator) actionEvaluateMissionCompletion(ctx context.Context, ev *event.Event) (int, error) {
	missionIDRaw, ok := ev.Payload["mission_id"]
	if !ok {
		return 0, nil
	}
	missionID, _ := missionIDRaw.(string)
	if missionID == "" {
		return 0, nil
	}
	m, err := e.store.GetMission(ctx, missionID)
	if err != nil {
		return 0, err
	}
	if m.Status != mission.StatusActive {
		return 0, nil // idempotent: already closed or not active
	}
	steps, err := e.store.ListSteps(ctx, m.ID)
	if err != nil {
		return 0, err
	}
	if len(steps) == 0 {
		return 0, nil
	}
	for _, st := range steps {
		if st.Status != step.StatusCompleted {
			return 0, nil
		}
	}
	now := time.Now()
	m.Status = mission.StatusCompleted
	m.CompletedAt = &now
	if err := e.store.UpdateMission(ctx, m); err != nil {
		return 0, err
	}
	if err := e.events.Append(ctx, &event.Event{
		ID:        idgen.New(),
		ProjectID: m.ProjectID,
		EventType: event.TypeMissionCompleted,
		Payload:   map[string]any{"mission_id": m.ID},
		CreatedAt: now,
	}); err != nil {
		slog.Warn("append mission.completed event failed", "mission_id", m.ID, "error", err)
	}
	return 1, nil
}

func (e *TriggerEvaluator) appendTriggerFired(ctx context.Context, projectID, triggerID string) {
	if err := e.events.Append(ctx, &event.Event{
		ID:        idgen.New(),
		ProjectID: projectID,
		EventType: event.TypeTriggerFired,
		Payload:   map[string]any{"trigger_id": triggerID},
		CreatedAt: time.Now(),
	}); err != nil {
		slog.Warn("append trigger.fired event failed", "trigger_id", triggerID, "error", err)
	}
}
