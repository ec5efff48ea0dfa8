package service

import (
	"context"
	"testing"
	"time"

	"github.com/forgewright/orchestrator/internal/domain/event"
	"github.com/forgewright/orchestrator/internal/domain/mission"
	"github.com/forgewright/orchestrator/internal/domain/step"
	"github.com/forgewright/orchestrator/internal/domain/trigger"
)

func TestEvaluate_CreateStepAction(t *testing.T) {
	store := newFakeStore()
	events := &fakeEventStore{}

	m := &mission.Mission{ProjectID: "proj-1", Title: "m", Status: mission.StatusActive}
	if err := store.CreateMission(context.Background(), m); err != nil {
		t.Fatalf("create mission: %v", err)
	}

	tr := &trigger.Trigger{
		ProjectID: "proj-1", Name: "on-step-failed", Enabled: true,
		EventPattern: trigger.EventPattern{EventType: string(event.TypeStepFailed)},
		Action: trigger.Action{
			Kind: trigger.ActionCreateStep, Title: "Investigate failure",
			StepType: step.TypeResearch, OrderIndex: 5,
		},
	}
	if err := store.CreateTrigger(context.Background(), tr); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if err := events.Append(context.Background(), &event.Event{
		ProjectID: "proj-1", EventType: event.TypeStepFailed,
		Payload: map[string]any{"mission_id": m.ID}, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	eval := NewTriggerEvaluator(store, events)
	total, fired, executed, errs := eval.Evaluate(context.Background())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if total != 1 || fired != 1 || executed != 1 {
		t.Fatalf("got total=%d fired=%d executed=%d, want 1/1/1", total, fired, executed)
	}

	steps, err := store.ListSteps(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("expected 1 created step, got %d", len(steps))
	}
	if steps[0].Title != "Investigate failure" || steps[0].StepType != step.TypeResearch {
		t.Fatalf("unexpected step: %+v", steps[0])
	}
}

func TestEvaluate_CreateStepNoopWithoutMissionID(t *testing.T) {
	store := newFakeStore()
	events := &fakeEventStore{}

	tr := &trigger.Trigger{
		ProjectID: "proj-1", Name: "on-step-failed", Enabled: true,
		EventPattern: trigger.EventPattern{EventType: string(event.TypeStepFailed)},
		Action:       trigger.Action{Kind: trigger.ActionCreateStep, Title: "x"},
	}
	if err := store.CreateTrigger(context.Background(), tr); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := events.Append(context.Background(), &event.Event{
		ProjectID: "proj-1", EventType: event.TypeStepFailed,
		Payload: map[string]any{}, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	eval := NewTriggerEvaluator(store, events)
	_, fired, executed, errs := eval.Evaluate(context.Background())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if fired != 0 || executed != 0 {
		t.Fatalf("expected no-op, got fired=%d executed=%d", fired, executed)
	}
}

func TestEvaluate_MissionCompletionClosesMissionWhenAllStepsComplete(t *testing.T) {
	store := newFakeStore()
	events := &fakeEventStore{}

	m := &mission.Mission{ProjectID: "proj-1", Title: "m", Status: mission.StatusActive}
	if err := store.CreateMission(context.Background(), m); err != nil {
		t.Fatalf("create mission: %v", err)
	}
	s := step.Step{MissionID: m.ID, OrderIndex: 0, StepType: step.TypeCode, Status: step.StatusCompleted}
	if err := store.CreateSteps(context.Background(), []step.Step{s}); err != nil {
		t.Fatalf("create step: %v", err)
	}

	tr := &trigger.Trigger{
		ProjectID: "proj-1", Name: "on-step-completed", Enabled: true,
		EventPattern: trigger.EventPattern{EventType: string(event.TypeStepCompleted)},
		Action:       trigger.Action{Kind: trigger.ActionEvaluateMissionCompletion},
	}
	if err := store.CreateTrigger(context.Background(), tr); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := events.Append(context.Background(), &event.Event{
		ProjectID: "proj-1", EventType: event.TypeStepCompleted,
		Payload: map[string]any{"mission_id": m.ID}, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	eval := NewTriggerEvaluator(store, events)
	_, fired, executed, errs := eval.Evaluate(context.Background())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if fired != 1 || executed != 1 {
		t.Fatalf("got fired=%d executed=%d, want 1/1", fired, executed)
	}

	got, err := store.GetMission(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetMission: %v", err)
	}
	if got.Status != mission.StatusCompleted {
		t.Fatalf("expected mission COMPLETED, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected CompletedAt to be set")
	}
}

func TestEvaluate_MissionCompletionNoopWhenStepsIncomplete(t *testing.T) {
	store := newFakeStore()
	events := &fakeEventStore{}

	m := &mission.Mission{ProjectID: "proj-1", Title: "m", Status: mission.StatusActive}
	if err := store.CreateMission(context.Background(), m); err != nil {
		t.Fatalf("create mission: %v", err)
	}
	steps := []step.Step{
		{MissionID: m.ID, OrderIndex: 0, StepType: step.TypeCode, Status: step.StatusCompleted},
		{MissionID: m.ID, OrderIndex: 1, StepType: step.TypeTest, Status: step.StatusPending},
	}
	if err := store.CreateSteps(context.Background(), steps); err != nil {
		t.Fatalf("create steps: %v", err)
	}

	tr := &trigger.Trigger{
		ProjectID: "proj-1", Name: "on-step-completed", Enabled: true,
		EventPattern: trigger.EventPattern{EventType: string(event.TypeStepCompleted)},
		Action:       trigger.Action{Kind: trigger.ActionEvaluateMissionCompletion},
	}
	if err := store.CreateTrigger(context.Background(), tr); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := events.Append(context.Background(), &event.Event{
		ProjectID: "proj-1", EventType: event.TypeStepCompleted,
		Payload: map[string]any{"mission_id": m.ID}, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	eval := NewTriggerEvaluator(store, events)
	_, fired, executed, _ := eval.Evaluate(context.Background())
	if fired != 0 || executed != 0 {
		t.Fatalf("expected no-op while steps incomplete, got fired=%d executed=%d", fired, executed)
	}
	got, _ := store.GetMission(context.Background(), m.ID)
	if got.Status != mission.StatusActive {
		t.Fatalf("expected mission to remain ACTIVE, got %s", got.Status)
	}
}

func TestEvaluate_InvalidTriggerActionReportsError(t *testing.T) {
	store := newFakeStore()
	events := &fakeEventStore{}

	tr := &trigger.Trigger{
		ProjectID: "proj-1", Name: "bad-trigger", Enabled: true,
		EventPattern: trigger.EventPattern{EventType: string(event.TypeStepFailed)},
		Action:       trigger.Action{Kind: "not_a_real_kind"},
	}
	if err := store.CreateTrigger(context.Background(), tr); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := events.Append(context.Background(), &event.Event{
		ProjectID: "proj-1", EventType: event.TypeStepFailed,
		Payload: map[string]any{}, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	eval := NewTriggerEvaluator(store, events)
	_, fired, executed, errs := eval.Evaluate(context.Background())
	if fired != 0 || executed != 0 {
		t.Fatalf("expected no fires/executions, got fired=%d executed=%d", fired, executed)
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 reported error, got %v", errs)
	}
}

func TestEvaluate_ConditionsMustMatchExactly(t *testing.T) {
	store := newFakeStore()
	events := &fakeEventStore{}

	m := &mission.Mission{ProjectID: "proj-1", Title: "m", Status: mission.StatusActive}
	if err := store.CreateMission(context.Background(), m); err != nil {
		t.Fatalf("create mission: %v", err)
	}

	tr := &trigger.Trigger{
		ProjectID: "proj-1", Name: "on-security-step-failed", Enabled: true,
		EventPattern: trigger.EventPattern{
			EventType:  string(event.TypeStepFailed),
			Conditions: map[string]any{"step_type": "SECURITY"},
		},
		Action: trigger.Action{Kind: trigger.ActionCreateStep, Title: "escalate"},
	}
	if err := store.CreateTrigger(context.Background(), tr); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := events.Append(context.Background(), &event.Event{
		ProjectID: "proj-1", EventType: event.TypeStepFailed,
		Payload: map[string]any{"mission_id": m.ID, "step_type": "CODE"}, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	eval := NewTriggerEvaluator(store, events)
	_, fired, executed, _ := eval.Evaluate(context.Background())
	if fired != 0 || executed != 0 {
		t.Fatalf("expected condition mismatch to suppress firing, got fired=%d executed=%d", fired, executed)
	}
}

func TestEvaluate_DisabledTriggerIgnored(t *testing.T) {
	store := newFakeStore()
	events := &fakeEventStore{}

	tr := &trigger.Trigger{
		ProjectID: "proj-1", Name: "disabled", Enabled: false,
		EventPattern: trigger.EventPattern{EventType: string(event.TypeStepFailed)},
		Action:       trigger.Action{Kind: trigger.ActionCreateStep, Title: "x"},
	}
	if err := store.CreateTrigger(context.Background(), tr); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := events.Append(context.Background(), &event.Event{
		ProjectID: "proj-1", EventType: event.TypeStepFailed,
		Payload: map[string]any{"mission_id": "m-1"}, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	eval := NewTriggerEvaluator(store, events)
	total, fired, executed, errs := eval.Evaluate(context.Background())
	if total != 0 || fired != 0 || executed != 0 || len(errs) != 0 {
		t.Fatalf("expected disabled trigger to be skipped entirely, got total=%d fired=%d executed=%d errs=%v",
			total, fired, executed, errs)
	}
}
