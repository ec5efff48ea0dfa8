package service

import (
	"context"
	"testing"
	"time"

	"github.com/forgewright/orchestrator/internal/port/board"
)

func TestHandleFrame_TaskCreatedInboxTriggersRequester(t *testing.T) {
	var requested []string
	si := NewStreamIngestor(&fakeBoard{}, "board-1", func(boardID string) {
		requested = append(requested, boardID)
	})

	si.handleFrame("tasks", board.Frame{Type: "task.created", Data: map[string]any{"status": "inbox"}})
	if len(requested) != 1 || requested[0] != "board-1" {
		t.Fatalf("expected requester to fire for board-1, got %v", requested)
	}
}

func TestHandleFrame_TaskUpdatedDoneStatusIgnored(t *testing.T) {
	var requested []string
	si := NewStreamIngestor(&fakeBoard{}, "board-1", func(boardID string) {
		requested = append(requested, boardID)
	})

	si.handleFrame("tasks", board.Frame{Type: "task.updated", Data: map[string]any{"status": "done"}})
	if len(requested) != 0 {
		t.Fatalf("expected no requester call for a non-actionable status, got %v", requested)
	}
}

func TestHandleFrame_CommentFrameIsNoop(t *testing.T) {
	called := false
	si := NewStreamIngestor(&fakeBoard{}, "board-1", func(boardID string) { called = true })

	si.handleFrame("tasks", board.Frame{Type: "task.comment", Data: map[string]any{}})
	if called {
		t.Fatal("expected task.comment to be a no-op")
	}
}

func TestActiveStreamCount_ReflectsLiveFlags(t *testing.T) {
	si := NewStreamIngestor(&fakeBoard{}, "board-1", nil)
	if got := si.ActiveStreamCount(); got != 0 {
		t.Fatalf("expected 0 active streams initially, got %d", got)
	}
	si.live["tasks"].Store(true)
	if got := si.ActiveStreamCount(); got != 1 {
		t.Fatalf("expected 1 active stream, got %d", got)
	}
	si.live["approvals"].Store(true)
	if got := si.ActiveStreamCount(); got != 2 {
		t.Fatalf("expected 2 active streams, got %d", got)
	}
}

// scriptedTaskBoard hands out one productive-then-closed stream on its
// first call, then a stream that only closes when ctx is cancelled, so
// the test can measure the gap between the two open() calls.
type scriptedTaskBoard struct {
	fakeBoard
	openTimes []time.Time
}

func (s *scriptedTaskBoard) StreamTasks(ctx context.Context, boardID string) (<-chan board.Frame, <-chan error) {
	s.openTimes = append(s.openTimes, time.Now())
	frames := make(chan board.Frame, 1)
	errs := make(chan error)
	if len(s.openTimes) == 1 {
		frames <- board.Frame{Type: "task.comment"}
		close(frames)
		close(errs)
	} else {
		go func() {
			<-ctx.Done()
			close(frames)
			close(errs)
		}()
	}
	return frames, errs
}

func TestConsume_ProductiveDisconnectStillSleepsBeforeReconnecting(t *testing.T) {
	sb := &scriptedTaskBoard{}
	si := NewStreamIngestor(sb, "board-1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 1700*time.Millisecond)
	defer cancel()

	si.consume(ctx, "tasks", sb.StreamTasks)

	if len(sb.openTimes) < 2 {
		t.Fatalf("expected at least 2 open attempts, got %d", len(sb.openTimes))
	}
	gap := sb.openTimes[1].Sub(sb.openTimes[0])
	if gap < 850*time.Millisecond {
		t.Fatalf("expected a productive disconnect to still sleep ~1s before reconnecting, gap was %v", gap)
	}
}

func TestRun_ReturnsPromptlyWhenContextAlreadyCancelled(t *testing.T) {
	si := NewStreamIngestor(&fakeBoard{}, "board-1", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- si.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancelled context, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return promptly on an already-cancelled context")
	}
}
