package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/forgewright/orchestrator/internal/port/board"
	"golang.org/x/sync/errgroup"
)

const (
	backoffInitial = 1 * time.Second
	backoffMax     = 60 * time.Second
)

// SyncRequester is called when a board's stream reports a relevant
// frame; it signals the scheduler to run an inbound sync for that
// board without computing the full tick synchronously. Stream handlers
// post intent, they do not compute the full tick themselves.
type SyncRequester func(boardID string)

// StreamIngestor maintains one pair of long-lived SSE consumers
// (tasks, approvals) per configured board, reconnecting with
// exponential backoff.
type StreamIngestor struct {
	client    board.Adapter
	boardID   string
	requester SyncRequester
	live      map[string]*atomic.Bool
}

// NewStreamIngestor constructs a StreamIngestor for a single board.
func NewStreamIngestor(client board.Adapter, boardID string, requester SyncRequester) *StreamIngestor {
	return &StreamIngestor{
		client:    client,
		boardID:   boardID,
		requester: requester,
		live:      map[string]*atomic.Bool{"tasks": {}, "approvals": {}},
	}
}

// ActiveStreamCount reports how many of this board's two stream
// consumers (tasks, approvals) were connected as of their last
// reconnect attempt. For the deep health endpoint.
func (si *StreamIngestor) ActiveStreamCount() int {
	n := 0
	for _, live := range si.live {
		if live.Load() {
			n++
		}
	}
	return n
}

// Run starts both consumers and blocks until ctx is cancelled, at
// which point it joins them (cooperative cancellation).
func (si *StreamIngestor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		si.consume(ctx, "tasks", si.client.StreamTasks)
		return nil
	})
	g.Go(func() error {
		si.consume(ctx, "approvals", si.client.StreamApprovals)
		return nil
	})
	return g.Wait()
}

type streamOpenFunc func(ctx context.Context, boardID string) (<-chan board.Frame, <-chan error)

// consume runs one reconnect loop: opens the stream, dispatches frames
// until it ends or errors, then sleeps before retrying. A productive
// connection (at least one frame) resets the backoff to its initial
// value and the sleep is brief; an unproductive one sleeps the current
// backoff and doubles it for next time. Either way it always sleeps
// before reconnecting.
func (si *StreamIngestor) consume(ctx context.Context, kind string, open streamOpenFunc) {
	backoff := backoffInitial
	for {
		if ctx.Err() != nil {
			return
		}
		frames, errs := open(ctx, si.boardID)
		connected := false

	readLoop:
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					frames = nil
					if errs == nil {
						break readLoop
					}
					continue
				}
				connected = true
				si.handleFrame(kind, frame)
			case err, ok := <-errs:
				if !ok {
					errs = nil
					if frames == nil {
						break readLoop
					}
					continue
				}
				if err != nil {
					slog.Warn("stream transport error", "board_id", si.boardID, "kind", kind, "error", err)
				}
				break readLoop
			}
			if frames == nil && errs == nil {
				break readLoop
			}
		}

		si.live[kind].Store(connected)

		if connected {
			backoff = backoffInitial
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if !connected {
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
		}
	}
}

func (si *StreamIngestor) handleFrame(kind string, frame board.Frame) {
	switch frame.Type {
	case "task.created", "task.updated":
		status, _ := frame.Data["status"].(string)
		if status == "inbox" || status == "in_progress" {
			if si.requester != nil {
				si.requester(si.boardID)
			}
		}
	case "task.comment":
		// no-op: informational only, not part of orchestration correctness
	default:
		slog.Debug("unhandled stream frame", "board_id", si.boardID, "kind", kind, "frame_type", frame.Type)
	}
}
