// Package natsbus implements a lightweight wake-up publisher over NATS
// JetStream: the stream ingestor publishes one message per board event
// worth reacting to, and the scheduler subscribes to run an
// out-of-cycle tick in addition to its timer-driven ones.
package natsbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName    = "ORCHESTRATOR"
	SubjectWakeup = "orchestrator.wakeup" // orchestrator.wakeup.{board_id}
)

// Bus implements a wake-up publish/subscribe channel backed by NATS
// JetStream, with the standard connection lifecycle: connect, ensure
// stream, publish, subscribe, drain.
type Bus struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the wakeup
// stream exists.
func Connect(ctx context.Context, url string) (*Bus, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsbus: jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{SubjectWakeup + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsbus: stream create: %w", err)
	}

	slog.Info("natsbus connected", "url", url, "stream", streamName)
	return &Bus{nc: nc, js: js}, nil
}

// PublishWakeup notifies the scheduler that boardID has a pending
// inbound sync. Delivery is best-effort: a publish failure is logged
// by the caller, not retried, since the next tick's scheduled sync
// will pick up the same state regardless: stream handlers post intent,
// they don't drive correctness by themselves.
func (b *Bus) PublishWakeup(ctx context.Context, boardID string) error {
	subject := SubjectWakeup + "." + boardID
	if _, err := b.js.Publish(ctx, subject, []byte(boardID)); err != nil {
		return fmt.Errorf("natsbus: publish wakeup for %s: %w", boardID, err)
	}
	return nil
}

// SubscribeWakeups registers handler for every board's wakeup subject,
// returning a cancel function.
func (b *Bus) SubscribeWakeups(ctx context.Context, handler func(boardID string)) (func(), error) {
	consumer, err := b.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: SubjectWakeup + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("natsbus: consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		handler(string(msg.Data()))
		if err := msg.Ack(); err != nil {
			slog.Error("natsbus: ack failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("natsbus: consume: %w", err)
	}
	return cons.Stop, nil
}

// Conn exposes the underlying NATS connection for adapters that need
// to register their own subjects (e.g. clidispatcher's request-reply
// dispatch), so only natsbus owns the connect/drain lifecycle.
func (b *Bus) Conn() *nats.Conn {
	return b.nc
}

// Drain gracefully drains pending messages before closing.
func (b *Bus) Drain() error {
	if err := b.nc.Drain(); err != nil {
		return fmt.Errorf("natsbus: drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection immediately.
func (b *Bus) Close() {
	b.nc.Close()
}
