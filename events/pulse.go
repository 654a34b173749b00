package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
)

// PulseOptions configures a Redis-backed distributed Bus. One Pulse stream
// per RunID keeps a process's event history independently addressable and
// replayable, keyed per run so a durable consumer can replay one run's timeline.
type PulseOptions struct {
	// Redis is the connection used to back Pulse streams. Required.
	Redis *redis.Client
	// StreamPrefix namespaces stream names (default "agentrun.events").
	StreamPrefix string
	// StreamMaxLen bounds the number of entries kept per stream. Zero uses Pulse defaults.
	StreamMaxLen int
}

// pulseBus publishes Event values onto per-run Pulse streams backed by Redis.
// It satisfies Bus so callers can swap it in for NewBus without touching the
// rest of the runtime. Subscribers registered via Register are replayed
// in-process only; cross-process consumers read the Pulse streams directly.
type pulseBus struct {
	*bus
	streamer *streaming.Streamer
	prefix   string
	maxLen   int
}

// NewPulseBus constructs a distributed event Bus on top of goa.design/pulse
// streams. Every Publish both fans out in-process (so local subscribers keep
// working unmodified) and appends a durable entry to the run's Pulse stream.
func NewPulseBus(opts PulseOptions) (Bus, error) {
	if opts.Redis == nil {
		return nil, errors.New("events: redis client is required")
	}
	prefix := opts.StreamPrefix
	if prefix == "" {
		prefix = "agentrun.events"
	}
	streamer, err := streaming.NewStreamer(opts.Redis)
	if err != nil {
		return nil, fmt.Errorf("events: new streamer: %w", err)
	}
	return &pulseBus{
		bus:      &bus{subscribers: make(map[*subscription]Subscriber)},
		streamer: streamer,
		prefix:   prefix,
		maxLen:   opts.StreamMaxLen,
	}, nil
}

// Publish fans the event out to local subscribers and durably appends it to
// the Pulse stream named after RunID, stopping at the first local subscriber
// error (consistent with the in-memory Bus) but always attempting the
// durable append so observability does not depend on subscriber health.
func (p *pulseBus) Publish(ctx context.Context, event Event) error {
	localErr := p.bus.Publish(ctx, event)

	payload, err := json.Marshal(envelope{
		Kind: event.Kind,
		At:   event.At,
		Data: event,
	})
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	var sopts []streamopts.Stream
	if p.maxLen > 0 {
		sopts = append(sopts, streamopts.WithMaxLen(p.maxLen))
	}
	name := p.streamName(event.RunID)
	stream, err := p.streamer.NewStream(name, sopts...)
	if err != nil {
		return fmt.Errorf("events: open stream %q: %w", name, err)
	}
	if _, err := stream.Add(ctx, string(event.Kind), payload); err != nil {
		return fmt.Errorf("events: publish to stream %q: %w", name, err)
	}
	return localErr
}

func (p *pulseBus) streamName(runID string) string {
	if runID == "" {
		return p.prefix
	}
	return p.prefix + "/" + runID
}

// envelope is the durable wire form appended to a Pulse stream entry.
type envelope struct {
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`
	Data Event     `json:"data"`
}
