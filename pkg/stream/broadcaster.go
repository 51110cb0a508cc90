// Package stream broadcasts pipeline progress events to HTTP clients
// polling `GET /pipeline/stream/{connector_name}` (spec.md §6), grounded
// on the teacher's pkg/events.ConnectionManager channel-subscription
// bookkeeping. Unlike the teacher, the transport here is plain SSE
// (text/event-stream) rather than WebSocket — the spec calls for a
// streaming GET, not a bidirectional socket — so subscribers are
// one-way byte channels instead of *websocket.Conn.
package stream

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer bounds how many events a slow SSE client can fall
// behind by before events are dropped for it; mirrors the teacher's
// writeTimeout concept (protect the broadcaster from one slow reader)
// but expressed as a buffer depth instead of a per-write deadline,
// since Publish here is non-blocking by design.
const subscriberBuffer = 32

// Broadcaster fans pipeline events out to every subscriber of a given
// channel (a connector_name, per spec.md's stream endpoint). One
// process owns one Broadcaster.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan []byte
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[string]chan []byte)}
}

// Subscribe registers a new subscriber on channel and returns its
// receive-only event stream plus an Unsubscribe func the caller must
// defer. Mirrors ConnectionManager.subscribe's registration half,
// without the LISTEN/UNLISTEN dance — this package has no durable
// backing store to catch up from, so callers wanting history read the
// checkpoint store directly (spec.md's `GET /pipeline/history`).
func (b *Broadcaster) Subscribe(channel string) (id string, events <-chan []byte, unsubscribe func()) {
	id = uuid.NewString()
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[string]chan []byte)
	}
	b.subs[channel][id] = ch
	b.mu.Unlock()

	return id, ch, func() { b.unsubscribe(channel, id) }
}

func (b *Broadcaster) unsubscribe(channel, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[channel]
	if !ok {
		return
	}
	if ch, ok := subs[id]; ok {
		delete(subs, id)
		close(ch)
	}
	if len(subs) == 0 {
		delete(b.subs, channel)
	}
}

// Publish fans payload out to every current subscriber of channel.
// Sends are non-blocking: a subscriber whose buffer is full (a client
// that stopped reading) has this event dropped rather than stalling
// the publisher, which is always the pipeline's own execution
// goroutine (see pkg/runner.Runner.execute's observe callback).
func (b *Broadcaster) Publish(channel string, payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
}

// SubscriberCount reports how many active subscribers a channel has —
// used by tests instead of sleeping to observe subscribe/unsubscribe
// taking effect, the same role the teacher's subscriberCount helper
// plays in manager_test.go.
func (b *Broadcaster) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}
