// Package broadcast is the pub/sub fan-out hub for monitoring events.
// Every published event is wrapped in a stable envelope and handed to
// every live subscriber without blocking the publisher on a slow or
// dead one.
package broadcast

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Envelope is the wire shape every published event takes.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// Subscriber receives envelopes. Send must not block the caller for
// long; implementations that queue per-subscriber (e.g. a websocket
// write pump) should drop old events rather than stall Publish. Ready
// reports whether the subscriber can still accept events; one that
// reports false is evicted on the next Publish.
type Subscriber interface {
	Send(Envelope)
	Ready() bool
	ID() string
}

// Broadcaster fans events out to the current subscriber set.
type Broadcaster struct {
	logger *zap.SugaredLogger

	mu   sync.RWMutex
	subs map[string]Subscriber
}

// New builds a Broadcaster.
func New(logger *zap.SugaredLogger) *Broadcaster {
	return &Broadcaster{logger: logger, subs: make(map[string]Subscriber)}
}

// Subscribe registers sub to receive every future Publish call.
func (b *Broadcaster) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub.ID()] = sub
}

// Unsubscribe removes a previously registered subscriber.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Count returns the current subscriber count.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish wraps data in an Envelope and fans it out to every
// subscriber. A subscriber that is no longer ready, or whose Send
// panics (closed channel, etc.), is evicted rather than taking the
// whole hub down with it.
func (b *Broadcaster) Publish(eventType string, data any) {
	env := Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	b.mu.RLock()
	targets := make([]Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if !s.Ready() {
			b.logger.Infow("subscriber no longer ready, evicting", "subscriber", s.ID())
			b.Unsubscribe(s.ID())
			continue
		}
		b.deliver(s, env)
	}
}

func (b *Broadcaster) deliver(s Subscriber, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warnw("subscriber send panicked, evicting", "subscriber", s.ID(), "panic", r)
			b.Unsubscribe(s.ID())
		}
	}()
	s.Send(env)
}
