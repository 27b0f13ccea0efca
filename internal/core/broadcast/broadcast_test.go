package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	id       string
	mu       sync.Mutex
	received []Envelope
	panicOn  bool
	notReady bool
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Ready() bool { return !f.notReady }

func (f *fakeSubscriber) Send(env Envelope) {
	if f.panicOn {
		panic("simulated closed channel send")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, env)
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func newTestBroadcaster() *Broadcaster {
	return New(zap.NewNop().Sugar())
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := newTestBroadcaster()
	a := &fakeSubscriber{id: "a"}
	c := &fakeSubscriber{id: "b"}
	b.Subscribe(a)
	b.Subscribe(c)

	b.Publish("monitoring_update", map[string]int{"devices": 3})

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, c.count())
	assert.Equal(t, "monitoring_update", a.received[0].Type)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBroadcaster()
	a := &fakeSubscriber{id: "a"}
	b.Subscribe(a)
	b.Unsubscribe("a")

	b.Publish("host_offline", nil)

	assert.Equal(t, 0, a.count())
	assert.Equal(t, 0, b.Count())
}

func TestPublishEvictsPanickingSubscriber(t *testing.T) {
	b := newTestBroadcaster()
	bad := &fakeSubscriber{id: "bad", panicOn: true}
	good := &fakeSubscriber{id: "good"}
	b.Subscribe(bad)
	b.Subscribe(good)

	b.Publish("host_online", nil)

	assert.Equal(t, 1, good.count())
	assert.Equal(t, 1, b.Count())
}

func TestPublishEvictsNotReadySubscriber(t *testing.T) {
	b := newTestBroadcaster()
	stale := &fakeSubscriber{id: "stale", notReady: true}
	b.Subscribe(stale)

	b.Publish("host_online", nil)

	assert.Equal(t, 0, stale.count())
	assert.Equal(t, 0, b.Count())
}

func TestCountReflectsSubscriptions(t *testing.T) {
	b := newTestBroadcaster()
	assert.Equal(t, 0, b.Count())
	b.Subscribe(&fakeSubscriber{id: "x"})
	assert.Equal(t, 1, b.Count())
}

func TestPublishStampsTimestamp(t *testing.T) {
	b := newTestBroadcaster()
	a := &fakeSubscriber{id: "a"}
	b.Subscribe(a)

	before := time.Now().UTC()
	b.Publish("host_online", nil)
	after := time.Now().UTC()

	stamp, err := time.Parse(time.RFC3339Nano, a.received[0].Timestamp)
	assert.NoError(t, err)
	assert.False(t, stamp.Before(before.Add(-time.Second)))
	assert.False(t, stamp.After(after.Add(time.Second)))
}
