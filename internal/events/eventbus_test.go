package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConsumer struct {
	name   string
	fail   bool
	mu     sync.Mutex
	events []Event
}

func (r *recordingConsumer) Name() string { return r.name }

func (r *recordingConsumer) ProcessEvent(e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("consumer %s failed", r.name)
	}
	return nil
}

func (r *recordingConsumer) received() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newTestBus(t *testing.T, cfg Config) *Bus {
	t.Helper()
	b := NewBus(cfg)
	t.Cleanup(func() { require.NoError(t, b.Shutdown(time.Second)) })
	return b
}

func TestPublishWithoutConsumersIsDropped(t *testing.T) {
	b := newTestBus(t, DefaultConfig())
	assert.False(t, b.Publish(New(TypeRegistryChanged, nil)))
}

func TestPublishDeliversInOrder(t *testing.T) {
	b := newTestBus(t, DefaultConfig())
	c := &recordingConsumer{name: "rec"}
	require.NoError(t, b.RegisterConsumer(c))

	for _, typ := range []Type{TypeRegistryChanged, TypeFenceListChanged, TypeAlertListChanged, TypeViolationDetected} {
		require.True(t, b.Publish(New(typ, nil)))
	}

	require.Eventually(t, func() bool { return len(c.received()) == 4 }, time.Second, 5*time.Millisecond)
	got := c.received()
	assert.Equal(t, TypeRegistryChanged, got[0].Type)
	assert.Equal(t, TypeViolationDetected, got[3].Type)
	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestDuplicateConsumerRejected(t *testing.T) {
	b := newTestBus(t, DefaultConfig())
	require.NoError(t, b.RegisterConsumer(&recordingConsumer{name: "mqtt"}))
	assert.Error(t, b.RegisterConsumer(&recordingConsumer{name: "mqtt"}))
}

func TestConsumerErrorsAreCounted(t *testing.T) {
	b := newTestBus(t, DefaultConfig())
	require.NoError(t, b.RegisterConsumer(&recordingConsumer{name: "bad", fail: true}))

	b.Publish(New(TypeFenceListChanged, nil))

	require.Eventually(t, func() bool { return b.Stats().ConsumerErrors == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(0), b.Stats().EventsProcessed)
}

type blockingConsumer struct {
	release chan struct{}
}

func (blockingConsumer) Name() string { return "blocking" }

func (c blockingConsumer) ProcessEvent(Event) error {
	<-c.release
	return nil
}

func TestFullBufferDropsAndCounts(t *testing.T) {
	release := make(chan struct{})
	b := newTestBus(t, Config{BufferSize: 1, Workers: 1})
	require.NoError(t, b.RegisterConsumer(blockingConsumer{release: release}))
	defer close(release)

	var dropped atomic.Int32
	b.OnDrop = func(Event) { dropped.Add(1) }

	// one in the worker, one in the buffer, the rest dropped
	for range 5 {
		b.Publish(New(TypeViolationDetected, nil))
		time.Sleep(5 * time.Millisecond)
	}

	assert.GreaterOrEqual(t, dropped.Load(), int32(3))
	assert.Equal(t, uint64(dropped.Load()), b.Stats().EventsDropped)
}

func TestSubscribe(t *testing.T) {
	b := newTestBus(t, DefaultConfig())
	ch, cancel, err := b.Subscribe(4)
	require.NoError(t, err)

	b.Publish(New(TypeAlertListChanged, []string{"night"}))

	select {
	case e := <-ch:
		assert.Equal(t, TypeAlertListChanged, e.Type)
		assert.Equal(t, []string{"night"}, e.Payload)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
	cancel()
}

func TestPublishAfterShutdown(t *testing.T) {
	b := NewBus(DefaultConfig())
	require.NoError(t, b.RegisterConsumer(&recordingConsumer{name: "rec"}))
	require.NoError(t, b.Shutdown(time.Second))

	assert.False(t, b.Publish(New(TypeRegistryChanged, nil)))
}
