package events

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var subscriberSeq atomic.Uint64

// ChannelConsumer forwards events to a buffered channel, dropping them when
// the reader falls behind. Used by websocket clients.
type ChannelConsumer struct {
	name   string
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// Subscribe registers a ChannelConsumer on b. Call the returned func to
// unregister and close the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func(), error) {
	c := &ChannelConsumer{
		name: fmt.Sprintf("subscriber-%d", subscriberSeq.Add(1)),
		ch:   make(chan Event, buffer),
	}
	if err := b.RegisterConsumer(c); err != nil {
		return nil, nil, err
	}
	cancel := func() {
		b.UnregisterConsumer(c.name)
		c.close()
	}
	return c.ch, cancel, nil
}

// Name implements Consumer.
func (c *ChannelConsumer) Name() string { return c.name }

// ProcessEvent implements Consumer.
func (c *ChannelConsumer) ProcessEvent(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.ch <- e:
		return nil
	default:
		return fmt.Errorf("subscriber %s is full, event %s dropped", c.name, e.Type)
	}
}

func (c *ChannelConsumer) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
