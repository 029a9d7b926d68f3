package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fraktlabs/fencewatch/internal/logger"
)

// Config holds event bus configuration
type Config struct {
	BufferSize int
	// Workers > 1 trades delivery order for throughput.
	Workers int
}

// DefaultConfig returns the default event bus configuration
func DefaultConfig() Config {
	return Config{
		BufferSize: 1000,
		Workers:    1,
	}
}

// Bus fans events out to registered consumers on worker goroutines.
// Publish never blocks: when the buffer is full the event is dropped.
type Bus struct {
	eventChan chan Event
	workers   int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	mu      sync.Mutex

	consumers []Consumer
	stats     Stats

	// OnDrop, when set, is called for every dropped event.
	OnDrop func(Event)
}

// NewBus creates a bus. Workers start with the first consumer.
func NewBus(cfg Config) *Bus {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		eventChan: make(chan Event, cfg.BufferSize),
		workers:   cfg.Workers,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// RegisterConsumer adds a consumer. Names must be unique.
func (b *Bus) RegisterConsumer(consumer Consumer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}
	b.consumers = append(b.consumers, consumer)

	GetLogger().Info("registered event consumer", logger.String("consumer", consumer.Name()))

	if len(b.consumers) == 1 && b.ctx.Err() == nil {
		b.start()
	}
	return nil
}

// UnregisterConsumer removes a consumer by name.
func (b *Bus) UnregisterConsumer(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, c := range b.consumers {
		if c.Name() == name {
			b.consumers = append(b.consumers[:i], b.consumers[i+1:]...)
			return
		}
	}
}

// Publish enqueues e without blocking.
func (b *Bus) Publish(e Event) bool {
	if b == nil || !b.running.Load() {
		return false
	}

	select {
	case b.eventChan <- e:
		atomic.AddUint64(&b.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&b.stats.EventsDropped, 1)
		GetLogger().Debug("event dropped due to full buffer", logger.String("type", string(e.Type)))
		if b.OnDrop != nil {
			b.OnDrop(e)
		}
		return false
	}
}

func (b *Bus) start() {
	if b.running.Swap(true) {
		return
	}
	for i := range b.workers {
		b.wg.Add(1)
		go b.worker(i)
	}
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()

	log := GetLogger().With(logger.Int("worker_id", id))
	log.Debug("worker started")

	for {
		select {
		case <-b.ctx.Done():
			log.Debug("worker stopping")
			return
		case e := <-b.eventChan:
			b.deliver(e, log)
		}
	}
}

func (b *Bus) deliver(e Event, log logger.Logger) {
	b.mu.Lock()
	consumers := make([]Consumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&b.stats.ConsumerErrors, 1)
					log.Error("consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.Any("panic", r),
						logger.String("type", string(e.Type)))
				}
			}()

			if err := consumer.ProcessEvent(e); err != nil {
				atomic.AddUint64(&b.stats.ConsumerErrors, 1)
				log.Warn("consumer error",
					logger.String("consumer", consumer.Name()),
					logger.String("type", string(e.Type)),
					logger.Error(err))
				return
			}
			atomic.AddUint64(&b.stats.EventsProcessed, 1)
		}()
	}
}

// Shutdown stops the workers. Buffered events not yet delivered are discarded.
func (b *Bus) Shutdown(timeout time.Duration) error {
	b.running.Store(false)
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("event bus shutdown timeout exceeded")
	}
}

// Stats returns current event bus statistics
func (b *Bus) Stats() Stats {
	return Stats{
		EventsReceived:  atomic.LoadUint64(&b.stats.EventsReceived),
		EventsProcessed: atomic.LoadUint64(&b.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&b.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&b.stats.ConsumerErrors),
	}
}
