package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fraktlabs/fencewatch/internal/events"
)

// StatsSource is anything that reports event bus statistics.
type StatsSource interface {
	Stats() events.Stats
}

// RegisterEventBus exposes the bus counters as counter funcs read at
// scrape time.
func RegisterEventBus(registry *prometheus.Registry, src StatsSource) error {
	counters := []struct {
		name, help string
		read       func(events.Stats) uint64
	}{
		{"fencewatch_events_received_total", "Events accepted by the bus", func(s events.Stats) uint64 { return s.EventsReceived }},
		{"fencewatch_events_processed_total", "Events delivered to consumers", func(s events.Stats) uint64 { return s.EventsProcessed }},
		{"fencewatch_events_dropped_total", "Events dropped because the buffer was full", func(s events.Stats) uint64 { return s.EventsDropped }},
		{"fencewatch_event_consumer_errors_total", "Consumer errors and panics", func(s events.Stats) uint64 { return s.ConsumerErrors }},
	}
	for _, c := range counters {
		read := c.read
		f := prometheus.NewCounterFunc(prometheus.CounterOpts{Name: c.name, Help: c.help}, func() float64 {
			return float64(read(src.Stats()))
		})
		if err := registry.Register(f); err != nil {
			return fmt.Errorf("failed to register %s: %w", c.name, err)
		}
	}
	return nil
}
