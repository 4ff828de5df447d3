// Package observability periodically reports process and broker health
// through the structured logger. It observes, never mutates.
package observability

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	rt "github.com/Finding-a-partner/finding-a-partner/runtime"
)

// StatsSource yields a snapshot of fanout counters. Implemented by the
// broker.
type StatsSource interface {
	Stats() rt.Stats
}

// Monitor is a supervised worker that samples the stats source on a
// fixed interval and logs one line per sample.
type Monitor struct {
	log      *slog.Logger
	source   StatsSource
	interval time.Duration
}

func NewMonitor(log *slog.Logger, source StatsSource, interval time.Duration) *Monitor {
	return &Monitor{log: log, source: source, interval: interval}
}

func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("stopping monitoring loop")
			return nil
		case <-ticker.C:
			m.report()
		}
	}
}

func (m *Monitor) report() {
	stats := m.source.Stats()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.log.Info("runtime stats",
		"connections", stats.Connections,
		"queue_depth", stats.QueueDepth,
		"published", stats.Published,
		"dropped", stats.Dropped,
		"goroutines", runtime.NumGoroutine(),
		"alloc_mb", mem.Alloc/(1<<20),
		"num_gc", mem.NumGC,
	)
}
