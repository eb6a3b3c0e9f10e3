// Package sysmon periodically samples host CPU/memory pressure so it
// can be correlated against the pipeline's recorded latencies — the
// spec frames the service as something to be "evaluated as a soft
// real-time system" (§1), and host contention is the usual external
// cause of missed timing budgets. Grounded on
// adred-codev-ws_poc's go-server/internal/metrics/system.go
// (gopsutil-based CPU sampling on its own ticker, independent of the
// request/connection hot path).
package sysmon

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/azanium/tickstream/internal/metrics"
)

// QueueDepthFunc reports the FIFO's current occupancy and capacity.
// Kept as a function rather than a *tickqueue.FIFO field so this
// package doesn't need to import tickqueue for what is otherwise an
// unrelated concern riding the same ticker.
type QueueDepthFunc func() (depth, capacity int)

// Sampler periodically pushes host CPU/memory gauges, and optionally
// queue depth, into the metrics registry. It never touches the
// aggregation lock.
type Sampler struct {
	registry   *metrics.Registry
	interval   time.Duration
	queueDepth QueueDepthFunc
	log        zerolog.Logger
}

// New builds a Sampler. A zero interval defaults to 5 seconds.
// queueDepth may be nil to skip queue depth sampling.
func New(registry *metrics.Registry, interval time.Duration, queueDepth QueueDepthFunc, log zerolog.Logger) *Sampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sampler{
		registry:   registry,
		interval:   interval,
		queueDepth: queueDepth,
		log:        log.With().Str("component", "sysmon").Logger(),
	}
}

// Run samples on its own ticker until done is closed.
func (s *Sampler) Run(done <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		s.registry.HostCPUPercent.Set(percents[0])
	} else if err != nil {
		s.log.Debug().Err(err).Msg("cpu sample failed")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.registry.HostMemoryPercent.Set(vm.UsedPercent)
	} else {
		s.log.Debug().Err(err).Msg("memory sample failed")
	}

	if s.queueDepth != nil {
		depth, capacity := s.queueDepth()
		s.registry.SetQueueDepth(depth, capacity)
	}
}
