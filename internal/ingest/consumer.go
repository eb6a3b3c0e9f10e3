package ingest

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/azanium/tickstream/internal/aggregate"
	"github.com/azanium/tickstream/internal/tickqueue"
)

// ConsumerSink receives one trade's raw tick and its two latency
// measurements, in dequeue order, for one symbol index. Implemented by
// the output writer; kept as an interface so the core loop stays
// decoupled from file formatting.
type ConsumerSink interface {
	WriteTick(symbolIndex int, symbol string, price, volume float64, eventTimeMs, ingressTimeUs int64) error
	WriteDelayRow(symbolIndex int, finToProDelayMs, proToConDelayUs int64) error
}

// ConsumerMetrics is the narrow metrics surface the consumer touches.
type ConsumerMetrics interface {
	IncTradesProcessed(symbol string)
	IncTradesDropped()
	ObserveFinToProDelayMs(v float64)
	ObserveProToConDelayUs(v float64)
}

type noopConsumerMetrics struct{}

func (noopConsumerMetrics) IncTradesProcessed(string)        {}
func (noopConsumerMetrics) IncTradesDropped()                {}
func (noopConsumerMetrics) ObserveFinToProDelayMs(float64)   {}
func (noopConsumerMetrics) ObserveProToConDelayUs(float64)   {}

// Consumer is the Consumer Loop (C4): it drains the FIFO, folds each
// trade into the shared aggregation state, and records per-trade
// latency.
type Consumer struct {
	queue *tickqueue.FIFO
	state *aggregate.State
	sink  ConsumerSink

	metrics ConsumerMetrics
	log     zerolog.Logger
}

// NewConsumer builds a Consumer bound to the shared FIFO and
// aggregation state.
func NewConsumer(queue *tickqueue.FIFO, state *aggregate.State, sink ConsumerSink, metrics ConsumerMetrics, log zerolog.Logger) *Consumer {
	if metrics == nil {
		metrics = noopConsumerMetrics{}
	}
	return &Consumer{
		queue:   queue,
		state:   state,
		sink:    sink,
		metrics: metrics,
		log:     log.With().Str("component", "consumer").Logger(),
	}
}

// Run is the top-level consumer loop (§4.4). It exits once the FIFO
// reports Stopped.
func (c *Consumer) Run() {
	for {
		t, err := c.queue.Dequeue()
		if err != nil {
			var stopped tickqueue.ErrStopped
			if errors.As(err, &stopped) {
				return
			}
			c.log.Error().Err(err).Msg("unexpected dequeue error")
			return
		}

		idx, ok := c.state.IndexOf(t.Symbol)
		if !ok {
			c.metrics.IncTradesDropped()
			continue
		}

		if err := c.sink.WriteTick(idx, t.Symbol, t.Price, t.Volume, t.EventTimeMs, t.IngressTimeUs); err != nil {
			c.log.Error().Err(err).Str("symbol", t.Symbol).Msg("failed writing trade log")
		}

		nowUs := time.Now().UnixMicro()
		finToProDelayMs := t.IngressTimeUs/1000 - t.EventTimeMs
		proToConDelayUs := nowUs - t.IngressTimeUs

		if err := c.sink.WriteDelayRow(idx, finToProDelayMs, proToConDelayUs); err != nil {
			c.log.Error().Err(err).Str("symbol", t.Symbol).Msg("failed writing delay row")
		}

		c.metrics.IncTradesProcessed(t.Symbol)
		c.metrics.ObserveFinToProDelayMs(float64(finToProDelayMs))
		c.metrics.ObserveProToConDelayUs(float64(proToConDelayUs))

		c.state.FoldTrade(idx, t.Price, t.Volume)
	}
}
