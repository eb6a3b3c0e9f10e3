// Package ingest implements the Producer Loop (C3) and Consumer Loop
// (C4): the two worker goroutines that drive the WebSocket session,
// parse trade frames, and fold trades into per-symbol aggregation
// state. Grounded on original_source/pi_code.c's producer()/
// parse_json_data()/consumer_read_data() and on azanium-ohlc's
// internal/binance/client.go message-handling loop, generalized from
// Binance's kline/aggTrade envelope to the spec's generic
// {"data":[{"s","p","v","t"}, ...]} frame.
package ingest

import (
	"context"
	"time"

	goccyjson "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/azanium/tickstream/internal/connstate"
	"github.com/azanium/tickstream/internal/tickqueue"
	"github.com/azanium/tickstream/internal/trade"
	"github.com/azanium/tickstream/internal/transport"
)

// ProducerMetrics is the narrow slice of the metrics registry the
// producer touches; kept as an interface so tests can stub it and so
// the core pipeline never imports the metrics package directly.
type ProducerMetrics interface {
	IncFramesParsed()
	IncFramesMalformed()
	IncPings()
	IncReconnects()
}

type noopProducerMetrics struct{}

func (noopProducerMetrics) IncFramesParsed()    {}
func (noopProducerMetrics) IncFramesMalformed() {}
func (noopProducerMetrics) IncPings()            {}
func (noopProducerMetrics) IncReconnects()        {}

// Producer drives the Connection Manager and enqueues normalized
// trades onto the shared FIFO.
type Producer struct {
	mgr       *transport.Manager
	queue     *tickqueue.FIFO
	pingLimit int
	pingCount int

	metrics ProducerMetrics
	log     zerolog.Logger
}

// NewProducer builds a Producer bound to the given connection manager
// and FIFO. metrics may be nil, in which case a no-op stub is used.
func NewProducer(mgr *transport.Manager, queue *tickqueue.FIFO, pingLimit int, metrics ProducerMetrics, log zerolog.Logger) *Producer {
	if metrics == nil {
		metrics = noopProducerMetrics{}
	}
	return &Producer{
		mgr:       mgr,
		queue:     queue,
		pingLimit: pingLimit,
		metrics:   metrics,
		log:       log.With().Str("component", "producer").Logger(),
	}
}

// dataItem is the strict per-trade schema from §6 of the spec. Pointer
// fields let us distinguish "missing" from "zero-valued".
type dataItem struct {
	Symbol      *string  `json:"s"`
	Price       *float64 `json:"p"`
	Volume      *float64 `json:"v"`
	EventTimeMs *int64   `json:"t"`
}

func (d dataItem) missingField() string {
	switch {
	case d.Symbol == nil:
		return "s"
	case d.Price == nil:
		return "p"
	case d.Volume == nil:
		return "v"
	case d.EventTimeMs == nil:
		return "t"
	default:
		return ""
	}
}

type frameEnvelope struct {
	Data *goccyjson.RawMessage `json:"data"`
}

// HandleFrame is the parse callback invoked once per received frame.
// A frame whose top-level "data" field is absent or not a JSON array
// is counted as a ping; exceeding the configured ping limit forces the
// connection manager to reconnect. A malformed trade record aborts the
// rest of the current frame without affecting the connection.
func (p *Producer) HandleFrame(raw []byte) {
	var env frameEnvelope
	if err := goccyjson.Unmarshal(raw, &env); err != nil || env.Data == nil {
		p.onPing()
		return
	}

	var items []goccyjson.RawMessage
	if err := goccyjson.Unmarshal(*env.Data, &items); err != nil {
		p.onPing()
		return
	}

	p.pingCount = 0
	p.metrics.IncFramesParsed()

	for _, raw := range items {
		var di dataItem
		if err := goccyjson.Unmarshal(raw, &di); err != nil {
			p.log.Warn().Err(err).Msg("malformed trade record, dropping frame")
			p.metrics.IncFramesMalformed()
			return
		}
		if field := di.missingField(); field != "" {
			p.log.Warn().Str("field", field).Msg("trade record missing field, dropping frame")
			p.metrics.IncFramesMalformed()
			return
		}

		t := trade.Trade{
			Symbol:        *di.Symbol,
			Price:         *di.Price,
			Volume:        *di.Volume,
			EventTimeMs:   *di.EventTimeMs,
			IngressTimeUs: time.Now().UnixMicro(),
		}

		if err := p.queue.Enqueue(t); err != nil {
			return
		}
	}
}

func (p *Producer) onPing() {
	p.pingCount++
	p.metrics.IncPings()
	if p.pingCount > p.pingLimit {
		p.log.Warn().Msg("ping limit exceeded, forcing reconnect")
		p.mgr.ForceReset()
		p.pingCount = 0
	}
}

// Run is the top-level producer loop (§4.3). It returns when done is
// closed.
func (p *Producer) Run(ctx context.Context, done <-chan struct{}) {
	attempts := 0

	for {
		select {
		case <-done:
			return
		default:
		}

		p.mgr.Service(time.Second)

		st := p.mgr.State()
		if st == connstate.Closed || st == connstate.ClientError {
			if st == connstate.ClientError {
				if !sleepInterruptible(500*time.Millisecond, done) {
					return
				}
			}
			p.mgr.TearDown()
			p.metrics.IncReconnects()
			if err := p.mgr.Open(ctx); err != nil {
				p.log.Warn().Err(err).Msg("reconnect attempt failed")
			}
		}

		st = p.mgr.State()
		if st != connstate.Established {
			attempts++
			if attempts > 10 {
				p.log.Warn().Int("attempts", attempts).Msg("too many failed reconnect attempts, backing off")
				if !sleepInterruptible(10*time.Second, done) {
					return
				}
			}

			for {
				select {
				case <-done:
					return
				default:
				}

				p.mgr.Service(time.Second)
				st = p.mgr.State()
				if st == connstate.Established {
					attempts = 0
					break
				}
				if st == connstate.ClientError {
					break
				}
			}
		}
	}
}

func sleepInterruptible(d time.Duration, done <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-done:
		return false
	}
}
