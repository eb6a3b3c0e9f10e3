// Package broadcast fans out finalized minute candles to in-process
// subscribers and, when configured, publishes the same data to NATS
// for external consumers. Grounded on azanium-ohlc's
// internal/streaming/service.go (a subscriber-map keyed by symbol,
// guarded by a mutex, non-blocking send-or-drop). The gRPC streaming
// surface from that teacher file is not reproduced — see DESIGN.md —
// NATS fills the "push finalized data to an external subscriber"
// concern instead, using adred-codev-ws_poc's pkg/nats/client.go
// connect-and-publish idiom.
package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/azanium/tickstream/internal/trade"
)

// Hub fans finalized candles out to local subscribers and an optional
// NATS connection.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string][]chan trade.MinuteSummary

	nc  *nats.Conn
	log zerolog.Logger
}

// New builds a Hub. natsURL may be empty, in which case external
// publish is disabled for the run.
func New(natsURL string, log zerolog.Logger) *Hub {
	h := &Hub{
		subscribers: make(map[string][]chan trade.MinuteSummary),
		log:         log.With().Str("component", "broadcast").Logger(),
	}

	if natsURL == "" {
		return h
	}

	nc, err := nats.Connect(natsURL, nats.Timeout(5*time.Second), nats.MaxReconnects(5))
	if err != nil {
		h.log.Warn().Err(err).Msg("nats connect failed, external publish disabled for this run")
		return h
	}
	h.nc = nc
	return h
}

// Subscribe registers ch to receive every future finalized candle for
// symbol. Sends are non-blocking: a full channel drops the update
// rather than stalling the aggregator.
func (h *Hub) Subscribe(symbol string, ch chan trade.MinuteSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[symbol] = append(h.subscribers[symbol], ch)
}

// Publish fans out one finalized candle to local subscribers and, if
// NATS is connected, to "ticks.candles.<SYMBOL>".
func (h *Hub) Publish(summary trade.MinuteSummary) {
	h.mu.RLock()
	subs := h.subscribers[summary.Symbol]
	nc := h.nc
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- summary:
		default:
			h.log.Warn().Str("symbol", summary.Symbol).Msg("subscriber channel full, dropping candle")
		}
	}

	if nc == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		h.log.Error().Err(err).Msg("failed marshaling candle for nats publish")
		return
	}
	if err := nc.Publish("ticks.candles."+summary.Symbol, payload); err != nil {
		h.log.Warn().Err(err).Str("symbol", summary.Symbol).Msg("nats publish failed")
	}
}

// Close drains the NATS connection, if any.
func (h *Hub) Close() {
	if h.nc != nil {
		h.nc.Close()
	}
}
