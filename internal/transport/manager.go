// Package transport implements the Connection Manager (C2): it owns a
// single WebSocket session to the upstream trade provider, drives its
// lifecycle, and exposes the primitives the Producer Loop composes
// into a reconnection policy. Grounded on azanium-ohlc's
// internal/binance/client.go (dialer configuration, endpoint dial with
// context, subscribe-on-connect), generalized from a single hardcoded
// Binance endpoint to a configurable provider URL/token and from
// kline/aggTrade streams to the spec's generic subscribe/data frame
// protocol.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/azanium/tickstream/internal/connstate"
)

// FrameHandler is invoked once per received WebSocket text frame, in
// receive order. It must not block for long: it runs inline inside
// Service, which is the Producer Loop's single bounded I/O slice.
type FrameHandler func(frame []byte)

// Manager owns the upstream session lifecycle: connecting, subscribing,
// tearing down, and exposing a force-reset hook that the Producer Loop
// uses when the ping limit is exceeded.
type Manager struct {
	urlTemplate string // e.g. "wss://ws.example.com/?token=%s"
	token       string
	symbols     []string

	state *connstate.Cell
	log   zerolog.Logger

	onFrame FrameHandler

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a Connection Manager. urlTemplate must contain exactly
// one "%s" verb where the bearer token is substituted. state is owned
// by the caller and shared with the Minute Aggregator: a starved
// minute forces a reconnect by writing to this same cell, so it cannot
// be private to the Manager.
func New(urlTemplate, token string, symbols []string, state *connstate.Cell, onFrame FrameHandler, log zerolog.Logger) *Manager {
	return &Manager{
		urlTemplate: urlTemplate,
		token:       token,
		symbols:     symbols,
		state:       state,
		onFrame:     onFrame,
		log:         log.With().Str("component", "connection_manager").Logger(),
	}
}

// State returns the current connection state. Reads are lock-free and
// may be stale by design (§5 of the spec).
func (m *Manager) State() connstate.State {
	return m.state.Load()
}

// Open dials a fresh session, transitions to Established on success,
// and immediately sends one subscribe frame per configured symbol in
// order. On dial failure it transitions to ClientError and returns the
// error.
func (m *Manager) Open(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		Proxy:            http.ProxyFromEnvironment,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}

	url := fmt.Sprintf(m.urlTemplate, m.token)

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		m.state.Store(connstate.ClientError)
		m.log.Error().Err(err).Msg("dial failed")
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	m.state.Store(connstate.Established)
	m.log.Info().Msg("connection established")

	for _, symbol := range m.symbols {
		sub := fmt.Sprintf(`{"type":"subscribe","symbol":"%s"}`, symbol)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
			m.log.Error().Err(err).Str("symbol", symbol).Msg("subscribe frame failed")
		}
	}

	return nil
}

// Service drives I/O for up to budget, dispatching every frame
// received in that window to the handler in receive order. A read
// timeout when the budget elapses is not an error. A real read error
// transitions the state to Closed (clean close) or ClientError
// (anything else) and returns.
func (m *Manager) Service(budget time.Duration) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	deadline := time.Now().Add(budget)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(remaining))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if isTimeout(err) {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.state.Store(connstate.Closed)
				m.log.Info().Err(err).Msg("connection closed")
			} else {
				m.state.Store(connstate.ClientError)
				m.log.Warn().Err(err).Msg("connection error")
			}
			return
		}
		m.onFrame(frame)
	}
}

// ForceReset transitions the state to Closed regardless of its current
// value. Called by the Producer Loop when the ping limit is exceeded;
// the Minute Aggregator writes Closed to the shared state cell directly
// on starvation.
func (m *Manager) ForceReset() {
	m.state.Store(connstate.Closed)
}

// TearDown closes the current session object, if any, so a new one can
// be constructed by Open.
func (m *Manager) TearDown() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
