// Package aggregate holds the per-symbol aggregation state shared
// between the Consumer Loop (folds trades in) and the Minute
// Aggregator (emits and resets). A single mutex guards the whole
// array, per §5 of the spec, replacing the original source's parallel
// global arrays (candlestick[], sympol_counter[], price_sum[],
// sma_1min[][], volume_1min[][]) with one struct per symbol (§9).
package aggregate

import (
	"sync"
	"time"

	"github.com/azanium/tickstream/internal/connstate"
	"github.com/azanium/tickstream/internal/trade"
)

// State is the shared per-symbol aggregation table.
type State struct {
	mu     sync.Mutex
	index  map[string]int
	states []*trade.SymbolState
}

// NewState builds aggregation state for the given symbol list, in
// order. The order determines both the subscribe-frame order (owned by
// the caller wiring the connection manager) and the column order of
// the tab-separated output files.
func NewState(symbols []string) *State {
	s := &State{
		index:  make(map[string]int, len(symbols)),
		states: make([]*trade.SymbolState, len(symbols)),
	}
	for i, sym := range symbols {
		s.index[sym] = i
		s.states[i] = trade.NewSymbolState(sym)
	}
	return s
}

// Symbols returns the configured symbol list in column order.
func (s *State) Symbols() []string {
	out := make([]string, len(s.states))
	for i, st := range s.states {
		out[i] = st.Symbol
	}
	return out
}

// IndexOf returns the column index of symbol, or false if it is not in
// the configured table. The index map is built once at construction
// and never mutated, so this is safe to call without holding the lock.
func (s *State) IndexOf(symbol string) (int, bool) {
	i, ok := s.index[symbol]
	return i, ok
}

// FoldTrade increments the running trade count and price sum for
// symbol i and folds price/volume into its in-progress candle. Called
// by the Consumer Loop once per trade.
func (s *State) FoldTrade(i int, price, volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.states[i]
	st.TradeCount++
	st.PriceSum += price
	st.Candle.Fold(price, volume)
}

// MinuteResult is the outcome of finalizing one symbol's minute,
// ready to be written/published once the caller has released the
// aggregation lock.
type MinuteResult struct {
	Symbol  string
	Starved bool
	Summary trade.MinuteSummary
}

// TickMinute finalizes every symbol's current minute under a single
// lock acquisition (the arithmetic is bounded and cheap; no file or
// network I/O happens here). A symbol with zero trades in the minute
// is reported as starved, its connection-forcing side effect applied
// immediately, and its rolling-window slot is left untouched — the
// cursor is not advanced and the prior SMA/volume slot value survives,
// per the preserved open-question decision in §9 of the spec. The
// caller is responsible for writing the returned results to the output
// files and any optional sinks after this returns (i.e. outside the
// lock).
func (s *State) TickMinute(conn *connstate.Cell) []MinuteResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowUs := time.Now().UnixMicro()
	results := make([]MinuteResult, 0, len(s.states))

	for _, st := range s.states {
		if st.TradeCount == 0 {
			results = append(results, MinuteResult{Symbol: st.Symbol, Starved: true})
			conn.Store(connstate.Closed)
			st.ResetMinute()
			continue
		}

		st.Cursor++
		k := int(st.Cursor % trade.RollingWindowSize)
		st.SMAWindow[k] = st.PriceSum / float64(st.TradeCount)
		st.VolWindow[k] = st.Candle.Volume

		var smaSum, volSum float64
		for _, v := range st.SMAWindow {
			smaSum += v
		}
		for _, v := range st.VolWindow {
			volSum += v
		}
		sma15 := smaSum / float64(trade.RollingWindowSize)

		summary := trade.MinuteSummary{
			Symbol:      st.Symbol,
			Candle:      st.Candle,
			SMA15Min:    sma15,
			Volume15Min: volSum,
			EmitTimeUs:  nowUs,
			TradeCount:  st.TradeCount,
		}
		if st.PrevEmitTimeUs != 0 {
			summary.HasGap = true
			summary.GapUs = nowUs - st.PrevEmitTimeUs
		}
		st.PrevEmitTimeUs = nowUs

		results = append(results, MinuteResult{Symbol: st.Symbol, Summary: summary})
		st.ResetMinute()
	}

	return results
}
