// Package trade holds the data model shared by the ingestion pipeline:
// the normalized Trade record, the per-symbol Candlestick, and the
// rolling aggregation state the minute aggregator maintains for each
// configured symbol.
package trade

// MaxSymbolLen mirrors the original producer's fixed-width symbol
// buffer (Go strings don't need the extra byte for a terminator). It is
// informational only: the producer does not check or truncate incoming
// symbols against it.
const MaxSymbolLen = 29

// RollingWindowSize is the number of trailing per-minute slots folded
// into the 15-minute SMA and volume figures.
const RollingWindowSize = 15

// Trade is an immutable normalized tick, built by the producer at the
// moment a frame is parsed and handed to the FIFO.
type Trade struct {
	Symbol        string
	Price         float64
	Volume        float64
	EventTimeMs   int64
	IngressTimeUs int64
}

// Candlestick summarizes open/high/low/close/volume for one symbol
// over one minute. Empty is true until the first trade is folded in.
type Candlestick struct {
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`
	Empty  bool    `json:"empty"`
}

// Fold merges a trade into the candle per §4.4 of the spec: the first
// folded trade sets open/high/low, every trade updates close/volume
// and extends the high/low bounds.
func (c *Candlestick) Fold(price, volume float64) {
	c.Close = price
	if c.Empty {
		c.Open = price
		c.High = price
		c.Low = price
		c.Empty = false
	} else {
		if price > c.High {
			c.High = price
		}
		if price < c.Low {
			c.Low = price
		}
	}
	c.Volume += volume
}

// Reset clears the candle back to its fresh-minute state.
func (c *Candlestick) Reset() {
	*c = Candlestick{Empty: true}
}

// SymbolState is the mutable per-symbol aggregation state guarded by a
// single lock shared between the consumer (folds trades) and the
// minute aggregator (emits and resets). Kept as one struct per symbol,
// not parallel arrays, per the redesign notes.
type SymbolState struct {
	Symbol     string
	Candle     Candlestick
	PriceSum   float64
	TradeCount int64

	SMAWindow [RollingWindowSize]float64
	VolWindow [RollingWindowSize]float64
	Cursor    int64

	PrevEmitTimeUs int64
}

// NewSymbolState returns a freshly initialized per-symbol state with an
// empty candle.
func NewSymbolState(symbol string) *SymbolState {
	return &SymbolState{
		Symbol: symbol,
		Candle: Candlestick{Empty: true},
	}
}

// ResetMinute clears the per-minute accumulators after an emission,
// leaving the rolling windows and cursor untouched.
func (s *SymbolState) ResetMinute() {
	s.Candle.Reset()
	s.PriceSum = 0
	s.TradeCount = 0
}

// MinuteSummary is the fully-formed output of one minute's emission
// for a symbol, handed to the broadcast hub and optional sinks after
// the aggregator has released its lock.
type MinuteSummary struct {
	Symbol      string      `json:"symbol"`
	Candle      Candlestick `json:"candle"`
	SMA15Min    float64     `json:"sma_15min"`
	Volume15Min float64     `json:"volume_15min"`
	EmitTimeUs  int64       `json:"emit_time_us"`
	GapUs       int64       `json:"gap_us,omitempty"`
	HasGap      bool        `json:"has_gap"`
	TradeCount  int64       `json:"trade_count"`
}
