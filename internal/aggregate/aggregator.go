package aggregate

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/azanium/tickstream/internal/connstate"
)

// Sink receives one finalized (or starved) minute result per symbol,
// once per tick, after the aggregation lock has been released. It is
// used to write the output files and to feed the optional broadcast
// and storage mirrors; none of its implementations may block for long,
// since the aggregator's next tick is one period away and this runs
// off the hot path.
type Sink interface {
	EmitMinute(results []MinuteResult)
}

// Aggregator is the Minute Aggregator (C5): it wakes on the fixed
// period passed to NewAggregator, finalizes every symbol's candle under the shared
// lock, and hands the results to a Sink for output.
type Aggregator struct {
	state  *State
	conn   *connstate.Cell
	sink   Sink
	period time.Duration
	log    zerolog.Logger
}

// NewAggregator builds a Minute Aggregator.
func NewAggregator(state *State, conn *connstate.Cell, sink Sink, period time.Duration, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		state:  state,
		conn:   conn,
		sink:   sink,
		period: period,
		log:    log.With().Str("component", "aggregator").Logger(),
	}
}

// Run is the top-level aggregator loop (§4.5). It wakes early only on
// shutdown (done closed) and otherwise fires every period. The ticker
// plus a lock taken only for the duration of TickMinute is the Go
// equivalent of the spec's "condition variable paired with agg.mutex":
// the wake itself needs no lock, and the serialization that matters —
// the read-modify-reset of per-symbol state — is exactly what
// TickMinute holds the lock for.
func (a *Aggregator) Run(done <-chan struct{}) {
	ticker := time.NewTicker(a.period)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		results := a.state.TickMinute(a.conn)

		starved := 0
		for _, r := range results {
			if r.Starved {
				starved++
			}
		}
		if starved > 0 {
			a.log.Warn().Int("starved_symbols", starved).Msg("no trades this minute, forcing reconnect")
		}

		a.sink.EmitMinute(results)
	}
}
