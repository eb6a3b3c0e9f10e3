package aggregate_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azanium/tickstream/internal/aggregate"
	"github.com/azanium/tickstream/internal/connstate"
)

func TestFoldTradeBuildsCandleInvariants(t *testing.T) {
	state := aggregate.NewState([]string{"AAPL"})
	idx, ok := state.IndexOf("AAPL")
	require.True(t, ok)

	state.FoldTrade(idx, 190.50, 1.0)
	state.FoldTrade(idx, 191.25, 0.5)
	state.FoldTrade(idx, 189.75, 1.5)

	results := state.TickMinute(connstate.NewCell())
	require.Len(t, results, 1)

	r := results[0]
	require.False(t, r.Starved)
	assert.Equal(t, 190.50, r.Summary.Candle.Open)
	assert.Equal(t, 189.75, r.Summary.Candle.Close)
	assert.Equal(t, 191.25, r.Summary.Candle.High)
	assert.Equal(t, 189.75, r.Summary.Candle.Low)
	assert.InDelta(t, 3.0, r.Summary.Candle.Volume, 1e-9)
	assert.Equal(t, int64(3), r.Summary.TradeCount)
	assert.False(t, r.Summary.HasGap, "first emission has no prior timestamp to diff against")
}

func TestTickMinuteWarmupDividesByFullWindowSize(t *testing.T) {
	state := aggregate.NewState([]string{"AAPL"})
	idx, _ := state.IndexOf("AAPL")
	conn := connstate.NewCell()

	state.FoldTrade(idx, 100.0, 2.0)
	results := state.TickMinute(conn)

	require.Len(t, results, 1)
	// Only one of fifteen slots filled; the spec preserves the
	// original's unconditional divide-by-15 during warmup for the SMA,
	// while the rolling volume is a plain sum over all fifteen slots.
	assert.InDelta(t, 100.0/15.0, results[0].Summary.SMA15Min, 1e-9)
	assert.InDelta(t, 2.0, results[0].Summary.Volume15Min, 1e-9)
}

func TestTickMinuteStarvedSymbolLeavesRollingSlotUntouched(t *testing.T) {
	state := aggregate.NewState([]string{"AAPL"})
	idx, _ := state.IndexOf("AAPL")
	conn := connstate.NewCell()

	state.FoldTrade(idx, 100.0, 1.0)
	first := state.TickMinute(conn)
	require.Len(t, first, 1)
	firstSMA := first[0].Summary.SMA15Min

	// No trades this minute: starved.
	starved := state.TickMinute(conn)
	require.Len(t, starved, 1)
	assert.True(t, starved[0].Starved)
	assert.Equal(t, connstate.Closed, conn.Load(), "starvation forces the connection to Closed")

	// Next non-starved minute: the cursor should not have advanced
	// during the starved tick, so this folds into the slot right after
	// the first emission, and the starved minute contributed nothing.
	state.FoldTrade(idx, 200.0, 1.0)
	third := state.TickMinute(conn)
	require.Len(t, third, 1)
	assert.NotEqual(t, firstSMA, third[0].Summary.SMA15Min)
}

func TestTickMinuteGapTracksElapsedTimeAfterFirstEmission(t *testing.T) {
	state := aggregate.NewState([]string{"AAPL"})
	idx, _ := state.IndexOf("AAPL")
	conn := connstate.NewCell()

	state.FoldTrade(idx, 100.0, 1.0)
	first := state.TickMinute(conn)
	assert.False(t, first[0].Summary.HasGap)

	state.FoldTrade(idx, 101.0, 1.0)
	second := state.TickMinute(conn)
	assert.True(t, second[0].Summary.HasGap)
	assert.GreaterOrEqual(t, second[0].Summary.GapUs, int64(0))
}

func TestIndexOfUnknownSymbol(t *testing.T) {
	state := aggregate.NewState([]string{"AAPL", "MSFT"})
	_, ok := state.IndexOf("TSLA")
	assert.False(t, ok)
}

func TestAggregatorRunStopsOnDoneWithoutEmitting(t *testing.T) {
	state := aggregate.NewState([]string{"AAPL"})
	idx, _ := state.IndexOf("AAPL")
	state.FoldTrade(idx, 100.0, 1.0)

	conn := connstate.NewCell()
	emitted := make(chan int, 4)
	sink := sinkFunc(func(results []aggregate.MinuteResult) {
		emitted <- len(results)
	})

	agg := aggregate.NewAggregator(state, conn, sink, time.Hour, zerolog.Nop())
	// done is closed before the ticker could ever fire, proving Run
	// returns promptly on shutdown rather than waiting out the period.
	done := make(chan struct{})
	close(done)
	agg.Run(done)

	select {
	case <-emitted:
		t.Fatal("Run must not emit after done is already closed")
	default:
	}
}

type sinkFunc func([]aggregate.MinuteResult)

func (f sinkFunc) EmitMinute(results []aggregate.MinuteResult) { f(results) }
