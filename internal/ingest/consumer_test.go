package ingest_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azanium/tickstream/internal/aggregate"
	"github.com/azanium/tickstream/internal/connstate"
	"github.com/azanium/tickstream/internal/ingest"
	"github.com/azanium/tickstream/internal/tickqueue"
	"github.com/azanium/tickstream/internal/trade"
)

type recordedTick struct {
	symbolIndex   int
	symbol        string
	price, volume float64
	eventTimeMs   int64
	ingressTimeUs int64
}

type recordedDelay struct {
	symbolIndex     int
	finToProDelayMs int64
	proToConDelayUs int64
}

type fakeConsumerSink struct {
	ticks  []recordedTick
	delays []recordedDelay
}

func (f *fakeConsumerSink) WriteTick(symbolIndex int, symbol string, price, volume float64, eventTimeMs, ingressTimeUs int64) error {
	f.ticks = append(f.ticks, recordedTick{symbolIndex, symbol, price, volume, eventTimeMs, ingressTimeUs})
	return nil
}

func (f *fakeConsumerSink) WriteDelayRow(symbolIndex int, finToProDelayMs, proToConDelayUs int64) error {
	f.delays = append(f.delays, recordedDelay{symbolIndex, finToProDelayMs, proToConDelayUs})
	return nil
}

type fakeConsumerMetrics struct {
	processed map[string]int
	dropped   int
}

func (f *fakeConsumerMetrics) IncTradesProcessed(symbol string) {
	if f.processed == nil {
		f.processed = make(map[string]int)
	}
	f.processed[symbol]++
}
func (f *fakeConsumerMetrics) IncTradesDropped()              { f.dropped++ }
func (f *fakeConsumerMetrics) ObserveFinToProDelayMs(float64) {}
func (f *fakeConsumerMetrics) ObserveProToConDelayUs(float64) {}

func TestConsumerRunFoldsKnownSymbolAndRecordsDelays(t *testing.T) {
	queue := tickqueue.New(4)
	state := aggregate.NewState([]string{"AAPL"})
	sink := &fakeConsumerSink{}
	metrics := &fakeConsumerMetrics{}
	consumer := ingest.NewConsumer(queue, state, sink, metrics, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		consumer.Run()
		close(done)
	}()

	require.NoError(t, queue.Enqueue(trade.Trade{
		Symbol:        "AAPL",
		Price:         190.5,
		Volume:        3.0,
		EventTimeMs:   1700000000000,
		IngressTimeUs: 1700000000500000,
	}))
	queue.Stop()
	<-done

	require.Len(t, sink.ticks, 1)
	assert.Equal(t, "AAPL", sink.ticks[0].symbol)
	assert.Equal(t, 190.5, sink.ticks[0].price)

	require.Len(t, sink.delays, 1)
	// fin_to_pro_delay_ms = ingress_us/1000 - event_ms
	assert.Equal(t, int64(1700000000500)-int64(1700000000000), sink.delays[0].finToProDelayMs)
	assert.GreaterOrEqual(t, sink.delays[0].proToConDelayUs, int64(0))

	assert.Equal(t, 1, metrics.processed["AAPL"])
	assert.Equal(t, 0, metrics.dropped)

	results := state.TickMinute(connstate.NewCell())
	require.Len(t, results, 1)
	assert.False(t, results[0].Starved)
	assert.Equal(t, 190.5, results[0].Summary.Candle.Open)
}

func TestConsumerRunDropsUnknownSymbol(t *testing.T) {
	queue := tickqueue.New(4)
	state := aggregate.NewState([]string{"AAPL"})
	sink := &fakeConsumerSink{}
	metrics := &fakeConsumerMetrics{}
	consumer := ingest.NewConsumer(queue, state, sink, metrics, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		consumer.Run()
		close(done)
	}()

	require.NoError(t, queue.Enqueue(trade.Trade{Symbol: "TSLA", Price: 1.0, Volume: 1.0}))
	queue.Stop()
	<-done

	assert.Empty(t, sink.ticks)
	assert.Equal(t, 1, metrics.dropped)
}
