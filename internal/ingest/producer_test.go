package ingest_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azanium/tickstream/internal/connstate"
	"github.com/azanium/tickstream/internal/ingest"
	"github.com/azanium/tickstream/internal/tickqueue"
	"github.com/azanium/tickstream/internal/transport"
)

type fakeProducerMetrics struct {
	framesParsed    int
	framesMalformed int
	pings           int
	reconnects      int
}

func (f *fakeProducerMetrics) IncFramesParsed()    { f.framesParsed++ }
func (f *fakeProducerMetrics) IncFramesMalformed() { f.framesMalformed++ }
func (f *fakeProducerMetrics) IncPings()           { f.pings++ }
func (f *fakeProducerMetrics) IncReconnects()      { f.reconnects++ }

func newTestProducer(t *testing.T, pingLimit int, metrics *fakeProducerMetrics) (*ingest.Producer, *connstate.Cell) {
	t.Helper()
	conn := connstate.NewCell()
	mgr := transport.New("wss://example.com/?token=%s", "tok", []string{"AAPL"}, conn, nil, zerolog.Nop())
	queue := tickqueue.New(10)
	return ingest.NewProducer(mgr, queue, pingLimit, metrics, zerolog.Nop()), conn
}

func TestHandleFramePingFloodForcesReconnect(t *testing.T) {
	metrics := &fakeProducerMetrics{}
	producer, conn := newTestProducer(t, 2, metrics)

	// Frames without a "data" array count as pings.
	producer.HandleFrame([]byte(`{"type":"ping"}`))
	producer.HandleFrame([]byte(`{"type":"ping"}`))
	assert.NotEqual(t, connstate.Closed, conn.Load(), "ping count has not yet exceeded the limit")

	producer.HandleFrame([]byte(`{"type":"ping"}`))
	assert.Equal(t, connstate.Closed, conn.Load(), "exceeding the ping limit forces a reconnect")
	assert.Equal(t, 3, metrics.pings)
}

func TestHandleFrameValidDataResetsPingCount(t *testing.T) {
	metrics := &fakeProducerMetrics{}
	producer, conn := newTestProducer(t, 1, metrics)

	producer.HandleFrame([]byte(`{"type":"ping"}`))
	producer.HandleFrame([]byte(`{"data":[{"s":"AAPL","p":190.5,"v":1.0,"t":1700000000000}]}`))
	producer.HandleFrame([]byte(`{"type":"ping"}`))

	assert.NotEqual(t, connstate.Closed, conn.Load(), "a valid frame in between resets the ping counter")
	assert.Equal(t, 1, metrics.framesParsed)
}

func TestHandleFrameMalformedRecordAbortsFrameNotConnection(t *testing.T) {
	metrics := &fakeProducerMetrics{}
	conn := connstate.NewCell()
	mgr := transport.New("wss://example.com/?token=%s", "tok", []string{"AAPL"}, conn, nil, zerolog.Nop())
	queue := tickqueue.New(10)
	producer := ingest.NewProducer(mgr, queue, 5, metrics, zerolog.Nop())

	// First item is well-formed, second is missing "v"; the frame
	// aborts after the first item, but the connection is untouched.
	producer.HandleFrame([]byte(`{"data":[
		{"s":"AAPL","p":190.5,"v":1.0,"t":1700000000000},
		{"s":"AAPL","p":191.0,"t":1700000000500}
	]}`))

	require.Equal(t, 1, queue.Len())
	trade, err := queue.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "AAPL", trade.Symbol)
	assert.Equal(t, 1, metrics.framesMalformed)
	assert.NotEqual(t, connstate.Closed, conn.Load())
}

func TestHandleFrameEmptyDataArrayIsNotAPing(t *testing.T) {
	metrics := &fakeProducerMetrics{}
	producer, _ := newTestProducer(t, 1, metrics)

	producer.HandleFrame([]byte(`{"data":[]}`))
	assert.Equal(t, 1, metrics.framesParsed)
	assert.Equal(t, 0, metrics.pings)
}
