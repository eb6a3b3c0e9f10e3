// Package metrics wires the pipeline's soft-real-time latency
// measurements and liveness counters into Prometheus, so the service
// can be evaluated the way §1 of the spec asks for. Grounded on
// adred-codev-ws_poc's go-server/internal/metrics/metrics.go and
// go-server-3/internal/metrics/metrics.go (promauto collector
// construction, a Registry struct grouping related collectors, a
// Handler() for serving /metrics).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups every Prometheus collector the pipeline updates.
type Registry struct {
	QueueDepth        prometheus.Gauge
	QueueCapacity     prometheus.Gauge
	TradesProcessed   *prometheus.CounterVec
	TradesDropped     prometheus.Counter
	FramesParsed      prometheus.Counter
	FramesMalformed   prometheus.Counter
	Pings             prometheus.Counter
	Reconnects        prometheus.Counter
	StarvedMinutes    prometheus.Counter
	MinutesEmitted    prometheus.Counter
	FinToProDelayMs   prometheus.Histogram
	ProToConDelayUs   prometheus.Histogram
	HostCPUPercent    prometheus.Gauge
	HostMemoryPercent prometheus.Gauge
}

// NewRegistry creates and registers every collector against the
// default Prometheus registry.
func NewRegistry() *Registry {
	return &Registry{
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tickstream_fifo_depth",
			Help: "Current number of trades queued between the producer and consumer.",
		}),
		QueueCapacity: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tickstream_fifo_capacity",
			Help: "Fixed capacity of the producer/consumer FIFO.",
		}),
		TradesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tickstream_trades_processed_total",
			Help: "Trades folded into per-symbol aggregation state, by symbol.",
		}, []string{"symbol"}),
		TradesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_trades_dropped_total",
			Help: "Trades dequeued for a symbol outside the configured table.",
		}),
		FramesParsed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_frames_parsed_total",
			Help: "Valid data frames received from the upstream provider.",
		}),
		FramesMalformed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_frames_malformed_total",
			Help: "Frames dropped due to a missing or mistyped trade field.",
		}),
		Pings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_pings_total",
			Help: "Frames without a data array, counted against the ping limit.",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_reconnects_total",
			Help: "Connection teardown/reopen cycles.",
		}),
		StarvedMinutes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_starved_minutes_total",
			Help: "Per-symbol minutes with zero trades.",
		}),
		MinutesEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tickstream_minutes_emitted_total",
			Help: "Per-symbol minutes with a finalized candle.",
		}),
		FinToProDelayMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickstream_fin_to_pro_delay_ms",
			Help:    "Delay between the provider's event time and producer ingress, in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		ProToConDelayUs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickstream_pro_to_con_delay_us",
			Help:    "Delay between producer ingress and consumer processing, in microseconds.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 16),
		}),
		HostCPUPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tickstream_host_cpu_percent",
			Help: "Host CPU utilization sampled by the host sampler.",
		}),
		HostMemoryPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tickstream_host_memory_percent",
			Help: "Host memory utilization sampled by the host sampler.",
		}),
	}
}

// Handler returns an HTTP handler exposing metrics in the Prometheus
// text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// IncFramesParsed implements ingest.ProducerMetrics.
func (r *Registry) IncFramesParsed() { r.FramesParsed.Inc() }

// IncFramesMalformed implements ingest.ProducerMetrics.
func (r *Registry) IncFramesMalformed() { r.FramesMalformed.Inc() }

// IncPings implements ingest.ProducerMetrics.
func (r *Registry) IncPings() { r.Pings.Inc() }

// IncReconnects implements ingest.ProducerMetrics.
func (r *Registry) IncReconnects() { r.Reconnects.Inc() }

// IncTradesProcessed implements ingest.ConsumerMetrics.
func (r *Registry) IncTradesProcessed(symbol string) { r.TradesProcessed.WithLabelValues(symbol).Inc() }

// IncTradesDropped implements ingest.ConsumerMetrics.
func (r *Registry) IncTradesDropped() { r.TradesDropped.Inc() }

// ObserveFinToProDelayMs implements ingest.ConsumerMetrics.
func (r *Registry) ObserveFinToProDelayMs(v float64) { r.FinToProDelayMs.Observe(v) }

// ObserveProToConDelayUs implements ingest.ConsumerMetrics.
func (r *Registry) ObserveProToConDelayUs(v float64) { r.ProToConDelayUs.Observe(v) }

// SetQueueDepth records the FIFO's current occupancy; intended to be
// sampled on a low-frequency ticker, not per-trade.
func (r *Registry) SetQueueDepth(depth, capacity int) {
	r.QueueDepth.Set(float64(depth))
	r.QueueCapacity.Set(float64(capacity))
}
