package appstate

import (
	"github.com/rs/zerolog"

	"github.com/azanium/tickstream/internal/aggregate"
	"github.com/azanium/tickstream/internal/broadcast"
	"github.com/azanium/tickstream/internal/metrics"
	"github.com/azanium/tickstream/internal/outputs"
	"github.com/azanium/tickstream/internal/storage"
)

// consumerSink implements ingest.ConsumerSink: every raw tick and its
// two latency measurements go to the output files, and optionally to
// the Postgres mirror.
type consumerSink struct {
	writer *outputs.Writer
	mirror *storage.Mirror
	log    zerolog.Logger
}

func (s *consumerSink) WriteTick(symbolIndex int, symbol string, price, volume float64, eventTimeMs, ingressTimeUs int64) error {
	if err := s.writer.WriteTick(symbolIndex, symbol, price, volume, eventTimeMs, ingressTimeUs); err != nil {
		return err
	}
	if s.mirror == nil {
		return nil
	}
	if err := s.mirror.StoreTick(symbol, price, volume, eventTimeMs, ingressTimeUs); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("postgres mirror tick store failed")
	}
	return nil
}

func (s *consumerSink) WriteDelayRow(symbolIndex int, finToProDelayMs, proToConDelayUs int64) error {
	return s.writer.WriteDelayRow(symbolIndex, finToProDelayMs, proToConDelayUs)
}

// minuteSink implements aggregate.Sink: it writes the per-minute
// candlestick/SMA-volume/no_data lines and the shared gap row, then
// fans each finalized (non-starved) minute out to the broadcast hub
// and optional Postgres mirror.
type minuteSink struct {
	writer   *outputs.Writer
	hub      *broadcast.Hub
	mirror   *storage.Mirror
	registry *metrics.Registry
	log      zerolog.Logger
}

func (s *minuteSink) EmitMinute(results []aggregate.MinuteResult) {
	gaps := make([]int64, len(results))
	hasGap := make([]bool, len(results))

	for i, r := range results {
		if r.Starved {
			s.registry.StarvedMinutes.Inc()
			if err := s.writer.WriteCandlestickNoData(i); err != nil {
				s.log.Error().Err(err).Str("symbol", r.Symbol).Msg("failed writing no_data candlestick line")
			}
			if err := s.writer.WriteSMAVolumeNoData(i); err != nil {
				s.log.Error().Err(err).Str("symbol", r.Symbol).Msg("failed writing no_data sma/volume line")
			}
			continue
		}

		s.registry.MinutesEmitted.Inc()
		if err := s.writer.WriteCandlestick(i, r.Summary.Candle); err != nil {
			s.log.Error().Err(err).Str("symbol", r.Symbol).Msg("failed writing candlestick line")
		}
		if err := s.writer.WriteSMAVolume(i, r.Summary.SMA15Min, r.Summary.Volume15Min); err != nil {
			s.log.Error().Err(err).Str("symbol", r.Symbol).Msg("failed writing sma/volume line")
		}

		gaps[i] = r.Summary.GapUs
		hasGap[i] = r.Summary.HasGap

		s.hub.Publish(r.Summary)
		if s.mirror != nil {
			if err := s.mirror.StoreCandle(r.Summary); err != nil {
				s.log.Warn().Err(err).Str("symbol", r.Symbol).Msg("postgres mirror candle store failed")
			}
		}
	}

	if err := s.writer.WriteGapRow(gaps, hasGap); err != nil {
		s.log.Error().Err(err).Msg("failed writing gap row")
	}
	if err := s.writer.Flush(); err != nil {
		s.log.Error().Err(err).Msg("failed flushing output files")
	}
}
