// Command tickstream is the single executable the spec calls for: no
// flags, one long-running process that subscribes to a trade-tick
// provider, aggregates per-symbol candles and rolling statistics, and
// writes them to the configured output directory until terminated.
// Grounded on azanium-ohlc's cmd/ohlc/main.go (signal-driven shutdown,
// config-first startup, timeout-bounded drain).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/azanium/tickstream/conf"
	"github.com/azanium/tickstream/internal/appstate"
)

func main() {
	cfg, err := conf.GetConf()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	zerolog.SetGlobalLevel(levelFor(cfg.Server.LogLevel))
	logger := log.Logger.With().Str("env", cfg.Env).Logger()

	appCfg := appstate.Config{
		Symbols:          cfg.Upstream.Symbols,
		UpstreamURL:      cfg.Upstream.URLTemplate,
		UpstreamToken:    cfg.Upstream.Token,
		QueueCapacity:    cfg.Pipeline.QueueCapacity,
		PingLimit:        cfg.Pipeline.PingLimit,
		MinutePeriod:     cfg.Pipeline.MinutePeriod(),
		OutputDir:        cfg.Pipeline.OutputDir,
		MetricsAddr:      cfg.Server.MetricsAddr,
		HostSamplePeriod: cfg.Pipeline.HostSamplePeriod(),
	}
	if cfg.Postgres.Enabled() {
		appCfg.PostgresDSN = cfg.Postgres.DSN()
	}
	if cfg.NATS.Enabled() {
		appCfg.NATSURL = cfg.NATS.URL
	}

	app, err := appstate.New(appCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialization failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("initial connection failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("pipeline exited with error")
		os.Exit(1)
	}

	logger.Info().Msg("shutdown complete")
}

func levelFor(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
