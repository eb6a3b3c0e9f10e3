// Package appstate wires the ingestion pipeline's components into one
// long-running App, the single context object Design Notes call for
// instead of the original's scattered global arrays. Grounded on
// azanium-ohlc's internal/service/service.go (a Service struct owning
// every dependency, constructed once in New, started by Start, drained
// by Stop) and cmd/ohlc/main.go's shutdown sequencing.
package appstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/azanium/tickstream/internal/aggregate"
	"github.com/azanium/tickstream/internal/broadcast"
	"github.com/azanium/tickstream/internal/connstate"
	"github.com/azanium/tickstream/internal/httpapi"
	"github.com/azanium/tickstream/internal/ingest"
	"github.com/azanium/tickstream/internal/metrics"
	"github.com/azanium/tickstream/internal/outputs"
	"github.com/azanium/tickstream/internal/storage"
	"github.com/azanium/tickstream/internal/sysmon"
	"github.com/azanium/tickstream/internal/tickqueue"
	"github.com/azanium/tickstream/internal/tokeninspect"
	"github.com/azanium/tickstream/internal/transport"
)

// Config is everything App needs to wire the pipeline. It is
// transport-agnostic: cmd/tickstream fills this in from conf.Config so
// this package never imports the config loader.
type Config struct {
	Symbols         []string
	UpstreamURL     string
	UpstreamToken   string
	QueueCapacity   int
	PingLimit       int
	MinutePeriod    time.Duration
	OutputDir       string
	MetricsAddr     string
	HostSamplePeriod time.Duration
	PostgresDSN     string // empty disables the Postgres mirror
	NATSURL         string // empty disables external publish
}

// App owns every long-lived component of one run and coordinates
// startup and shutdown.
type App struct {
	cfg Config
	log zerolog.Logger

	queue   *tickqueue.FIFO
	state   *aggregate.State
	conn    *connstate.Cell
	writer  *outputs.Writer
	mirror  *storage.Mirror
	hub     *broadcast.Hub
	registry *metrics.Registry

	mgr        *transport.Manager
	producer   *ingest.Producer
	consumer   *ingest.Consumer
	aggregator *aggregate.Aggregator
	httpServer *httpapi.Server
	sampler    *sysmon.Sampler

	done     chan struct{}
	closeOnce sync.Once
}

// New constructs every component. A returned error is a startup
// failure (opening output files, connecting to Postgres) and the
// caller should exit non-zero without attempting Run.
func New(cfg Config, log zerolog.Logger) (*App, error) {
	if tr := tokeninspect.Inspect(cfg.UpstreamToken); !tr.IsJWT {
		log.Debug().Msg("upstream bearer token is not a JWT, skipping expiry inspection")
	} else {
		ev := log.Info()
		if tr.Expired || tr.ExpiresSoon {
			ev = log.Warn()
		}
		ev.Time("expires_at", tr.ExpiresAt).Bool("expired", tr.Expired).Bool("expires_soon", tr.ExpiresSoon).
			Msg("inspected upstream bearer token")
	}

	writer, err := outputs.Open(cfg.OutputDir, cfg.Symbols)
	if err != nil {
		return nil, fmt.Errorf("appstate: open output files: %w", err)
	}

	var mirror *storage.Mirror
	if cfg.PostgresDSN != "" {
		mirror, err = storage.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("appstate: open postgres mirror: %w", err)
		}
	}

	registry := metrics.NewRegistry()
	hub := broadcast.New(cfg.NATSURL, log)
	state := aggregate.NewState(cfg.Symbols)
	conn := connstate.NewCell()
	queue := tickqueue.New(cfg.QueueCapacity)

	a := &App{
		cfg:      cfg,
		log:      log,
		queue:    queue,
		state:    state,
		conn:     conn,
		writer:   writer,
		mirror:   mirror,
		hub:      hub,
		registry: registry,
		done:     make(chan struct{}),
	}

	// The Connection Manager needs the Producer's frame handler, and
	// the Producer needs the Manager to drive reconnects: break the
	// cycle with a forward reference populated right after.
	var producer *ingest.Producer
	a.mgr = transport.New(cfg.UpstreamURL, cfg.UpstreamToken, cfg.Symbols, conn, func(frame []byte) {
		producer.HandleFrame(frame)
	}, log)
	producer = ingest.NewProducer(a.mgr, queue, cfg.PingLimit, registry, log)
	a.producer = producer

	consumerSink := &consumerSink{writer: writer, mirror: mirror, log: log}
	a.consumer = ingest.NewConsumer(queue, state, consumerSink, registry, log)

	minuteSink := &minuteSink{writer: writer, hub: hub, mirror: mirror, registry: registry, log: log}
	a.aggregator = aggregate.NewAggregator(state, conn, minuteSink, cfg.MinutePeriod, log)

	a.httpServer = httpapi.New(cfg.MetricsAddr, registry, log)
	a.sampler = sysmon.New(registry, cfg.HostSamplePeriod, func() (int, int) {
		return queue.Len(), queue.Cap()
	}, log)

	return a, nil
}

// Start opens the initial upstream connection. A failure here is a
// startup failure per the spec's "initial connection" fatal-exit
// class; the caller should exit non-zero.
func (a *App) Start(ctx context.Context) error {
	if err := a.mgr.Open(ctx); err != nil {
		return fmt.Errorf("appstate: initial connection: %w", err)
	}
	return nil
}

// Run starts every worker goroutine and blocks until ctx is canceled,
// then drains them and releases every resource exactly once. The
// errgroup is the Shutdown Coordinator (C6): one group supervising
// every long-running loop, canceled together on the first fatal member
// or the caller's signal.
func (a *App) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.producer.Run(gctx, a.done)
		return nil
	})
	group.Go(func() error {
		a.consumer.Run()
		return nil
	})
	group.Go(func() error {
		a.aggregator.Run(a.done)
		return nil
	})
	group.Go(func() error {
		a.httpServer.Run()
		return nil
	})
	group.Go(func() error {
		a.sampler.Run(a.done)
		return nil
	})

	<-gctx.Done()
	return a.shutdown(group.Wait)
}

// shutdown signals every loop to stop, waits for them to return, and
// only then releases resources. Safe to call more than once; later
// calls do nothing and return nil.
func (a *App) shutdown(wait func() error) (err error) {
	a.closeOnce.Do(func() {
		close(a.done)
		a.queue.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("metrics/health server shutdown error")
		}

		a.mgr.TearDown()
		err = wait()
		a.hub.Close()

		if err := a.writer.Close(); err != nil {
			a.log.Error().Err(err).Msg("error closing output files")
		}
		if a.mirror != nil {
			if err := a.mirror.Close(); err != nil {
				a.log.Error().Err(err).Msg("error closing postgres mirror")
			}
		}
	})
	return err
}
