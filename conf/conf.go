// Package conf loads and validates the service's YAML configuration
// file, selected by the APP_ENV environment variable. Grounded on
// azanium-ohlc's conf/conf.go (sync.Once-guarded singleton, the
// zerolog/klog logging bridge set up as a side effect of the first
// load, kr/pretty startup dump), generalized from the teacher's
// Postgres-only schema to the full pipeline configuration and changed
// to return load errors instead of panicking, matching the
// return-wrapped-error convention the rest of this tree uses for
// startup failures.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloudwego/kitex/pkg/klog"
	kitexzerolog "github.com/kitex-contrib/obs-opentelemetry/logging/zerolog"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

var (
	conf    *Config
	confErr error
	once    sync.Once
)

// Config is the full service configuration loaded from
// conf/<APP_ENV>/conf.yaml.
type Config struct {
	Env      string
	Server   Server   `yaml:"server"`
	Upstream Upstream `yaml:"upstream"`
	Pipeline Pipeline `yaml:"pipeline"`
	Postgres Postgres `yaml:"postgres"`
	NATS     NATS     `yaml:"nats"`
}

// Server configures the operational HTTP surface (metrics/health) and
// logging.
type Server struct {
	MetricsAddr string `yaml:"metrics_addr" validate:"nonzero"`
	LogLevel    string `yaml:"log_level"`
}

// Upstream configures the trade-tick provider connection.
type Upstream struct {
	URLTemplate string   `yaml:"url_template" validate:"nonzero"`
	Token       string   `yaml:"token" validate:"nonzero"`
	Symbols     []string `yaml:"symbols" validate:"min=1"`
}

// Pipeline configures the queue, windowing, and output parameters
// shared by the producer, consumer, and aggregator.
type Pipeline struct {
	QueueCapacity   int    `yaml:"queue_capacity" validate:"min=1"`
	PingLimit       int    `yaml:"ping_limit" validate:"min=1"`
	MinutePeriodSec int    `yaml:"minute_period_sec" validate:"min=1"`
	OutputDir       string `yaml:"output_dir" validate:"nonzero"`
	HostSampleSec   int    `yaml:"host_sample_sec"`
}

// MinutePeriod returns the configured aggregation period as a
// time.Duration.
func (p Pipeline) MinutePeriod() time.Duration {
	return time.Duration(p.MinutePeriodSec) * time.Second
}

// HostSamplePeriod returns the configured host-sampling period,
// defaulting to 5s when unset.
func (p Pipeline) HostSamplePeriod() time.Duration {
	if p.HostSampleSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.HostSampleSec) * time.Second
}

// Postgres is the optional candle/tick mirror. An empty Address
// disables the sink entirely.
type Postgres struct {
	Address  string `yaml:"address"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Port     int    `yaml:"port"`
	SSLMode  string `yaml:"ssl_mode"`
}

// Enabled reports whether a Postgres mirror is configured.
func (p Postgres) Enabled() bool { return p.Address != "" }

// DSN builds the libpq connection string gorm/pgx expect.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		p.Address, p.Username, p.Password, p.Database, p.Port, p.SSLMode)
}

// NATS is the optional external candle publish target.
type NATS struct {
	URL string `yaml:"url"`
}

// Enabled reports whether external NATS publish is configured.
func (n NATS) Enabled() bool { return n.URL != "" }

// GetConf returns the process-wide configuration, loading it on first
// call. A load failure (missing file, bad YAML, failed validation) is
// returned rather than panicking, so the caller can report it through
// the same fatal-exit path as every other startup failure in this
// tree (appstate.New, outputs.Open, storage.Open, mgr.Open).
func GetConf() (*Config, error) {
	once.Do(func() {
		conf, confErr = initConf()
	})
	return conf, confErr
}

func initConf() (*Config, error) {
	logger := kitexzerolog.NewLogger()
	klog.SetLogger(logger)
	log.Logger = *logger.Logger()

	prefix := "conf"
	confFileRelPath := filepath.Join(prefix, filepath.Join(GetEnv(), "conf.yaml"))
	content, err := os.ReadFile(confFileRelPath)
	if err != nil {
		return nil, fmt.Errorf("conf: read %s: %w", confFileRelPath, err)
	}

	c := new(Config)
	if err := yaml.Unmarshal(content, c); err != nil {
		return nil, fmt.Errorf("conf: parse yaml: %w", err)
	}
	if err := validator.Validate(c); err != nil {
		return nil, fmt.Errorf("conf: validate: %w", err)
	}
	c.Env = GetEnv()
	pretty.Printf("%+v\n", c)
	return c, nil
}

// GetEnv returns the selected environment, defaulting to "dev".
func GetEnv() string {
	e := os.Getenv("APP_ENV")
	if len(e) == 0 {
		return "dev"
	}
	return e
}

// LogLevel maps the configured level name to a klog level, defaulting
// to Info for an unrecognized, empty, or unloadable value.
func LogLevel() klog.Level {
	cfg, err := GetConf()
	if err != nil {
		return klog.LevelInfo
	}
	switch cfg.Server.LogLevel {
	case "trace":
		return klog.LevelTrace
	case "debug":
		return klog.LevelDebug
	case "info":
		return klog.LevelInfo
	case "notice":
		return klog.LevelNotice
	case "warn":
		return klog.LevelWarn
	case "error":
		return klog.LevelError
	case "fatal":
		return klog.LevelFatal
	default:
		return klog.LevelInfo
	}
}
