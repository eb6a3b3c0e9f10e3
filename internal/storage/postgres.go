// Package storage optionally mirrors finalized candles and raw ticks
// to PostgreSQL for ad-hoc querying within a run. Grounded on
// azanium-ohlc's internal/storage/postgresql_storage.go (gorm+pgx
// driver, AutoMigrate, custom error wrapper types). Unlike the
// teacher, every table is truncated at startup: the spec's Non-goals
// exclude persistence across restarts, and the text-file outputs are
// themselves overwritten on start, so this mirror is scoped to match
// — it never reads back data from a previous run.
package storage

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/azanium/tickstream/internal/trade"
)

// TickRow is the gorm model mirroring one consumed trade.
type TickRow struct {
	ID            uint      `gorm:"primaryKey"`
	Symbol        string    `gorm:"column:symbol;index"`
	Price         float64   `gorm:"column:price"`
	Volume        float64   `gorm:"column:volume"`
	EventTimeMs   int64     `gorm:"column:event_time_ms"`
	IngressTimeUs int64     `gorm:"column:ingress_time_us"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

// CandleRow is the gorm model mirroring one finalized minute candle.
type CandleRow struct {
	ID          uint      `gorm:"primaryKey"`
	Symbol      string    `gorm:"column:symbol;index"`
	Open        float64   `gorm:"column:open"`
	Close       float64   `gorm:"column:close"`
	High        float64   `gorm:"column:high"`
	Low         float64   `gorm:"column:low"`
	Volume      float64   `gorm:"column:volume"`
	SMA15Min    float64   `gorm:"column:sma_15min"`
	Volume15Min float64   `gorm:"column:volume_15min"`
	TradeCount  int64     `gorm:"column:trade_count"`
	EmitTimeUs  int64     `gorm:"column:emit_time_us"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// OperationError wraps a failed storage call with the operation name
// that failed, mirroring the teacher's StorageError/QueryError types.
type OperationError struct {
	Operation string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("storage operation %q failed: %v", e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// Mirror is the PostgreSQL sink for ticks and candles.
type Mirror struct {
	db *gorm.DB
}

// Open connects to dsn, migrates the schema, and truncates both
// tables so each run starts from empty. A connection or migration
// failure is returned for the caller to treat as fatal, matching the
// "I/O error opening output files" fatal-exit class in §7 of the spec.
func Open(dsn string) (*Mirror, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	if err := db.AutoMigrate(&TickRow{}, &CandleRow{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	if err := db.Exec("TRUNCATE TABLE tick_rows, candle_rows").Error; err != nil {
		return nil, fmt.Errorf("storage: truncate: %w", err)
	}

	return &Mirror{db: db}, nil
}

// StoreTick mirrors one consumed trade. Failures here are non-fatal
// post-startup (§7 kind 9): the caller logs and continues.
func (m *Mirror) StoreTick(symbol string, price, volume float64, eventTimeMs, ingressTimeUs int64) error {
	row := TickRow{
		Symbol:        symbol,
		Price:         price,
		Volume:        volume,
		EventTimeMs:   eventTimeMs,
		IngressTimeUs: ingressTimeUs,
	}
	if err := m.db.Create(&row).Error; err != nil {
		return &OperationError{Operation: "store_tick", Err: err}
	}
	return nil
}

// StoreCandle mirrors one finalized minute summary.
func (m *Mirror) StoreCandle(s trade.MinuteSummary) error {
	row := CandleRow{
		Symbol:      s.Symbol,
		Open:        s.Candle.Open,
		Close:       s.Candle.Close,
		High:        s.Candle.High,
		Low:         s.Candle.Low,
		Volume:      s.Candle.Volume,
		SMA15Min:    s.SMA15Min,
		Volume15Min: s.Volume15Min,
		TradeCount:  s.TradeCount,
		EmitTimeUs:  s.EmitTimeUs,
	}
	if err := m.db.Create(&row).Error; err != nil {
		return &OperationError{Operation: "store_candle", Err: err}
	}
	return nil
}

// Close releases the underlying connection pool.
func (m *Mirror) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
