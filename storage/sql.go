package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ver3trade/engine/core"
)

// SQLOrderLog implements OrderLog over a SQL database via GORM, for
// deployments that want the fill history queryable with plain SQL.
type SQLOrderLog struct {
	db *gorm.DB
}

// SQLConfig holds connection pool settings for SQL order logs.
type SQLConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultSQLConfig returns a conservative pool configuration.
func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// fillRow is the persisted shape of a fill. Decimal amounts are stored
// as strings so no precision is lost round-tripping through the driver.
type fillRow struct {
	ID       uint   `gorm:"primaryKey"`
	OrderID  string `gorm:"index"`
	Pair     string `gorm:"index"`
	Side     string
	Qty      string
	AvgPrice string
	Fee      string
	Time     time.Time `gorm:"index"`
}

// NewSQLiteOrderLog opens (creating if needed) a SQLite order log.
func NewSQLiteOrderLog(dbPath string, config SQLConfig, opts ...gorm.Option) (*SQLOrderLog, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), opts...)
	if err != nil {
		return nil, fmt.Errorf("open order log database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.AutoMigrate(&fillRow{}); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLOrderLog{db: db}, nil
}

// RecordFill implements OrderLog.
func (s *SQLOrderLog) RecordFill(ctx context.Context, fill core.Fill) error {
	row := fillRow{
		OrderID:  fill.OrderID,
		Pair:     fill.Pair,
		Side:     string(fill.Side),
		Qty:      fill.Qty.String(),
		AvgPrice: fill.AvgPrice.String(),
		Fee:      fill.Fee.String(),
		Time:     fill.Time,
	}
	if result := s.db.WithContext(ctx).Create(&row); result.Error != nil {
		return fmt.Errorf("record fill: %w", result.Error)
	}
	return nil
}

// Fills implements OrderLog, returning rows in time order.
func (s *SQLOrderLog) Fills(ctx context.Context, filters ...FillFilter) ([]core.Fill, error) {
	var rows []fillRow
	if result := s.db.WithContext(ctx).Order("time asc").Find(&rows); result.Error != nil {
		return nil, fmt.Errorf("query order log: %w", result.Error)
	}

	fills := make([]core.Fill, 0, len(rows))
	for _, row := range rows {
		fill, err := row.toFill()
		if err != nil {
			continue // skip unreadable rows
		}
		keep := true
		for _, filter := range filters {
			if !filter(fill) {
				keep = false
				break
			}
		}
		if keep {
			fills = append(fills, fill)
		}
	}
	return fills, nil
}

// Close implements OrderLog.
func (s *SQLOrderLog) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r fillRow) toFill() (core.Fill, error) {
	qty, err := decimal.NewFromString(r.Qty)
	if err != nil {
		return core.Fill{}, err
	}
	price, err := decimal.NewFromString(r.AvgPrice)
	if err != nil {
		return core.Fill{}, err
	}
	fee, err := decimal.NewFromString(r.Fee)
	if err != nil {
		return core.Fill{}, err
	}
	return core.Fill{
		OrderID:  r.OrderID,
		Pair:     r.Pair,
		Side:     core.SideType(r.Side),
		Qty:      qty,
		AvgPrice: price,
		Fee:      fee,
		Time:     r.Time,
	}, nil
}
