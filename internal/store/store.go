// Package store persists run summaries to PostgreSQL so parameter sweeps
// can be compared across machines and over time. Persistence is optional:
// the simulator runs fully without a database.
package store

import (
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"main/internal/analytics"
	"main/internal/sim"
)

// RunRecord is one persisted run summary.
type RunRecord struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Experiment      string `gorm:"index"`
	Seed            int64
	EnvironmentMode string `gorm:"index"`
	MMUpdateEveryK  int
	PInformed       float64
	Imbalance       float64

	Events        float64
	Trades        float64
	FlowImbalance float64

	FinalMid           float64
	FinalFundamental   float64
	FinalInventory     float64
	FinalRealizedPnL   float64
	FinalUnrealizedPnL float64
	FinalPnL           float64
	FinalMtmPnL        float64

	AvgSpread              float64
	MMFills                float64
	AvgMarkout             float64
	AvgAdverseMove         float64
	AdverseFillRatio       float64
	AdverseSelectionMetric float64
}

// TableName keeps the table name stable across gorm naming strategies.
func (RunRecord) TableName() string { return "sim_runs" }

// Store wraps the PostgreSQL connection pool.
type Store struct {
	db *gorm.DB
}

// Open connects with the given DSN and migrates the runs table.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("empty postgres dsn")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate sim_runs")
	}
	return &Store{db: db}, nil
}

// SaveRun inserts one run summary.
func (s *Store) SaveRun(experiment string, cfg sim.Config, report analytics.Report) error {
	record := NewRunRecord(experiment, cfg, report)
	if err := s.db.Create(&record).Error; err != nil {
		return errors.Wrapf(err, "save run %s", experiment)
	}
	return nil
}

// Recent returns the most recent run summaries, newest first.
func (s *Store) Recent(limit int) ([]RunRecord, error) {
	var records []RunRecord
	err := s.db.Order("created_at desc").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "load recent runs")
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewRunRecord flattens a config and report into a RunRecord row.
func NewRunRecord(experiment string, cfg sim.Config, report analytics.Report) RunRecord {
	return RunRecord{
		Experiment:      experiment,
		Seed:            cfg.Seed,
		EnvironmentMode: cfg.EnvironmentMode,
		MMUpdateEveryK:  cfg.MMUpdateEveryKEvents,
		PInformed:       cfg.Flow.PInformed,
		Imbalance:       cfg.Flow.Imbalance,

		Events:        report.Events,
		Trades:        report.Trades,
		FlowImbalance: report.FlowImbalance,

		FinalMid:           report.FinalMid,
		FinalFundamental:   report.FinalFundamental,
		FinalInventory:     report.FinalInventory,
		FinalRealizedPnL:   report.FinalRealizedPnL,
		FinalUnrealizedPnL: report.FinalUnrealizedPnL,
		FinalPnL:           report.FinalPnL,
		FinalMtmPnL:        report.FinalMtmPnL,

		AvgSpread:              report.AvgSpread,
		MMFills:                report.MMFills,
		AvgMarkout:             report.AvgMarkout,
		AvgAdverseMove:         report.AvgAdverseMove,
		AdverseFillRatio:       report.AdverseFillRatio,
		AdverseSelectionMetric: report.AdverseSelectionMetric,
	}
}
