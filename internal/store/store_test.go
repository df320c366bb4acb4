package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/analytics"
	"main/internal/sim"
)

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty postgres dsn")
}

func TestNewRunRecordFlattensConfigAndReport(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.Seed = 11
	cfg.EnvironmentMode = sim.ModeV2SlowAdapt
	cfg.MMUpdateEveryKEvents = 5
	cfg.Flow.PInformed = 0.3
	cfg.Flow.Imbalance = 0.35

	report := analytics.Report{
		Events:           120,
		Trades:           40,
		FinalPnL:         -1.25,
		AvgMarkout:       -0.004,
		AdverseFillRatio: 0.6,
	}

	record := NewRunRecord("C_informed_flow", cfg, report)

	assert.Equal(t, "C_informed_flow", record.Experiment)
	assert.Equal(t, int64(11), record.Seed)
	assert.Equal(t, sim.ModeV2SlowAdapt, record.EnvironmentMode)
	assert.Equal(t, 5, record.MMUpdateEveryK)
	assert.InDelta(t, 0.3, record.PInformed, 1e-12)
	assert.InDelta(t, 0.35, record.Imbalance, 1e-12)
	assert.Equal(t, 120.0, record.Events)
	assert.InDelta(t, -1.25, record.FinalPnL, 1e-12)
	assert.InDelta(t, -0.004, record.AvgMarkout, 1e-12)
	assert.InDelta(t, 0.6, record.AdverseFillRatio, 1e-12)
	assert.Equal(t, "sim_runs", record.TableName())
}

func TestCloseNilStore(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}
