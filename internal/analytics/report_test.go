package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/book"
	"main/internal/maker"
	"main/internal/sim"
)

func snap(ts, mid float64, spread *float64) sim.Snapshot {
	return sim.Snapshot{Timestamp: ts, MidPrice: mid, Spread: spread}
}

func spreadOf(v float64) *float64 { return &v }

func TestBuildRejectsEmptyRun(t *testing.T) {
	_, err := Build(&sim.Result{}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no snapshots")

	_, err = Build(nil, 1)
	require.Error(t, err)
}

func TestBuildWithoutFills(t *testing.T) {
	result := &sim.Result{
		Snapshots: []sim.Snapshot{
			snap(0, 100.00, spreadOf(0.06)),
			snap(1, 100.02, spreadOf(0.02)),
			snap(2, 100.04, nil),
		},
		Trades: []book.Trade{
			{TakerSide: book.SideBid, Qty: 3},
			{TakerSide: book.SideAsk, Qty: 1},
		},
	}

	report, err := Build(result, 1)
	require.NoError(t, err)

	assert.Equal(t, 3.0, report.Events)
	assert.Equal(t, 2.0, report.Trades)
	assert.InDelta(t, 0.5, report.FlowImbalance, 1e-12)
	assert.InDelta(t, 100.04, report.FinalMid, 1e-12)
	assert.InDelta(t, 0.04, report.AvgSpread, 1e-12)
	assert.Zero(t, report.MMFills)
	assert.Zero(t, report.AvgMarkout)
	assert.Zero(t, report.AdverseFillRatio)
}

func TestMarkoutSignsFollowFillDirection(t *testing.T) {
	// Mid rises 2 cents per second: a buy marks out positive, a sell
	// negative and therefore adverse.
	result := &sim.Result{
		Snapshots: []sim.Snapshot{
			snap(0, 100.00, nil),
			snap(5, 100.10, nil),
		},
		MMFills: []maker.Fill{
			{Timestamp: 1, Direction: 1, Price: 100.02, Qty: 1},
			{Timestamp: 1, Direction: -1, Price: 100.02, Qty: 1},
		},
	}

	report, err := Build(result, 1)
	require.NoError(t, err)

	assert.Equal(t, 2.0, report.MMFills)
	// +0.02 for the buy, -0.02 for the sell.
	assert.InDelta(t, 0.0, report.AvgMarkout, 1e-12)
	assert.InDelta(t, 0.5, report.AdverseFillRatio, 1e-12)
	assert.InDelta(t, 0.0, report.AvgAdverseMove, 1e-12)
	assert.Equal(t, report.AvgMarkout, report.AdverseSelectionMetric)
}

func TestMarkoutClampsBeyondRecordedPath(t *testing.T) {
	result := &sim.Result{
		Snapshots: []sim.Snapshot{
			snap(0, 100.00, nil),
			snap(2, 100.04, nil),
		},
		MMFills: []maker.Fill{
			// Horizon extends past the last snapshot: future mid clamps
			// to the final recorded value.
			{Timestamp: 1.5, Direction: 1, Price: 100.00, Qty: 1},
		},
	}

	report, err := Build(result, 10)
	require.NoError(t, err)

	// mid(1.5) = 100.03, mid(11.5) clamps to 100.04.
	assert.InDelta(t, 0.01, report.AvgMarkout, 1e-12)
	assert.Zero(t, report.AdverseFillRatio)
}

func TestMidInterpolation(t *testing.T) {
	times := []float64{0, 1, 3}
	mids := []float64{100, 101, 105}

	assert.InDelta(t, 100, midAt(-1, times, mids), 1e-12)
	assert.InDelta(t, 100, midAt(0, times, mids), 1e-12)
	assert.InDelta(t, 100.5, midAt(0.5, times, mids), 1e-12)
	assert.InDelta(t, 101, midAt(1, times, mids), 1e-12)
	assert.InDelta(t, 103, midAt(2, times, mids), 1e-12)
	assert.InDelta(t, 105, midAt(3, times, mids), 1e-12)
	assert.InDelta(t, 105, midAt(9, times, mids), 1e-12)
}

func TestFlowImbalanceAllOneSide(t *testing.T) {
	trades := []book.Trade{
		{TakerSide: book.SideBid, Qty: 2},
		{TakerSide: book.SideBid, Qty: 4},
	}
	assert.InDelta(t, 1.0, flowImbalance(trades), 1e-12)
	assert.Zero(t, flowImbalance(nil))
}

func TestEndToEndReportFromSimulation(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.EndTime = 20

	s, err := sim.New(cfg)
	require.NoError(t, err)
	result, err := s.Run()
	require.NoError(t, err)

	report, err := Build(result, cfg.AdverseHorizon)
	require.NoError(t, err)

	assert.Equal(t, float64(len(result.Snapshots)), report.Events)
	assert.Equal(t, float64(len(result.MMFills)), report.MMFills)
	assert.Positive(t, report.AvgSpread)
	assert.GreaterOrEqual(t, report.AdverseFillRatio, 0.0)
	assert.LessOrEqual(t, report.AdverseFillRatio, 1.0)
	assert.InDelta(t, report.FinalRealizedPnL+report.FinalUnrealizedPnL, report.FinalPnL, 1e-9)
}
