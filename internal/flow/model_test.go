package flow

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/book"
)

func newTestModel(cfg Config, seed int64) *Model {
	return NewModel(rand.New(rand.NewSource(seed)), cfg)
}

func TestNextTime(t *testing.T) {
	m := newTestModel(DefaultConfig(), 1)

	assert.True(t, math.IsInf(m.NextTime(5, 0), 1))
	assert.True(t, math.IsInf(m.NextTime(5, -2), 1))

	for i := 0; i < 100; i++ {
		next := m.NextTime(5, 10)
		assert.Greater(t, next, 5.0)
	}
}

func TestSampleLimitStaysOnGrid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MarketableLimitProb = 0
	m := newTestModel(cfg, 2)

	const midTicks = 10000.0
	for i := 0; i < 500; i++ {
		side, price, qty := m.SampleLimit(midTicks)
		require.GreaterOrEqual(t, qty, book.Quantity(cfg.LimitQtyMin))
		require.LessOrEqual(t, qty, book.Quantity(cfg.LimitQtyMax))
		if side == book.SideBid {
			assert.GreaterOrEqual(t, price, book.Price(midTicks)-book.Price(cfg.LimitLevels))
			assert.Less(t, price, book.Price(midTicks))
		} else {
			assert.Greater(t, price, book.Price(midTicks))
			assert.LessOrEqual(t, price, book.Price(midTicks)+book.Price(cfg.LimitLevels))
		}
	}
}

func TestMarketableLimitCrossesMid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MarketableLimitProb = 1
	m := newTestModel(cfg, 3)

	const midTicks = 10000.0
	for i := 0; i < 100; i++ {
		side, price, _ := m.SampleLimit(midTicks)
		if side == book.SideBid {
			assert.Equal(t, book.Price(10001), price)
		} else {
			assert.Equal(t, book.Price(9999), price)
		}
	}
}

func TestSampleSideImbalance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Imbalance = 1 // pBuy clipped to 0.99
	m := newTestModel(cfg, 4)

	bids := 0
	const n = 2000
	for i := 0; i < n; i++ {
		if m.SampleSide(false) == book.SideBid {
			bids++
		}
	}
	assert.Greater(t, bids, n*9/10)
}

func TestShouldSendInformedClipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PInformed = 0
	m := newTestModel(cfg, 5)
	for i := 0; i < 200; i++ {
		assert.False(t, m.ShouldSendInformed())
	}

	cfg.PInformed = 1.7 // clipped to 1
	m = newTestModel(cfg, 6)
	for i := 0; i < 200; i++ {
		assert.True(t, m.ShouldSendInformed())
	}
}

func TestInformedMarketScalesQty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MarketQtyMin = 2
	cfg.MarketQtyMax = 2
	cfg.InformedQtyMult = 1.8
	cfg.SignalFlipProb = 0
	m := newTestModel(cfg, 7)

	first := m.signal
	for i := 0; i < 50; i++ {
		side, qty, signal := m.SampleInformedMarket()
		assert.Equal(t, book.Quantity(4), qty) // round(2 * 1.8)
		assert.Equal(t, first, signal)         // regime never flips at prob 0
		if signal > 0 {
			assert.Equal(t, book.SideBid, side)
		} else {
			assert.Equal(t, book.SideAsk, side)
		}
	}
}

func TestSignalRegimeFlips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SignalFlipProb = 1
	m := newTestModel(cfg, 8)

	prev := m.signal
	for i := 0; i < 10; i++ {
		got := m.SampleSignal()
		assert.Equal(t, -prev, got)
		prev = got
	}
}

func TestDeterministicReplay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PInformed = 0.4

	a := newTestModel(cfg, 99)
	b := newTestModel(cfg, 99)
	for i := 0; i < 300; i++ {
		sa, pa, qa := a.SampleLimit(10000)
		sb, pb, qb := b.SampleLimit(10000)
		require.Equal(t, sa, sb)
		require.Equal(t, pa, pb)
		require.Equal(t, qa, qb)
		require.Equal(t, a.NextTime(0, 25), b.NextTime(0, 25))
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.LimitQtyMin = 5
	bad.LimitQtyMax = 2
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.LimitLevels = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.ToxicMoveDelay = -0.1
	assert.Error(t, bad.Validate())
}
