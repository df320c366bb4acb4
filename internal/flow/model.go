// Package flow samples the stochastic order-flow process: arrival times,
// sides, prices, and quantities for background orders, plus the two
// informedness channels (predictive market orders and the exogenous
// fundamental random walk). It holds no book state; every draw comes from a
// generator owned by the caller so runs replay bit-for-bit from a seed.
package flow

import (
	"math"
	"math/rand"

	"main/internal/book"
)

// Model samples order flow from a seeded generator.
type Model struct {
	rng    *rand.Rand
	cfg    Config
	trend  int
	signal int
}

// NewModel builds a model over the caller's generator. The generator is
// shared with the simulator; the model draws from it but never reseeds it.
func NewModel(rng *rand.Rand, cfg Config) *Model {
	m := &Model{rng: rng, cfg: cfg, trend: 1, signal: 1}
	if m.rng.Float64() >= 0.5 {
		m.trend = -1
	}
	if m.rng.Float64() >= 0.5 {
		m.signal = -1
	}
	return m
}

// NextTime samples the next arrival for a Poisson process with the given
// rate. A rate <= 0 means the process never fires again.
func (m *Model) NextTime(now, rate float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}
	return now + m.rng.ExpFloat64()/rate
}

// SampleLimit draws a limit order around the mid price (in ticks). Usually
// the price sits at a uniform passive depth level; with a small probability
// it is placed one tick through the mid instead, injecting an occasional
// liquidity-taking limit order.
func (m *Model) SampleLimit(midTicks float64) (book.Side, book.Price, book.Quantity) {
	side := m.SampleSide(false)
	qty := m.sampleQty(m.cfg.LimitQtyMin, m.cfg.LimitQtyMax)

	passiveLevel := 1 + m.rng.Int63n(m.cfg.LimitLevels)
	var priceTicks float64
	if side == book.SideBid {
		priceTicks = midTicks - float64(passiveLevel)
		if m.rng.Float64() < m.cfg.MarketableLimitProb {
			priceTicks = midTicks + 1
		}
	} else {
		priceTicks = midTicks + float64(passiveLevel)
		if m.rng.Float64() < m.cfg.MarketableLimitProb {
			priceTicks = midTicks - 1
		}
	}
	return side, book.Price(math.Round(priceTicks)), qty
}

// SampleMarket draws an uninformed market order.
func (m *Model) SampleMarket() (book.Side, book.Quantity) {
	side := m.SampleSide(true)
	return side, m.sampleQty(m.cfg.MarketQtyMin, m.cfg.MarketQtyMax)
}

// ShouldSendInformed decides whether the next market arrival is informed.
func (m *Model) ShouldSendInformed() bool {
	return m.rng.Float64() < clip(m.cfg.PInformed, 0, 1)
}

// SampleInformedMarket draws an informed market order: direction from the
// persistent signal regime, size scaled up versus ordinary market orders.
func (m *Model) SampleInformedMarket() (book.Side, book.Quantity, int) {
	signal := m.SampleSignal()
	side := book.SideAsk
	if signal > 0 {
		side = book.SideBid
	}
	baseQty := m.sampleQty(m.cfg.MarketQtyMin, m.cfg.MarketQtyMax)
	qty := book.Quantity(math.Round(float64(baseQty) * m.cfg.InformedQtyMult))
	if qty < 1 {
		qty = 1
	}
	return side, qty, signal
}

// SampleSignal advances the slowly-switching signal regime and returns its
// current direction. The sign flips with a small per-call probability, so
// consecutive informed orders tend to point the same way.
func (m *Model) SampleSignal() int {
	if m.rng.Float64() < m.cfg.SignalFlipProb {
		m.signal = -m.signal
	}
	return m.signal
}

// SampleExogenousSignal is an independent fair coin for the unconditioned
// fundamental-jump direction.
func (m *Model) SampleExogenousSignal() int {
	if m.rng.Float64() < 0.5 {
		return 1
	}
	return -1
}

// SampleSide draws BID with probability derived from the configured
// imbalance; market orders additionally honor the legacy trend-bias path.
func (m *Model) SampleSide(isMarket bool) book.Side {
	imbalance := clip(m.cfg.Imbalance, -1, 1)
	pBuy := 0.5 + 0.5*imbalance

	if isMarket && m.cfg.InformedMarketBias > 0 {
		if m.rng.Float64() < m.cfg.TrendFlipProb {
			m.trend = -m.trend
		}
		pBuy += m.cfg.InformedMarketBias * float64(m.trend)
	}

	pBuy = clip(pBuy, 0.01, 0.99)
	if m.rng.Float64() < pBuy {
		return book.SideBid
	}
	return book.SideAsk
}

func (m *Model) sampleQty(low, high int64) book.Quantity {
	return book.Quantity(low + m.rng.Int63n(high-low+1))
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
