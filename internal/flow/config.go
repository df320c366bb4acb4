package flow

import "github.com/yanun0323/errors"

// Config controls the stochastic order-flow process. Field names mirror the
// flow section of the run configuration file.
type Config struct {
	LimitRate  float64 `json:"limit_rate"`
	MarketRate float64 `json:"market_rate"`
	CancelRate float64 `json:"cancel_rate"`
	Imbalance  float64 `json:"imbalance"`

	LimitLevels  int64 `json:"limit_levels"`
	LimitQtyMin  int64 `json:"limit_qty_min"`
	LimitQtyMax  int64 `json:"limit_qty_max"`
	MarketQtyMin int64 `json:"market_qty_min"`
	MarketQtyMax int64 `json:"market_qty_max"`

	MarketableLimitProb float64 `json:"marketable_limit_prob"`

	// Legacy directional-bias controls kept for old config compatibility.
	// Superseded by PInformed when that is nonzero.
	InformedMarketBias float64 `json:"informed_market_bias"`
	TrendFlipProb      float64 `json:"trend_flip_prob"`

	// Predictive informed-flow controls.
	PInformed           float64 `json:"p_informed"`
	InformedQtyMult     float64 `json:"informed_qty_mult"`
	SignalFlipProb      float64 `json:"signal_flip_prob"`
	ToxicMoveDelay      float64 `json:"toxic_move_delay"`
	ToxicJumpTicks      int64   `json:"toxic_jump_ticks"`
	ToxicImpactFraction float64 `json:"toxic_impact_fraction"`

	// Exogenous latent fundamental process (disabled in v1 by default).
	FundamentalRate      float64 `json:"fundamental_rate"`
	FundamentalJumpTicks int64   `json:"fundamental_jump_ticks"`

	// v2 slow-adaptation layer: the market drifts toward the fundamental
	// over many events instead of jumping.
	SlowAdaptProb   float64 `json:"slow_adapt_prob"`
	SlowAdaptMaxQty int64   `json:"slow_adapt_max_qty"`
}

// DefaultConfig returns the baseline flow parameters.
func DefaultConfig() Config {
	return Config{
		LimitRate:            25.0,
		MarketRate:           12.0,
		CancelRate:           8.0,
		Imbalance:            0.0,
		LimitLevels:          4,
		LimitQtyMin:          1,
		LimitQtyMax:          6,
		MarketQtyMin:         1,
		MarketQtyMax:         4,
		MarketableLimitProb:  0.1,
		InformedMarketBias:   0.0,
		TrendFlipProb:        0.02,
		PInformed:            0.0,
		InformedQtyMult:      1.8,
		SignalFlipProb:       0.02,
		ToxicMoveDelay:       0.05,
		ToxicJumpTicks:       1,
		ToxicImpactFraction:  1.0,
		FundamentalRate:      0.0,
		FundamentalJumpTicks: 1,
		SlowAdaptProb:        0.35,
		SlowAdaptMaxQty:      4,
	}
}

// Validate checks the parts of the config that clipping cannot repair.
func (c Config) Validate() error {
	if c.LimitLevels <= 0 {
		return errors.New("limit_levels must be >= 1")
	}
	if c.LimitQtyMin <= 0 || c.LimitQtyMax < c.LimitQtyMin {
		return errors.Errorf("invalid limit qty range [%d, %d]", c.LimitQtyMin, c.LimitQtyMax)
	}
	if c.MarketQtyMin <= 0 || c.MarketQtyMax < c.MarketQtyMin {
		return errors.Errorf("invalid market qty range [%d, %d]", c.MarketQtyMin, c.MarketQtyMax)
	}
	if c.ToxicMoveDelay < 0 {
		return errors.New("toxic_move_delay must be >= 0")
	}
	return nil
}
