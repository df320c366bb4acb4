package sim

import (
	"github.com/yanun0323/errors"

	"main/internal/flow"
	"main/internal/maker"
)

// Environment modes. v1 forces the visible market to follow every
// fundamental move instantly through impact orders; v2 lets the market drift
// toward the fundamental through the probabilistic slow-adaptation rule.
const (
	ModeV1Control   = "v1_control"
	ModeV2SlowAdapt = "v2_slow_adapt"
)

// Config is the full run configuration. Nested sections default
// independently; the loader rejects unknown keys outright.
type Config struct {
	Seed      int64   `json:"seed"`
	EndTime   float64 `json:"end_time"`
	BasePrice float64 `json:"base_price"`
	TickSize  float64 `json:"tick_size"`

	// MMUpdateEveryKEvents > 0 refreshes quotes every K processed events;
	// K <= 0 switches to the legacy timer-based refresh at MMUpdateRate.
	// Exactly one refresh mechanism is active per run.
	MMUpdateRate         float64 `json:"mm_update_rate"`
	MMUpdateEveryKEvents int     `json:"mm_update_every_k_events"`

	EnvironmentMode string  `json:"environment_mode"`
	AdverseHorizon  float64 `json:"adverse_horizon"`

	InitialDepthLevels int   `json:"initial_depth_levels"`
	InitialDepthQty    int64 `json:"initial_depth_qty"`

	Flow        flow.Config  `json:"flow"`
	MarketMaker maker.Config `json:"market_maker"`
}

// DefaultConfig returns the baseline run configuration.
func DefaultConfig() Config {
	return Config{
		Seed:                 7,
		EndTime:              300.0,
		BasePrice:            100.0,
		TickSize:             0.01,
		MMUpdateRate:         4.0,
		MMUpdateEveryKEvents: 1,
		EnvironmentMode:      ModeV1Control,
		AdverseHorizon:       1.0,
		InitialDepthLevels:   3,
		InitialDepthQty:      20,
		Flow:                 flow.DefaultConfig(),
		MarketMaker:          maker.DefaultConfig(),
	}
}

// Validate checks the top-level config and both sub-configs.
func (c Config) Validate() error {
	if c.EndTime <= 0 {
		return errors.New("end_time must be > 0")
	}
	if c.TickSize <= 0 {
		return errors.New("tick_size must be > 0")
	}
	if c.BasePrice <= 0 {
		return errors.New("base_price must be > 0")
	}
	if c.EnvironmentMode != ModeV1Control && c.EnvironmentMode != ModeV2SlowAdapt {
		return errors.Errorf("unknown environment_mode %q", c.EnvironmentMode)
	}
	if c.AdverseHorizon < 0 {
		return errors.New("adverse_horizon must be >= 0")
	}
	if c.InitialDepthLevels < 0 {
		return errors.New("initial_depth_levels must be >= 0")
	}
	if c.InitialDepthLevels > 0 && c.InitialDepthQty <= 0 {
		return errors.New("initial_depth_qty must be > 0")
	}
	if err := c.Flow.Validate(); err != nil {
		return errors.Wrap(err, "flow config")
	}
	if err := c.MarketMaker.Validate(); err != nil {
		return errors.Wrap(err, "market_maker config")
	}
	return nil
}
