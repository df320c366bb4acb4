// Package maker implements the automated market-making agent: symmetric
// inventory-skewed quoting around the mid plus weighted-average-cost position
// accounting over the fills attributed to it.
package maker

import (
	"math"

	"github.com/yanun0323/errors"

	"main/internal/book"
)

// Config controls quoting behavior.
type Config struct {
	HalfSpreadTicks int64   `json:"half_spread_ticks"`
	QuoteQty        int64   `json:"quote_qty"`
	InventorySkew   float64 `json:"inventory_skew"`
}

// DefaultConfig returns the baseline market-maker parameters.
func DefaultConfig() Config {
	return Config{
		HalfSpreadTicks: 1,
		QuoteQty:        3,
		InventorySkew:   0.002,
	}
}

// Validate checks quoting parameters.
func (c Config) Validate() error {
	if c.HalfSpreadTicks < 0 {
		return errors.New("half_spread_ticks must be >= 0")
	}
	if c.QuoteQty < 1 {
		return errors.New("quote_qty must be >= 1")
	}
	return nil
}

// Fill is one attributed trade: Direction is +1 when the agent bought,
// -1 when it sold. Price is in currency units.
type Fill struct {
	Timestamp float64 `json:"timestamp"`
	Side      string  `json:"side"`
	Direction int     `json:"mm_side"`
	Price     float64 `json:"price"`
	Qty       int64   `json:"qty"`
}

// Quotes is one bid/ask pair, in ticks.
type Quotes struct {
	Bid book.Price
	Ask book.Price
	Qty book.Quantity
}

// Agent tracks inventory, cash, and realized P&L under a
// weighted-average-cost model. Cash and prices are in currency units;
// quote prices are in ticks.
type Agent struct {
	cfg  Config
	tick float64

	Inventory   int64
	Cash        float64
	InitialCash float64
	AvgEntry    float64
	Realized    float64

	// ids of the agent's currently-resting quotes; at most one per side
	Active map[book.OrderID]struct{}
	Fills  []Fill
}

// New builds a flat agent.
func New(cfg Config, tickSize float64) *Agent {
	return &Agent{
		cfg:    cfg,
		tick:   tickSize,
		Active: make(map[book.OrderID]struct{}),
	}
}

// MakeQuotes computes the next bid/ask pair in ticks: symmetric around the
// mid at the configured half spread, skewed against inventory so fills tend
// to flatten the position, then clamped one tick away from the opposing best
// so the agent never crosses or locks the book. If clamping collapses the
// pair, it falls back to a minimal one-tick-wide quote around the mid.
func (a *Agent) MakeQuotes(midTicks float64, bestBid, bestAsk book.Price, haveBid, haveAsk bool) Quotes {
	halfSpread := float64(a.cfg.HalfSpreadTicks)
	skewTicks := a.cfg.InventorySkew * float64(a.Inventory) / a.tick

	bid := book.Price(math.Round(midTicks - halfSpread - skewTicks))
	ask := book.Price(math.Round(midTicks + halfSpread - skewTicks))

	if haveAsk && bid > bestAsk-1 {
		bid = bestAsk - 1
	}
	if haveBid && ask < bestBid+1 {
		ask = bestBid + 1
	}

	if bid >= ask {
		bid = book.Price(math.Round(midTicks - 1))
		ask = book.Price(math.Round(midTicks + 1))
	}

	return Quotes{Bid: bid, Ask: ask, Qty: book.Quantity(a.cfg.QuoteQty)}
}

// Track registers a resting quote id; Untrack forgets it after cancel.
func (a *Agent) Track(id book.OrderID)   { a.Active[id] = struct{}{} }
func (a *Agent) Untrack(id book.OrderID) { delete(a.Active, id) }

// ActiveIDs returns the agent's resting quote ids in ascending order.
func (a *Agent) ActiveIDs() []book.OrderID {
	ids := make([]book.OrderID, 0, len(a.Active))
	for id := range a.Active {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// OnTrade attributes the trade to the agent when it is taker or maker, and
// applies the fill to cash and position. Trades of other actors are ignored.
func (a *Agent) OnTrade(t book.Trade) {
	switch {
	case t.TakerOwner == book.OwnerMM:
		a.applyFill(t.Timestamp, t.TakerSide, t.Price, t.Qty)
	case t.MakerOwner == book.OwnerMM:
		a.applyFill(t.Timestamp, t.TakerSide.Opposite(), t.Price, t.Qty)
	}
}

// UnrealizedPnL marks the open position against the given mid (currency
// units).
func (a *Agent) UnrealizedPnL(mid float64) float64 {
	switch {
	case a.Inventory > 0:
		return (mid - a.AvgEntry) * float64(a.Inventory)
	case a.Inventory < 0:
		return (a.AvgEntry - mid) * float64(-a.Inventory)
	default:
		return 0
	}
}

// TotalPnL is realized plus unrealized P&L.
func (a *Agent) TotalPnL(mid float64) float64 {
	return a.Realized + a.UnrealizedPnL(mid)
}

// MarkToMarket is the independent cash-based P&L cross-check. For correct
// accounting it reconciles with TotalPnL at every snapshot.
func (a *Agent) MarkToMarket(mid float64) float64 {
	return a.Cash + float64(a.Inventory)*mid - a.InitialCash
}

func (a *Agent) applyFill(ts float64, side book.Side, price book.Price, qty book.Quantity) {
	px := float64(price) * a.tick
	sign := -1
	if side == book.SideBid {
		sign = 1
	}

	if side == book.SideBid {
		a.Cash -= px * float64(qty)
	} else {
		a.Cash += px * float64(qty)
	}

	a.updatePosition(sign, int64(qty), px)
	a.Fills = append(a.Fills, Fill{
		Timestamp: ts,
		Side:      side.String(),
		Direction: sign,
		Price:     px,
		Qty:       int64(qty),
	})
}

func (a *Agent) updatePosition(sign int, qty int64, px float64) {
	signed := int64(sign) * qty

	if a.Inventory == 0 {
		a.Inventory = signed
		a.AvgEntry = px
		return
	}

	if a.Inventory*signed > 0 {
		// same direction: extend and re-average the entry price
		currentAbs := absInt64(a.Inventory)
		newAbs := currentAbs + qty
		a.AvgEntry = (a.AvgEntry*float64(currentAbs) + px*float64(qty)) / float64(newAbs)
		a.Inventory += signed
		return
	}

	// opposite direction: close against the average entry, then open any
	// remainder at the fill price
	closeQty := absInt64(a.Inventory)
	if qty < closeQty {
		closeQty = qty
	}
	if a.Inventory > 0 {
		a.Realized += (px - a.AvgEntry) * float64(closeQty)
	} else {
		a.Realized += (a.AvgEntry - px) * float64(closeQty)
	}

	a.Inventory += int64(sign) * closeQty
	remaining := qty - closeQty

	if a.Inventory == 0 {
		a.AvgEntry = 0
	}
	if remaining > 0 {
		a.Inventory = int64(sign) * remaining
		a.AvgEntry = px
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
