package sim

import (
	"main/internal/book"
	"main/internal/maker"
)

// Snapshot captures full book and agent state after one processed event.
// The EventType tag carries "|MM_REFRESH" / "|FUND_ADAPT" suffixes when
// those side effects fired during the same event. Best bid/ask and spread
// are nil while the corresponding book side is empty.
type Snapshot struct {
	Timestamp float64 `json:"timestamp"`
	EventType string  `json:"event_type"`
	EventIdx  int     `json:"event_idx"`

	BestBid *float64 `json:"best_bid"`
	BestAsk *float64 `json:"best_ask"`
	Spread  *float64 `json:"spread"`

	MidPrice         float64 `json:"mid_price"`
	FundamentalPrice float64 `json:"fundamental_price"`
	FundamentalGap   float64 `json:"fundamental_gap"`

	TopBidDepth int64 `json:"top_bid_depth"`
	TopAskDepth int64 `json:"top_ask_depth"`

	MMInventory     int64   `json:"mm_inventory"`
	MMCash          float64 `json:"mm_cash"`
	MMRealizedPnL   float64 `json:"mm_realized_pnl"`
	MMUnrealizedPnL float64 `json:"mm_unrealized_pnl"`
	MMPnL           float64 `json:"mm_pnl"`
	MMMtmPnL        float64 `json:"mm_mtm_pnl"`

	EventsSinceMMRefresh int `json:"events_since_mm_refresh"`
}

// Result is the output of one run: the ordered snapshot, trade, and agent
// fill sequences plus the resolved configuration. Nothing in a Result is
// mutated after Run returns.
type Result struct {
	Snapshots []Snapshot   `json:"snapshots"`
	Trades    []book.Trade `json:"trades"`
	MMFills   []maker.Fill `json:"mm_fills"`
	Config    Config       `json:"config"`
}
