// Package analytics condenses a finished run into a flat summary report:
// flow imbalance, terminal state, average spread, and the adverse-selection
// markout statistics over the agent's fills.
package analytics

import (
	"sort"

	"github.com/yanun0323/errors"

	"main/internal/book"
	"main/internal/sim"
)

// Report is the per-run summary. Markout fields are zero when the agent
// never traded.
type Report struct {
	Events        float64 `json:"events"`
	Trades        float64 `json:"trades"`
	FlowImbalance float64 `json:"flow_imbalance"`

	FinalMid            float64 `json:"final_mid"`
	FinalFundamental    float64 `json:"final_fundamental"`
	FinalFundamentalGap float64 `json:"final_fundamental_gap"`
	FinalInventory      float64 `json:"final_inventory"`
	FinalRealizedPnL    float64 `json:"final_realized_pnl"`
	FinalUnrealizedPnL  float64 `json:"final_unrealized_pnl"`
	FinalPnL            float64 `json:"final_pnl"`
	FinalMtmPnL         float64 `json:"final_mtm_pnl"`

	AvgSpread      float64 `json:"avg_spread"`
	MarkoutHorizon float64 `json:"markout_horizon"`

	MMFills                float64 `json:"mm_fills"`
	AvgMarkout             float64 `json:"avg_markout"`
	AvgAdverseMove         float64 `json:"avg_adverse_move"`
	AdverseFillRatio       float64 `json:"adverse_fill_ratio"`
	AdverseSelectionMetric float64 `json:"adverse_selection_metric"`
}

// Build summarizes a run. The markout of each fill is the signed mid move
// over the horizon from the fill's perspective: positive when the market
// moved with the agent, negative when the fill was adversely selected.
func Build(result *sim.Result, adverseHorizon float64) (Report, error) {
	if result == nil || len(result.Snapshots) == 0 {
		return Report{}, errors.New("no snapshots captured")
	}

	snapshots := result.Snapshots
	last := snapshots[len(snapshots)-1]

	report := Report{
		Events:              float64(len(snapshots)),
		Trades:              float64(len(result.Trades)),
		FlowImbalance:       flowImbalance(result.Trades),
		FinalMid:            last.MidPrice,
		FinalFundamental:    last.FundamentalPrice,
		FinalFundamentalGap: last.FundamentalGap,
		FinalInventory:      float64(last.MMInventory),
		FinalRealizedPnL:    last.MMRealizedPnL,
		FinalUnrealizedPnL:  last.MMUnrealizedPnL,
		FinalPnL:            last.MMPnL,
		FinalMtmPnL:         last.MMMtmPnL,
		AvgSpread:           avgSpread(snapshots),
		MarkoutHorizon:      adverseHorizon,
	}

	if len(result.MMFills) == 0 {
		return report, nil
	}

	fills := make([]int, len(result.MMFills))
	for i := range fills {
		fills[i] = i
	}
	sort.SliceStable(fills, func(i, j int) bool {
		return result.MMFills[fills[i]].Timestamp < result.MMFills[fills[j]].Timestamp
	})

	times := make([]float64, len(snapshots))
	mids := make([]float64, len(snapshots))
	for i, snap := range snapshots {
		times[i] = snap.Timestamp
		mids[i] = snap.MidPrice
	}

	var markoutSum float64
	adverseCount := 0
	for _, idx := range fills {
		fill := result.MMFills[idx]
		midNow := midAt(fill.Timestamp, times, mids)
		futureMid := midAt(fill.Timestamp+adverseHorizon, times, mids)
		markout := float64(fill.Direction) * (futureMid - midNow)

		markoutSum += markout
		if markout < 0 {
			adverseCount++
		}
	}

	n := float64(len(fills))
	report.MMFills = n
	report.AvgMarkout = markoutSum / n
	report.AvgAdverseMove = -markoutSum / n
	report.AdverseFillRatio = float64(adverseCount) / n
	report.AdverseSelectionMetric = markoutSum / n
	return report, nil
}

func flowImbalance(trades []book.Trade) float64 {
	var buy, sell int64
	for _, t := range trades {
		if t.TakerSide == book.SideBid {
			buy += int64(t.Qty)
		} else {
			sell += int64(t.Qty)
		}
	}
	if buy+sell == 0 {
		return 0
	}
	return float64(buy-sell) / float64(buy+sell)
}

func avgSpread(snapshots []sim.Snapshot) float64 {
	var sum float64
	n := 0
	for _, snap := range snapshots {
		if snap.Spread != nil {
			sum += *snap.Spread
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// midAt linearly interpolates the mid path at the given timestamp, clamping
// to the first and last observed mids outside the recorded range.
func midAt(ts float64, times, mids []float64) float64 {
	if ts <= times[0] {
		return mids[0]
	}
	last := len(times) - 1
	if ts >= times[last] {
		return mids[last]
	}
	idx := sort.SearchFloat64s(times, ts)
	if times[idx] == ts {
		return mids[idx]
	}
	t0, t1 := times[idx-1], times[idx]
	m0, m1 := mids[idx-1], mids[idx]
	if t1 == t0 {
		return m0
	}
	return m0 + (m1-m0)*(ts-t0)/(t1-t0)
}
