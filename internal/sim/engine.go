// Package sim runs the event-driven market simulation: a discrete-event
// clock over a min-heap of scheduled arrivals, dispatching into the order
// book, the flow model, and the market-making agent. One seed fully
// determines a run; two runs with equal configs produce identical Results.
package sim

import (
	"math"
	"math/rand"

	"github.com/yanun0323/errors"

	"main/internal/book"
	"main/internal/flow"
	"main/internal/maker"
)

// Simulator owns all mutable run state. It is single-goroutine by design:
// the event loop is the only writer, and the shared generator gives every
// stochastic component one deterministic draw sequence.
type Simulator struct {
	cfg Config
	rng *rand.Rand

	lob     *book.Book
	factory *book.Factory
	flow    *flow.Model
	agent   *maker.Agent

	now              float64
	seq              uint64
	events           eventQueue
	eventCount       int
	lastRefreshEvent int

	trades    []book.Trade
	snapshots []Snapshot

	baseTicks        float64
	lastMidTicks     float64
	fundamentalTicks int64
}

// New builds a simulator from a validated config.
func New(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "simulator config")
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	baseTicks := math.Round(cfg.BasePrice / cfg.TickSize)

	return &Simulator{
		cfg:              cfg,
		rng:              rng,
		lob:              book.New(),
		factory:          book.NewFactory(),
		flow:             flow.NewModel(rng, cfg.Flow),
		agent:            maker.New(cfg.MarketMaker, cfg.TickSize),
		baseTicks:        baseTicks,
		lastMidTicks:     baseTicks,
		fundamentalTicks: int64(baseTicks),
	}, nil
}

// Run executes the simulation until the event queue drains or the clock
// passes EndTime, and returns the full recorded Result.
func (s *Simulator) Run() (*Result, error) {
	if err := s.seedBook(); err != nil {
		return nil, err
	}
	// The agent starts with resting quotes; latency then controls cadence.
	if err := s.refreshQuotes(); err != nil {
		return nil, err
	}
	s.scheduleInitialEvents()
	s.snapshot("INIT")

	for s.events.Len() > 0 {
		ev := s.events.pop()
		if ev.ts > s.cfg.EndTime {
			break
		}

		s.now = ev.ts
		s.eventCount++
		snapshotEvent := ev.typ.String()
		mmRefreshed := false
		adaptApplied := false

		var err error
		switch ev.typ {
		case EventLimitArrival:
			err = s.handleLimitArrival()
			s.schedule(EventLimitArrival, s.flow.NextTime(s.now, s.cfg.Flow.LimitRate), nil)

		case EventMarketArrival:
			err = s.handleMarketArrival()
			s.schedule(EventMarketArrival, s.flow.NextTime(s.now, s.cfg.Flow.MarketRate), nil)

		case EventCancelArrival:
			s.handleCancelArrival()
			s.schedule(EventCancelArrival, s.flow.NextTime(s.now, s.cfg.Flow.CancelRate), nil)

		case EventFundamentalMove:
			err = s.handleFundamentalMove(ev.move)
			if err == nil && ev.move != nil && ev.move.Source == MoveExogenous {
				s.scheduleNextExogenousMove()
			}

		case EventToxicMove:
			// Accepted for old saved event streams only.
			err = s.handleFundamentalMove(ev.move)

		case EventMMQuoteUpdate:
			// Legacy timer-based refresh, active only when K <= 0.
			if s.cfg.MMUpdateEveryKEvents <= 0 {
				err = s.refreshQuotes()
				s.schedule(EventMMQuoteUpdate, s.flow.NextTime(s.now, s.cfg.MMUpdateRate), nil)
				mmRefreshed = true
			}
		}
		if err != nil {
			return nil, err
		}

		if k := s.cfg.MMUpdateEveryKEvents; k > 0 {
			if s.eventCount%k == 0 {
				if err := s.refreshQuotes(); err != nil {
					return nil, err
				}
				mmRefreshed = true
			}
		}

		if s.cfg.EnvironmentMode == ModeV2SlowAdapt {
			applied, err := s.applySlowAdaptation()
			if err != nil {
				return nil, err
			}
			adaptApplied = applied
		}

		if mmRefreshed {
			snapshotEvent += "|MM_REFRESH"
		}
		if adaptApplied {
			snapshotEvent += "|FUND_ADAPT"
		}
		s.snapshot(snapshotEvent)
	}

	return &Result{
		Snapshots: s.snapshots,
		Trades:    s.trades,
		MMFills:   s.agent.Fills,
		Config:    s.cfg,
	}, nil
}

// seedBook rests symmetric initial depth around the base price so the first
// arrivals see a two-sided market. The innermost level sits
// InitialDepthLevels ticks from the base, so N levels of depth open an
// initial spread of 2N ticks.
func (s *Simulator) seedBook() error {
	for lvl := 1; lvl <= s.cfg.InitialDepthLevels; lvl++ {
		offset := book.Price(s.cfg.InitialDepthLevels + lvl - 1)
		bidPx := book.Price(s.baseTicks) - offset
		askPx := book.Price(s.baseTicks) + offset

		bid, err := s.factory.Limit(0, book.SideBid, bidPx, book.Quantity(s.cfg.InitialDepthQty), book.OwnerFlow)
		if err != nil {
			return errors.Wrap(err, "seed bid")
		}
		ask, err := s.factory.Limit(0, book.SideAsk, askPx, book.Quantity(s.cfg.InitialDepthQty), book.OwnerFlow)
		if err != nil {
			return errors.Wrap(err, "seed ask")
		}

		s.processTrades(s.lob.AddOrder(bid))
		s.processTrades(s.lob.AddOrder(ask))
	}
	return nil
}

func (s *Simulator) scheduleInitialEvents() {
	s.schedule(EventLimitArrival, s.flow.NextTime(0, s.cfg.Flow.LimitRate), nil)
	s.schedule(EventMarketArrival, s.flow.NextTime(0, s.cfg.Flow.MarketRate), nil)
	s.schedule(EventCancelArrival, s.flow.NextTime(0, s.cfg.Flow.CancelRate), nil)

	if s.cfg.MMUpdateEveryKEvents <= 0 {
		s.schedule(EventMMQuoteUpdate, s.flow.NextTime(0, s.cfg.MMUpdateRate), nil)
	}

	s.scheduleNextExogenousMove()
}

func (s *Simulator) scheduleNextExogenousMove() {
	t := s.flow.NextTime(s.now, s.cfg.Flow.FundamentalRate)
	if math.IsInf(t, 1) {
		return
	}

	jump := s.cfg.Flow.FundamentalJumpTicks
	if jump < 1 {
		jump = 1
	}
	s.schedule(EventFundamentalMove, t, &FundamentalMove{
		Source:    MoveExogenous,
		Signal:    s.flow.SampleExogenousSignal(),
		JumpTicks: jump,
	})
}

func (s *Simulator) schedule(typ EventType, ts float64, move *FundamentalMove) {
	if math.IsInf(ts, 0) || math.IsNaN(ts) {
		return
	}
	s.events.push(&event{ts: ts, seq: s.seq, typ: typ, move: move})
	s.seq++
}

func (s *Simulator) handleLimitArrival() error {
	side, price, qty := s.flow.SampleLimit(s.midTicks())
	o, err := s.factory.Limit(s.now, side, price, qty, book.OwnerFlow)
	if err != nil {
		return errors.Wrap(err, "limit arrival")
	}
	s.processTrades(s.lob.AddOrder(o))
	return nil
}

func (s *Simulator) handleMarketArrival() error {
	var (
		side  book.Side
		qty   book.Quantity
		owner = book.OwnerFlow
	)

	if s.flow.ShouldSendInformed() {
		var signal int
		side, qty, signal = s.flow.SampleInformedMarket()
		owner = book.OwnerInformed

		// The latent fundamental catches up shortly after the informed
		// order trades, making the flow genuinely predictive.
		delay := s.cfg.Flow.ToxicMoveDelay
		if delay < 0 {
			delay = 0
		}
		jump := s.cfg.Flow.ToxicJumpTicks
		if jump < 1 {
			jump = 1
		}
		s.schedule(EventFundamentalMove, s.now+delay, &FundamentalMove{
			Source:    MoveInformed,
			Signal:    signal,
			JumpTicks: jump,
		})
	} else {
		side, qty = s.flow.SampleMarket()
	}

	o, err := s.factory.Market(s.now, side, qty, owner)
	if err != nil {
		return errors.Wrap(err, "market arrival")
	}
	s.processTrades(s.lob.AddOrder(o))
	return nil
}

func (s *Simulator) handleCancelArrival() {
	candidates := s.lob.OpenOrdersBy(book.OwnerFlow)
	if len(candidates) == 0 {
		return
	}
	s.lob.Cancel(candidates[s.rng.Intn(len(candidates))])
}

// refreshQuotes cancels the agent's resting quotes and re-quotes around the
// current mid. A quote that crosses on entry trades immediately and is not
// tracked for its filled part; only resting remainders stay active.
func (s *Simulator) refreshQuotes() error {
	for _, id := range s.agent.ActiveIDs() {
		s.lob.Cancel(id)
		s.agent.Untrack(id)
	}

	bb, haveBid := s.lob.BestBid()
	ba, haveAsk := s.lob.BestAsk()
	quotes := s.agent.MakeQuotes(s.midTicks(), bb, ba, haveBid, haveAsk)

	for _, q := range []struct {
		side  book.Side
		price book.Price
	}{
		{book.SideBid, quotes.Bid},
		{book.SideAsk, quotes.Ask},
	} {
		o, err := s.factory.Limit(s.now, q.side, q.price, quotes.Qty, book.OwnerMM)
		if err != nil {
			return errors.Wrap(err, "quote refresh")
		}
		s.processTrades(s.lob.AddOrder(o))
		if o.Qty > 0 {
			s.agent.Track(o.ID)
		}
	}

	s.lastRefreshEvent = s.eventCount
	return nil
}

func (s *Simulator) handleFundamentalMove(move *FundamentalMove) error {
	if move == nil {
		// Events replayed without a payload fall back to a fresh
		// exogenous draw at the configured jump size.
		move = &FundamentalMove{
			Source:    MoveExogenous,
			Signal:    s.flow.SampleExogenousSignal(),
			JumpTicks: s.cfg.Flow.FundamentalJumpTicks,
		}
	}

	signal := 1
	if move.Signal < 0 {
		signal = -1
	}
	jump := move.JumpTicks
	if jump < 1 {
		jump = 1
	}

	s.fundamentalTicks += int64(signal) * jump

	// v1 applies immediate impact after the latent signal, so the visible
	// market tracks the fundamental tick for tick.
	if s.cfg.EnvironmentMode == ModeV1Control {
		return s.applyImmediateImpact(signal, jump, move.Source)
	}
	return nil
}

// applyImmediateImpact sends a market order sized to sweep the book through
// the jumped fundamental, scaled down by ToxicImpactFraction.
func (s *Simulator) applyImmediateImpact(signal int, jumpTicks int64, source MoveSource) error {
	baseQty := s.qtyToForceJump(signal, jumpTicks)
	if baseQty <= 0 {
		return nil
	}

	impact := clip(s.cfg.Flow.ToxicImpactFraction, 0, 1)
	if impact <= 0 {
		return nil
	}

	qty := book.Quantity(math.Round(float64(baseQty) * impact))
	if qty < 1 {
		qty = 1
	}
	if qty > baseQty {
		qty = baseQty
	}

	side := book.SideAsk
	if signal > 0 {
		side = book.SideBid
	}
	owner := book.OwnerFundamentalImpact
	if source == MoveInformed {
		owner = book.OwnerLatentMove
	}

	o, err := s.factory.Market(s.now, side, qty, owner)
	if err != nil {
		return errors.Wrap(err, "fundamental impact")
	}
	s.processTrades(s.lob.AddOrder(o))
	return nil
}

// applySlowAdaptation probabilistically nudges the visible market toward the
// fundamental when the two diverge by at least one tick. The order size is
// capped so convergence takes several events rather than one sweep.
func (s *Simulator) applySlowAdaptation() (bool, error) {
	gapTicks := float64(s.fundamentalTicks) - s.midTicks()
	if math.Abs(gapTicks) < 1 {
		return false, nil
	}

	if s.rng.Float64() >= clip(s.cfg.Flow.SlowAdaptProb, 0, 1) {
		return false, nil
	}

	signal := 1
	side := book.SideBid
	if gapTicks < 0 {
		signal = -1
		side = book.SideAsk
	}

	oneTickQty := s.qtyToForceJump(signal, 1)
	if oneTickQty <= 0 {
		return false, nil
	}

	gap := int64(math.Abs(gapTicks))
	if gap < 1 {
		gap = 1
	}
	if gap > 5 {
		gap = 5
	}
	maxQty := s.cfg.Flow.SlowAdaptMaxQty
	if maxQty < 1 {
		maxQty = 1
	}
	qty := book.Quantity(maxQty * gap)
	if qty > oneTickQty {
		qty = oneTickQty
	}
	if qty < 1 {
		qty = 1
	}

	o, err := s.factory.Market(s.now, side, qty, book.OwnerFundAdapt)
	if err != nil {
		return false, errors.Wrap(err, "slow adaptation")
	}
	s.processTrades(s.lob.AddOrder(o))
	return true, nil
}

// qtyToForceJump sizes a market order that would clear every resting level
// strictly inside jumpTicks beyond the current best on the taken side.
func (s *Simulator) qtyToForceJump(signal int, jumpTicks int64) book.Quantity {
	if signal > 0 {
		ba, ok := s.lob.BestAsk()
		if !ok {
			return 0
		}
		return s.lob.DepthBetter(book.SideAsk, ba+book.Price(jumpTicks))
	}

	bb, ok := s.lob.BestBid()
	if !ok {
		return 0
	}
	return s.lob.DepthBetter(book.SideBid, bb-book.Price(jumpTicks))
}

func (s *Simulator) processTrades(trades []book.Trade) {
	if len(trades) == 0 {
		return
	}
	s.trades = append(s.trades, trades...)
	for _, t := range trades {
		s.agent.OnTrade(t)
	}
}

// midTicks is the current mid, falling back to the last defined mid while
// either side of the book is empty.
func (s *Simulator) midTicks() float64 {
	if mid, ok := s.lob.MidTicks(); ok {
		s.lastMidTicks = mid
		return mid
	}
	return s.lastMidTicks
}

func (s *Simulator) snapshot(eventType string) {
	tick := s.cfg.TickSize
	mid := s.midTicks()
	midPx := mid * tick
	fundamentalPx := float64(s.fundamentalTicks) * tick

	var bestBid, bestAsk, spread *float64
	if bb, ok := s.lob.BestBid(); ok {
		px := float64(bb) * tick
		bestBid = &px
	}
	if ba, ok := s.lob.BestAsk(); ok {
		px := float64(ba) * tick
		bestAsk = &px
	}
	if sp, ok := s.lob.SpreadTicks(); ok {
		px := float64(sp) * tick
		spread = &px
	}

	bidDepth, askDepth := s.lob.TopDepth()

	s.snapshots = append(s.snapshots, Snapshot{
		Timestamp:            s.now,
		EventType:            eventType,
		EventIdx:             s.eventCount,
		BestBid:              bestBid,
		BestAsk:              bestAsk,
		Spread:               spread,
		MidPrice:             midPx,
		FundamentalPrice:     fundamentalPx,
		FundamentalGap:       fundamentalPx - midPx,
		TopBidDepth:          int64(bidDepth),
		TopAskDepth:          int64(askDepth),
		MMInventory:          s.agent.Inventory,
		MMCash:               s.agent.Cash,
		MMRealizedPnL:        s.agent.Realized,
		MMUnrealizedPnL:      s.agent.UnrealizedPnL(midPx),
		MMPnL:                s.agent.TotalPnL(midPx),
		MMMtmPnL:             s.agent.MarkToMarket(midPx),
		EventsSinceMMRefresh: s.eventCount - s.lastRefreshEvent,
	})
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
