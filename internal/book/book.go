package book

import "sort"

// level is a FIFO queue of resting order IDs at one price, with a cached
// quantity total. A level is dropped from its side the moment it empties.
type level struct {
	price Price
	queue []OrderID
	total Quantity
}

// bookSide holds one side's levels plus an ascending price index.
// Bid-side best is the last price, ask-side best is the first.
type bookSide struct {
	side   Side
	levels map[Price]*level
	prices []Price
}

func newBookSide(side Side) *bookSide {
	return &bookSide{
		side:   side,
		levels: make(map[Price]*level),
	}
}

func (bs *bookSide) best() (Price, bool) {
	if len(bs.prices) == 0 {
		return 0, false
	}
	if bs.side == SideBid {
		return bs.prices[len(bs.prices)-1], true
	}
	return bs.prices[0], true
}

func (bs *bookSide) getOrCreateLevel(price Price) *level {
	if l, ok := bs.levels[price]; ok {
		return l
	}
	l := &level{price: price}
	bs.levels[price] = l
	idx := sort.Search(len(bs.prices), func(i int) bool { return bs.prices[i] >= price })
	bs.prices = append(bs.prices, 0)
	copy(bs.prices[idx+1:], bs.prices[idx:])
	bs.prices[idx] = price
	return l
}

func (bs *bookSide) removeLevel(price Price) {
	delete(bs.levels, price)
	idx := sort.Search(len(bs.prices), func(i int) bool { return bs.prices[i] >= price })
	if idx < len(bs.prices) && bs.prices[idx] == price {
		bs.prices = append(bs.prices[:idx], bs.prices[idx+1:]...)
	}
}

// Book is a FIFO limit order book with price-time priority and partial fills.
// It owns every resting order exclusively: the order table is the single
// arena, price levels refer to orders by ID only.
type Book struct {
	bids   *bookSide
	asks   *bookSide
	orders map[OrderID]*Order
}

// New returns an empty book.
func New() *Book {
	return &Book{
		bids:   newBookSide(SideBid),
		asks:   newBookSide(SideAsk),
		orders: make(map[OrderID]*Order),
	}
}

// AddOrder submits an order. Market orders and crossing limit orders match
// first; any unfilled limit remainder rests at its price. Unfilled market
// quantity is dropped.
func (b *Book) AddOrder(o *Order) []Trade {
	var trades []Trade
	if o.Kind == KindMarket || b.isMarketable(o) {
		trades = b.match(o)
	}
	if o.Kind == KindLimit && o.Qty > 0 {
		b.addResting(o)
	}
	return trades
}

// Cancel removes a resting order by ID. Unknown IDs are a benign no-op and
// return false: a cancel may race an earlier fill within the same tick.
func (b *Book) Cancel(id OrderID) bool {
	o, ok := b.orders[id]
	if !ok {
		return false
	}
	side := b.sideFor(o.Side)
	l := side.levels[o.Price]
	for i, qid := range l.queue {
		if qid == id {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			l.total -= o.Qty
			break
		}
	}
	delete(b.orders, id)
	if len(l.queue) == 0 {
		side.removeLevel(o.Price)
	}
	return true
}

// BestBid returns the highest resting bid price.
func (b *Book) BestBid() (Price, bool) { return b.bids.best() }

// BestAsk returns the lowest resting ask price.
func (b *Book) BestAsk() (Price, bool) { return b.asks.best() }

// MidTicks returns the mid price in (possibly fractional) ticks. It is
// undefined while either side is empty.
func (b *Book) MidTicks() (float64, bool) {
	bb, okB := b.bids.best()
	ba, okA := b.asks.best()
	if !okB || !okA {
		return 0, false
	}
	return (float64(bb) + float64(ba)) / 2, true
}

// SpreadTicks returns best ask minus best bid, undefined while either side
// is empty.
func (b *Book) SpreadTicks() (Price, bool) {
	bb, okB := b.bids.best()
	ba, okA := b.asks.best()
	if !okB || !okA {
		return 0, false
	}
	return ba - bb, true
}

// TopDepth returns the total resting quantity at the best price of each side.
func (b *Book) TopDepth() (bidQty, askQty Quantity) {
	if p, ok := b.bids.best(); ok {
		bidQty = b.bids.levels[p].total
	}
	if p, ok := b.asks.best(); ok {
		askQty = b.asks.levels[p].total
	}
	return bidQty, askQty
}

// DepthBetter sums resting quantity strictly inside the target price on the
// given side: ask levels below target, bid levels above target. Used to size
// market orders that must sweep a fixed number of ticks.
func (b *Book) DepthBetter(side Side, target Price) Quantity {
	bs := b.sideFor(side)
	var qty Quantity
	if side == SideAsk {
		for _, p := range bs.prices {
			if p >= target {
				break
			}
			qty += bs.levels[p].total
		}
		return qty
	}
	for i := len(bs.prices) - 1; i >= 0; i-- {
		p := bs.prices[i]
		if p <= target {
			break
		}
		qty += bs.levels[p].total
	}
	return qty
}

// OrderQty reports the remaining quantity of a resting order.
func (b *Book) OrderQty(id OrderID) (Quantity, bool) {
	o, ok := b.orders[id]
	if !ok {
		return 0, false
	}
	return o.Qty, true
}

// OpenOrders lists every resting order ID in ascending order. The ordering
// keeps any sampling over the result deterministic.
func (b *Book) OpenOrders() []OrderID {
	ids := make([]OrderID, 0, len(b.orders))
	for id := range b.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OpenOrdersBy lists resting order IDs with the given owner, ascending.
func (b *Book) OpenOrdersBy(owner Owner) []OrderID {
	ids := make([]OrderID, 0, len(b.orders))
	for id, o := range b.orders {
		if o.Owner == owner {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b *Book) sideFor(s Side) *bookSide {
	if s == SideBid {
		return b.bids
	}
	return b.asks
}

func (b *Book) isMarketable(o *Order) bool {
	if o.Kind == KindMarket {
		return true
	}
	if o.Side == SideBid {
		if ba, ok := b.asks.best(); ok {
			return o.Price >= ba
		}
		return false
	}
	if bb, ok := b.bids.best(); ok {
		return o.Price <= bb
	}
	return false
}

// match walks the opposing side from best price outward, filling strictly in
// FIFO order within each level. A limit taker stops once the best opposing
// price no longer crosses its limit.
func (b *Book) match(taker *Order) []Trade {
	var trades []Trade
	makerSide := b.sideFor(taker.Side.Opposite())

	for taker.Qty > 0 {
		bestPrice, ok := makerSide.best()
		if !ok {
			break
		}
		if taker.Kind == KindLimit {
			if taker.Side == SideBid && taker.Price < bestPrice {
				break
			}
			if taker.Side == SideAsk && taker.Price > bestPrice {
				break
			}
		}

		l := makerSide.levels[bestPrice]
		for taker.Qty > 0 && len(l.queue) > 0 {
			maker := b.orders[l.queue[0]]
			fill := taker.Qty
			if maker.Qty < fill {
				fill = maker.Qty
			}
			maker.Qty -= fill
			taker.Qty -= fill
			l.total -= fill

			trades = append(trades, Trade{
				Timestamp:    taker.Timestamp,
				Price:        bestPrice,
				Qty:          fill,
				TakerOrderID: taker.ID,
				MakerOrderID: maker.ID,
				TakerOwner:   taker.Owner,
				MakerOwner:   maker.Owner,
				TakerSide:    taker.Side,
			})

			if maker.Qty == 0 {
				l.queue = l.queue[1:]
				delete(b.orders, maker.ID)
			}
		}
		if len(l.queue) == 0 {
			makerSide.removeLevel(bestPrice)
		}
	}
	return trades
}

func (b *Book) addResting(o *Order) {
	side := b.sideFor(o.Side)
	l := side.getOrCreateLevel(o.Price)
	l.queue = append(l.queue, o.ID)
	l.total += o.Qty
	b.orders[o.ID] = o
}
