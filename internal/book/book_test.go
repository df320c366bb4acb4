package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLimit(t *testing.T, f *Factory, ts float64, side Side, price Price, qty Quantity, owner Owner) *Order {
	t.Helper()
	o, err := f.Limit(ts, side, price, qty, owner)
	require.NoError(t, err)
	return o
}

func mustMarket(t *testing.T, f *Factory, ts float64, side Side, qty Quantity, owner Owner) *Order {
	t.Helper()
	o, err := f.Market(ts, side, qty, owner)
	require.NoError(t, err)
	return o
}

func TestFactoryContract(t *testing.T) {
	f := NewFactory()

	_, err := f.Limit(0, SideBid, 0, 5, OwnerFlow)
	assert.ErrorIs(t, err, ErrNoLimitPrice)

	_, err = f.Limit(0, SideBid, 100, 0, OwnerFlow)
	assert.ErrorIs(t, err, ErrNonPositiveQty)

	_, err = f.Market(0, SideAsk, -3, OwnerFlow)
	assert.ErrorIs(t, err, ErrNonPositiveQty)

	a := mustLimit(t, f, 0, SideBid, 100, 1, OwnerFlow)
	b := mustLimit(t, f, 0, SideBid, 100, 1, OwnerFlow)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestBestPricesAndMid(t *testing.T) {
	f := NewFactory()
	b := New()

	_, ok := b.MidTicks()
	assert.False(t, ok)

	b.AddOrder(mustLimit(t, f, 0, SideBid, 9997, 20, OwnerFlow))
	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10003, 20, OwnerFlow))

	bb, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, Price(9997), bb)

	ba, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Price(10003), ba)

	mid, ok := b.MidTicks()
	require.True(t, ok)
	assert.InDelta(t, 10000.0, mid, 1e-12)

	spread, ok := b.SpreadTicks()
	require.True(t, ok)
	assert.Equal(t, Price(6), spread)

	bidQty, askQty := b.TopDepth()
	assert.Equal(t, Quantity(20), bidQty)
	assert.Equal(t, Quantity(20), askQty)
}

func TestRestingBookNeverCrossed(t *testing.T) {
	f := NewFactory()
	b := New()

	b.AddOrder(mustLimit(t, f, 0, SideBid, 9998, 10, OwnerFlow))
	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10002, 10, OwnerFlow))
	// crossing ask trades through the bid instead of resting below it
	b.AddOrder(mustLimit(t, f, 1, SideAsk, 9995, 4, OwnerFlow))

	bb, okB := b.BestBid()
	ba, okA := b.BestAsk()
	require.True(t, okB)
	require.True(t, okA)
	assert.Less(t, bb, ba)
}

func TestCrossingLimitPartialFill(t *testing.T) {
	f := NewFactory()
	b := New()

	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10003, 20, OwnerFlow))

	trades := b.AddOrder(mustLimit(t, f, 1, SideBid, 10003, 5, OwnerFlow))
	require.Len(t, trades, 1)
	assert.Equal(t, Price(10003), trades[0].Price)
	assert.Equal(t, Quantity(5), trades[0].Qty)
	assert.Equal(t, SideBid, trades[0].TakerSide)

	_, askQty := b.TopDepth()
	assert.Equal(t, Quantity(15), askQty)

	// fully-filled taker does not rest
	_, ok := b.OrderQty(trades[0].TakerOrderID)
	assert.False(t, ok)
}

func TestFIFOWithinLevel(t *testing.T) {
	f := NewFactory()
	b := New()

	first := mustLimit(t, f, 0, SideAsk, 10001, 5, OwnerFlow)
	second := mustLimit(t, f, 1, SideAsk, 10001, 5, OwnerFlow)
	b.AddOrder(first)
	b.AddOrder(second)

	trades := b.AddOrder(mustMarket(t, f, 2, SideBid, 7, OwnerFlow))
	require.Len(t, trades, 2)
	assert.Equal(t, first.ID, trades[0].MakerOrderID)
	assert.Equal(t, Quantity(5), trades[0].Qty)
	assert.Equal(t, second.ID, trades[1].MakerOrderID)
	assert.Equal(t, Quantity(2), trades[1].Qty)

	remaining, ok := b.OrderQty(second.ID)
	require.True(t, ok)
	assert.Equal(t, Quantity(3), remaining)
}

func TestMarketOrderExceedingDepthDropsRemainder(t *testing.T) {
	f := NewFactory()
	b := New()

	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10001, 5, OwnerFlow))
	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10002, 5, OwnerFlow))

	trades := b.AddOrder(mustMarket(t, f, 1, SideBid, 25, OwnerFlow))
	var filled Quantity
	for _, tr := range trades {
		filled += tr.Qty
	}
	assert.Equal(t, Quantity(10), filled)

	// remainder vanished: ask side empty, nothing rested on the bid side
	_, ok := b.BestAsk()
	assert.False(t, ok)
	_, ok = b.BestBid()
	assert.False(t, ok)
	assert.Empty(t, b.OpenOrders())
}

func TestLimitTakerStopsAtItsPrice(t *testing.T) {
	f := NewFactory()
	b := New()

	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10001, 5, OwnerFlow))
	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10004, 5, OwnerFlow))

	taker := mustLimit(t, f, 1, SideBid, 10002, 8, OwnerFlow)
	trades := b.AddOrder(taker)
	require.Len(t, trades, 1)
	assert.Equal(t, Price(10001), trades[0].Price)

	// unfilled remainder rests at the taker's own limit
	qty, ok := b.OrderQty(taker.ID)
	require.True(t, ok)
	assert.Equal(t, Quantity(3), qty)
	bb, _ := b.BestBid()
	assert.Equal(t, Price(10002), bb)
}

func TestCancelIdempotence(t *testing.T) {
	f := NewFactory()
	b := New()

	o := mustLimit(t, f, 0, SideBid, 9999, 5, OwnerFlow)
	b.AddOrder(o)

	assert.True(t, b.Cancel(o.ID))
	assert.False(t, b.Cancel(o.ID))
	assert.False(t, b.Cancel(OrderID(424242)))

	_, ok := b.BestBid()
	assert.False(t, ok)
}

func TestCancelKeepsLevelTotalsConsistent(t *testing.T) {
	f := NewFactory()
	b := New()

	keep := mustLimit(t, f, 0, SideBid, 9999, 5, OwnerFlow)
	gone := mustLimit(t, f, 1, SideBid, 9999, 7, OwnerFlow)
	b.AddOrder(keep)
	b.AddOrder(gone)

	require.True(t, b.Cancel(gone.ID))
	bidQty, _ := b.TopDepth()
	assert.Equal(t, Quantity(5), bidQty)
}

func TestOpenOrdersByOwnerSortedAscending(t *testing.T) {
	f := NewFactory()
	b := New()

	b.AddOrder(mustLimit(t, f, 0, SideBid, 9995, 1, OwnerFlow))
	b.AddOrder(mustLimit(t, f, 0, SideBid, 9996, 1, OwnerMM))
	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10005, 1, OwnerFlow))
	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10006, 1, OwnerMM))

	flow := b.OpenOrdersBy(OwnerFlow)
	require.Len(t, flow, 2)
	assert.Less(t, flow[0], flow[1])

	all := b.OpenOrders()
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1], all[i])
	}
}

func TestDepthBetter(t *testing.T) {
	f := NewFactory()
	b := New()

	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10001, 5, OwnerFlow))
	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10002, 7, OwnerFlow))
	b.AddOrder(mustLimit(t, f, 0, SideAsk, 10003, 11, OwnerFlow))
	b.AddOrder(mustLimit(t, f, 0, SideBid, 9999, 3, OwnerFlow))
	b.AddOrder(mustLimit(t, f, 0, SideBid, 9998, 9, OwnerFlow))

	assert.Equal(t, Quantity(12), b.DepthBetter(SideAsk, 10003))
	assert.Equal(t, Quantity(23), b.DepthBetter(SideAsk, 10004))
	assert.Equal(t, Quantity(3), b.DepthBetter(SideBid, 9998))
	assert.Equal(t, Quantity(12), b.DepthBetter(SideBid, 9997))
	assert.Equal(t, Quantity(0), b.DepthBetter(SideAsk, 10001))
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "BID", SideBid.String())
	assert.Equal(t, "ASK", SideAsk.String())
	assert.Equal(t, SideAsk, SideBid.Opposite())
	assert.Equal(t, "LIMIT", KindLimit.String())
	assert.Equal(t, "MARKET", KindMarket.String())
	assert.Equal(t, "INFORMED", OwnerInformed.String())
	assert.Equal(t, "FUND_ADAPT", OwnerFundAdapt.String())
}
