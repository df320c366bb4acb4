package book

import "github.com/yanun0323/errors"

// Price is an integer number of ticks. Conversion to currency units happens
// only at the snapshot and accounting boundary.
type Price int64

// Quantity is a number of units. Resting quantity is always > 0.
type Quantity int64

// OrderID identifies one order for the lifetime of a run. IDs are never reused.
type OrderID uint64

// Side describes order direction.
type Side uint8

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "BID"
	case SideAsk:
		return "ASK"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// OrderKind describes order type.
type OrderKind uint8

const (
	KindLimit OrderKind = iota
	KindMarket
)

func (k OrderKind) String() string {
	switch k {
	case KindLimit:
		return "LIMIT"
	case KindMarket:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

// Owner tags the economic actor that generated an order. The set is closed;
// downstream attribution matches on it exhaustively.
type Owner uint8

const (
	OwnerFlow Owner = iota
	OwnerMM
	OwnerInformed
	OwnerFundamentalImpact
	OwnerLatentMove
	OwnerFundAdapt
)

func (o Owner) String() string {
	switch o {
	case OwnerFlow:
		return "FLOW"
	case OwnerMM:
		return "MM"
	case OwnerInformed:
		return "INFORMED"
	case OwnerFundamentalImpact:
		return "FUNDAMENTAL_IMPACT"
	case OwnerLatentMove:
		return "LATENT_MOVE"
	case OwnerFundAdapt:
		return "FUND_ADAPT"
	default:
		return "UNKNOWN"
	}
}

// Order is a single order. Qty is the remaining quantity and is decremented
// in place by matching while the order rests inside the book.
type Order struct {
	ID        OrderID
	Timestamp float64
	Side      Side
	Kind      OrderKind
	Price     Price // limit only
	Qty       Quantity
	Owner     Owner
}

// Trade records one match. Trades are never mutated after creation.
type Trade struct {
	Timestamp    float64
	Price        Price
	Qty          Quantity
	TakerOrderID OrderID
	MakerOrderID OrderID
	TakerOwner   Owner
	MakerOwner   Owner
	TakerSide    Side
}

var (
	ErrNonPositiveQty = errors.New("order qty must be positive")
	ErrNoLimitPrice   = errors.New("limit order requires a positive price")
)

// Factory issues orders with unique monotonically increasing IDs.
type Factory struct {
	next OrderID
}

// NewFactory returns a factory starting at ID 1.
func NewFactory() *Factory {
	return &Factory{}
}

// Limit builds a limit order, enforcing the construction contract.
func (f *Factory) Limit(ts float64, side Side, price Price, qty Quantity, owner Owner) (*Order, error) {
	if qty <= 0 {
		return nil, ErrNonPositiveQty
	}
	if price <= 0 {
		return nil, ErrNoLimitPrice
	}
	f.next++
	return &Order{
		ID:        f.next,
		Timestamp: ts,
		Side:      side,
		Kind:      KindLimit,
		Price:     price,
		Qty:       qty,
		Owner:     owner,
	}, nil
}

// Market builds a market order, enforcing the construction contract.
func (f *Factory) Market(ts float64, side Side, qty Quantity, owner Owner) (*Order, error) {
	if qty <= 0 {
		return nil, ErrNonPositiveQty
	}
	f.next++
	return &Order{
		ID:        f.next,
		Timestamp: ts,
		Side:      side,
		Kind:      KindMarket,
		Qty:       qty,
		Owner:     owner,
	}, nil
}
