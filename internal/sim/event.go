package sim

import "container/heap"

// EventType tags one scheduled simulation event.
type EventType uint8

const (
	EventLimitArrival EventType = iota
	EventMarketArrival
	EventCancelArrival
	EventMMQuoteUpdate
	EventFundamentalMove
	// EventToxicMove is deprecated; kept for replay compatibility with old
	// saved streams and handled identically to EventFundamentalMove.
	EventToxicMove
)

func (t EventType) String() string {
	switch t {
	case EventLimitArrival:
		return "LIMIT_ARRIVAL"
	case EventMarketArrival:
		return "MARKET_ARRIVAL"
	case EventCancelArrival:
		return "CANCEL_ARRIVAL"
	case EventMMQuoteUpdate:
		return "MM_QUOTE_UPDATE"
	case EventFundamentalMove:
		return "FUNDAMENTAL_MOVE"
	case EventToxicMove:
		return "TOXIC_MOVE"
	default:
		return "UNKNOWN"
	}
}

// MoveSource distinguishes why a fundamental move was scheduled.
type MoveSource uint8

const (
	MoveExogenous MoveSource = iota
	MoveInformed
)

func (s MoveSource) String() string {
	switch s {
	case MoveExogenous:
		return "exogenous"
	case MoveInformed:
		return "informed"
	default:
		return "unknown"
	}
}

// FundamentalMove is the payload of fundamental-move events. Only these
// events carry a payload; the variant holds exactly the fields it needs.
type FundamentalMove struct {
	Source    MoveSource
	Signal    int
	JumpTicks int64
}

// event is one queue entry. Events are transient: created on scheduling,
// discarded on dispatch.
type event struct {
	ts   float64
	seq  uint64
	typ  EventType
	move *FundamentalMove
}

// eventQueue is a min-heap ordered by (timestamp, insertion sequence).
// The sequence tie-break keeps same-timestamp dispatch deterministic.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].ts != q[j].ts {
		return q[i].ts < q[j].ts
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

func (q *eventQueue) push(e *event) { heap.Push(q, e) }

func (q *eventQueue) pop() *event { return heap.Pop(q).(*event) }
