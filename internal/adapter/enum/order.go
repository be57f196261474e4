package enum

// OrderSide buy, sell
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_order_side_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus is the closed status taxonomy; raw venue strings are mapped
// into it at the driver boundary and never travel further.
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusUnknown
	OrderStatusOpen
	OrderStatusFilled
	OrderStatusTriggered
	OrderStatusCanceled
	OrderStatusRejected
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

// IsTerminal reports whether the order can no longer change on the venue.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusTriggered, OrderStatusCanceled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOpen:
		return "OPEN"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusTriggered:
		return "TRIGGERED"
	case OrderStatusCanceled:
		return "CANCELED"
	case OrderStatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// OrderKind limit, market, stop market, take profit market
type OrderKind uint8

const (
	_order_kind_beg OrderKind = iota
	OrderKindUnknown
	OrderKindLimit
	OrderKindMarket
	OrderKindStopMarket
	OrderKindTakeProfitMarket
	_order_kind_end
)

func (k OrderKind) IsAvailable() bool {
	return k > _order_kind_beg && k < _order_kind_end
}

// IsTrigger reports whether the kind fires off a trigger price.
func (k OrderKind) IsTrigger() bool {
	return k == OrderKindStopMarket || k == OrderKindTakeProfitMarket
}

func (k OrderKind) String() string {
	switch k {
	case OrderKindLimit:
		return "LIMIT"
	case OrderKindMarket:
		return "MARKET"
	case OrderKindStopMarket:
		return "STOP_MARKET"
	case OrderKindTakeProfitMarket:
		return "TAKE_PROFIT_MARKET"
	default:
		return "UNKNOWN"
	}
}

// PositionSide long, short
type PositionSide uint8

const (
	_position_side_beg PositionSide = iota
	PositionSideLong
	PositionSideShort
	_position_side_end
)

func (s PositionSide) IsAvailable() bool {
	return s > _position_side_beg && s < _position_side_end
}

func (s PositionSide) String() string {
	switch s {
	case PositionSideLong:
		return "LONG"
	case PositionSideShort:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}
