package enum

// EventType orders, orders_raw, positions, account
type EventType uint8

const (
	_event_type_beg EventType = iota
	EventOrders
	EventOrdersRaw
	EventPositions
	EventAccount
	_event_type_end
)

func (t EventType) IsAvailable() bool {
	return t > _event_type_beg && t < _event_type_end
}

func (t EventType) String() string {
	switch t {
	case EventOrders:
		return "orders"
	case EventOrdersRaw:
		return "orders_raw"
	case EventPositions:
		return "positions"
	case EventAccount:
		return "account"
	default:
		return "unknown"
	}
}
