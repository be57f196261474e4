package venue

import (
	"context"

	"main/internal/adapter"
	"main/internal/adapter/enum"
)

// Channel names for the private push feed.
const (
	ChannelOrders    = "orders"
	ChannelPositions = "positions"
	ChannelAccount   = "account"
)

// Driver is the wire adapter one venue implements. It owns signing, URLs and
// payload quirks; everything above it speaks canonical records only.
type Driver interface {
	Venue() enum.Venue

	FetchSymbolConfigs(ctx context.Context) (map[string]adapter.SymbolConfig, error)
	FetchOpenOrders(ctx context.Context) ([]RawOrder, error)
	FetchOpenPositions(ctx context.Context) ([]adapter.Position, error)
	FetchAccountSummary(ctx context.Context) (adapter.AccountSummary, error)
	FetchMarkPrice(ctx context.Context, symbol string) (float64, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// Subscribe attaches a callback to one private channel. The callback
	// runs on the driver's read goroutine and must only hand the event
	// off; it never mutates shared state.
	Subscribe(ctx context.Context, channel string, handler func(StreamEvent)) (unsubscribe func(), err error)
}

// StreamEvent is one normalized push from a venue's private feed.
type StreamEvent struct {
	Venue     enum.Venue
	Channel   string
	Orders    []RawOrder
	Positions []adapter.Position
	Account   *adapter.AccountSummary
}

// OrderRequest is a mutating order call in canonical terms.
type OrderRequest struct {
	Symbol        string
	Side          enum.OrderSide
	Kind          enum.OrderKind
	Size          float64
	LimitPrice    float64
	TriggerPrice  float64
	ReduceOnly    bool
	Tpsl          bool // ask the venue to attach the order to the position
	ClientOrderID string
}

// OrderResult is the venue's acknowledgment of a mutating call.
type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Status        enum.OrderStatus
}
