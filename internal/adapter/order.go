package adapter

import (
	"hash/fnv"
	"strconv"
	"time"

	"main/internal/adapter/enum"
)

// Order is the venue-agnostic order record. Drivers map their wire shapes
// into it; nothing downstream ever sees a raw venue status string.
type Order struct {
	Venue         enum.Venue
	Symbol        string
	OrderID       string // exchange-assigned, may be empty
	ClientOrderID string // caller-assigned idempotency key, may be empty
	Side          enum.OrderSide
	Status        enum.OrderStatus
	Kind          enum.OrderKind
	ReduceOnly    enum.Tristate
	Size          float64
	FilledSize    float64
	LimitPrice    float64
	TriggerPrice  float64
	TpslFlag      enum.Tristate // venue-native "attached to position" marker
	ObservedAt    time.Time
}

// IdentityKey returns the stable identity of the logical order: exchange id
// when assigned, else the client id, else a deterministic fingerprint so that
// duplicate pushes of the same logical order collapse to one entry.
func (o Order) IdentityKey() string {
	if o.OrderID != "" {
		return o.OrderID
	}
	if o.ClientOrderID != "" {
		return o.ClientOrderID
	}
	return o.fingerprint()
}

func (o Order) fingerprint() string {
	size := o.Size
	if size < 0 {
		size = -size
	}
	h := fnv.New64a()
	h.Write([]byte(o.Venue.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(o.Symbol))
	h.Write([]byte{'|'})
	h.Write([]byte(o.Side.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(o.Kind.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatFloat(o.TriggerPrice, 'f', -1, 64)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatFloat(size, 'f', -1, 64)))
	return "fp:" + strconv.FormatUint(h.Sum64(), 16)
}
