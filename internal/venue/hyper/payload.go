package hyper

import (
	"math"
	"strconv"

	"github.com/yanun0323/decimal"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/venue"
)

type metaResponse struct {
	Universe []universeEntry `json:"universe"`
}

type universeEntry struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	PxDecimals  int    `json:"pxDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
	MaxOrderSz  string `json:"maxOrderSz"`
	MinOrderSz  string `json:"minOrderSz"`
}

func (e universeEntry) symbolConfig() adapter.SymbolConfig {
	pxDecimals := e.PxDecimals
	if pxDecimals <= 0 {
		// price precision defaults to five significant figures past the
		// size precision
		pxDecimals = 6 - e.SzDecimals
		if pxDecimals < 0 {
			pxDecimals = 0
		}
	}
	cfg := adapter.SymbolConfig{
		Symbol:      e.Name,
		TickSize:    math.Pow10(-pxDecimals),
		StepSize:    math.Pow10(-e.SzDecimals),
		MaxLeverage: float64(e.MaxLeverage),
	}
	if v, err := strconv.ParseFloat(e.MaxOrderSz, 64); err == nil {
		cfg.MaxOrderSize = v
	}
	if v, err := strconv.ParseFloat(e.MinOrderSz, 64); err == nil {
		cfg.MinOrderSize = v
	}
	return cfg
}

type hyperOrder struct {
	Coin           string          `json:"coin"`
	Oid            int64           `json:"oid"`
	Cloid          string          `json:"cloid"`
	Side           string          `json:"side"` // B bid, A ask
	LimitPx        decimal.Decimal `json:"limitPx"`
	Sz             decimal.Decimal `json:"sz"`
	OrigSz         decimal.Decimal `json:"origSz"`
	TriggerPx      decimal.Decimal `json:"triggerPx"`
	OrderType      string          `json:"orderType"`
	IsPositionTpsl bool            `json:"isPositionTpsl"`
	ReduceOnly     bool            `json:"reduceOnly"`
	Timestamp      int64           `json:"timestamp"`
}

type orderStatusUpdate struct {
	Order  hyperOrder `json:"order"`
	Status string     `json:"status"`
}

type clearinghouseState struct {
	AssetPositions []struct {
		Position struct {
			Coin          string          `json:"coin"`
			Szi           decimal.Decimal `json:"szi"` // signed size
			EntryPx       decimal.Decimal `json:"entryPx"`
			UnrealizedPnl decimal.Decimal `json:"unrealizedPnl"`
		} `json:"position"`
	} `json:"assetPositions"`
	MarginSummary struct {
		AccountValue    decimal.Decimal `json:"accountValue"`
		TotalMarginUsed decimal.Decimal `json:"totalMarginUsed"`
	} `json:"marginSummary"`
	Withdrawable decimal.Decimal `json:"withdrawable"`
}

type placeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Data struct {
			Statuses []struct {
				Resting *struct {
					Oid   int64  `json:"oid"`
					Cloid string `json:"cloid"`
				} `json:"resting"`
				Filled *struct {
					Oid int64 `json:"oid"`
				} `json:"filled"`
				Error string `json:"error"`
			} `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

func dec(d decimal.Decimal) float64 {
	v, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

func orderKind(orderType string) enum.OrderKind {
	switch orderType {
	case "Limit":
		return enum.OrderKindLimit
	case "Market":
		return enum.OrderKindMarket
	case "Stop Market":
		return enum.OrderKindStopMarket
	case "Take Profit Market":
		return enum.OrderKindTakeProfitMarket
	default:
		return enum.OrderKindUnknown
	}
}

func orderStatus(status string) enum.OrderStatus {
	switch status {
	case "", "open", "resting":
		return enum.OrderStatusOpen
	case "filled":
		return enum.OrderStatusFilled
	case "triggered":
		return enum.OrderStatusTriggered
	case "canceled", "marginCanceled":
		return enum.OrderStatusCanceled
	case "rejected":
		return enum.OrderStatusRejected
	default:
		return enum.OrderStatusUnknown
	}
}

func rawOrder(o hyperOrder, status string) venue.RawOrder {
	side := enum.OrderSideBuy
	if o.Side == "A" {
		side = enum.OrderSideSell
	}

	origSz := dec(o.OrigSz)
	restSz := dec(o.Sz)
	filled := origSz - restSz
	if filled < 0 {
		filled = 0
	}

	var orderID string
	if o.Oid != 0 {
		orderID = strconv.FormatInt(o.Oid, 10)
	}

	return venue.RawOrder{
		Order: adapter.Order{
			Venue:         enum.VenueHyper,
			Symbol:        o.Coin,
			OrderID:       orderID,
			ClientOrderID: o.Cloid,
			Side:          side,
			Status:        orderStatus(status),
			Kind:          orderKind(o.OrderType),
			ReduceOnly:    enum.TristateOf(o.ReduceOnly),
			Size:          origSz,
			FilledSize:    filled,
			LimitPrice:    dec(o.LimitPx),
			TriggerPrice:  dec(o.TriggerPx),
			TpslFlag:      enum.TristateOf(o.IsPositionTpsl),
		},
		Fields: map[string]any{
			"triggerPx":      o.TriggerPx.String(),
			"isPositionTpsl": o.IsPositionTpsl,
			"orderType":      o.OrderType,
		},
	}
}

func positions(state clearinghouseState) []adapter.Position {
	out := make([]adapter.Position, 0, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		szi := dec(ap.Position.Szi)
		if szi == 0 {
			continue
		}
		side := enum.PositionSideLong
		size := szi
		if szi < 0 {
			side = enum.PositionSideShort
			size = -szi
		}
		pnl := dec(ap.Position.UnrealizedPnl)
		out = append(out, adapter.Position{
			Symbol:        ap.Position.Coin,
			Side:          side,
			Size:          size,
			EntryPrice:    dec(ap.Position.EntryPx),
			UnrealizedPnl: &pnl,
		})
	}
	return out
}

func accountSummary(state clearinghouseState) adapter.AccountSummary {
	return adapter.AccountSummary{
		Venue:        enum.VenueHyper,
		Equity:       dec(state.MarginSummary.AccountValue),
		MarginUsed:   dec(state.MarginSummary.TotalMarginUsed),
		Withdrawable: dec(state.Withdrawable),
	}
}
