package bitget

import (
	"math"
	"strconv"

	"github.com/yanun0323/decimal"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/venue"
)

const _productType = "USDT-FUTURES"

// apiResponse is the envelope every REST endpoint shares.
type apiResponse[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

func (r apiResponse[T]) ok() bool {
	return r.Code == "00000"
}

type contractEntry struct {
	Symbol      string `json:"symbol"`
	PricePlace  string `json:"pricePlace"`
	VolumePlace string `json:"volumePlace"`
	MinTradeNum string `json:"minTradeNum"`
	MaxLever    string `json:"maxLever"`
}

func (e contractEntry) symbolConfig() adapter.SymbolConfig {
	cfg := adapter.SymbolConfig{Symbol: e.Symbol}
	if places, err := strconv.Atoi(e.PricePlace); err == nil {
		cfg.TickSize = math.Pow10(-places)
	}
	if places, err := strconv.Atoi(e.VolumePlace); err == nil {
		cfg.StepSize = math.Pow10(-places)
	}
	if v, err := strconv.ParseFloat(e.MinTradeNum, 64); err == nil {
		cfg.MinOrderSize = v
	}
	if v, err := strconv.ParseFloat(e.MaxLever, 64); err == nil {
		cfg.MaxLeverage = v
	}
	return cfg
}

type pendingOrders struct {
	EntrustedList []bitgetOrder `json:"entrustedList"`
}

type bitgetOrder struct {
	Symbol                 string          `json:"symbol"`
	OrderID                string          `json:"orderId"`
	ClientOid              string          `json:"clientOid"`
	Side                   string          `json:"side"`
	OrderType              string          `json:"orderType"`
	PlanType               string          `json:"planType"`
	Status                 string          `json:"status"`
	Size                   decimal.Decimal `json:"size"`
	BaseVolume             decimal.Decimal `json:"baseVolume"` // filled size
	Price                  decimal.Decimal `json:"price"`
	TriggerPrice           decimal.Decimal `json:"triggerPrice"`
	PresetStopSurplusPrice decimal.Decimal `json:"presetStopSurplusPrice"`
	PresetStopLossPrice    decimal.Decimal `json:"presetStopLossPrice"`
	ReduceOnly             string          `json:"reduceOnly"` // YES / NO
}

type positionEntry struct {
	Symbol       string          `json:"symbol"`
	HoldSide     string          `json:"holdSide"` // long / short
	Total        decimal.Decimal `json:"total"`
	OpenPriceAvg decimal.Decimal `json:"openPriceAvg"`
	UnrealizedPL decimal.Decimal `json:"unrealizedPL"`
}

type accountEntry struct {
	MarginCoin     string          `json:"marginCoin"`
	AccountEquity  decimal.Decimal `json:"accountEquity"`
	Locked         decimal.Decimal `json:"locked"`
	Available      decimal.Decimal `json:"available"`
	UnrealizedPL   decimal.Decimal `json:"unrealizedPL"`
	CrossedMargin  decimal.Decimal `json:"crossedMarginLeverage"`
	IsolatedMargin decimal.Decimal `json:"isolatedMarginLeverage"`
}

type tickerEntry struct {
	Symbol    string          `json:"symbol"`
	MarkPrice decimal.Decimal `json:"markPrice"`
	LastPr    decimal.Decimal `json:"lastPr"`
}

type placeData struct {
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
}

func dec(d decimal.Decimal) float64 {
	v, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

func orderKind(orderType, planType string) enum.OrderKind {
	switch planType {
	case "profit_plan", "pos_profit":
		return enum.OrderKindTakeProfitMarket
	case "loss_plan", "pos_loss":
		return enum.OrderKindStopMarket
	}
	switch orderType {
	case "limit":
		return enum.OrderKindLimit
	case "market":
		return enum.OrderKindMarket
	default:
		return enum.OrderKindUnknown
	}
}

func orderStatus(status string) enum.OrderStatus {
	switch status {
	case "live", "new", "partially_filled", "not_trigger":
		return enum.OrderStatusOpen
	case "filled", "executed":
		return enum.OrderStatusFilled
	case "executing", "triggered":
		return enum.OrderStatusTriggered
	case "cancelled", "canceled":
		return enum.OrderStatusCanceled
	case "fail_execute", "rejected":
		return enum.OrderStatusRejected
	default:
		return enum.OrderStatusUnknown
	}
}

// isPositionTpsl reports whether the plan type marks the order as attached
// to the position rather than a standalone trigger.
func isPositionTpsl(planType string) bool {
	switch planType {
	case "profit_plan", "loss_plan", "pos_profit", "pos_loss":
		return true
	default:
		return false
	}
}

func rawOrder(o bitgetOrder) venue.RawOrder {
	side := enum.OrderSideBuy
	if o.Side == "sell" {
		side = enum.OrderSideSell
	}

	reduceOnly := enum.TristateUnknown
	switch o.ReduceOnly {
	case "YES", "yes", "true":
		reduceOnly = enum.TristateTrue
	case "NO", "no", "false":
		reduceOnly = enum.TristateFalse
	}

	return venue.RawOrder{
		Order: adapter.Order{
			Venue:         enum.VenueBitget,
			Symbol:        o.Symbol,
			OrderID:       o.OrderID,
			ClientOrderID: o.ClientOid,
			Side:          side,
			Status:        orderStatus(o.Status),
			Kind:          orderKind(o.OrderType, o.PlanType),
			ReduceOnly:    reduceOnly,
			Size:          dec(o.Size),
			FilledSize:    dec(o.BaseVolume),
			LimitPrice:    dec(o.Price),
			TriggerPrice:  dec(o.TriggerPrice),
			TpslFlag:      enum.TristateOf(isPositionTpsl(o.PlanType)),
		},
		Fields: map[string]any{
			"triggerPrice":           o.TriggerPrice.String(),
			"presetStopSurplusPrice": o.PresetStopSurplusPrice.String(),
			"presetStopLossPrice":    o.PresetStopLossPrice.String(),
			"planType":               o.PlanType,
		},
	}
}

func position(p positionEntry) adapter.Position {
	side := enum.PositionSideLong
	if p.HoldSide == "short" {
		side = enum.PositionSideShort
	}
	pnl := dec(p.UnrealizedPL)
	return adapter.Position{
		Symbol:        p.Symbol,
		Side:          side,
		Size:          dec(p.Total),
		EntryPrice:    dec(p.OpenPriceAvg),
		UnrealizedPnl: &pnl,
	}
}

func accountSummary(entries []accountEntry) adapter.AccountSummary {
	summary := adapter.AccountSummary{Venue: enum.VenueBitget}
	for _, e := range entries {
		if e.MarginCoin != "USDT" && len(entries) > 1 {
			continue
		}
		summary.Equity = dec(e.AccountEquity)
		summary.MarginUsed = dec(e.Locked)
		summary.Withdrawable = dec(e.Available)
		break
	}
	return summary
}
