package risk

import (
	"github.com/shopspring/decimal"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/pkg/exception"
)

// WarnReducedForLeverage is emitted when the leverage cap shrank the size.
const WarnReducedForLeverage = "reduced for leverage"

// Caps are the account-level risk limits enforced around sizing.
type Caps struct {
	PerTradePct  float64 `json:"perTradePct"`
	DailyLossPct float64 `json:"dailyLossPct"`
	OpenRiskPct  float64 `json:"openRiskPct"`
}

// SizeInput is everything the sizing function needs. It is pure data; the
// function never reaches out to a venue.
type SizeInput struct {
	Equity         float64
	RiskPct        float64
	EntryPrice     float64
	StopPrice      float64
	Symbol         adapter.SymbolConfig
	SlippageFactor float64
	FeeBufferPct   float64
	// LeverageCapital overrides equity as the base for the leverage cap.
	LeverageCapital *float64
}

// SizeResult is the bounded order size with its audit values.
type SizeResult struct {
	Side          enum.OrderSide
	Size          float64
	Notional      float64
	EstimatedLoss float64 // per-unit loss x size, not inflated by slippage
	Entry         float64 // tick-rounded
	Stop          float64 // tick-rounded
	Warnings      []string
}

// Size computes a risk-bounded position size. All rejections are local
// validation failures and must never be retried.
func Size(in SizeInput) (SizeResult, error) {
	if in.RiskPct <= 0 {
		return SizeResult{}, exception.ErrRiskNonPositivePct
	}
	if in.Equity <= 0 {
		return SizeResult{}, exception.ErrRiskNonPositiveEquity
	}
	if in.EntryPrice <= 0 || in.StopPrice <= 0 {
		return SizeResult{}, exception.ErrRiskNonPositivePrice
	}
	if in.Symbol.TickSize <= 0 || in.Symbol.StepSize <= 0 {
		return SizeResult{}, exception.ErrRiskInvalidSymbolSpec
	}

	tick := decimal.NewFromFloat(in.Symbol.TickSize)
	step := decimal.NewFromFloat(in.Symbol.StepSize)

	entry := roundToIncrement(decimal.NewFromFloat(in.EntryPrice), tick)
	stop := roundToIncrement(decimal.NewFromFloat(in.StopPrice), tick)
	if entry.Equal(stop) {
		return SizeResult{}, exception.ErrRiskZeroDistance
	}

	side := enum.OrderSideBuy
	if entry.LessThan(stop) {
		side = enum.OrderSideSell
	}

	perUnitLoss := entry.Sub(stop).Abs()
	effectiveLoss := perUnitLoss.Mul(decimal.NewFromFloat(1 + in.SlippageFactor))

	riskCapital := decimal.NewFromFloat(in.Equity).
		Mul(decimal.NewFromFloat(in.RiskPct)).
		Div(decimal.NewFromInt(100))
	if in.FeeBufferPct > 0 {
		riskCapital = riskCapital.Mul(decimal.NewFromFloat(1 - in.FeeBufferPct/100))
	}

	raw := riskCapital.Div(effectiveLoss)
	if in.Symbol.MaxOrderSize > 0 {
		maxSize := decimal.NewFromFloat(in.Symbol.MaxOrderSize)
		if raw.GreaterThan(maxSize) {
			raw = maxSize
		}
	}

	size := floorToIncrement(raw, step)
	if size.LessThanOrEqual(decimal.Zero) || belowMin(size, in.Symbol.MinOrderSize) {
		return SizeResult{}, exception.ErrRiskSizeBelowMinimum
	}

	var warnings []string
	notional := size.Mul(entry)
	if in.Symbol.MaxLeverage > 0 {
		base := decimal.NewFromFloat(in.Equity)
		if in.LeverageCapital != nil {
			base = decimal.NewFromFloat(*in.LeverageCapital)
		}
		maxNotional := base.Mul(decimal.NewFromFloat(in.Symbol.MaxLeverage))
		if notional.GreaterThan(maxNotional) {
			allowed := floorToIncrement(maxNotional.Div(entry), step)
			if allowed.LessThanOrEqual(decimal.Zero) || belowMin(allowed, in.Symbol.MinOrderSize) {
				return SizeResult{}, exception.ErrRiskSizeBelowMinimum
			}
			size = allowed
			notional = size.Mul(entry)
			warnings = append(warnings, WarnReducedForLeverage)
		}
	}

	estimatedLoss := perUnitLoss.Mul(size)

	return SizeResult{
		Side:          side,
		Size:          size.InexactFloat64(),
		Notional:      notional.InexactFloat64(),
		EstimatedLoss: estimatedLoss.InexactFloat64(),
		Entry:         entry.InexactFloat64(),
		Stop:          stop.InexactFloat64(),
		Warnings:      warnings,
	}, nil
}

// RoundToTick rounds a price to the nearest multiple of the tick size.
// Rounding an already aligned price yields the same price.
func RoundToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	return roundToIncrement(decimal.NewFromFloat(price), decimal.NewFromFloat(tickSize)).InexactFloat64()
}

// FloorToStep floors a size to the nearest lower multiple of the step size.
func FloorToStep(size, stepSize float64) float64 {
	if stepSize <= 0 {
		return size
	}
	return floorToIncrement(decimal.NewFromFloat(size), decimal.NewFromFloat(stepSize)).InexactFloat64()
}

func roundToIncrement(v, inc decimal.Decimal) decimal.Decimal {
	return v.Div(inc).Round(0).Mul(inc)
}

func floorToIncrement(v, inc decimal.Decimal) decimal.Decimal {
	return v.Div(inc).Floor().Mul(inc)
}

func belowMin(size decimal.Decimal, min float64) bool {
	return min > 0 && size.LessThan(decimal.NewFromFloat(min))
}
