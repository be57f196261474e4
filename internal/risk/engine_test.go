package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/pkg/exception"
)

func defaultSymbol() adapter.SymbolConfig {
	return adapter.SymbolConfig{
		Symbol:       "BTC",
		TickSize:     0.5,
		StepSize:     0.1,
		MinOrderSize: 0.5,
		MaxOrderSize: 100,
	}
}

func TestSizeBasic(t *testing.T) {
	res, err := Size(SizeInput{
		Equity:     5000,
		RiskPct:    1,
		EntryPrice: 100,
		StopPrice:  95,
		Symbol:     defaultSymbol(),
	})
	require.NoError(t, err)

	assert.Equal(t, enum.OrderSideBuy, res.Side)
	assert.InDelta(t, 10.0, res.Size, 1e-9)
	assert.InDelta(t, 50.0, res.EstimatedLoss, 1e-9)
	assert.InDelta(t, 1000.0, res.Notional, 1e-9)
	assert.Empty(t, res.Warnings)
}

func TestSizeSellSide(t *testing.T) {
	res, err := Size(SizeInput{
		Equity:     5000,
		RiskPct:    1,
		EntryPrice: 95,
		StopPrice:  100,
		Symbol:     defaultSymbol(),
	})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderSideSell, res.Side)
}

func TestSizeLeverageCap(t *testing.T) {
	sym := defaultSymbol()
	sym.MaxLeverage = 1

	res, err := Size(SizeInput{
		Equity:     1000,
		RiskPct:    20,
		EntryPrice: 200,
		StopPrice:  190,
		Symbol:     sym,
	})
	require.NoError(t, err)

	// Raw size 20 capped down to 1000*1/200 = 5.0.
	assert.InDelta(t, 5.0, res.Size, 1e-9)
	assert.InDelta(t, 1000.0, res.Notional, 1e-9)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnReducedForLeverage, res.Warnings[0])
}

func TestSizeLeverageCapitalOverride(t *testing.T) {
	sym := defaultSymbol()
	sym.MaxLeverage = 1
	capital := 400.0

	res, err := Size(SizeInput{
		Equity:          1000,
		RiskPct:         20,
		EntryPrice:      200,
		StopPrice:       190,
		Symbol:          sym,
		LeverageCapital: &capital,
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Size, 1e-9)
	assert.Len(t, res.Warnings, 1)
}

func TestSizeSlippageAndFeeBuffer(t *testing.T) {
	res, err := Size(SizeInput{
		Equity:         10000,
		RiskPct:        1,
		EntryPrice:     100,
		StopPrice:      90,
		Symbol:         defaultSymbol(),
		SlippageFactor: 0.25,
		FeeBufferPct:   20,
	})
	require.NoError(t, err)

	// risk capital 100*0.8=80, effective loss 10*1.25=12.5, raw 6.4 -> 6.4
	assert.InDelta(t, 6.4, res.Size, 1e-9)
	// Estimated loss is not inflated by slippage.
	assert.InDelta(t, 64.0, res.EstimatedLoss, 1e-9)
}

func TestSizeRejections(t *testing.T) {
	sym := defaultSymbol()

	testCases := []struct {
		desc string
		in   SizeInput
		err  error
	}{
		{
			"non-positive risk",
			SizeInput{Equity: 5000, RiskPct: 0, EntryPrice: 100, StopPrice: 95, Symbol: sym},
			exception.ErrRiskNonPositivePct,
		},
		{
			"stop equals entry after rounding",
			SizeInput{Equity: 5000, RiskPct: 1, EntryPrice: 100.1, StopPrice: 100.2, Symbol: sym},
			exception.ErrRiskZeroDistance,
		},
		{
			"size below minimum",
			SizeInput{Equity: 10, RiskPct: 0.01, EntryPrice: 100, StopPrice: 95, Symbol: sym},
			exception.ErrRiskSizeBelowMinimum,
		},
		{
			"invalid symbol spec",
			SizeInput{Equity: 5000, RiskPct: 1, EntryPrice: 100, StopPrice: 95, Symbol: adapter.SymbolConfig{}},
			exception.ErrRiskInvalidSymbolSpec,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Size(tc.in)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestSizeIsStepMultiple(t *testing.T) {
	sym := adapter.SymbolConfig{TickSize: 0.01, StepSize: 0.001, MinOrderSize: 0.001, MaxOrderSize: 1e6, MaxLeverage: 10}

	inputs := []SizeInput{
		{Equity: 3517.33, RiskPct: 0.7, EntryPrice: 63112.37, StopPrice: 61999.99, Symbol: sym},
		{Equity: 120.5, RiskPct: 2.5, EntryPrice: 1.2345, StopPrice: 1.2001, Symbol: sym},
		{Equity: 99999, RiskPct: 5, EntryPrice: 250.33, StopPrice: 249.5, Symbol: sym, SlippageFactor: 0.1},
	}

	for _, in := range inputs {
		res, err := Size(in)
		if err != nil {
			continue
		}
		steps := res.Size / sym.StepSize
		assert.InDelta(t, math.Round(steps), steps, 1e-6, "size %v is not a step multiple", res.Size)
		assert.GreaterOrEqual(t, res.Size, sym.MinOrderSize)
		assert.LessOrEqual(t, res.Notional, in.Equity*sym.MaxLeverage+1e-6)
	}
}

func TestRoundToTickIdempotent(t *testing.T) {
	prices := []float64{100, 100.5, 63112.5, 0.5, 12.345}
	for _, p := range prices {
		once := RoundToTick(p, 0.5)
		twice := RoundToTick(once, 0.5)
		assert.Equal(t, once, twice)
	}
}

func TestFloorToStep(t *testing.T) {
	assert.InDelta(t, 6.4, FloorToStep(6.49, 0.1), 1e-9)
	assert.InDelta(t, 0.0, FloorToStep(0.09, 0.1), 1e-9)
}
