package exception

import "errors"

// Sizing rejections are local validation failures; they are never retried.
var (
	ErrRiskNonPositivePct      = errors.New("risk: risk percent must be > 0")
	ErrRiskZeroDistance        = errors.New("risk: entry equals stop after tick rounding")
	ErrRiskSizeBelowMinimum    = errors.New("risk: size below minimum order size")
	ErrRiskInvalidSymbolSpec   = errors.New("risk: invalid tick or step size")
	ErrRiskNonPositiveEquity   = errors.New("risk: equity must be > 0")
	ErrRiskNonPositivePrice    = errors.New("risk: prices must be > 0")
	ErrRiskPerTradeCapExceeded = errors.New("risk: per-trade risk cap exceeded")
	ErrRiskOpenRiskCapExceeded = errors.New("risk: open risk cap exceeded")
	ErrRiskDailyLossCapReached = errors.New("risk: daily loss cap reached")
)
