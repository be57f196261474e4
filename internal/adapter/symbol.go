package adapter

// SymbolConfig is the venue metadata required for sizing and placement.
type SymbolConfig struct {
	Symbol       string
	TickSize     float64
	StepSize     float64
	MinOrderSize float64
	MaxOrderSize float64
	MaxLeverage  float64 // 0 = no leverage cap
}
