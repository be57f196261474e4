package adapter

import "main/internal/adapter/enum"

// Position is a normalized open position. Size is > 0 by construction;
// zero or negative venue rows are filtered at ingestion.
type Position struct {
	Symbol        string
	Side          enum.PositionSide
	Size          float64
	EntryPrice    float64
	UnrealizedPnl *float64 // nil when the venue did not supply it
	TakeProfit    *float64
	StopLoss      *float64
}

// TargetPair is one symbol's protective levels. A leg is present only while
// a live protective order is believed to back it.
type TargetPair struct {
	TakeProfit *float64
	StopLoss   *float64
}

func (p TargetPair) IsEmpty() bool {
	return p.TakeProfit == nil && p.StopLoss == nil
}

// Clone returns a copy with its own pointer cells.
func (p TargetPair) Clone() TargetPair {
	var out TargetPair
	if p.TakeProfit != nil {
		v := *p.TakeProfit
		out.TakeProfit = &v
	}
	if p.StopLoss != nil {
		v := *p.StopLoss
		out.StopLoss = &v
	}
	return out
}
