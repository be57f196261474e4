package enum

// Intent discretionary, tpsl helper
type Intent uint8

const (
	_intent_beg Intent = iota
	IntentUnknown
	IntentDiscretionary
	IntentTpslHelper
	_intent_end
)

func (i Intent) IsAvailable() bool {
	return i > _intent_beg && i < _intent_end
}

func (i Intent) String() string {
	switch i {
	case IntentDiscretionary:
		return "discretionary"
	case IntentTpslHelper:
		return "tpsl_helper"
	default:
		return "unknown"
	}
}

// Confidence low, medium, high
type Confidence uint8

const (
	_confidence_beg Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
	_confidence_end
)

func (c Confidence) IsAvailable() bool {
	return c > _confidence_beg && c < _confidence_end
}

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// TargetLeg take profit, stop loss
type TargetLeg uint8

const (
	_target_leg_beg TargetLeg = iota
	TargetLegTakeProfit
	TargetLegStopLoss
	_target_leg_end
)

func (l TargetLeg) IsAvailable() bool {
	return l > _target_leg_beg && l < _target_leg_end
}

func (l TargetLeg) String() string {
	switch l {
	case TargetLegTakeProfit:
		return "take_profit"
	case TargetLegStopLoss:
		return "stop_loss"
	default:
		return "unknown"
	}
}
