package classify

import (
	"main/internal/adapter"
	"main/internal/adapter/enum"
)

// Hint carries out-of-band signals the order record itself cannot express.
type Hint struct {
	// CallerTpsl is set when the caller just placed the order as a
	// protective helper and is feeding it back for classification.
	CallerTpsl bool
	// EnrichedDiscretionary marks a reduce-only order without trigger
	// markers as a real exit the trader placed. The signal is supplied by
	// the caller; this package never derives it.
	EnrichedDiscretionary bool
}

// Result is the classification with its audit trail. Reasons lists the
// evidence consulted, in the order it was weighed.
type Result struct {
	Intent     enum.Intent
	Confidence enum.Confidence
	Reasons    []string
}

// Order decides whether an order is a discretionary trade or a protective
// TP/SL helper attached to a position. Rules are evaluated in priority
// order; the first match wins.
func Order(o adapter.Order, hint Hint) Result {
	// Terminal orders are only removal signals, never classified for intent.
	if o.Status.IsTerminal() {
		return Result{
			Intent:     enum.IntentUnknown,
			Confidence: enum.ConfidenceLow,
			Reasons:    []string{"terminal_status:" + o.Status.String()},
		}
	}

	if o.TpslFlag.IsTrue() {
		return Result{
			Intent:     enum.IntentTpslHelper,
			Confidence: enum.ConfidenceHigh,
			Reasons:    []string{"venue_tpsl_flag"},
		}
	}

	reduceOnly := o.ReduceOnly.IsTrue()
	hasTrigger := o.TriggerPrice > 0

	if o.Kind.IsTrigger() {
		if reduceOnly || hasTrigger {
			return Result{
				Intent:     enum.IntentTpslHelper,
				Confidence: enum.ConfidenceHigh,
				Reasons:    []string{"trigger_kind:" + o.Kind.String(), markerReason(reduceOnly, hasTrigger)},
			}
		}
		// Trigger-typed with neither marker is ambiguous.
		return Result{
			Intent:     enum.IntentUnknown,
			Confidence: enum.ConfidenceMedium,
			Reasons:    []string{"trigger_kind:" + o.Kind.String(), "no_reduce_only", "no_trigger_price"},
		}
	}

	if reduceOnly && hasTrigger {
		return Result{
			Intent:     enum.IntentTpslHelper,
			Confidence: enum.ConfidenceHigh,
			Reasons:    []string{"reduce_only", "trigger_price"},
		}
	}

	// Reduce-only limit/market with no trigger price and no client id is a
	// venue-specific ambiguous shape, unless enrichment marks it as a real
	// exit the trader placed.
	plainKind := o.Kind == enum.OrderKindLimit || o.Kind == enum.OrderKindMarket
	if reduceOnly && plainKind && !hasTrigger && o.ClientOrderID == "" {
		if hint.EnrichedDiscretionary {
			return Result{
				Intent:     enum.IntentDiscretionary,
				Confidence: enum.ConfidenceMedium,
				Reasons:    []string{"reduce_only_no_trigger_markers", "enriched_discretionary"},
			}
		}
		return Result{
			Intent:     enum.IntentUnknown,
			Confidence: enum.ConfidenceMedium,
			Reasons:    []string{"reduce_only_no_trigger_markers"},
		}
	}

	if hint.CallerTpsl {
		return Result{
			Intent:     enum.IntentTpslHelper,
			Confidence: enum.ConfidenceMedium,
			Reasons:    []string{"caller_hint"},
		}
	}

	if plainKind && !reduceOnly {
		return Result{
			Intent:     enum.IntentDiscretionary,
			Confidence: enum.ConfidenceHigh,
			Reasons:    []string{"plain_order:" + o.Kind.String()},
		}
	}

	return Result{
		Intent:     enum.IntentUnknown,
		Confidence: enum.ConfidenceLow,
		Reasons:    []string{"insufficient_evidence"},
	}
}

// IsProtectiveCandidate reports whether the order should feed the TP/SL
// target map: the venue marks it as attached to a position and its kind is
// a trigger type.
func IsProtectiveCandidate(o adapter.Order) bool {
	return o.TpslFlag.IsTrue() && o.Kind.IsTrigger()
}

func markerReason(reduceOnly, hasTrigger bool) string {
	switch {
	case reduceOnly && hasTrigger:
		return "reduce_only+trigger_price"
	case reduceOnly:
		return "reduce_only"
	default:
		return "trigger_price"
	}
}
