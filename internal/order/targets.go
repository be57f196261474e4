package order

import (
	"time"

	"main/internal/adapter"
	"main/internal/adapter/enum"
	"main/internal/classify"
	"main/internal/venue"
)

// Trigger-price field candidates per leg, first present wins. Venues
// disagree on where the level lives in an order record.
var (
	_takeProfitKeys = []string{"presetStopSurplusPrice", "tpTriggerPx", "triggerPx", "triggerPrice"}
	_stopLossKeys   = []string{"presetStopLossPrice", "slTriggerPx", "triggerPx", "triggerPrice"}
)

const hintTTL = 15 * time.Second

type targetHint struct {
	pair adapter.TargetPair
	at   time.Time
}

// ApplyOrderBatch folds one raw order batch into the TP/SL target map.
// Batches are deltas unless snapshot is set. The map is biased toward
// preserving levels: a leg is removed only on terminal evidence for that
// specific order, never because a push happened to omit it.
func (u *Usecase) ApplyOrderBatch(batch []venue.RawOrder, snapshot bool) {
	filtered := make([]venue.RawOrder, 0, len(batch))
	for _, raw := range batch {
		if classify.IsProtectiveCandidate(raw.Order) {
			filtered = append(filtered, raw)
		}
	}
	if len(filtered) == 0 {
		if snapshot {
			u.mu.Lock()
			u.targets = make(map[string]adapter.TargetPair)
			u.mu.Unlock()
		}
		return
	}

	// A lone terminal protective order is a removal signal for exactly its
	// own leg on its own symbol.
	if len(filtered) == 1 && filtered[0].Order.Status.IsTerminal() {
		o := filtered[0].Order
		u.removeLeg(o.Symbol, legOfKind(o.Kind))
		return
	}

	active := extractTargets(filtered)

	u.mu.Lock()
	defer u.mu.Unlock()

	if len(active) > 0 {
		if snapshot {
			u.targets = active
			return
		}
		for symbol, pair := range active {
			merged := u.targets[symbol]
			if pair.TakeProfit != nil {
				merged.TakeProfit = pair.TakeProfit
			}
			if pair.StopLoss != nil {
				merged.StopLoss = pair.StopLoss
			}
			u.targets[symbol] = merged
		}
		return
	}

	// Nothing live in the batch: fall back to per-order terminal removal.
	for _, raw := range filtered {
		if raw.Order.Status.IsTerminal() {
			u.removeLegLocked(raw.Order.Symbol, legOfKind(raw.Order.Kind))
		}
	}
}

// Targets returns a copy of the current protective levels for the symbol.
func (u *Usecase) Targets(symbol string) (adapter.TargetPair, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	pair, ok := u.targets[symbol]
	if !ok {
		return adapter.TargetPair{}, false
	}
	return pair.Clone(), true
}

func (u *Usecase) removeLeg(symbol string, leg enum.TargetLeg) {
	u.mu.Lock()
	u.removeLegLocked(symbol, leg)
	u.mu.Unlock()
}

// removeLegLocked clears one leg from both the target map and the hint
// cache, dropping the symbol entry entirely once both legs are gone.
func (u *Usecase) removeLegLocked(symbol string, leg enum.TargetLeg) {
	if pair, ok := u.targets[symbol]; ok {
		clearLeg(&pair, leg)
		if pair.IsEmpty() {
			delete(u.targets, symbol)
		} else {
			u.targets[symbol] = pair
		}
	}
	if hint, ok := u.hints[symbol]; ok {
		clearLeg(&hint.pair, leg)
		if hint.pair.IsEmpty() {
			delete(u.hints, symbol)
		} else {
			u.hints[symbol] = hint
		}
	}
}

func clearLeg(pair *adapter.TargetPair, leg enum.TargetLeg) {
	switch leg {
	case enum.TargetLegTakeProfit:
		pair.TakeProfit = nil
	case enum.TargetLegStopLoss:
		pair.StopLoss = nil
	}
}

func legOfKind(kind enum.OrderKind) enum.TargetLeg {
	if kind == enum.OrderKindTakeProfitMarket {
		return enum.TargetLegTakeProfit
	}
	return enum.TargetLegStopLoss
}

// extractTargets builds symbol -> pair from the non-terminal protective
// orders in the batch.
func extractTargets(filtered []venue.RawOrder) map[string]adapter.TargetPair {
	out := make(map[string]adapter.TargetPair)
	for _, raw := range filtered {
		o := raw.Order
		if o.Status.IsTerminal() {
			continue
		}
		price := triggerPrice(raw, legOfKind(o.Kind))
		if price <= 0 {
			continue
		}
		pair := out[o.Symbol]
		v := price
		if legOfKind(o.Kind) == enum.TargetLegTakeProfit {
			pair.TakeProfit = &v
		} else {
			pair.StopLoss = &v
		}
		out[o.Symbol] = pair
	}
	return out
}

func triggerPrice(raw venue.RawOrder, leg enum.TargetLeg) float64 {
	keys := _stopLossKeys
	if leg == enum.TargetLegTakeProfit {
		keys = _takeProfitKeys
	}
	if v, ok := raw.FirstFloat(keys...); ok && v > 0 {
		return v
	}
	return raw.Order.TriggerPrice
}

func (u *Usecase) seedHintLocked(symbol string, pair adapter.TargetPair) {
	existing := u.hints[symbol].pair
	if pair.TakeProfit != nil {
		existing.TakeProfit = pair.TakeProfit
	}
	if pair.StopLoss != nil {
		existing.StopLoss = pair.StopLoss
	}
	u.hints[symbol] = targetHint{pair: existing, at: time.Now()}
}

func (u *Usecase) hintLocked(symbol string, now time.Time) (adapter.TargetPair, bool) {
	hint, ok := u.hints[symbol]
	if !ok {
		return adapter.TargetPair{}, false
	}
	if now.Sub(hint.at) > hintTTL {
		delete(u.hints, symbol)
		return adapter.TargetPair{}, false
	}
	return hint.pair.Clone(), true
}
