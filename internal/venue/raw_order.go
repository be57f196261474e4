package venue

import (
	"strconv"

	"main/internal/adapter"
)

// RawOrder pairs the canonical view of an order with the venue-native field
// bag it was decoded from. TP/SL reconciliation reads the bag through
// candidate key lists because venues disagree on where a trigger price
// lives; everything else reads the canonical view.
type RawOrder struct {
	Order  adapter.Order
	Fields map[string]any
}

// FirstFloat returns the first present numeric value among the candidate
// keys. String-encoded numbers are accepted; venues mix both.
func (r RawOrder) FirstFloat(keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := r.Fields[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := floatValue(v); ok {
			return f, true
		}
	}
	return 0, false
}

// FirstString returns the first present non-empty string among the keys.
func (r RawOrder) FirstString(keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := r.Fields[key]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func floatValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		if t == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
