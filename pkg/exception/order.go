package exception

import "errors"

var (
	ErrOrderInvalidRequest   = errors.New("order: invalid request")
	ErrOrderUnknownLeg       = errors.New("order: unknown target leg")
	ErrOrderPlaceFailed      = errors.New("order: place failed")
	ErrOrderTargetsPartially = errors.New("order: protective legs partially applied")
	ErrOrderNoPosition       = errors.New("order: no open position for symbol")
)
