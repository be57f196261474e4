package exception

import "errors"

var (
	ErrGatewayNoInstruments  = errors.New("gateway: venue returned no tradable instruments")
	ErrGatewayNoData         = errors.New("gateway: no usable data")
	ErrGatewayConfigsMissing = errors.New("gateway: symbol configs not loaded")
	ErrGatewayUnknownSymbol  = errors.New("gateway: unknown symbol")
)

// ErrTransient marks network failures that were retried and still failed.
var ErrTransient = errors.New("gateway: transient network failure")
