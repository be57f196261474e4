package exception

import "errors"

var (
	ErrVenueUnsupported    = errors.New("venue: unsupported venue")
	ErrVenueSwitchFailed   = errors.New("venue: switch failed")
	ErrVenueSwitchBusy     = errors.New("venue: switch in progress")
	ErrVenueNotConfigured  = errors.New("venue: not configured")
	ErrVenueDecodeResponse = errors.New("venue: decode response body")
	ErrVenueHTTPStatus     = errors.New("venue: unexpected http status")
)
