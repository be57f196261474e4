package enum

import "strings"

// Venue hyper, bitget
type Venue uint8

const (
	_venue_beg Venue = iota
	VenueHyper
	VenueBitget
	_venue_end
)

func (v Venue) IsAvailable() bool {
	return v > _venue_beg && v < _venue_end
}

func (v Venue) String() string {
	switch v {
	case VenueHyper:
		return "hyper"
	case VenueBitget:
		return "bitget"
	default:
		return "unknown"
	}
}

func ParseVenue(s string) (Venue, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hyper":
		return VenueHyper, true
	case "bitget":
		return VenueBitget, true
	default:
		return 0, false
	}
}
