package adapter

import "main/internal/adapter/enum"

// AccountSummary is the normalized equity/margin view for one venue.
type AccountSummary struct {
	Venue        enum.Venue
	Equity       float64
	MarginUsed   float64
	Withdrawable float64
	UpnlSource   string  // "ws", "rest", "computed"
	UpnlAgeSec   float64 // age of the upnl observation

	Health StreamHealth
}

// StreamHealth is the consistency snapshot embedded in account events.
type StreamHealth struct {
	WsAlive               bool
	ReconcileCount        int
	LastReconcileReason   string
	ReconcileReasonCounts map[string]int
	PendingSubmitted      int
	RestFallbacks         map[string]int
}
