package enum

// ReconcileReason names why a full REST re-sync was requested.
type ReconcileReason uint8

const (
	_reconcile_reason_beg ReconcileReason = iota
	ReconcilePeriodicAudit
	ReconcileWsStale
	ReconcileOrderLifecycleTimeout
	_reconcile_reason_end
)

func (r ReconcileReason) IsAvailable() bool {
	return r > _reconcile_reason_beg && r < _reconcile_reason_end
}

func (r ReconcileReason) String() string {
	switch r {
	case ReconcilePeriodicAudit:
		return "periodic_audit"
	case ReconcileWsStale:
		return "ws_stale"
	case ReconcileOrderLifecycleTimeout:
		return "order_lifecycle_timeout"
	default:
		return "unknown"
	}
}
