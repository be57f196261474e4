package gateway

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/adapter"
	"main/internal/adapter/enum"
)

// reconcileState tracks when and why full REST re-syncs happened. Guarded
// by Gateway.mu.
type reconcileState struct {
	lastReconcileAt    time.Time
	reconcileCount     int
	lastReason         enum.ReconcileReason
	reasonCounts       map[string]int
	pendingSubmitted   map[string]time.Time
	streamStartedAt    time.Time
	lastPrivateEventAt time.Time
}

func newReconcileState() reconcileState {
	return reconcileState{
		reasonCounts:     make(map[string]int),
		pendingSubmitted: make(map[string]time.Time),
	}
}

// evaluateReasons returns which reconcile triggers currently fire, in
// priority order.
func (g *Gateway) evaluateReasons(now time.Time) []enum.ReconcileReason {
	g.mu.Lock()
	defer g.mu.Unlock()

	var reasons []enum.ReconcileReason

	if g.recon.lastReconcileAt.IsZero() || now.Sub(g.recon.lastReconcileAt) >= g.cfg.ReconcileInterval {
		reasons = append(reasons, enum.ReconcilePeriodicAudit)
	}

	if g.wsStaleLocked(now) {
		reasons = append(reasons, enum.ReconcileWsStale)
	}

	for _, submittedAt := range g.recon.pendingSubmitted {
		if now.Sub(submittedAt) > g.cfg.OrderTimeout {
			reasons = append(reasons, enum.ReconcileOrderLifecycleTimeout)
			break
		}
	}

	return reasons
}

func (g *Gateway) wsStale(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wsStaleLocked(now)
}

// wsStaleLocked decides whether silence on the private feed is suspicious.
// A warming-up stream is not stale, and neither is a quiet one with nothing
// at stake: staleness needs open exposure or an unresolved submission.
func (g *Gateway) wsStaleLocked(now time.Time) bool {
	if !g.cfg.Streaming || g.recon.streamStartedAt.IsZero() {
		return false
	}
	if now.Sub(g.recon.streamStartedAt) < g.cfg.StreamMinAge {
		return false
	}
	if g.recon.lastPrivateEventAt.IsZero() {
		return false
	}
	if now.Sub(g.recon.lastPrivateEventAt) <= g.cfg.StalenessWindow {
		return false
	}
	if len(g.recon.pendingSubmitted) > 0 {
		return true
	}
	return (g.ordersFromStream && len(g.orders) > 0) || (g.positionsFromStream && len(g.positions) > 0)
}

// RequestReconcile runs a full REST re-sync, unless one ran within the
// minimum gap. The first reason is the primary trigger; every reason is
// counted in the histogram, so co-firing triggers are not lost to the gap.
// A suppressed request returns false and does not reset the gap clock.
func (g *Gateway) RequestReconcile(ctx context.Context, reasons ...enum.ReconcileReason) bool {
	if len(reasons) == 0 {
		return false
	}
	primary := reasons[0]
	now := time.Now()

	g.mu.Lock()
	if !g.recon.lastReconcileAt.IsZero() && now.Sub(g.recon.lastReconcileAt) < g.cfg.ReconcileMinGap {
		g.mu.Unlock()
		logs.Infof("reconcile %s suppressed, last ran %s ago", primary, now.Sub(g.recon.lastReconcileAt))
		return false
	}
	g.recon.lastReconcileAt = now
	g.recon.reconcileCount++
	g.recon.lastReason = primary
	for _, reason := range reasons {
		g.recon.reasonCounts[reason.String()]++
	}
	g.expirePendingLocked(now)
	g.mu.Unlock()

	logs.Infof("reconcile (%s) against %s", primary, g.Venue())

	if g.cfg.OnReconcile != nil {
		g.cfg.OnReconcile(g.Venue(), primary)
	}

	if _, err := g.OpenOrders(ctx, true, true); err != nil {
		logs.Errorf("reconcile orders: %v", err)
	}
	if _, err := g.OpenPositions(ctx, true, true); err != nil {
		logs.Errorf("reconcile positions: %v", err)
	}
	if summary, err := g.AccountSummary(ctx, true); err != nil {
		logs.Errorf("reconcile account: %v", err)
	} else {
		g.publishAccount(summary)
	}
	return true
}

// expirePendingLocked drops pending submissions past the timeout. The
// reconcile that follows re-establishes their true state.
func (g *Gateway) expirePendingLocked(now time.Time) {
	for id, submittedAt := range g.recon.pendingSubmitted {
		if now.Sub(submittedAt) > g.cfg.OrderTimeout {
			logs.Warnf("pending order %s unresolved after %s", id, now.Sub(submittedAt))
			delete(g.recon.pendingSubmitted, id)
		}
	}
}

func (g *Gateway) healthLocked() adapter.StreamHealth {
	now := time.Now()
	counts := make(map[string]int, len(g.recon.reasonCounts))
	for k, v := range g.recon.reasonCounts {
		counts[k] = v
	}
	return adapter.StreamHealth{
		WsAlive:               g.running.Load() && g.cfg.Streaming && !g.wsStaleLocked(now),
		ReconcileCount:        g.recon.reconcileCount,
		LastReconcileReason:   g.recon.lastReason.String(),
		ReconcileReasonCounts: counts,
		PendingSubmitted:      len(g.recon.pendingSubmitted),
	}
}

// Health exposes the current stream health snapshot.
func (g *Gateway) Health() adapter.StreamHealth {
	g.mu.Lock()
	h := g.healthLocked()
	g.mu.Unlock()
	h.RestFallbacks = g.counters.RestFallbacks()
	return h
}
